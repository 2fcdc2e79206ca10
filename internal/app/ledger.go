package app

import (
	"time"

	"pinquiz-service/internal/domain"
)

// Submit records one answer attempt. The first write for a (player, question)
// pair wins; anything later is rejected without touching the score. Recording
// the answer, awarding points and the potential early lock all happen inside
// one critical section, so "last player answered" can never race a submission.
func (s *Session) Submit(playerID string, sub domain.Submission, at time.Time) (domain.AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.StatusFinished {
		return domain.AnswerResult{}, domain.ErrSessionFinished
	}
	if s.phase != domain.PhaseQuestionOpen {
		return domain.AnswerResult{}, domain.ErrWrongPhase
	}
	q := s.currentQuestionLocked()
	if sub.QuestionID != q.ID {
		// Answer for a question that is not the open one, e.g. a late packet
		// from an earlier round.
		return domain.AnswerResult{}, domain.ErrWrongPhase
	}
	player, ok := s.players[playerID]
	if !ok {
		return domain.AnswerResult{}, domain.ErrPlayerNotFound
	}
	if _, dup := s.answers[q.ID][playerID]; dup {
		return domain.AnswerResult{}, domain.ErrDuplicateAnswer
	}
	option := findOption(*q, sub.OptionID)
	if option == nil {
		return domain.AnswerResult{}, domain.ErrOptionNotFound
	}

	// Clamp elapsed to [0, limit] to tolerate client clock skew.
	elapsed := at.Sub(s.phaseStartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	if q.TimeLimit > 0 && elapsed > q.TimeLimit {
		elapsed = q.TimeLimit
	}

	awarded := Score(option.Correct, elapsed, q.TimeLimit, q.Points)
	answer := &domain.Answer{
		PlayerID:   playerID,
		QuestionID: q.ID,
		OptionID:   option.ID,
		AnsweredAt: at,
		Elapsed:    elapsed,
		Correct:    option.Correct,
		Awarded:    awarded,
	}
	s.answers[q.ID][playerID] = answer
	player.Score += awarded
	player.LastSeen = at

	result := domain.AnswerResult{
		QuestionID: q.ID,
		Correct:    answer.Correct,
		Awarded:    answer.Awarded,
		TotalScore: player.Score,
	}

	if len(s.answers[q.ID]) >= len(s.players) {
		// Everyone joined has answered: lock early instead of waiting out the timer.
		s.lockQuestionLocked()
	}
	return result, nil
}

func findOption(q domain.Question, optionID string) *domain.AnswerOption {
	for i := range q.Options {
		if q.Options[i].ID == optionID {
			return &q.Options[i]
		}
	}
	return nil
}
