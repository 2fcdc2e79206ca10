package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"pinquiz-service/internal/domain"
)

// ResultWriter persists a finished session in one transaction: the session
// row, its players and their answers. A failed write leaves nothing behind,
// so the service's bounded retry can safely run it again.
type ResultWriter struct {
	pool *pgxpool.Pool
}

func NewResultWriter(pool *pgxpool.Pool) *ResultWriter {
	return &ResultWriter{pool: pool}
}

func (w *ResultWriter) SaveSessionResult(ctx context.Context, result domain.SessionResult) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin result tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO quiz_sessions (id, quiz_id, host_id, join_code, status, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, 'finished', $5, $6)`,
		result.SessionID, result.QuizID, result.HostID, result.JoinCode, result.StartedAt, result.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for _, player := range result.Players {
		var userID interface{}
		if player.UserID != "" {
			userID = player.UserID
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO quiz_session_players (id, session_id, user_id, nickname, joined_at, score)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			player.ID, result.SessionID, userID, player.Nickname, player.JoinedAt, player.Score)
		if err != nil {
			return fmt.Errorf("insert player %s: %w", player.Nickname, err)
		}
	}

	for _, answer := range result.Answers {
		_, err = tx.Exec(ctx,
			`INSERT INTO quiz_session_answers (id, session_player_id, question_id, answer_option_id, answered_at, is_correct, points_awarded)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.NewString(), answer.PlayerID, answer.QuestionID, answer.OptionID, answer.AnsweredAt, answer.Correct, answer.Awarded)
		if err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit result tx: %w", err)
	}
	return nil
}
