package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"pinquiz-service/internal/domain"
)

// QuizLoader reads quiz content relationally from Postgres: the quiz row,
// its questions ordered by sort_order, and each question's answer options.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := l.pool.QueryRow(ctx,
		`SELECT id, title FROM quizzes WHERE id=$1`, quizID,
	).Scan(&quiz.ID, &quiz.Title)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	rows, err := l.pool.Query(ctx,
		`SELECT id, question_text, COALESCE(question_type,''), COALESCE(time_limit_seconds,0),
		        COALESCE(points,0), COALESCE(sort_order,0)
		   FROM quiz_questions
		  WHERE quiz_id=$1
		  ORDER BY sort_order, id`, quizID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			q            domain.Question
			questionType string
			limitSeconds int
		)
		if err := rows.Scan(&q.ID, &q.Text, &questionType, &limitSeconds, &q.Points, &q.SortOrder); err != nil {
			return domain.Quiz{}, fmt.Errorf("scan question: %w", err)
		}
		q.Type = parseQuestionType(questionType)
		q.TimeLimit = time.Duration(limitSeconds) * time.Second
		quiz.Questions = append(quiz.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return domain.Quiz{}, fmt.Errorf("iterate questions: %w", err)
	}

	for i := range quiz.Questions {
		options, err := l.loadOptions(ctx, quiz.Questions[i].ID)
		if err != nil {
			return domain.Quiz{}, err
		}
		quiz.Questions[i].Options = options
	}
	return quiz, nil
}

func (l *QuizLoader) loadOptions(ctx context.Context, questionID string) ([]domain.AnswerOption, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, option_text, is_correct, COALESCE(sort_order,0)
		   FROM question_answer_options
		  WHERE question_id=$1
		  ORDER BY sort_order, id`, questionID)
	if err != nil {
		return nil, fmt.Errorf("load options: %w", err)
	}
	defer rows.Close()

	var options []domain.AnswerOption
	for rows.Next() {
		var opt domain.AnswerOption
		if err := rows.Scan(&opt.ID, &opt.Text, &opt.Correct, &opt.SortOrder); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		options = append(options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate options: %w", err)
	}
	return options, nil
}

func parseQuestionType(raw string) domain.QuestionType {
	if raw == "true_false" {
		return domain.QuestionTrueFalse
	}
	return domain.QuestionSingleChoice
}
