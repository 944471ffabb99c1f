package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/learnhub/internal/domain/progress"
	"github.com/alem-hub/learnhub/internal/domain/shared"
)

// ProgressRepository implements progress.Repository using PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

var _ progress.Repository = (*ProgressRepository)(nil)

const progressColumns = `user_id::text, lesson_id, course_id, last_position, duration, percentage,
	completed, submitted, experience_gained, last_reported_at, created_at, updated_at`

func scanProgress(row pgx.Row) (*progress.LessonProgress, error) {
	var (
		p                  progress.LessonProgress
		userID             string
		lessonID, courseID int64
	)
	if err := row.Scan(
		&userID, &lessonID, &courseID, &p.LastPosition, &p.Duration, &p.Percentage,
		&p.Completed, &p.Submitted, &p.ExperienceGained,
		&p.LastReportedAt, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.UserID = shared.UserID(userID)
	p.LessonID = shared.LessonID(lessonID)
	p.CourseID = shared.CourseID(courseID)
	p.LastReportedAt = p.LastReportedAt.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func getProgress(ctx context.Context, q Querier, userID shared.UserID, lessonID shared.LessonID, forUpdate bool) (*progress.LessonProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM lesson_progress WHERE user_id = $1 AND lesson_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	p, err := scanProgress(q.QueryRow(ctx, query, userID.String(), lessonID.Int64()))
	if IsNoRows(err) {
		return nil, nil
	}
	return p, err
}

// Get returns the progress row or (nil, nil) when the lesson was never started.
func (r *ProgressRepository) Get(ctx context.Context, userID shared.UserID, lessonID shared.LessonID) (*progress.LessonProgress, error) {
	p, err := getProgress(ctx, r.conn.Pool(), userID, lessonID, false)
	if err != nil {
		return nil, storageErr("progress", "Get", err)
	}
	return p, nil
}

// ListByCourse returns every progress row the user has inside a course.
func (r *ProgressRepository) ListByCourse(ctx context.Context, userID shared.UserID, courseID shared.CourseID) ([]*progress.LessonProgress, error) {
	rows, err := r.conn.Pool().Query(ctx,
		`SELECT `+progressColumns+` FROM lesson_progress
		WHERE user_id = $1 AND course_id = $2
		ORDER BY lesson_id`,
		userID.String(), courseID.Int64(),
	)
	if err != nil {
		return nil, storageErr("progress", "ListByCourse", err)
	}
	defer rows.Close()

	var result []*progress.LessonProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, storageErr("progress", "ListByCourse", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("progress", "ListByCourse", err)
	}
	return result, nil
}

// Record merges a sample into the stored row. The first report inserts with
// ON CONFLICT DO NOTHING, which waits for a concurrent first insert to settle;
// whoever loses that race locks the committed row and merges into it.
func (r *ProgressRepository) Record(ctx context.Context, sample progress.Sample, threshold float64) (*progress.RecordResult, error) {
	var result progress.RecordResult

	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		now := time.Now().UTC()

		prev, err := getProgress(ctx, tx, sample.UserID, sample.LessonID, true)
		if err != nil {
			return err
		}

		if prev == nil {
			first := progress.Merge(nil, sample, threshold, now)
			stored, err := scanProgress(tx.QueryRow(ctx, `
				INSERT INTO lesson_progress (
					user_id, lesson_id, course_id, last_position, duration, percentage,
					completed, submitted, experience_gained, last_reported_at, created_at, updated_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, 0, $8, $9, $10)
				ON CONFLICT (user_id, lesson_id) DO NOTHING
				RETURNING `+progressColumns,
				first.UserID.String(), first.LessonID.Int64(), first.CourseID.Int64(),
				first.LastPosition, first.Duration, first.Percentage, first.Completed,
				first.LastReportedAt, first.CreatedAt, first.UpdatedAt,
			))
			switch {
			case err == nil:
				result = progress.RecordResult{Progress: stored, JustCompleted: progress.JustCompleted(nil, *stored)}
				return nil
			case IsForeignKeyViolation(err):
				return shared.ErrUserNotFound
			case !IsNoRows(err):
				return err
			}

			// Lost the race: the other insert has committed by now.
			if prev, err = getProgress(ctx, tx, sample.UserID, sample.LessonID, true); err != nil {
				return err
			}
			if prev == nil {
				return shared.Storage("progress", "Record", errors.New("progress row vanished after conflict"), true)
			}
		}

		next := progress.Merge(prev, sample, threshold, now)
		if from, to := progress.StateOf(prev), progress.StateOf(&next); !from.CanTransitionTo(to) {
			return fmt.Errorf("progress state cannot move from %s to %s", from, to)
		}
		stored, err := scanProgress(tx.QueryRow(ctx, `
			UPDATE lesson_progress SET
				course_id = $3,
				last_position = $4,
				duration = $5,
				percentage = $6,
				completed = completed OR $7,
				last_reported_at = $8,
				updated_at = $9
			WHERE user_id = $1 AND lesson_id = $2
			RETURNING `+progressColumns,
			next.UserID.String(), next.LessonID.Int64(), next.CourseID.Int64(),
			next.LastPosition, next.Duration, next.Percentage, next.Completed,
			next.LastReportedAt, next.UpdatedAt,
		))
		if err != nil {
			return err
		}

		result = progress.RecordResult{
			Progress:      stored,
			JustCompleted: progress.JustCompleted(prev, *stored),
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("progress", "Record", err)
	}
	return &result, nil
}

// Submit flips CAN_SUBMIT to SUBMITTED and credits experience in one
// transaction. The row lock taken by the conditional UPDATE makes concurrent
// callers wait; the losers then see submitted = TRUE and match zero rows.
func (r *ProgressRepository) Submit(ctx context.Context, userID shared.UserID, lessonID shared.LessonID, reward int64) (*progress.SubmitOutcome, error) {
	var outcome progress.SubmitOutcome

	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE lesson_progress
			SET submitted = TRUE, experience_gained = $1, updated_at = NOW()
			WHERE user_id = $2 AND lesson_id = $3 AND completed AND NOT submitted`,
			reward, userID.String(), lessonID.Int64(),
		)
		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			current, err := getProgress(ctx, tx, userID, lessonID, false)
			if err != nil {
				return err
			}
			if current == nil || !current.Completed {
				return shared.ErrLessonNotCompleted
			}
			var exp int64
			if err := tx.QueryRow(ctx,
				`SELECT experience FROM users WHERE id = $1`, userID.String(),
			).Scan(&exp); err != nil {
				if IsNoRows(err) {
					return shared.ErrUserNotFound
				}
				return err
			}
			outcome = progress.SubmitOutcome{Progress: current, ExperienceAfter: exp}
			return nil
		}

		var exp int64
		if err := tx.QueryRow(ctx, `
			UPDATE users SET experience = experience + $1, updated_at = NOW()
			WHERE id = $2
			RETURNING experience`,
			reward, userID.String(),
		).Scan(&exp); err != nil {
			if IsNoRows(err) {
				return shared.ErrUserNotFound
			}
			return err
		}

		current, err := getProgress(ctx, tx, userID, lessonID, false)
		if err != nil {
			return err
		}
		outcome = progress.SubmitOutcome{
			Progress:         current,
			Awarded:          true,
			ExperienceGained: reward,
			ExperienceAfter:  exp,
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("progress", "Submit", err)
	}
	return &outcome, nil
}
