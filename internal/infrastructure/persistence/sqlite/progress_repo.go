package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alem-hub/learnhub/internal/domain/progress"
	"github.com/alem-hub/learnhub/internal/domain/shared"
)

// ProgressRepository implements progress.Repository on SQLite.
type ProgressRepository struct {
	db *sql.DB
}

var _ progress.Repository = (*ProgressRepository)(nil)

const progressColumns = `user_id, lesson_id, course_id, last_position, duration, percentage,
	completed, submitted, experience_gained, last_reported_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgress(row rowScanner) (*progress.LessonProgress, error) {
	var (
		p                              progress.LessonProgress
		userID                         string
		lessonID, courseID             int64
		completed, submitted           int
		reportedAt, createdAt, updated int64
	)
	if err := row.Scan(
		&userID, &lessonID, &courseID, &p.LastPosition, &p.Duration, &p.Percentage,
		&completed, &submitted, &p.ExperienceGained, &reportedAt, &createdAt, &updated,
	); err != nil {
		return nil, err
	}
	p.UserID = shared.UserID(userID)
	p.LessonID = shared.LessonID(lessonID)
	p.CourseID = shared.CourseID(courseID)
	p.Completed = completed != 0
	p.Submitted = submitted != 0
	p.LastReportedAt = fromMillis(reportedAt)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updated)
	return &p, nil
}

func getProgress(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, userID shared.UserID, lessonID shared.LessonID) (*progress.LessonProgress, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM lesson_progress WHERE user_id = ? AND lesson_id = ?`,
		userID.String(), lessonID.Int64(),
	)
	p, err := scanProgress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// Get returns the progress row or (nil, nil) when the lesson was never started.
func (r *ProgressRepository) Get(ctx context.Context, userID shared.UserID, lessonID shared.LessonID) (*progress.LessonProgress, error) {
	p, err := getProgress(ctx, r.db, userID, lessonID)
	if err != nil {
		return nil, storageErr("progress", "Get", err)
	}
	return p, nil
}

// ListByCourse returns every progress row the user has inside a course.
func (r *ProgressRepository) ListByCourse(ctx context.Context, userID shared.UserID, courseID shared.CourseID) ([]*progress.LessonProgress, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+progressColumns+` FROM lesson_progress
		WHERE user_id = ? AND course_id = ?
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

// Record merges a sample into the stored row inside one transaction.
func (r *ProgressRepository) Record(ctx context.Context, sample progress.Sample, threshold float64) (*progress.RecordResult, error) {
	var result progress.RecordResult

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		prev, err := getProgress(ctx, tx, sample.UserID, sample.LessonID)
		if err != nil {
			return err
		}

		next := progress.Merge(prev, sample, threshold, time.Now().UTC())
		if from, to := progress.StateOf(prev), progress.StateOf(&next); !from.CanTransitionTo(to) {
			return fmt.Errorf("progress state cannot move from %s to %s", from, to)
		}

		// completed использует OR со старым значением, чтобы флаг не мог сброситься.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO lesson_progress (`+progressColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?, ?)
			ON CONFLICT (user_id, lesson_id) DO UPDATE SET
				course_id = excluded.course_id,
				last_position = excluded.last_position,
				duration = excluded.duration,
				percentage = excluded.percentage,
				completed = MAX(lesson_progress.completed, excluded.completed),
				last_reported_at = excluded.last_reported_at,
				updated_at = excluded.updated_at`,
			next.UserID.String(), next.LessonID.Int64(), next.CourseID.Int64(),
			next.LastPosition, next.Duration, next.Percentage,
			boolToInt(next.Completed),
			toMillis(next.LastReportedAt), toMillis(next.CreatedAt), toMillis(next.UpdatedAt),
		)
		if isForeignKeyViolation(err) {
			return shared.ErrUserNotFound
		}
		if err != nil {
			return err
		}

		result = progress.RecordResult{
			Progress:      &next,
			JustCompleted: progress.JustCompleted(prev, next),
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("progress", "Record", err)
	}
	return &result, nil
}

// Submit flips CAN_SUBMIT to SUBMITTED and credits experience atomically.
// The conditional UPDATE decides which concurrent caller wins.
func (r *ProgressRepository) Submit(ctx context.Context, userID shared.UserID, lessonID shared.LessonID, reward int64) (*progress.SubmitOutcome, error) {
	var outcome progress.SubmitOutcome

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		now := toMillis(time.Now())
		res, err := tx.ExecContext(ctx, `
			UPDATE lesson_progress
			SET submitted = 1, experience_gained = ?, updated_at = ?
			WHERE user_id = ? AND lesson_id = ? AND completed = 1 AND submitted = 0`,
			reward, now, userID.String(), lessonID.Int64(),
		)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}

		if affected == 0 {
			current, err := getProgress(ctx, tx, userID, lessonID)
			if err != nil {
				return err
			}
			if current == nil || !current.Completed {
				return shared.ErrLessonNotCompleted
			}
			var exp int64
			if err := tx.QueryRowContext(ctx,
				`SELECT experience FROM users WHERE id = ?`, userID.String(),
			).Scan(&exp); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return shared.ErrUserNotFound
				}
				return err
			}
			outcome = progress.SubmitOutcome{Progress: current, ExperienceAfter: exp}
			return nil
		}

		var exp int64
		if err := tx.QueryRowContext(ctx, `
			UPDATE users SET experience = experience + ?, updated_at = ?
			WHERE id = ?
			RETURNING experience`,
			reward, now, userID.String(),
		).Scan(&exp); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return shared.ErrUserNotFound
			}
			return err
		}

		current, err := getProgress(ctx, tx, userID, lessonID)
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
