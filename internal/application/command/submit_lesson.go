package command

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/alem-hub/learnhub/internal/domain/account"
	"github.com/alem-hub/learnhub/internal/domain/catalog"
	"github.com/alem-hub/learnhub/internal/domain/leveling"
	"github.com/alem-hub/learnhub/internal/domain/progress"
	"github.com/alem-hub/learnhub/internal/domain/shared"
	"github.com/alem-hub/learnhub/pkg/logger"
	"github.com/alem-hub/learnhub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT LESSON COMMAND
// Переводит урок CAN_SUBMIT → SUBMITTED и начисляет опыт ровно один раз.
// Повторная сдача возвращает тот же результат с нулевой наградой.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitLessonCommand - запрос на сдачу урока.
type SubmitLessonCommand struct {
	UserID   shared.UserID
	LessonID shared.LessonID
}

// Validate проверяет команду.
func (c SubmitLessonCommand) Validate() error {
	if !c.UserID.IsValid() {
		return shared.Invalid("progress", "Submit", shared.ErrInvalidID, "invalid user ID")
	}
	if !c.LessonID.IsValid() {
		return shared.Invalid("progress", "Submit", shared.ErrInvalidID, "lessonId must be a positive integer")
	}
	return nil
}

// SubmitLessonResult - итог сдачи.
type SubmitLessonResult struct {
	LessonID         shared.LessonID
	Progress         *progress.LessonProgress
	ExperienceGained int64
	LeveledUp        bool
	User             account.Snapshot
}

// SubmitLessonHandler обрабатывает SubmitLessonCommand.
type SubmitLessonHandler struct {
	catalog  catalog.Catalog
	progress progress.Repository
	accounts account.Repository
	levels   *leveling.Table
	rules    ProgressRules
	retrier  *retry.Retrier
	log      *logger.Logger
}

// NewSubmitLessonHandler создаёт обработчик.
func NewSubmitLessonHandler(
	cat catalog.Catalog,
	repo progress.Repository,
	accounts account.Repository,
	levels *leveling.Table,
	rules ProgressRules,
	log *logger.Logger,
) *SubmitLessonHandler {
	if levels == nil {
		levels = leveling.Default()
	}
	if log == nil {
		log = logger.Default()
	}
	return &SubmitLessonHandler{
		catalog:  cat,
		progress: repo,
		accounts: accounts,
		levels:   levels,
		rules:    rules.withDefaults(),
		retrier:  storageRetrier(),
		log:      log.With(logger.Component("submit_lesson")),
	}
}

// Handle выполняет команду.
func (h *SubmitLessonHandler) Handle(ctx context.Context, cmd SubmitLessonCommand) (result *SubmitLessonResult, err error) {
	ctx, span := tracer.Start(ctx, "command.SubmitLesson")
	defer func() { finishSpan(span, err) }()
	span.SetAttributes(attribute.Int64("lesson.id", cmd.LessonID.Int64()))

	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	lesson, err := h.catalog.GetLesson(ctx, cmd.LessonID)
	if err != nil {
		return nil, err
	}
	reward := lesson.RewardOr(h.rules.DefaultReward)

	outcome, err := retry.DoWith(ctx, h.retrier, func(ctx context.Context) (*progress.SubmitOutcome, error) {
		return h.progress.Submit(ctx, cmd.UserID, cmd.LessonID, reward)
	})
	if err != nil {
		return nil, err
	}

	user, err := h.accounts.GetByID(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	before := outcome.ExperienceAfter - outcome.ExperienceGained
	leveledUp := outcome.Awarded && h.levels.LeveledUp(before, outcome.ExperienceAfter)
	snapshot := user.Snapshot(h.levels)

	span.SetAttributes(
		attribute.Bool("submit.awarded", outcome.Awarded),
		attribute.Int64("submit.exp_gained", outcome.ExperienceGained),
	)

	if outcome.Awarded {
		log := h.log.WithTrace(ctx).With(
			logger.UserID(cmd.UserID.String()),
			logger.LessonID(cmd.LessonID.Int64()),
		)
		log.Info("lesson submitted", logger.XPAmount(outcome.ExperienceGained))
		if leveledUp {
			log.Info("level up", logger.UserLevel(snapshot.Level.Level))
		}
	}

	return &SubmitLessonResult{
		LessonID:         cmd.LessonID,
		Progress:         outcome.Progress,
		ExperienceGained: outcome.ExperienceGained,
		LeveledUp:        leveledUp,
		User:             snapshot,
	}, nil
}
