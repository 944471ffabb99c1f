package command

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/alem-hub/learnhub/internal/domain/catalog"
	"github.com/alem-hub/learnhub/internal/domain/progress"
	"github.com/alem-hub/learnhub/internal/domain/shared"
	"github.com/alem-hub/learnhub/pkg/logger"
	"github.com/alem-hub/learnhub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE PROGRESS COMMAND
// Сохраняет позицию воспроизведения урока и отмечает завершение по порогу.
// Частота отчётов регулируется клиентом; сервер принимает каждый сэмпл.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateProgressCommand - отчёт клиента о позиции воспроизведения.
type UpdateProgressCommand struct {
	UserID   shared.UserID
	LessonID shared.LessonID

	// Position и Duration в секундах.
	Position float64
	Duration float64

	// ReportedAt - время сэмпла на клиенте. Нулевое или будущее
	// заменяется временем сервера.
	ReportedAt time.Time
}

// UpdateProgressResult - состояние после записи сэмпла.
type UpdateProgressResult struct {
	Progress      *progress.LessonProgress
	JustCompleted bool
}

// UpdateProgressHandler обрабатывает UpdateProgressCommand.
type UpdateProgressHandler struct {
	catalog  catalog.Catalog
	progress progress.Repository
	access   AccessChecker
	rules    ProgressRules
	retrier  *retry.Retrier
	log      *logger.Logger
}

// NewUpdateProgressHandler создаёт обработчик.
func NewUpdateProgressHandler(
	cat catalog.Catalog,
	repo progress.Repository,
	access AccessChecker,
	rules ProgressRules,
	log *logger.Logger,
) *UpdateProgressHandler {
	if log == nil {
		log = logger.Default()
	}
	return &UpdateProgressHandler{
		catalog:  cat,
		progress: repo,
		access:   access,
		rules:    rules.withDefaults(),
		retrier:  storageRetrier(),
		log:      log.With(logger.Component("update_progress")),
	}
}

// Handle выполняет команду.
func (h *UpdateProgressHandler) Handle(ctx context.Context, cmd UpdateProgressCommand) (result *UpdateProgressResult, err error) {
	ctx, span := tracer.Start(ctx, "command.UpdateProgress")
	defer func() { finishSpan(span, err) }()
	span.SetAttributes(attribute.Int64("lesson.id", cmd.LessonID.Int64()))

	// Время клиента не может опережать сервер: сэмпл "из будущего"
	// сделал бы устаревшими все последующие.
	now := time.Now().UTC()
	reportedAt := cmd.ReportedAt
	if reportedAt.IsZero() || reportedAt.After(now) {
		reportedAt = now
	}

	sample := progress.Sample{
		UserID:     cmd.UserID,
		LessonID:   cmd.LessonID,
		Position:   cmd.Position,
		Duration:   cmd.Duration,
		ReportedAt: reportedAt,
	}
	if err := sample.Validate(); err != nil {
		return nil, err
	}

	lesson, err := h.catalog.GetLesson(ctx, cmd.LessonID)
	if err != nil {
		return nil, err
	}
	sample.CourseID = lesson.CourseID

	if h.rules.RequireAccess {
		ok, err := h.access.HasAccess(ctx, cmd.UserID, lesson.CourseID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, shared.ErrCourseNotOwned
		}
	}

	recorded, err := retry.DoWith(ctx, h.retrier, func(ctx context.Context) (*progress.RecordResult, error) {
		return h.progress.Record(ctx, sample, h.rules.CompletionThreshold)
	})
	if err != nil {
		return nil, err
	}

	if recorded.JustCompleted {
		h.log.WithTrace(ctx).Info("lesson completed",
			logger.UserID(cmd.UserID.String()),
			logger.LessonID(cmd.LessonID.Int64()),
			logger.CourseID(lesson.CourseID.Int64()),
			logger.Int("percentage", recorded.Progress.Percentage),
		)
	}

	return &UpdateProgressResult{
		Progress:      recorded.Progress,
		JustCompleted: recorded.JustCompleted,
	}, nil
}
