package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/learnhub/internal/domain/account"
	"github.com/alem-hub/learnhub/internal/domain/catalog"
	"github.com/alem-hub/learnhub/internal/domain/progress"
	"github.com/alem-hub/learnhub/internal/domain/purchase"
	"github.com/alem-hub/learnhub/internal/domain/shared"
)

const (
	userA = shared.UserID("3a7d1c52-9b0e-4e61-8f43-1c2b3d4e5f60")
	userB = shared.UserID("8e2f4a10-6c3d-4b7e-9a21-0f1e2d3c4b5a")
)

func openTempStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "learnhub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedFixtures(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	for _, id := range []shared.UserID{userA, userB} {
		u := account.New(id, id.String()[:8]+"@example.com", "hash", "", now)
		require.NoError(t, store.Accounts().Create(ctx, u))
	}

	cat := store.Catalog()
	require.NoError(t, cat.UpsertCourse(ctx, &catalog.Course{ID: 1, Title: "Software Design Patterns", Price: 2990, Published: true, DisplayOrder: 1}))
	require.NoError(t, cat.UpsertCourse(ctx, &catalog.Course{ID: 2, Title: "Introduction to Programming", IsFree: true, Published: true, DisplayOrder: 2}))
	require.NoError(t, cat.UpsertLesson(ctx, &catalog.Lesson{ID: 10, CourseID: 1, Title: "Strategy", VideoDuration: 600, ExperienceReward: 200, DisplayOrder: 1}))
	require.NoError(t, cat.UpsertLesson(ctx, &catalog.Lesson{ID: 11, CourseID: 1, Title: "Observer", VideoDuration: 600, ExperienceReward: 200, DisplayOrder: 2}))
}

func sample(user shared.UserID, lesson shared.LessonID, pos, dur float64, at time.Time) progress.Sample {
	return progress.Sample{UserID: user, LessonID: lesson, CourseID: 1, Position: pos, Duration: dur, ReportedAt: at}
}

// ─────────────────────────────────────────────────────────────────────────────
// Migrations
// ─────────────────────────────────────────────────────────────────────────────

func TestOpen_RequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open("  ")
	assert.Error(t, err)
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "learnhub.db")
	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()

	var applied int
	require.NoError(t, second.DB().QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, 1, applied)
}

func TestUpSection(t *testing.T) {
	t.Parallel()

	got := upSection("-- +migrate Up\nCREATE TABLE a (id INT);\n-- +migrate Down\nDROP TABLE a;")
	assert.Contains(t, got, "CREATE TABLE a")
	assert.NotContains(t, got, "DROP TABLE")
}

// ─────────────────────────────────────────────────────────────────────────────
// Progress
// ─────────────────────────────────────────────────────────────────────────────

func TestProgress_GetMissingReturnsNil(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	seedFixtures(t, store)

	p, err := store.Progress().Get(context.Background(), userA, 10)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestProgress_RecordAndComplete(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	seedFixtures(t, store)
	ctx := context.Background()
	repo := store.Progress()
	t0 := time.Now().UTC()

	res, err := repo.Record(ctx, sample(userA, 10, 300, 600, t0), progress.DefaultCompletionThreshold)
	require.NoError(t, err)
	assert.Equal(t, 50, res.Progress.Percentage)
	assert.False(t, res.Progress.Completed)
	assert.False(t, res.JustCompleted)

	res, err = repo.Record(ctx, sample(userA, 10, 580, 600, t0.Add(time.Second)), progress.DefaultCompletionThreshold)
	require.NoError(t, err)
	assert.Equal(t, 97, res.Progress.Percentage)
	assert.True(t, res.Progress.Completed)
	assert.True(t, res.JustCompleted)

	// Перемотка назад не сбрасывает завершение.
	res, err = repo.Record(ctx, sample(userA, 10, 10, 600, t0.Add(2*time.Second)), progress.DefaultCompletionThreshold)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Progress.Percentage)
	assert.True(t, res.Progress.Completed)
	assert.False(t, res.JustCompleted)

	stored, err := repo.Get(ctx, userA, 10)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 10.0, stored.LastPosition)
	assert.True(t, stored.Completed)
	assert.Equal(t, progress.StateCanSubmit, stored.State())
}

func TestProgress_ListByCourse(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	seedFixtures(t, store)
	ctx := context.Background()
	repo := store.Progress()
	now := time.Now()

	_, err := repo.Record(ctx, sample(userA, 10, 60, 600, now), 95)
	require.NoError(t, err)
	_, err = repo.Record(ctx, sample(userA, 11, 120, 600, now), 95)
	require.NoError(t, err)
	_, err = repo.Record(ctx, sample(userB, 10, 600, 600, now), 95)
	require.NoError(t, err)

	list, err := repo.ListByCourse(ctx, userA, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, shared.LessonID(10), list[0].LessonID)
	assert.Equal(t, shared.LessonID(11), list[1].LessonID)
}

func TestProgress_SubmitRequiresCompletion(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	seedFixtures(t, store)
	ctx := context.Background()
	repo := store.Progress()

	_, err := repo.Submit(ctx, userA, 10, 200)
	assert.True(t, errors.Is(err, shared.ErrLessonNotCompleted))

	_, err = repo.Record(ctx, sample(userA, 10, 100, 600, time.Now()), 95)
	require.NoError(t, err)

	_, err = repo.Submit(ctx, userA, 10, 200)
	assert.True(t, errors.Is(err, shared.ErrNotCompleted))

	u, err := store.Accounts().GetByID(ctx, userA)
	require.NoError(t, err)
	assert.Equal(t, int64(0), u.Experience)
}

func TestProgress_SubmitIsIdempotent(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	seedFixtures(t, store)
	ctx := context.Background()
	repo := store.Progress()

	_, err := repo.Record(ctx, sample(userA, 10, 600, 600, time.Now()), 95)
	require.NoError(t, err)

	first, err := repo.Submit(ctx, userA, 10, 200)
	require.NoError(t, err)
	assert.True(t, first.Awarded)
	assert.Equal(t, int64(200), first.ExperienceGained)
	assert.Equal(t, int64(200), first.ExperienceAfter)
	assert.True(t, first.Progress.Submitted)

	second, err := repo.Submit(ctx, userA, 10, 200)
	require.NoError(t, err)
	assert.False(t, second.Awarded)
	assert.Equal(t, int64(0), second.ExperienceGained)
	assert.Equal(t, int64(200), second.ExperienceAfter)

	// Запись сэмпла после сдачи сохраняет флаг сдачи.
	res, err := repo.Record(ctx, sample(userA, 10, 5, 600, time.Now().Add(time.Minute)), 95)
	require.NoError(t, err)
	assert.True(t, res.Progress.Submitted)

	stored, err := repo.Get(ctx, userA, 10)
	require.NoError(t, err)
	assert.True(t, stored.Submitted)
	assert.Equal(t, int64(200), stored.ExperienceGained)
}

func TestProgress_ConcurrentSubmitAwardsOnce(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	seedFixtures(t, store)
	ctx := context.Background()
	repo := store.Progress()

	_, err := repo.Record(ctx, sample(userA, 10, 600, 600, time.Now()), 95)
	require.NoError(t, err)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		awarded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := repo.Submit(ctx, userA, 10, 200)
			if assert.NoError(t, err) && out.Awarded {
				mu.Lock()
				awarded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, awarded)
	u, err := store.Accounts().GetByID(ctx, userA)
	require.NoError(t, err)
	assert.Equal(t, int64(200), u.Experience)
}

// ─────────────────────────────────────────────────────────────────────────────
// Purchases
// ─────────────────────────────────────────────────────────────────────────────

func TestPurchases_CreateListExists(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	seedFixtures(t, store)
	ctx := context.Background()
	repo := store.Purchases()

	course, err := store.Catalog().GetCourse(ctx, 1)
	require.NoError(t, err)

	ok, err := repo.Exists(ctx, userA, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	p, err := purchase.New(userA, course, time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, p))

	ok, err = repo.Exists(ctx, userA, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(ctx, userB, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := repo.ListByUser(ctx, userA)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, p.TransactionID, list[0].TransactionID)
	assert.Equal(t, int64(2990), list[0].PurchasePrice)
	assert.Equal(t, purchase.PaymentCompleted, list[0].PaymentStatus)

	empty, err := repo.ListByUser(ctx, userB)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NotNil(t, empty)
}

func TestPurchases_DuplicateRejected(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	seedFixtures(t, store)
	ctx := context.Background()
	repo := store.Purchases()

	course, err := store.Catalog().GetCourse(ctx, 1)
	require.NoError(t, err)

	p1, _ := purchase.New(userA, course, time.Now())
	p2, _ := purchase.New(userA, course, time.Now())
	require.NoError(t, repo.Create(ctx, p1))

	err = repo.Create(ctx, p2)
	assert.True(t, errors.Is(err, shared.ErrAlreadyPurchased))
}

func TestWrites_MissingUserIsNotFound(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	seedFixtures(t, store)
	ctx := context.Background()

	ghost := shared.UserID("0b9c8d7e-6f5a-4b3c-9d2e-1f0a9b8c7d6e")

	_, err := store.Progress().Record(ctx, sample(ghost, 10, 60, 600, time.Now()), progress.DefaultCompletionThreshold)
	assert.True(t, errors.Is(err, shared.ErrUserNotFound), "%v", err)

	course, err := store.Catalog().GetCourse(ctx, 1)
	require.NoError(t, err)
	p, err := purchase.New(ghost, course, time.Now())
	require.NoError(t, err)
	err = store.Purchases().Create(ctx, p)
	assert.True(t, errors.Is(err, shared.ErrUserNotFound), "%v", err)
}

func TestPurchases_ConcurrentBuyersSingleRow(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	seedFixtures(t, store)
	ctx := context.Background()
	repo := store.Purchases()

	course, err := store.Catalog().GetCourse(ctx, 1)
	require.NoError(t, err)

	const workers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		dupes     int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := purchase.New(userA, course, time.Now())
			if !assert.NoError(t, err) {
				return
			}
			err = repo.Create(ctx, p)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, shared.ErrAlreadyPurchased):
				dupes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, dupes)

	list, err := repo.ListByUser(ctx, userA)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// ─────────────────────────────────────────────────────────────────────────────
// Accounts & catalog
// ─────────────────────────────────────────────────────────────────────────────

func TestAccounts_DuplicateEmail(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	ctx := context.Background()
	repo := store.Accounts()

	require.NoError(t, repo.Create(ctx, account.New(userA, "ann@example.com", "h", "Ann", time.Now())))
	err := repo.Create(ctx, account.New(userB, "ann@example.com", "h", "Ann", time.Now()))
	assert.True(t, errors.Is(err, shared.ErrEmailTaken))

	u, err := repo.GetByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, userA, u.ID)

	_, err = repo.GetByID(ctx, userB)
	assert.True(t, shared.IsNotFound(err))
}

func TestAccounts_UpdateProfileAndRole(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	ctx := context.Background()
	repo := store.Accounts()

	require.NoError(t, repo.Create(ctx, account.New(userA, "ann@example.com", "h", "Ann", time.Now())))

	name := "Anna"
	u, err := repo.UpdateProfile(ctx, userA, account.ProfileUpdate{DisplayName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Anna", u.DisplayName)
	assert.Equal(t, "", u.AvatarURL)

	require.NoError(t, repo.SetRole(ctx, userA, account.RolePaid, true))
	u, err = repo.GetByID(ctx, userA)
	require.NoError(t, err)
	assert.Equal(t, account.RolePaid, u.Role)
	assert.True(t, u.IsPremium)

	assert.True(t, shared.IsNotFound(repo.SetRole(ctx, userB, account.RoleFree, false)))
}

func TestCatalog_Reads(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	seedFixtures(t, store)
	ctx := context.Background()
	cat := store.Catalog()

	courses, err := cat.ListCourses(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, shared.CourseID(1), courses[0].ID)
	assert.True(t, courses[1].IsFree)

	lessons, err := cat.ListLessons(ctx, 1)
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	assert.Equal(t, "Strategy", lessons[0].Title)

	_, err = cat.GetCourse(ctx, 99)
	assert.True(t, errors.Is(err, shared.ErrCourseNotFound))

	_, err = cat.GetLesson(ctx, 99)
	assert.True(t, errors.Is(err, shared.ErrLessonNotFound))
}
