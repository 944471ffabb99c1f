package redis

import (
	"context"
	"errors"
	"time"

	"github.com/alem-hub/learnhub/internal/domain/catalog"
	"github.com/alem-hub/learnhub/internal/domain/shared"
	"github.com/alem-hub/learnhub/pkg/circuitbreaker"
	"github.com/alem-hub/learnhub/pkg/logger"
)

// CatalogCache is a read-through cache in front of a catalog.Catalog.
// Redis failures never fail a read: the inner catalog is used instead.
// After repeated failures the breaker opens and Redis is skipped entirely
// until it cools down. Only catalog data is cached; purchase state always
// goes to the ledger.
type CatalogCache struct {
	inner   catalog.Catalog
	cache   *Cache
	ttl     time.Duration
	log     *logger.Logger
	breaker *circuitbreaker.CircuitBreaker
}

var _ catalog.Catalog = (*CatalogCache)(nil)

// NewCatalogCache wraps inner with a Redis cache.
func NewCatalogCache(inner catalog.Catalog, cache *Cache, ttl time.Duration, log *logger.Logger) *CatalogCache {
	if ttl <= 0 {
		ttl = TTLCatalog
	}
	if log == nil {
		log = logger.Default()
	}
	log = log.With(logger.Component("catalog_cache"))
	return &CatalogCache{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   log,
		breaker: circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("cache circuit state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}),
	}
}

// GetCourse returns the course from cache or the inner catalog.
func (c *CatalogCache) GetCourse(ctx context.Context, id shared.CourseID) (*catalog.Course, error) {
	return readThrough(ctx, c, CourseKey(id.Int64()), func() (*catalog.Course, error) {
		return c.inner.GetCourse(ctx, id)
	})
}

// ListCourses returns the published courses from cache or the inner catalog.
func (c *CatalogCache) ListCourses(ctx context.Context) ([]*catalog.Course, error) {
	return readThrough(ctx, c, CourseListKey(), func() ([]*catalog.Course, error) {
		return c.inner.ListCourses(ctx)
	})
}

// GetLesson returns the lesson from cache or the inner catalog.
func (c *CatalogCache) GetLesson(ctx context.Context, id shared.LessonID) (*catalog.Lesson, error) {
	return readThrough(ctx, c, LessonKey(id.Int64()), func() (*catalog.Lesson, error) {
		return c.inner.GetLesson(ctx, id)
	})
}

// ListLessons returns the lessons of a course from cache or the inner catalog.
func (c *CatalogCache) ListLessons(ctx context.Context, courseID shared.CourseID) ([]*catalog.Lesson, error) {
	return readThrough(ctx, c, LessonListKey(courseID.Int64()), func() ([]*catalog.Lesson, error) {
		return c.inner.ListLessons(ctx, courseID)
	})
}

// Invalidate drops every cached entry for the given courses and lessons
// together with the course list.
func (c *CatalogCache) Invalidate(ctx context.Context, courses []shared.CourseID, lessons []shared.LessonID) error {
	keys := []string{CourseListKey()}
	for _, id := range courses {
		keys = append(keys, CourseKey(id.Int64()), LessonListKey(id.Int64()))
	}
	for _, id := range lessons {
		keys = append(keys, LessonKey(id.Int64()))
	}
	return c.cache.Delete(ctx, keys...)
}

// readThrough serves key from Redis, loading and storing it on a miss.
// Not-found results from the inner catalog are not cached.
func readThrough[T any](ctx context.Context, c *CatalogCache, key string, load func() (T, error)) (T, error) {
	var cached T
	hit := false
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		err := c.cache.GetJSON(ctx, key, &cached)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		hit = err == nil
		return err
	})
	if hit {
		return cached, nil
	}
	if err != nil && !circuitbreaker.IsRejected(err) {
		c.log.Warn("catalog cache read failed", logger.String("key", key), logger.Err(err))
	}

	value, err := load()
	if err != nil {
		return value, err
	}

	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.cache.SetJSON(ctx, key, value, c.ttl)
	})
	if err != nil && !circuitbreaker.IsRejected(err) {
		c.log.Warn("catalog cache write failed", logger.String("key", key), logger.Err(err))
	}
	return value, nil
}
