package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alem-hub/learnhub/config"
	"github.com/alem-hub/learnhub/internal/application/command"
	"github.com/alem-hub/learnhub/internal/domain/catalog"
	"github.com/alem-hub/learnhub/internal/domain/shared"
	"github.com/alem-hub/learnhub/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/learnhub/internal/infrastructure/security"
	"github.com/alem-hub/learnhub/pkg/logger"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Upsert the demo catalog and an optional demo user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		demoUser, _ := cmd.Flags().GetString("demo-user")

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return seed(ctx, cfg, log, demoUser)
	},
}

func init() {
	seedCmd.Flags().String("demo-user", "", "Register a demo user, given as email:password")
}

// seedCourses - демонстрационный каталог: два платных курса и один бесплатный.
var seedCourses = []catalog.Course{
	{ID: 1, Title: "Software Design Patterns", Description: "Classic object-oriented patterns with practical examples", Price: 2990, DisplayOrder: 1, Published: true},
	{ID: 2, Title: "Introduction to Programming", Description: "First steps in programming", IsFree: true, DisplayOrder: 2, Published: true},
	{ID: 3, Title: "Advanced Spring Boot", Description: "Building production services with Spring Boot", Price: 3990, DisplayOrder: 3, Published: true},
}

// seedLessonTitles - по три урока на курс.
var seedLessonTitles = map[shared.CourseID][]string{
	1: {"Strategy", "Observer", "Decorator"},
	2: {"Variables and Types", "Control Flow", "Functions"},
	3: {"Auto-configuration", "Data Access", "Security"},
}

const (
	seedLessonDuration = 600
	seedLessonReward   = 200
)

func seedLessons() []catalog.Lesson {
	var lessons []catalog.Lesson
	id := int64(1)
	for _, course := range seedCourses {
		for i, title := range seedLessonTitles[course.ID] {
			lessons = append(lessons, catalog.Lesson{
				ID:               shared.LessonID(id),
				CourseID:         course.ID,
				Title:            title,
				VideoURL:         fmt.Sprintf("https://videos.learnhub.local/lessons/%d.mp4", id),
				VideoDuration:    seedLessonDuration,
				ExperienceReward: seedLessonReward,
				DisplayOrder:     i + 1,
			})
			id++
		}
	}
	return lessons
}

func seed(ctx context.Context, cfg *config.Config, log *logger.Logger, demoUser string) error {
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.close()

	courseIDs := make([]shared.CourseID, 0, len(seedCourses))
	for i := range seedCourses {
		course := seedCourses[i]
		if err := store.catalog.UpsertCourse(ctx, &course); err != nil {
			return fmt.Errorf("seed course %d: %w", course.ID, err)
		}
		courseIDs = append(courseIDs, course.ID)
	}

	lessons := seedLessons()
	lessonIDs := make([]shared.LessonID, 0, len(lessons))
	for i := range lessons {
		if err := store.catalog.UpsertLesson(ctx, &lessons[i]); err != nil {
			return fmt.Errorf("seed lesson %d: %w", lessons[i].ID, err)
		}
		lessonIDs = append(lessonIDs, lessons[i].ID)
	}
	log.Info("catalog seeded", logger.Int("courses", len(seedCourses)), logger.Int("lessons", len(lessons)))

	if cfg.Redis.Enabled {
		invalidateCatalogCache(ctx, cfg, log, courseIDs, lessonIDs)
	}

	if demoUser == "" {
		return nil
	}
	return seedDemoUser(ctx, cfg, store, log, demoUser)
}

// invalidateCatalogCache сбрасывает закешированный каталог после seed.
func invalidateCatalogCache(ctx context.Context, cfg *config.Config, log *logger.Logger, courses []shared.CourseID, lessons []shared.LessonID) {
	cache, err := redis.NewCache(ctx, redisConfig(cfg))
	if err != nil {
		log.Warn("redis unavailable, catalog cache not invalidated", logger.Err(err))
		return
	}
	defer func() { _ = cache.Close() }()

	cc := redis.NewCatalogCache(nil, cache, cfg.Redis.CatalogTTL, log)
	if err := cc.Invalidate(ctx, courses, lessons); err != nil {
		log.Warn("catalog cache invalidation failed", logger.Err(err))
	}
}

func seedDemoUser(ctx context.Context, cfg *config.Config, store *storage, log *logger.Logger, credentials string) error {
	email, password, ok := strings.Cut(credentials, ":")
	if !ok || email == "" || password == "" {
		return fmt.Errorf("--demo-user must be email:password")
	}

	levels, err := cfg.Leveling.Table()
	if err != nil {
		return err
	}

	auth := command.NewAuthHandler(
		store.accounts,
		security.NewPasswordHasher(),
		security.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		levels,
		log,
	)

	_, err = auth.Register(ctx, command.RegisterCommand{
		Email:       email,
		Password:    password,
		DisplayName: "Demo Learner",
	})
	switch {
	case errors.Is(err, shared.ErrAlreadyExists):
		log.Info("demo user already exists", logger.Email(email))
		return nil
	case err != nil:
		return fmt.Errorf("seed demo user: %w", err)
	}

	log.Info("demo user created", logger.Email(email))
	return nil
}
