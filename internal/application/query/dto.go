package query

import (
	"time"

	"github.com/alem-hub/learnhub/internal/domain/account"
	"github.com/alem-hub/learnhub/internal/domain/catalog"
	"github.com/alem-hub/learnhub/internal/domain/progress"
	"github.com/alem-hub/learnhub/internal/domain/purchase"
	"github.com/alem-hub/learnhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DTO
// Представления, которые отдаёт API. Имена полей совпадают с клиентом.
// ══════════════════════════════════════════════════════════════════════════════

// UserDTO - профиль пользователя с разбивкой по уровню.
type UserDTO struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	DisplayName    string `json:"displayName"`
	AvatarURL      string `json:"avatarUrl"`
	Role           string `json:"role"`
	IsPremium      bool   `json:"isPremium"`
	Experience     int64  `json:"experience"`
	Level          int    `json:"level"`
	ExpIntoLevel   int64  `json:"expIntoLevel"`
	ExpToNextLevel int64  `json:"expToNextLevel"`
}

// NewUserDTO строит UserDTO из снимка пользователя.
func NewUserDTO(s account.Snapshot) UserDTO {
	return UserDTO{
		ID:             s.ID.String(),
		Email:          s.Email,
		DisplayName:    s.DisplayName,
		AvatarURL:      s.AvatarURL,
		Role:           string(s.Role),
		IsPremium:      s.IsPremium,
		Experience:     s.Experience,
		Level:          s.Level.Level,
		ExpIntoLevel:   s.Level.ExpIntoLevel,
		ExpToNextLevel: s.Level.ExpToNextLevel,
	}
}

// PurchaseDTO - запись журнала покупок.
type PurchaseDTO struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	CourseID      int64     `json:"courseId"`
	CourseTitle   string    `json:"courseTitle"`
	PurchasePrice int64     `json:"purchasePrice"`
	PurchaseDate  time.Time `json:"purchaseDate"`
	PaymentStatus string    `json:"paymentStatus"`
	TransactionID string    `json:"transactionId"`
}

// NewPurchaseDTO строит PurchaseDTO из покупки.
func NewPurchaseDTO(p *purchase.Purchase) PurchaseDTO {
	return PurchaseDTO{
		ID:            p.ID,
		UserID:        p.UserID.String(),
		CourseID:      p.CourseID.Int64(),
		CourseTitle:   p.CourseTitle,
		PurchasePrice: p.PurchasePrice,
		PurchaseDate:  p.PurchaseDate.UTC(),
		PaymentStatus: string(p.PaymentStatus),
		TransactionID: p.TransactionID,
	}
}

// ProgressDTO - прогресс пользователя по уроку.
// Для неначатого урока все числовые поля нулевые, state = NOT_STARTED.
type ProgressDTO struct {
	LessonID           int64      `json:"lessonId"`
	CourseID           int64      `json:"courseId"`
	LastPosition       float64    `json:"lastPosition"`
	Duration           float64    `json:"duration"`
	ProgressPercentage int        `json:"progressPercentage"`
	IsCompleted        bool       `json:"isCompleted"`
	IsSubmitted        bool       `json:"isSubmitted"`
	ExperienceGained   int64      `json:"experienceGained"`
	State              string     `json:"state"`
	UpdatedAt          *time.Time `json:"updatedAt,omitempty"`
}

// NewProgressDTO строит ProgressDTO; p может быть nil.
func NewProgressDTO(lessonID shared.LessonID, courseID shared.CourseID, p *progress.LessonProgress) ProgressDTO {
	dto := ProgressDTO{
		LessonID: lessonID.Int64(),
		CourseID: courseID.Int64(),
		State:    string(progress.StateOf(p)),
	}
	if p == nil {
		return dto
	}
	updated := p.UpdatedAt.UTC()
	dto.LastPosition = p.LastPosition
	dto.Duration = p.Duration
	dto.ProgressPercentage = p.Percentage
	dto.IsCompleted = p.Completed
	dto.IsSubmitted = p.Submitted
	dto.ExperienceGained = p.ExperienceGained
	dto.UpdatedAt = &updated
	return dto
}

// CourseDTO - курс каталога с признаком доступа для текущего пользователя.
type CourseDTO struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	IsFree       bool   `json:"isFree"`
	Price        int64  `json:"price"`
	DisplayOrder int    `json:"displayOrder"`
	HasAccess    bool   `json:"hasAccess"`
}

func newCourseDTO(c *catalog.Course, hasAccess bool) CourseDTO {
	return CourseDTO{
		ID:           c.ID.Int64(),
		Title:        c.Title,
		Description:  c.Description,
		IsFree:       c.IsFree,
		Price:        c.Price,
		DisplayOrder: c.DisplayOrder,
		HasAccess:    hasAccess,
	}
}

// LessonDTO - урок вместе с прогрессом пользователя.
type LessonDTO struct {
	ID               int64       `json:"id"`
	CourseID         int64       `json:"courseId"`
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	VideoURL         string      `json:"videoUrl,omitempty"`
	VideoDuration    int         `json:"videoDuration"`
	ExperienceReward int64       `json:"experienceReward"`
	DisplayOrder     int         `json:"displayOrder"`
	Progress         ProgressDTO `json:"progress"`
}

func newLessonDTO(l *catalog.Lesson, reward int64, p *progress.LessonProgress) LessonDTO {
	return LessonDTO{
		ID:               l.ID.Int64(),
		CourseID:         l.CourseID.Int64(),
		Title:            l.Title,
		Description:      l.Description,
		VideoURL:         l.VideoURL,
		VideoDuration:    l.VideoDuration,
		ExperienceReward: reward,
		DisplayOrder:     l.DisplayOrder,
		Progress:         NewProgressDTO(l.ID, l.CourseID, p),
	}
}
