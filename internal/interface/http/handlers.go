package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alem-hub/learnhub/internal/application/command"
	"github.com/alem-hub/learnhub/internal/application/query"
	"github.com/alem-hub/learnhub/internal/domain/progress"
	"github.com/alem-hub/learnhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

// setupRoutes registers the probes at the root and the API under /api.
func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Probes
	// ─────────────────────────────────────────────────────────────────────────
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/healthz", s.handleHealth) // Kubernetes alias
	s.router.GET("/ready", s.handleReady)
	s.router.GET("/live", s.handleLive)

	api := s.router.Group("/api")

	// ─────────────────────────────────────────────────────────────────────────
	// Accounts
	// ─────────────────────────────────────────────────────────────────────────
	auth := api.Group("/auth")
	{
		auth.POST("/register", s.handleRegister)
		auth.POST("/login", s.handleLogin)
	}

	users := api.Group("/users", s.requireAuth())
	{
		users.GET("/me", s.handleGetMe)
		users.PUT("/me", s.handleUpdateMe)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Progress
	// ─────────────────────────────────────────────────────────────────────────
	prog := api.Group("/progress", s.requireAuth())
	{
		prog.POST("/update", s.handleUpdateProgress)
		prog.POST("/submit", s.handleSubmitLesson)
		prog.GET("/lessons/:lessonId", s.handleGetLessonProgress)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Purchases
	// ─────────────────────────────────────────────────────────────────────────
	purchases := api.Group("/purchases", s.requireAuth())
	{
		purchases.POST("/courses/:courseId", s.handlePurchaseCourse)
		purchases.GET("/my-purchases", s.handleListPurchases)
		purchases.GET("/check/:courseId", s.handleCheckPurchase)
		purchases.GET("/access/:courseId", s.handleCheckAccess)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Catalog (browsable anonymously)
	// ─────────────────────────────────────────────────────────────────────────
	courses := api.Group("/courses", s.optionalAuth())
	{
		courses.GET("", s.handleListCourses)
		courses.GET("/:courseId", s.handleGetCourse)
		courses.GET("/:courseId/lessons", s.handleListLessons)
		courses.GET("/lessons/:lessonId", s.handleGetLesson)
	}

	s.router.NoRoute(func(c *gin.Context) {
		abortWithError(c, http.StatusNotFound, "not_found", "route not found")
	})
	s.router.NoMethod(func(c *gin.Context) {
		abortWithError(c, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROBES
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth returns the full report; 503 when any probe is down.
func (s *Server) handleHealth(c *gin.Context) {
	report := s.deps.HealthChecker.Run(c.Request.Context())
	if report.Version == "" {
		report.Version = s.config.Version
	}
	code := http.StatusOK
	if !report.Healthy() {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, report)
}

// handleReady answers readiness probes without the per-probe detail.
func (s *Server) handleReady(c *gin.Context) {
	report := s.deps.HealthChecker.Run(c.Request.Context())
	if !report.Healthy() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"down":   report.Down(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// handleLive only proves the process serves HTTP.
func (s *Server) handleLive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCOUNT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	User      query.UserDTO `json:"user"`
}

func newAuthResponse(r *command.AuthResult) authResponse {
	return authResponse{
		Token:     r.Token,
		ExpiresAt: r.ExpiresAt.UTC(),
		User:      query.NewUserDTO(r.User),
	}
}

// handleRegister handles POST /api/auth/register
func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if !s.bindJSON(c, &req) {
		return
	}

	result, err := s.deps.Auth.Register(c.Request.Context(), command.RegisterCommand{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newAuthResponse(result))
}

// handleLogin handles POST /api/auth/login
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if !s.bindJSON(c, &req) {
		return
	}

	result, err := s.deps.Auth.Login(c.Request.Context(), command.LoginCommand{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAuthResponse(result))
}

// handleGetMe handles GET /api/users/me
func (s *Server) handleGetMe(c *gin.Context) {
	profile, err := s.deps.GetProfile.Handle(c.Request.Context(), currentUser(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

type updateProfileRequest struct {
	DisplayName *string `json:"displayName"`
	AvatarURL   *string `json:"avatarUrl"`
}

// handleUpdateMe handles PUT /api/users/me
func (s *Server) handleUpdateMe(c *gin.Context) {
	var req updateProfileRequest
	if !s.bindJSON(c, &req) {
		return
	}

	snapshot, err := s.deps.UpdateProfile.Handle(c.Request.Context(), command.UpdateProfileCommand{
		UserID:      currentUser(c),
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, query.NewUserDTO(*snapshot))
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type updateProgressRequest struct {
	LessonID   int64      `json:"lessonId"`
	Position   *float64   `json:"position"`
	Duration   *float64   `json:"duration"`
	ReportedAt *time.Time `json:"reportedAt"`
}

type updateProgressResponse struct {
	LessonID           int64   `json:"lessonId"`
	ProgressPercentage int     `json:"progressPercentage"`
	LastPosition       float64 `json:"lastPosition"`
	IsCompleted        bool    `json:"isCompleted"`
	IsSubmitted        bool    `json:"isSubmitted"`
	JustCompleted      bool    `json:"justCompleted"`
	State              string  `json:"state"`
}

// handleUpdateProgress handles POST /api/progress/update
func (s *Server) handleUpdateProgress(c *gin.Context) {
	var req updateProgressRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if req.Position == nil || req.Duration == nil {
		s.respondError(c, shared.Invalid("progress", "Update", shared.ErrValidation,
			"position and duration are required"))
		return
	}

	cmd := command.UpdateProgressCommand{
		UserID:   currentUser(c),
		LessonID: shared.LessonID(req.LessonID),
		Position: *req.Position,
		Duration: *req.Duration,
	}
	if req.ReportedAt != nil {
		cmd.ReportedAt = req.ReportedAt.UTC()
	}

	result, err := s.deps.UpdateProgress.Handle(c.Request.Context(), cmd)
	if err != nil {
		s.respondError(c, err)
		return
	}

	p := result.Progress
	c.JSON(http.StatusOK, updateProgressResponse{
		LessonID:           p.LessonID.Int64(),
		ProgressPercentage: p.Percentage,
		LastPosition:       p.LastPosition,
		IsCompleted:        p.Completed,
		IsSubmitted:        p.Submitted,
		JustCompleted:      result.JustCompleted,
		State:              string(progress.StateOf(p)),
	})
}

type submitLessonRequest struct {
	LessonID int64 `json:"lessonId"`
}

type submitLessonResponse struct {
	LessonID         int64         `json:"lessonId"`
	IsSubmitted      bool          `json:"isSubmitted"`
	ExperienceGained int64         `json:"experienceGained"`
	LeveledUp        bool          `json:"leveledUp"`
	User             query.UserDTO `json:"user"`
}

// handleSubmitLesson handles POST /api/progress/submit
func (s *Server) handleSubmitLesson(c *gin.Context) {
	var req submitLessonRequest
	if !s.bindJSON(c, &req) {
		return
	}

	result, err := s.deps.SubmitLesson.Handle(c.Request.Context(), command.SubmitLessonCommand{
		UserID:   currentUser(c),
		LessonID: shared.LessonID(req.LessonID),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, submitLessonResponse{
		LessonID:         result.LessonID.Int64(),
		IsSubmitted:      true,
		ExperienceGained: result.ExperienceGained,
		LeveledUp:        result.LeveledUp,
		User:             query.NewUserDTO(result.User),
	})
}

// handleGetLessonProgress handles GET /api/progress/lessons/:lessonId
func (s *Server) handleGetLessonProgress(c *gin.Context) {
	lessonID, err := shared.ParseLessonID(c.Param("lessonId"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	view, err := s.deps.Catalog.GetLessonProgress(c.Request.Context(), currentUser(c), lessonID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ══════════════════════════════════════════════════════════════════════════════
// PURCHASE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handlePurchaseCourse handles POST /api/purchases/courses/:courseId
func (s *Server) handlePurchaseCourse(c *gin.Context) {
	courseID, ok := s.courseParam(c)
	if !ok {
		return
	}

	p, err := s.deps.PurchaseCourse.Handle(c.Request.Context(), command.PurchaseCourseCommand{
		UserID:   currentUser(c),
		CourseID: courseID,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, query.NewPurchaseDTO(p))
}

// handleListPurchases handles GET /api/purchases/my-purchases
func (s *Server) handleListPurchases(c *gin.Context) {
	list, err := s.deps.ListPurchases.Handle(c.Request.Context(), currentUser(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// handleCheckPurchase handles GET /api/purchases/check/:courseId
func (s *Server) handleCheckPurchase(c *gin.Context) {
	courseID, ok := s.courseParam(c)
	if !ok {
		return
	}

	purchased, err := s.deps.CheckPurchase.Handle(c.Request.Context(), currentUser(c), courseID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchased": purchased})
}

// handleCheckAccess handles GET /api/purchases/access/:courseId
func (s *Server) handleCheckAccess(c *gin.Context) {
	courseID, ok := s.courseParam(c)
	if !ok {
		return
	}

	hasAccess, err := s.deps.Access.HasAccess(c.Request.Context(), currentUser(c), courseID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hasAccess": hasAccess})
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListCourses handles GET /api/courses
func (s *Server) handleListCourses(c *gin.Context) {
	list, err := s.deps.Catalog.ListCourses(c.Request.Context(), currentUser(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// handleGetCourse handles GET /api/courses/:courseId
func (s *Server) handleGetCourse(c *gin.Context) {
	courseID, ok := s.courseParam(c)
	if !ok {
		return
	}

	course, err := s.deps.Catalog.GetCourse(c.Request.Context(), currentUser(c), courseID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, course)
}

// handleListLessons handles GET /api/courses/:courseId/lessons
func (s *Server) handleListLessons(c *gin.Context) {
	courseID, ok := s.courseParam(c)
	if !ok {
		return
	}

	lessons, err := s.deps.Catalog.ListLessons(c.Request.Context(), currentUser(c), courseID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lessons)
}

// handleGetLesson handles GET /api/courses/lessons/:lessonId
func (s *Server) handleGetLesson(c *gin.Context) {
	lessonID, err := shared.ParseLessonID(c.Param("lessonId"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	lesson, err := s.deps.Catalog.GetLesson(c.Request.Context(), currentUser(c), lessonID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lesson)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// bindJSON decodes the body into dst and answers 400 on malformed JSON.
func (s *Server) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		abortWithError(c, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return false
	}
	return true
}

// courseParam parses :courseId and answers 400 when it is not a positive integer.
func (s *Server) courseParam(c *gin.Context) (shared.CourseID, bool) {
	id, err := shared.ParseCourseID(c.Param("courseId"))
	if err != nil {
		s.respondError(c, err)
		return 0, false
	}
	return id, true
}
