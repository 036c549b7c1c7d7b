package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/internal/app/repository"
	"github.com/smartshop/smartshop-backend/internal/app/service"
	"github.com/smartshop/smartshop-backend/internal/db"
	"github.com/smartshop/smartshop-backend/internal/middleware"
	"github.com/smartshop/smartshop-backend/internal/storage"
	ws "github.com/smartshop/smartshop-backend/internal/websocket"
	"github.com/smartshop/smartshop-backend/pkg/util"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testJWTSecret = "test-secret"

type nopSender struct{}

func (nopSender) Send(context.Context, string, string, map[string]string) error { return nil }

type fakeStorage struct{}

func (fakeStorage) PresignUpload(_ context.Context, folder, filename, _ string) (*storage.PresignedURLResponse, error) {
	key := storage.ObjectKey(folder, filename)
	return &storage.PresignedURLResponse{
		UploadURL: "https://bucket.example.com/" + key + "?X-Amz-Signature=test",
		FileURL:   "https://bucket.example.com/" + key,
		Key:       key,
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}, nil
}

type controllerEnv struct {
	db           *gorm.DB
	router       *gin.Engine
	hub          *ws.Hub
	companyRepo  repository.CompanyRepository
	userRepo     repository.UserRepository
	alerts       service.CRMAlertService
	dispatcher   *service.NotificationDispatcher
	verification service.VerificationService
}

// newControllerEnv wires every controller against an in-memory database
func newControllerEnv(t *testing.T) *controllerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := ws.NewHub()
	go hub.Run(ctx)

	companyRepo := repository.NewCompanyRepository(testDB)
	userRepo := repository.NewUserRepository(testDB)
	alerts := service.NewCRMAlertService(repository.NewCRMAlertRepository(testDB), hub, nil)

	dispatcher := service.NewNotificationDispatcher(service.DispatcherConfig{
		Workers:        1,
		QueueSize:      16,
		MaxRetries:     0,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		DashboardURL:   "http://localhost:3000/b2b/cabinet",
	}, companyRepo, nopSender{}, alerts, service.NewDBFailureTracker(repository.NewDeliveryStreakRepository(testDB)), nil)
	dispatcher.Start(context.Background())
	t.Cleanup(dispatcher.Stop)

	verification := service.NewVerificationService(
		companyRepo,
		repository.NewVerificationEventRepository(testDB),
		service.NewVerificationEvaluator(service.NewVerificationRules([]string{"DE", "PL"}, []string{"RU"}, true)),
		dispatcher,
		alerts,
		nil,
	)
	authService := service.NewAuthService(userRepo, testJWTSecret, 15*time.Minute, 24*time.Hour)

	authCtrl := NewAuthController(authService)
	companyCtrl := NewCompanyController(verification, service.NewDocumentService(fakeStorage{}))
	adminCtrl := NewAdminCompanyController(verification)
	alertCtrl := NewAlertController(alerts, hub, []string{"http://localhost:3000"})
	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret)

	router := gin.New()
	router.POST("/auth/login", authCtrl.Login)
	router.POST("/auth/refresh", authCtrl.Refresh)
	router.POST("/auth/logout", authMiddleware.Authenticate(), authCtrl.Logout)
	router.GET("/auth/me", authMiddleware.Authenticate(), authCtrl.Me)
	router.POST("/companies/register", companyCtrl.Register)
	router.POST("/companies/documents/presigned-url", companyCtrl.DocumentUploadURL)

	admin := router.Group("/admin", authMiddleware.Authenticate(), authMiddleware.RequireRole(model.RoleAdmin))
	admin.GET("/companies", adminCtrl.List)
	admin.GET("/companies/:id", adminCtrl.Get)
	admin.GET("/companies/:id/events", adminCtrl.History)
	admin.POST("/companies/:id/approve", adminCtrl.Approve)
	admin.POST("/companies/:id/reject", adminCtrl.Reject)
	admin.POST("/companies/:id/reopen", adminCtrl.Reopen)
	admin.POST("/companies/:id/evaluate", adminCtrl.Evaluate)
	admin.GET("/alerts", alertCtrl.List)
	admin.GET("/alerts/unread-count", alertCtrl.UnreadCount)
	admin.GET("/alerts/export", alertCtrl.Export)
	admin.GET("/alerts/ws", alertCtrl.Stream)
	admin.POST("/alerts/:id/acknowledge", alertCtrl.Acknowledge)

	return &controllerEnv{
		db:           testDB,
		router:       router,
		hub:          hub,
		companyRepo:  companyRepo,
		userRepo:     userRepo,
		alerts:       alerts,
		dispatcher:   dispatcher,
		verification: verification,
	}
}

func (e *controllerEnv) createUser(t *testing.T, email, password string, role model.UserRole) *model.User {
	t.Helper()
	hash, err := util.HashPassword(password)
	require.NoError(t, err)

	user := &model.User{Email: email, PasswordHash: hash, Name: "Test Admin", Role: role}
	require.NoError(t, e.userRepo.Create(user))
	return user
}

func (e *controllerEnv) tokenFor(t *testing.T, user *model.User) string {
	t.Helper()
	tokens, err := util.GenerateTokenPair(user.ID, user.Email, string(user.Role), testJWTSecret, 15*time.Minute, time.Hour)
	require.NoError(t, err)
	return tokens.AccessToken
}

func (e *controllerEnv) adminToken(t *testing.T) string {
	t.Helper()
	return e.tokenFor(t, e.createUser(t, "ops@smartshop.example.com", "password123", model.RoleAdmin))
}

func (e *controllerEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// reviewCompany submits a DE company without documents, landing in needs_review
func (e *controllerEnv) reviewCompany(t *testing.T, name string) *model.Company {
	t.Helper()
	company, err := e.verification.Submit(model.CompanySubmission{
		LegalName:    name,
		TaxID:        "DE136695976",
		CountryCode:  "DE",
		ContactEmail: "finance@acme.example.com",
	})
	require.NoError(t, err)
	require.Equal(t, model.VerificationStatusNeedsReview, company.VerificationStatus)
	return company
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}
