package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartshop/smartshop-backend/config"
	"github.com/smartshop/smartshop-backend/internal/app/controller"
	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/internal/app/repository"
	"github.com/smartshop/smartshop-backend/internal/app/service"
	"github.com/smartshop/smartshop-backend/internal/db"
	"github.com/smartshop/smartshop-backend/internal/metrics"
	"github.com/smartshop/smartshop-backend/internal/middleware"
	"github.com/smartshop/smartshop-backend/internal/router"
	ws "github.com/smartshop/smartshop-backend/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingSender struct {
	mu        sync.Mutex
	templates []string
}

func (s *recordingSender) Send(_ context.Context, template, _ string, _ map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates = append(s.templates, template)
	return nil
}

func (s *recordingSender) Templates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.templates...)
}

type TestServer struct {
	Router     *gin.Engine
	DB         *gorm.DB
	Sender     *recordingSender
	Dispatcher *service.NotificationDispatcher
}

func setupIntegrationTest(t *testing.T) *TestServer {
	gin.SetMode(gin.TestMode)

	// Setup database
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	cfg := &config.Config{
		Server: config.ServerConfig{GinMode: gin.TestMode},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		Admin:  config.AdminConfig{Email: "ops@smartshop.example.com", Password: "password123", Name: "Ops"},
	}
	require.NoError(t, db.EnsureAdmin(testDB, &cfg.Admin))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	hub := ws.NewHub()
	go hub.Run(ctx)

	// Setup repositories
	companyRepo := repository.NewCompanyRepository(testDB)
	alertService := service.NewCRMAlertService(repository.NewCRMAlertRepository(testDB), hub, m)
	sender := &recordingSender{}

	dispatcher := service.NewNotificationDispatcher(service.DispatcherConfig{
		Workers:        1,
		QueueSize:      32,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		DashboardURL:   "http://localhost:3000/b2b/cabinet",
	}, companyRepo, sender, alertService, service.NewDBFailureTracker(repository.NewDeliveryStreakRepository(testDB)), m)
	dispatcher.Start(ctx)
	t.Cleanup(dispatcher.Stop)

	verificationService := service.NewVerificationService(
		companyRepo,
		repository.NewVerificationEventRepository(testDB),
		service.NewVerificationEvaluator(service.NewVerificationRules([]string{"DE", "PL"}, []string{"RU"}, true)),
		dispatcher,
		alertService,
		m,
	)
	authService := service.NewAuthService(repository.NewUserRepository(testDB), "test-secret", 15*time.Minute, time.Hour)

	r := router.NewRouter(
		controller.NewAuthController(authService),
		controller.NewCompanyController(verificationService, service.NewDocumentService(nil)),
		controller.NewAdminCompanyController(verificationService),
		controller.NewAlertController(alertService, hub, cfg.CORS.AllowedOrigins),
		middleware.NewAuthMiddleware("test-secret"),
		m,
		reg,
		cfg,
	)

	return &TestServer{
		Router:     r.Setup(),
		DB:         testDB,
		Sender:     sender,
		Dispatcher: dispatcher,
	}
}

func (ts *TestServer) request(t *testing.T, method, path, token string, payload interface{}) (int, map[string]interface{}) {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	ts.Router.ServeHTTP(w, req)

	var resp map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w.Code, resp
}

func (ts *TestServer) alertCount(t *testing.T, alertType model.AlertType) int64 {
	var count int64
	require.NoError(t, ts.DB.Model(&model.CRMAlert{}).Where("alert_type = ?", alertType).Count(&count).Error)
	return count
}

func TestPartnerReviewJourney(t *testing.T) {
	ts := setupIntegrationTest(t)

	// 1. Admin login
	t.Log("Step 1: Admin login")
	code, resp := ts.request(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "ops@smartshop.example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, code)
	token := resp["tokens"].(map[string]interface{})["access_token"].(string)

	// 2. Partner registers without documents
	t.Log("Step 2: Register company")
	code, resp = ts.request(t, http.MethodPost, "/api/v1/companies/register", "", map[string]interface{}{
		"legal_name":    "Kowalski Sp. z o.o.",
		"tax_id":        "PL 526-025-02-74",
		"country_code":  "PL",
		"contact_email": "biuro@kowalski.example.com",
	})
	require.Equal(t, http.StatusCreated, code)
	company := resp["company"].(map[string]interface{})
	assert.Equal(t, "needs_review", company["verification_status"])
	companyPath := fmt.Sprintf("/api/v1/admin/companies/%.0f", company["id"].(float64))

	// 3. Review queue
	t.Log("Step 3: Review queue")
	code, resp = ts.request(t, http.MethodGet, "/api/v1/admin/companies?status=needs_review", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, resp["total"])

	// 4. Reject, alert shows up
	t.Log("Step 4: Reject")
	code, _ = ts.request(t, http.MethodPost, companyPath+"/reject", token, map[string]string{"reason": "KRS extract missing"})
	require.Equal(t, http.StatusOK, code)
	require.Eventually(t, func() bool {
		return ts.alertCount(t, model.AlertTypeCompanyRejected) == 1
	}, 2*time.Second, 10*time.Millisecond)

	code, resp = ts.request(t, http.MethodGet, "/api/v1/admin/alerts?acknowledged=false", token, nil)
	require.Equal(t, http.StatusOK, code)
	alerts := resp["alerts"].([]interface{})
	require.Len(t, alerts, 1)
	alert := alerts[0].(map[string]interface{})
	assert.Contains(t, alert["message"], "KRS extract missing")

	code, _ = ts.request(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/alerts/%.0f/acknowledge", alert["id"].(float64)), token, nil)
	require.Equal(t, http.StatusOK, code)
	code, resp = ts.request(t, http.MethodGet, "/api/v1/admin/alerts/unread-count", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, resp["unread_count"])

	// 5. Reopen and approve
	t.Log("Step 5: Reopen and approve")
	code, _ = ts.request(t, http.MethodPost, companyPath+"/reopen", token, map[string]string{"reason": "extract received by mail"})
	require.Equal(t, http.StatusOK, code)
	code, resp = ts.request(t, http.MethodPost, companyPath+"/approve", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "approved", resp["company"].(map[string]interface{})["verification_status"])

	// 6. History replays to the stored status
	t.Log("Step 6: History")
	code, resp = ts.request(t, http.MethodGet, companyPath+"/events", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, resp["consistent"])
	assert.Len(t, resp["events"], 4)

	ts.Dispatcher.Stop()
	assert.Equal(t, []string{
		"verification_pending",
		"verification_rejected",
		"verification_pending",
		"verification_approved",
	}, ts.Sender.Templates())
	assert.EqualValues(t, 1, ts.alertCount(t, model.AlertTypeReviewReopened))
}

func TestLogoutWithoutRedisKeepsTokenUntilExpiry(t *testing.T) {
	ts := setupIntegrationTest(t)

	code, resp := ts.request(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "ops@smartshop.example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, code)
	token := resp["tokens"].(map[string]interface{})["access_token"].(string)

	code, _ = ts.request(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, code)

	// redis 없이는 blacklist가 없으므로 토큰은 만료까지 유효
	code, _ = ts.request(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, code)
}
