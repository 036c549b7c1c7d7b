package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartshop/smartshop-backend/config"
	"github.com/smartshop/smartshop-backend/internal/app/controller"
	"github.com/smartshop/smartshop-backend/internal/app/repository"
	"github.com/smartshop/smartshop-backend/internal/app/service"
	"github.com/smartshop/smartshop-backend/internal/db"
	"github.com/smartshop/smartshop-backend/internal/metrics"
	"github.com/smartshop/smartshop-backend/internal/middleware"
	ws "github.com/smartshop/smartshop-backend/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	cfg := &config.Config{
		Server: config.ServerConfig{GinMode: gin.TestMode},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	hub := ws.NewHub()

	companyRepo := repository.NewCompanyRepository(testDB)
	alerts := service.NewCRMAlertService(repository.NewCRMAlertRepository(testDB), hub, m)
	verification := service.NewVerificationService(
		companyRepo,
		repository.NewVerificationEventRepository(testDB),
		service.NewVerificationEvaluator(service.NewVerificationRules([]string{"DE"}, nil, true)),
		nil,
		alerts,
		m,
	)
	authService := service.NewAuthService(repository.NewUserRepository(testDB), "test-secret", 15*time.Minute, time.Hour)

	r := NewRouter(
		controller.NewAuthController(authService),
		controller.NewCompanyController(verification, service.NewDocumentService(nil)),
		controller.NewAdminCompanyController(verification),
		controller.NewAlertController(alerts, hub, cfg.CORS.AllowedOrigins),
		middleware.NewAuthMiddleware("test-secret"),
		m,
		reg,
		cfg,
	)
	return r.Setup()
}

func TestRouter_Health(t *testing.T) {
	router := setupRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_MetricsExposesHTTPRequests(t *testing.T) {
	router := setupRouter(t)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `route="/health"`))
}

func TestRouter_AdminRoutesRequireToken(t *testing.T) {
	router := setupRouter(t)

	for _, path := range []string{"/api/v1/admin/companies", "/api/v1/admin/alerts", "/api/v1/admin/alerts/ws"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/companies/register", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
