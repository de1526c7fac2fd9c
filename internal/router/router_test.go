package router_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"gstrecon/internal/config"
	"gstrecon/internal/domain"
	"gstrecon/internal/handler"
	"gstrecon/internal/metrics"
	"gstrecon/internal/router"
	"gstrecon/mocks"
)

func setup(svc *mocks.MockReconciliationService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := &config.Config{
		Server: config.ServerConfig{MaxBodyMB: 1},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}
	return router.Setup(cfg, log, metrics.New(),
		handler.NewReconciliationHandler(svc), handler.NewHealthHandler(nil))
}

func TestRoutes(t *testing.T) {
	svc := new(mocks.MockReconciliationService)
	r := setup(svc)
	id := uuid.New()
	svc.On("List", mock.Anything, 0, 20).Return([]domain.Run{}, 0, nil)
	svc.On("Insights", mock.Anything, id).Return(&domain.Insights{}, nil)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
		{http.MethodGet, "/api/v1/reconciliations", http.StatusOK},
		{http.MethodGet, "/api/v1/reconciliations/" + id.String() + "/insights", http.StatusOK},
		{http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}

	// Request counters are visible once routes have been served.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `gstrecon_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}
