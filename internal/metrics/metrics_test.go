package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gstrecon/internal/domain"
	"gstrecon/internal/metrics"
)

func TestMetrics_Exposition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := metrics.New()

	m.ObserveRun(&domain.Snapshot{
		Stats:  domain.ReconciliationStats{Matched: 3, Mismatches: 1, Missing: 2},
		Issues: []domain.Issue{{Kind: domain.IssueDuplicateFiling}},
	}, 40*time.Millisecond)
	m.ObserveStored(domain.ReconciliationStats{LeakageRisk: decimal.NewFromInt(270)})
	m.ObserveCache(true)
	m.ObserveFailure()

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/metrics", m.Handler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `gstrecon_groups_total{status="Missing"} 2`)
	assert.Contains(t, body, `gstrecon_issues_total{kind="duplicate_filing"} 1`)
	assert.Contains(t, body, `gstrecon_last_run_leakage_rupees 270`)
	assert.Contains(t, body, `gstrecon_run_cache_lookups_total{result="hit"} 1`)
	assert.Contains(t, body, `gstrecon_runs_total{outcome="failed"} 1`)
}
