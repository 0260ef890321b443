package observability_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/dispenser"
	"github.com/aretw0/dispenser/internal/logging"
	"github.com/aretw0/dispenser/pkg/adapters/memory"
	"github.com/aretw0/dispenser/pkg/domain"
	"github.com/aretw0/dispenser/pkg/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runScenario(t *testing.T, hooks domain.LifecycleHooks) {
	t.Helper()
	ctx := context.Background()
	m := dispenser.New(dispenser.WithMachineID("m1"), dispenser.WithLifecycleHooks(hooks))

	require.NoError(t, m.Refill(ctx, 2))
	m.InsertPayment(ctx)
	res, err := m.Activate(ctx)
	require.NoError(t, err)
	require.True(t, res.Dispensed)

	res, err = m.Activate(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.RejectNoPayment, res.Reason)
}

func TestMetrics_Hooks(t *testing.T) {
	metrics := observability.NewMetrics()
	runScenario(t, metrics.Hooks())

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Dispensed.WithLabelValues("m1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Inventory.WithLabelValues("m1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Refills.WithLabelValues("m1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Rejections.WithLabelValues("no_payment")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Notices.WithLabelValues(domain.NoticePaymentAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Transitions.WithLabelValues("sold_out", "no_payment")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Transitions.WithLabelValues("has_payment", "dispensing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Transitions.WithLabelValues("dispensing", "no_payment")))
}

func TestMetrics_Handler(t *testing.T) {
	metrics := observability.NewMetrics()
	runScenario(t, metrics.Hooks())

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `dispenser_dispensed_total{machine_id="m1"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetrics_StoreMiddleware(t *testing.T) {
	metrics := observability.NewMetrics()
	store := metrics.StoreMiddleware()(memory.NewStore())

	_, err := store.Load(context.Background(), "ghost")
	require.ErrorIs(t, err, domain.ErrMachineNotFound)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `dispenser_store_operation_seconds_count{op="load",outcome="not_found"} 1`)
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, slog.LevelDebug)
	runScenario(t, observability.LoggingHooks(logger))

	out := buf.String()
	assert.Contains(t, out, "msg=refill")
	assert.Contains(t, out, "msg=dispense")
	assert.Contains(t, out, "reason=no_payment")
	assert.Equal(t, 4, strings.Count(out, "msg=transition"))
}

func TestHooks_Merge(t *testing.T) {
	metrics := observability.NewMetrics()
	var buf bytes.Buffer
	hooks := metrics.Hooks().Merge(observability.LoggingHooks(logging.NewWithWriter(&buf, slog.LevelDebug)))
	runScenario(t, hooks)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Dispensed.WithLabelValues("m1")))
	assert.Contains(t, buf.String(), "msg=dispense")
}
