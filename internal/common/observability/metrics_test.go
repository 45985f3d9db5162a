package observability

import (
	"context"
	"strings"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNilObservabilityIsSafe(t *testing.T) {
	var o *Observability

	ctx, span := o.StartSpan(context.Background(), "noop")
	span.End()
	assert.NotNil(t, ctx)

	o.RecordSubmission(ctx, time.Second, "success")
	o.RecordJobProcessed(ctx, "completed")
	o.RecordJobDuration(ctx, time.Second, "completed")
	o.Shutdown()
}

func TestSpansAndMetrics(t *testing.T) {
	reg := promclient.NewRegistry()
	recorder := tracetest.NewSpanRecorder()
	o := New("loangenius-test", WithRegisterer(reg), WithSpanProcessor(recorder))
	require.NotNil(t, o)
	defer o.Shutdown()

	ctx, span := o.StartSpan(context.Background(), "lead.create", attribute.String("vendor", "bankkaro"))
	o.RecordSubmission(ctx, 120*time.Millisecond, "success")
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "lead.create", ended[0].Name())

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.True(t, containsPrefix(names, "lead_submissions"), "metrics: %v", names)
}

func containsPrefix(names []string, prefix string) bool {
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			return true
		}
	}
	return false
}
