package util

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func TestGetLoggerConcurrentFirstUse(t *testing.T) {
	const n = 16
	got := make([]*zap.Logger, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			SessionLogger("tab").Debug("first use", zap.Int("i", i))
			got[i] = GetLogger()
		}(i)
	}
	wg.Wait()

	require.NotNil(t, got[0])
	for _, l := range got {
		assert.Same(t, got[0], l)
	}
}

func TestInitLoggerReplacesDefault(t *testing.T) {
	before := GetLogger()
	require.NoError(t, InitLogger("production", "storefront"))
	t.Cleanup(func() {
		loggerMu.Lock()
		logger = before
		loggerMu.Unlock()
	})

	assert.NotSame(t, before, GetLogger())
	SyncLogger()
}

func TestGetTracerConcurrentFirstUse(t *testing.T) {
	const n = 16
	got := make([]trace.Tracer, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, span := StartSpan(context.Background(), "Test.Span")
			span.End()
			got[i] = GetTracer()
		}(i)
	}
	wg.Wait()

	for _, tr := range got {
		require.NotNil(t, tr)
		assert.Equal(t, got[0], tr)
	}
}
