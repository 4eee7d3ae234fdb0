package obslog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoOpLogger_AllMethodsAreSafeToCall(t *testing.T) {
	var l Logger = &NoOpLogger{}
	ctx := context.Background()
	fields := map[string]interface{}{"k": "v"}

	assert.NotPanics(t, func() {
		l.Info("msg", fields)
		l.Error("msg", fields)
		l.Warn("msg", fields)
		l.Debug("msg", fields)
		l.InfoWithContext(ctx, "msg", fields)
		l.ErrorWithContext(ctx, "msg", fields)
		l.WarnWithContext(ctx, "msg", fields)
		l.DebugWithContext(ctx, "msg", fields)
	})
}

type fakeRegistry struct {
	counted []string
}

func (f *fakeRegistry) Counter(name string, labels ...string) { f.counted = append(f.counted, name) }
func (f *fakeRegistry) EmitWithContext(ctx context.Context, name string, value float64, labels ...string) {
}
func (f *fakeRegistry) GetBaggage(ctx context.Context) map[string]string { return nil }
func (f *fakeRegistry) Gauge(name string, value float64, labels ...string)     {}
func (f *fakeRegistry) Histogram(name string, value float64, labels ...string) {}

func TestSetMetricsRegistry_GlobalGetterReturnsInstalledRegistry(t *testing.T) {
	assert.Nil(t, GetGlobalMetricsRegistry())

	reg := &fakeRegistry{}
	SetMetricsRegistry(reg)
	assert.Same(t, reg, GetGlobalMetricsRegistry())

	GetGlobalMetricsRegistry().Counter("test.counter")
	assert.Equal(t, []string{"test.counter"}, reg.counted)
}
