package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func up(context.Context) error { return nil }

func TestRegistry_AllUp(t *testing.T) {
	reg := NewRegistry("v0.1.0")
	reg.Register("database", Ping(pingFunc(up)))

	report := reg.Run(context.Background())
	assert.True(t, report.Healthy())
	assert.Equal(t, "v0.1.0", report.Version)
	require.Len(t, report.Probes, 1)
	assert.Equal(t, Probe{Name: "database", Up: true, Took: report.Probes[0].Took}, report.Probes[0])
}

func TestRegistry_FailureDegrades(t *testing.T) {
	reg := NewRegistry("v0.1.0")
	reg.Register("redis", Ping(pingFunc(func(context.Context) error { return errors.New("connection refused") })))
	reg.Register("database", up)

	report := reg.Run(context.Background())
	assert.False(t, report.Healthy())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "redis", report.Down())

	require.Len(t, report.Probes, 2)
	assert.Equal(t, "database", report.Probes[0].Name)
	assert.Equal(t, "connection refused", report.Probes[1].Error)

	reg.Unregister("redis")
	assert.True(t, reg.Run(context.Background()).Healthy())
}

func TestRegistry_Timeout(t *testing.T) {
	reg := NewRegistry("")
	reg.SetTimeout(20 * time.Millisecond)
	reg.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	report := reg.Run(context.Background())
	assert.False(t, report.Healthy())
	assert.Contains(t, report.Probes[0].Error, "deadline")
}

func TestStatic(t *testing.T) {
	report := NewStatic("v1").Run(context.Background())
	assert.True(t, report.Healthy())
	assert.Empty(t, report.Down())
}
