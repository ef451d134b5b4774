// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthWithoutCheckers(t *testing.T) {
	m := NewManager("v1.0.0")
	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
}

func TestReadyAggregation(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(NewPingChecker("ok", func(context.Context) error { return nil }))
	m.RegisterChecker(NewPingChecker("down", func(context.Context) error { return errors.New("dead") }))

	resp := m.Ready(context.Background())
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, StatusUnhealthy, resp.Checks["down"].Status)
	assert.Equal(t, StatusHealthy, resp.Checks["ok"].Status)
}

func TestDegradedKeepsReady(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(NewLastPollChecker(func() (time.Time, string) {
		return time.Now(), "one sensor failed"
	}, 0))

	resp := m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusDegraded, resp.Status)
}

func TestServeReadyStatusCodes(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(NewPingChecker("inst", func(context.Context) error { return errors.New("gone") }))

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, 503, rec.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Ready)
}

func TestServeHealthAlways200(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(NewPingChecker("inst", func(context.Context) error { return errors.New("gone") }))

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest("GET", "/healthz?verbose=true", nil))
	assert.Equal(t, 200, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestFileChecker(t *testing.T) {
	dir := t.TempDir()

	c := NewFileChecker("snapshot", filepath.Join(dir, "missing.json"))
	assert.Equal(t, StatusUnhealthy, c.Check(context.Background()).Status)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	c = NewFileChecker("snapshot", empty)
	assert.Equal(t, StatusDegraded, c.Check(context.Background()).Status)

	full := filepath.Join(dir, "latest.json")
	require.NoError(t, os.WriteFile(full, []byte("{}"), 0o600))
	c = NewFileChecker("snapshot", full)
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	c = NewFileChecker("snapshot", "")
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)
}

func TestLastPollChecker(t *testing.T) {
	c := NewLastPollChecker(func() (time.Time, string) { return time.Time{}, "" }, time.Minute)
	assert.Equal(t, StatusUnhealthy, c.Check(context.Background()).Status)

	c = NewLastPollChecker(func() (time.Time, string) { return time.Now().Add(-time.Hour), "" }, time.Minute)
	assert.Equal(t, StatusDegraded, c.Check(context.Background()).Status)

	c = NewLastPollChecker(func() (time.Time, string) { return time.Now(), "" }, time.Minute)
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)
}
