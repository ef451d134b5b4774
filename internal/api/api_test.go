package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbridge/qbridge/internal/cache"
	"github.com/qbridge/qbridge/internal/config"
	"github.com/qbridge/qbridge/internal/instrument"
	"github.com/qbridge/qbridge/internal/monitor"
	"github.com/qbridge/qbridge/internal/readings"
	"github.com/qbridge/qbridge/internal/station"
)

// fakePSU answers the magnet power supply line protocol.
type fakePSU struct {
	heater bool
	field  float64
}

func (f *fakePSU) Ask(_ context.Context, cmd string) (string, error) {
	switch {
	case cmd == "*IDN?":
		return "QBRIDGE,CRYOMAG-9,CM90012,1.4.2", nil
	case cmd == "HEATER?":
		if f.heater {
			return "HEATER:ON", nil
		}
		return "HEATER:OFF", nil
	case strings.HasPrefix(cmd, "HEATER:"):
		f.heater = strings.HasSuffix(cmd, "ON")
		return cmd, nil
	case cmd == "FIELD?":
		return fmt.Sprintf("FIELD:%gT", f.field), nil
	case strings.HasPrefix(cmd, "FIELD:"):
		fmt.Sscanf(cmd, "FIELD:%g", &f.field)
		return cmd, nil
	case strings.HasPrefix(cmd, "TEMP? "):
		return "TEMP:4.2K", nil
	}
	return "", fmt.Errorf("unexpected command %q", cmd)
}

func (f *fakePSU) Write(ctx context.Context, cmd string) error {
	_, err := f.Ask(ctx, cmd)
	return err
}

func (f *fakePSU) Close() error { return nil }

type testEnv struct {
	srv   *httptest.Server
	store readings.Store
	cache cache.Cache
	psu   *fakePSU
}

func newTestEnv(t *testing.T, mutate func(*config.AppConfig)) *testEnv {
	t.Helper()

	cfg := config.Defaults()
	cfg.APIToken = "secret"
	cfg.RateLimitPerMinute = 0
	cfg.Instruments = []station.InstrumentConfig{
		{Name: "magnet_psu", Driver: "cryomag", Address: "psu:7180",
			Options: map[string]any{"heater_settle_seconds": 0.001}},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	psu := &fakePSU{heater: true, field: 0.5}
	st, err := station.New(cfg.Instruments,
		station.WithTransportFactory(func(string) instrument.Transport { return psu }),
	)
	require.NoError(t, err)
	require.NoError(t, st.Connect(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	store := readings.NewMemory(0)
	c := cache.NewMemory(0)
	mon := monitor.New(st, store, c, monitor.Config{
		Paths: []string{"magnet_psu.magnet_temp", "magnet_psu.output_field"},
	})

	api := New(cfg, st, store, c, mon, nil)
	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, store: store, cache: c, psu: psu}
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) (*http.Response, []byte) {
	t.Helper()
	var req *http.Request
	var err error
	if body != "" {
		req, err = http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	} else {
		req, err = http.NewRequest(method, e.srv.URL+path, nil)
	}
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, respBody
}

func TestListInstruments(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, body := env.do(t, http.MethodGet, "/api/instruments", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []instrumentInfo
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "magnet_psu", got[0].Name)
	assert.Equal(t, "cryomag", got[0].Driver)
	assert.Equal(t, 5, got[0].Parameters)
}

func TestInstrumentDetail(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, body := env.do(t, http.MethodGet, "/api/instruments/magnet_psu", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "heater_switch")

	resp, _ = env.do(t, http.MethodGet, "/api/instruments/ghost", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetParameter(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, body := env.do(t, http.MethodGet, "/api/parameters/magnet_psu.magnet_temp", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got parameterResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.InDelta(t, 4.2, got.Value.(float64), 1e-9)
	assert.Equal(t, "K", got.Unit)
	assert.False(t, got.Cached)
}

func TestGetParameterCached(t *testing.T) {
	env := newTestEnv(t, nil)
	env.cache.Set("magnet_psu.magnet_temp", 3.33, time.Minute)

	resp, body := env.do(t, http.MethodGet, "/api/parameters/magnet_psu.magnet_temp?cached=1", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got parameterResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.True(t, got.Cached)
	assert.InDelta(t, 3.33, got.Value.(float64), 1e-9)
}

func TestGetParameterUnknown(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, body := env.do(t, http.MethodGet, "/api/parameters/ghost.temp", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "not_found")
}

func TestSetParameterRequiresToken(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, _ := env.do(t, http.MethodPut, "/api/parameters/magnet_psu.output_field", "", `{"value":1.5}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPut, "/api/parameters/magnet_psu.output_field", "wrong", `{"value":1.5}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPut, "/api/parameters/magnet_psu.output_field", "secret", `{"value":1.5}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 1.5, env.psu.field, 1e-9)
}

func TestSetParameterFailsClosedWithoutToken(t *testing.T) {
	env := newTestEnv(t, func(c *config.AppConfig) { c.APIToken = "" })
	resp, _ := env.do(t, http.MethodPut, "/api/parameters/magnet_psu.output_field", "", `{"value":1.5}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSetParameterValidation(t *testing.T) {
	env := newTestEnv(t, func(c *config.AppConfig) {
		c.Instruments[0].Options = map[string]any{
			"max_field":             2.0,
			"heater_settle_seconds": 0.001,
		}
	})

	resp, body := env.do(t, http.MethodPut, "/api/parameters/magnet_psu.output_field", "secret", `{"value":5}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), "invalid_value")
}

func TestSetParameterBadBody(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, _ := env.do(t, http.MethodPut, "/api/parameters/magnet_psu.output_field", "secret", `{"value":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReadings(t *testing.T) {
	env := newTestEnv(t, nil)
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		require.NoError(t, env.store.Append(context.Background(), readings.Reading{
			Param: "magnet_psu.magnet_temp",
			Value: 4.2,
			Unit:  "K",
			TS:    now.Add(time.Duration(-i) * time.Minute),
		}))
	}

	resp, body := env.do(t, http.MethodGet, "/api/readings/magnet_psu.magnet_temp", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rows []readings.Reading
	require.NoError(t, json.Unmarshal(body, &rows))
	assert.Len(t, rows, 3)

	resp, _ = env.do(t, http.MethodGet, "/api/readings/magnet_psu.magnet_temp?from=yesterday", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusAndPoll(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, _ := env.do(t, http.MethodPost, "/api/poll", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, "/api/poll", "secret", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status monitor.Status
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, 2, status.Readings)

	resp, body = env.do(t, http.MethodGet, "/api/status", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st statusResponse
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, 1, st.Instruments)
	assert.Equal(t, 2, st.LastPoll.Readings)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, _ := env.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.AppConfig) { c.RateLimitPerMinute = 3 })

	var last int
	for i := 0; i < 5; i++ {
		resp, _ := env.do(t, http.MethodGet, "/api/status", "", "")
		last = resp.StatusCode
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, _ := env.do(t, http.MethodGet, "/api/status", "", "")
	assert.NotEmpty(t, resp.Header.Get(HeaderRequestID))
}
