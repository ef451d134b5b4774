package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestConfigureWritesServiceField(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "qbridge-test", Version: "v1.2.3"})
	defer Configure(Config{})

	logger := WithComponent("station")
	logger.Info().Str("event", "test.emit").Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["service"] != "qbridge-test" {
		t.Errorf("service = %v, want qbridge-test", entry["service"])
	}
	if entry["component"] != "station" {
		t.Errorf("component = %v, want station", entry["component"])
	}
	if entry["version"] != "v1.2.3" {
		t.Errorf("version = %v, want v1.2.3", entry["version"])
	}
}

func TestDeriveAttachesFields(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf})
	defer Configure(Config{})

	l := Derive(func(c *zerolog.Context) { *c = c.Str(FieldInstrument, "dac1") })
	l.Info().Msg("derived")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["instrument"] != "dac1" {
		t.Errorf("instrument = %v, want dac1", entry["instrument"])
	}
}

func TestContextCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf})
	defer Configure(Config{})

	ctx := ContextWithRequestID(nil, "req-42") //nolint:staticcheck // nil ctx tolerated by design
	logger := WithComponentFromContext(ctx, "api")
	logger.Info().Msg("with id")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["request_id"] != "req-42" {
		t.Errorf("request_id = %v, want req-42", entry["request_id"])
	}
}
