package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestStartupLogger(t *testing.T) {
	var buf bytes.Buffer
	log := startupLogger(&buf)
	log.Error().Err(errors.New("boom")).Msg("startup failed")

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if got["service"] != "installation-api" || got["error"] != "boom" || got["time"] == nil {
		t.Fatalf("unexpected event: %v", got)
	}
}
