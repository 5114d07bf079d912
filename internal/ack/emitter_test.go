package ack

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cash-interchange-service/internal/models"
)

func fixedEmitter(t *testing.T) *Emitter {
	t.Helper()
	e := NewEmitter(t.TempDir(), "", nil)
	e.now = func() time.Time {
		return time.Date(2026, 8, 15, 10, 30, 0, 0, time.UTC)
	}
	return e
}

func readAck(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading acknowledgement: %v", err)
	}
	return string(data)
}

func TestEmitBodySortedAndDeduplicated(t *testing.T) {
	e := fixedEmitter(t)

	lines := []models.AckLine{
		{ID: "200", Status: models.AckSuccess},
		{ID: "10", Status: models.AckError},
		{ID: "5", Status: models.AckSuccess},
		{ID: "200", Status: models.AckSuccess}, // duplicate
	}

	path, err := e.Emit(lines, "ICOREX_C4U-01-Vatco_2656_20250512_164009.xml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "10,2\n200,1\n5,1\n"
	if got := readAck(t, path); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestEmitFileName(t *testing.T) {
	e := fixedEmitter(t)

	path, err := e.Emit([]models.AckLine{{ID: "1", Status: models.AckSuccess}},
		"ICOREX_C4U-01-Vatco_2656_20250512_164009.xml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := filepath.Base(path); got != "TR2_VATCO_01250512164009.txt" {
		t.Errorf("file name = %s", got)
	}
}

func TestEmitForcesNeutralCodeWhenAllFailed(t *testing.T) {
	e := fixedEmitter(t)

	path, err := e.Emit([]models.AckLine{
		{ID: "1", Status: models.AckError},
		{ID: "2", Status: models.AckError},
	}, "ICOREX_C4U-01-Vatco_2656_20250512_164009.xml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(filepath.Base(path), "TR2_VATCO_00") {
		t.Errorf("fully failed file should use CC 00, got %s", filepath.Base(path))
	}
}

func TestEmitFailureWinsForDuplicateID(t *testing.T) {
	e := fixedEmitter(t)

	path, err := e.Emit([]models.AckLine{
		{ID: "7", Status: models.AckSuccess},
		{ID: "7", Status: models.AckError},
	}, "orders.xml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := readAck(t, path); got != "7,2\n" {
		t.Errorf("body = %q, want the failure to win", got)
	}
}

func TestEmitEmptyLinesAcknowledgeTheFile(t *testing.T) {
	e := fixedEmitter(t)

	path, err := e.Emit(nil, "orders_20250512.xml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := readAck(t, path); got != "orders_20250512.xml,2\n" {
		t.Errorf("body = %q", got)
	}
}

func TestExtractCCCode(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"ICOREX_C4U-01-Vatco_2656_20250512_164009.xml", "01"},
		{"ICOREX_C4U-23_2656_20250512_164009.xml", "23"},
		{"ICOREX_C4U-XX_2656_20250512_164009.xml", "00"},
		{"plain_orders.txt", "00"},
		{"orders.xml", "00"},
	}
	for _, tt := range tests {
		if got := ExtractCCCode(tt.name); got != tt.want {
			t.Errorf("ExtractCCCode(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestTimestampFallbacks(t *testing.T) {
	e := fixedEmitter(t)

	// Minutes-only time segment is padded with seconds.
	if got := e.timestamp("A_C4U-01-X_2656_20250512_1640.xml"); got != "250512164000" {
		t.Errorf("padded timestamp = %s", got)
	}
	// Copy suffixes are cleaned to digits before parsing.
	if got := e.timestamp("A_C4U-01-X_2656_20250512_164009 (1).xml"); got != "250512164009" {
		t.Errorf("cleaned timestamp = %s", got)
	}
	// Undecodable names use the current time.
	if got := e.timestamp("orders.xml"); got != "260815103000" {
		t.Errorf("fallback timestamp = %s", got)
	}
}
