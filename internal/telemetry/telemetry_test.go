package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/0xtitan6/binmaker/internal/position"
	"github.com/0xtitan6/binmaker/internal/risk"
)

func TestSaveAndLoadPositionRoundTrips(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir, "", "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	want := position.Snapshot{YesQty: 12.5, NoQty: 3, RealizedPnL: 1.2}
	if err := store.SavePosition(want); err != nil {
		t.Fatalf("save position: %v", err)
	}

	got, err := store.LoadPosition()
	if err != nil {
		t.Fatalf("load position: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestLoadPositionMissingFileReturnsZeroValue(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir, "", "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	got, err := store.LoadPosition()
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if got != (position.Snapshot{}) {
		t.Fatalf("expected zero value, got %+v", got)
	}
}

func TestSaveAndLoadCalibrationRoundTrips(t *testing.T) {
	dir := t.TempDir()
	calPath := filepath.Join(dir, "cal.json")
	store, err := Open(dir, "", calPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	want := risk.CalibrationSnapshot{NumReturns: 200, SigmaBaseLogitPerDt: 0.05}
	if err := store.SaveCalibration(want); err != nil {
		t.Fatalf("save calibration: %v", err)
	}

	got, ok, err := store.LoadCalibration()
	if err != nil || !ok {
		t.Fatalf("load calibration: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestLogEventAppendsJSONLine(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "events.jsonl")
	store, err := Open(dir, logPath, "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	if err := store.LogEvent("quote_cycle", map[string]float64{"mid": 0.5}); err != nil {
		t.Fatalf("log event: %v", err)
	}
	if err := store.LogEvent("fill", map[string]float64{"price": 0.45}); err != nil {
		t.Fatalf("log event: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read event log: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), data)
	}
	for _, l := range lines {
		if !json.Valid([]byte(l)) {
			t.Errorf("line is not valid JSON: %q", l)
		}
	}
}
