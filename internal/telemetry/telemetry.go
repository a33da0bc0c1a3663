// Package telemetry persists point-in-time snapshots and appends a running
// event log for the single market this process trades.
//
// Snapshot writes (position, calibration) use atomic file replacement
// (write to .tmp, then rename) so a crash mid-write never leaves a
// corrupted file behind — the same pattern the rest of this codebase uses
// for any on-disk state. The event log is append-only JSON-lines, one
// compact JSON object per line, safe to tail with a plain text reader.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/0xtitan6/binmaker/internal/position"
	"github.com/0xtitan6/binmaker/internal/risk"
)

// Store persists position and calibration snapshots to JSON files, and
// appends structured events to a JSON-lines log. Writes are mutex-protected
// to prevent concurrent file corruption; loads take no lock.
type Store struct {
	positionPath    string
	calibrationPath string
	eventLogPath    string

	mu       sync.Mutex // serializes snapshot writes
	eventMu  sync.Mutex // serializes event log appends (separate file)
	eventLog *os.File
}

// Open creates a telemetry store writing under dir, using the given
// event log and calibration file names (typically from config).
func Open(dir, eventLogPath, calibrationPath string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create telemetry dir: %w", err)
	}

	if eventLogPath == "" {
		eventLogPath = filepath.Join(dir, "events.jsonl")
	}
	if calibrationPath == "" {
		calibrationPath = filepath.Join(dir, "calibration.json")
	}

	f, err := os.OpenFile(eventLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}

	return &Store{
		positionPath:    filepath.Join(dir, "position.json"),
		calibrationPath: calibrationPath,
		eventLogPath:    eventLogPath,
		eventLog:        f,
	}, nil
}

// Close flushes and closes the event log file.
func (s *Store) Close() error {
	s.eventMu.Lock()
	defer s.eventMu.Unlock()
	return s.eventLog.Close()
}

// SavePosition atomically persists the current position snapshot.
func (s *Store) SavePosition(snap position.Snapshot) error {
	return s.writeAtomic(s.positionPath, snap)
}

// LoadPosition restores a position snapshot from disk. Returns the zero
// value and no error if no saved position exists (fresh start).
func (s *Store) LoadPosition() (position.Snapshot, error) {
	var snap position.Snapshot
	data, err := os.ReadFile(s.positionPath)
	if err != nil {
		if os.IsNotExist(err) {
			return snap, nil
		}
		return snap, fmt.Errorf("read position: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("unmarshal position: %w", err)
	}
	return snap, nil
}

// SaveCalibration atomically persists the warm-up calibration summary, so a
// restart within the same market doesn't have to re-accumulate volatility
// samples from scratch.
func (s *Store) SaveCalibration(snap risk.CalibrationSnapshot) error {
	return s.writeAtomic(s.calibrationPath, snap)
}

// LoadCalibration restores a calibration snapshot from disk, if present.
func (s *Store) LoadCalibration() (risk.CalibrationSnapshot, bool, error) {
	var snap risk.CalibrationSnapshot
	data, err := os.ReadFile(s.calibrationPath)
	if err != nil {
		if os.IsNotExist(err) {
			return snap, false, nil
		}
		return snap, false, fmt.Errorf("read calibration: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, false, fmt.Errorf("unmarshal calibration: %w", err)
	}
	return snap, true, nil
}

func (s *Store) writeAtomic(path string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}

// Event is one structured record appended to the event log; the
// orchestrator writes "quote_cycle" and "fill" events. Kind discriminates
// what Data holds; callers marshal their own payload shape into Data.
type Event struct {
	TsMs int64       `json:"ts_ms"`
	Kind string      `json:"kind"`
	Data interface{} `json:"data"`
}

// LogEvent appends one event to the JSON-lines log. Never blocks on
// snapshot writes — a separate mutex guards the log file.
func (s *Store) LogEvent(kind string, data interface{}) error {
	s.eventMu.Lock()
	defer s.eventMu.Unlock()

	evt := Event{TsMs: time.Now().UnixMilli(), Kind: kind, Data: data}
	line, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	line = append(line, '\n')
	_, err = s.eventLog.Write(line)
	return err
}
