package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Writer owns one report file. All methods are safe on a nil Writer, which
// records nothing.
type Writer struct {
	mu     sync.Mutex
	path   string
	report Report
	now    func() time.Time
}

// NewWriter returns a writer for path, or nil when path is empty.
func NewWriter(path, command string, args []string) *Writer {
	if path == "" {
		return nil
	}
	return &Writer{
		path: path,
		report: Report{
			Version: Version,
			Command: command,
			Args:    append([]string(nil), args...),
		},
		now: time.Now,
	}
}

// Start marks the run as running and writes the first version of the file.
func (w *Writer) Start(runID, target string) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.report.RunID = runID
	w.report.Target = target
	w.report.Status = StatusRunning
	w.report.StartTime = w.now()
	return atomicWriteJSON(w.path, w.report)
}

// AddArtifact records a file written by the command.
func (w *Writer) AddArtifact(a Artifact) {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.report.Artifacts = append(w.report.Artifacts, a)
	w.mu.Unlock()
}

// End records the outcome and rewrites the file. A nil err with interrupted
// set still counts as a clean exit but is reported as interrupted.
func (w *Writer) End(msgs Messages, err error, interrupted bool) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.report.Status.IsTerminal() {
		return nil
	}

	end := w.now()
	if w.report.StartTime.IsZero() {
		w.report.StartTime = end
	}
	duration := end.Sub(w.report.StartTime).Milliseconds()
	w.report.EndTime = &end
	w.report.Duration = &duration
	w.report.Messages = msgs

	switch {
	case err != nil:
		msg := err.Error()
		w.report.Error = &msg
		w.report.Status = StatusFailed
	case interrupted:
		w.report.Status = StatusInterrupted
	default:
		w.report.Status = StatusPassed
	}
	return atomicWriteJSON(w.path, w.report)
}

// Report returns a copy of the current report.
func (w *Writer) Report() Report {
	if w == nil {
		return Report{}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	r := w.report
	r.Artifacts = append([]Artifact(nil), w.report.Artifacts...)
	return r
}

// Read loads a report file.
func Read(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	if r.Version == "" {
		return nil, errors.New("report: missing version")
	}
	return &r, nil
}

// atomicWriteJSON writes v to a temp file beside path and renames it over
// path.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".report-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}
