// Package report writes a JSON summary of one cdt run.
//
// The report file is rewritten atomically when the run starts and again
// when it ends, so a consumer polling it never sees a partial document.
package report

import "time"

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the run status.
type Status string

// Status values.
const (
	StatusRunning     Status = "running"
	StatusPassed      Status = "passed"
	StatusFailed      Status = "failed"
	StatusInterrupted Status = "interrupted"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusInterrupted
}

// Report is the document written to the report file.
type Report struct {
	Version   string     `json:"version"`
	RunID     string     `json:"runId,omitempty"`
	Command   string     `json:"command"`
	Args      []string   `json:"args,omitempty"`
	Target    string     `json:"target,omitempty"`
	Status    Status     `json:"status"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Duration  *int64     `json:"duration,omitempty"` // milliseconds
	Messages  Messages   `json:"messages"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
	Error     *string    `json:"error,omitempty"`
}

// Messages counts protocol traffic for the run.
type Messages struct {
	Sent      int `json:"sent"`
	Replies   int `json:"replies"`
	Events    int `json:"events"`
	Anomalies int `json:"anomalies"`
	Malformed int `json:"malformed"`
}

// Artifact is a file written during the run.
type Artifact struct {
	Name        string `json:"name"`        // screenshot, screencast
	ContentType string `json:"contentType"` // image/png, image/jpeg, image/webp
	Path        string `json:"path"`
}

// Artifact names
const (
	ArtifactScreenshot = "screenshot"
	ArtifactScreencast = "screencast"
)

// ContentType returns the MIME type for an image format name.
func ContentType(format string) string {
	switch format {
	case "png":
		return "image/png"
	case "jpeg", "jpg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
