package domain

import "time"

// LogLine is one captured line of child stdout/stderr.
type LogLine struct {
	Timestamp time.Time `json:"ts"`
	Stream    string    `json:"stream"` // "stdout" or "stderr"
	Line      string    `json:"line"`
}

// HealthState is the last known result of a health probe for an app.
type HealthState struct {
	Healthy       bool      `json:"healthy"`
	StatusCode    int       `json:"statusCode,omitempty"`
	LastCheckedAt time.Time `json:"lastCheckedAt"`
	LatencyMs     int64     `json:"latencyMs,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// ChildStatus is a point-in-time snapshot of a supervised child's state,
// exported for the Status() accessor.
type ChildStatus struct {
	Host         string `json:"host"`
	Running      bool   `json:"running"`
	PID          int    `json:"pid,omitempty"`
	RestartCount int    `json:"restartCount"`
	ManualStop   bool   `json:"manualStop"`
}

// AppStatus combines routing, supervision, and health state for the
// control plane's Snapshot() read path.
type AppStatus struct {
	App    App          `json:"app"`
	Child  ChildStatus  `json:"child"`
	Health *HealthState `json:"health,omitempty"`
}
