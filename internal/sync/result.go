package sync

import (
	"time"
)

// Mode selects which clients a run considers.
type Mode string

// Sync modes.
const (
	ModeFull        Mode = "full"
	ModeIncremental Mode = "incremental"
)

// State is the orchestrator's run lifecycle state.
type State string

// Orchestrator states.
const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateSuccess State = "success"
	StateFailure State = "failure"
)

// ClientError records one client that failed during a run. The run carries
// on past it when continue-on-error is set.
type ClientError struct {
	ClientID   uint      `json:"clientId"`
	ClientName string    `json:"clientName"`
	Error      string    `json:"error"`
	Timestamp  time.Time `json:"timestamp"`
}

// Result is the immutable aggregate outcome of one sync run.
type Result struct {
	RunID  string `json:"runId"`
	Mode   Mode   `json:"mode"`
	DryRun bool   `json:"dryRun"`

	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	ClientsProcessed     int `json:"clientsProcessed"`
	TotalContactsCreated int `json:"totalContactsCreated"`
	TotalContactsUpdated int `json:"totalContactsUpdated"`
	TotalContactsSkipped int `json:"totalContactsSkipped"`

	Errors []ClientError `json:"errors,omitempty"`

	// Success is true only when zero clients errored.
	Success bool `json:"success"`
}

// Duration is the wall-clock length of the run.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Progress is a snapshot reported to subscribers after each batch.
type Progress struct {
	RunID     string `json:"runId"`
	Step      string `json:"step"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`

	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errored int `json:"errored"`

	// ETA is a rough projection from throughput so far; zero until at
	// least one client completed.
	ETA time.Duration `json:"eta"`
}

// tally accumulates counts from concurrent batch members. All mutation goes
// through its methods so aggregation stays associative regardless of
// completion order.
type tally struct {
	created int
	updated int
	skipped int
	errors  []ClientError
}

func (t *tally) addError(clientID uint, clientName string, err error) {
	t.errors = append(t.errors, ClientError{
		ClientID:   clientID,
		ClientName: clientName,
		Error:      err.Error(),
		Timestamp:  time.Now(),
	})
}
