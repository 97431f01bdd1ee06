// Package protocol defines the wire messages exchanged between clients,
// workers, and the coordinator, and the JSON envelope they travel in.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// State is a job's position in the PENDING -> RUNNING -> {COMPLETED,
// FAILED, CANCELLED} lifecycle. Values are serialized as integers on
// the coordinator -> worker dispatch connection and as strings
// everywhere else.
type State int

const (
	Pending State = iota + 1
	Running
	Completed
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Running:
		return "RUNNING"
	case Completed:
		return "COMPLETED"
	case Failed:
		return "FAILED"
	case Cancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

func ParseState(s string) (State, bool) {
	switch s {
	case "PENDING":
		return Pending, true
	case "RUNNING":
		return Running, true
	case "COMPLETED":
		return Completed, true
	case "FAILED":
		return Failed, true
	case "CANCELLED":
		return Cancelled, true
	default:
		return 0, false
	}
}

// MarshalJSON emits the integer form. Job is the only struct with a
// State-typed field, and it travels exclusively on the coordinator ->
// worker dispatch connection, so there is no string-typed wire use of
// State to preserve; ClientResponse reports state as a separate plain
// string field via String().
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(s))
}

func (s *State) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		v, ok := ParseState(str)
		if !ok {
			return fieldErr("state", str)
		}
		*s = v
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = State(n)
	return nil
}

func fieldErr(field, value string) error {
	return fmt.Errorf("protocol: invalid %s %q", field, value)
}

// Job is the coordinator's record of a unit of work. ScriptPath and
// ScriptContent are mutually exclusive; exactly one is set.
type Job struct {
	JobID         string     `json:"jobId"`
	ScriptPath    string     `json:"scriptPath,omitempty"`
	ScriptContent string     `json:"scriptContent,omitempty"`
	Args          []string   `json:"args"`
	State         State      `json:"state"`
	SubmitTime    time.Time  `json:"submitTime"`
	StartTime     *time.Time `json:"startTime"`
	EndTime       *time.Time `json:"endTime"`
}

// JobResult is the outcome of running a Job.
type JobResult struct {
	JobID   string  `json:"jobId"`
	Success bool    `json:"success"`
	Output  *string `json:"output"`
	Error   *string `json:"error"`
}

// Envelope is a generic type-plus-payload wrapper. The messages defined
// in this package do not use it: they are sent flat, with type (or,
// for client follow-up messages, action) as a top-level field.
type Envelope struct {
	Type    string      `json:"type,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// EnvelopeRaw defers payload decoding until the type is known.
type EnvelopeRaw struct {
	Type    string          `json:"type,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Peer role announcements. The first message on every connection names
// one of these in its top-level type field; client action messages
// (see below) that follow the opening message carry an action instead.
const (
	TypeClient         = "client"
	TypeWorkerRegister = "worker_register"
	TypeHeartbeat      = "heartbeat"
	TypeJobResult      = "job_result"
)

// WorkerRegisterMessage is sent once by a worker on startup.
type WorkerRegisterMessage struct {
	Type    string `json:"type"`
	Address string `json:"address"`
	Port    int    `json:"port"`
}

// HeartbeatMessage is sent periodically by a worker.
type HeartbeatMessage struct {
	Type string `json:"type"`
	Port int    `json:"port"`
}

// JobResultMessage carries a completed job's outcome back to the
// coordinator.
type JobResultMessage struct {
	Type   string    `json:"type"`
	Result JobResult `json:"result"`
}

// Client session actions.
const (
	ActionSubmitJob    = "submit_job"
	ActionGetResult    = "get_result"
	ActionGetJobState  = "get_job_state"
	ActionCancelJob    = "cancel_job"
	ActionGetStats     = "get_stats"
)

// ClientOpen is the first message a client sends on a new connection.
type ClientOpen struct {
	Type string `json:"type"`
}

// ClientRequest is a follow-up message within a client session.
type ClientRequest struct {
	Action        string   `json:"action"`
	ScriptPath    string   `json:"scriptPath,omitempty"`
	ScriptContent string   `json:"scriptContent,omitempty"`
	Args          []string `json:"args,omitempty"`
	JobID         string   `json:"jobId,omitempty"`
}

// Response statuses.
const (
	StatusJobSubmitted   = "job_submitted"
	StatusResultReady    = "result_ready"
	StatusResultNotReady = "result_not_ready"
	StatusError          = "error"
	StatusCancelled      = "cancelled"
)

// ClientResponse is the envelope for every reply on a client session.
// Fields are populated according to the action that produced it; zero
// values are omitted by the json tags.
type ClientResponse struct {
	Status  string     `json:"status,omitempty"`
	JobID   string     `json:"jobId,omitempty"`
	Message string     `json:"message,omitempty"`
	Result  *JobResult `json:"result,omitempty"`
	State   string     `json:"state,omitempty"`
	Stats   *Stats     `json:"stats,omitempty"`
}

// Stats is the payload for get_stats, a coordinator extension beyond
// the baseline client actions used by the monitoring tools.
type Stats struct {
	Queued        int            `json:"queued"`
	Running       int            `json:"running"`
	Completed     int            `json:"completed"`
	Failed        int            `json:"failed"`
	Cancelled     int            `json:"cancelled"`
	Workers       []WorkerStatus `json:"workers"`
}

// WorkerStatus is a snapshot of one registered worker for reporting.
type WorkerStatus struct {
	WorkerID      string    `json:"workerId"`
	Busy          bool      `json:"busy"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
}
