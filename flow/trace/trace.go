// Package trace implements the per-run execution record: one
// Trace per node invocation, each carrying the LogMessages emitted
// during that invocation.
package trace

import (
	"time"

	"github.com/google/uuid"

	"github.com/lyzr/flowengine/flow/board"
	"github.com/lyzr/flowengine/flow/value"
)

// LogStat records token accounting for LLM/embedding-shaped nodes.
type LogStat struct {
	TokenIn  *uint64  `json:"token_in,omitempty"`
	TokenOut *uint64  `json:"token_out,omitempty"`
	BitIDs   []string `json:"bit_ids,omitempty"`
}

// LogMessage is one entry a node author emits via Context.LogMessage.
// OperationID is an opaque correlation id the node author controls (e.g.
// to pair a "request sent" / "response received" pair of messages).
type LogMessage struct {
	Message     string         `json:"message"`
	OperationID *string        `json:"operation_id,omitempty"`
	Level       board.LogLevel `json:"log_level"`
	Stats       *LogStat       `json:"stats,omitempty"`
	Start       time.Time      `json:"start"`
	End         time.Time      `json:"end"`
}

// NewLogMessage opens a log entry with Start == End; callers that want
// to record a duration call Finish() once the operation completes.
func NewLogMessage(message string, level board.LogLevel, operationID *string) *LogMessage {
	now := time.Now()
	return &LogMessage{Message: message, Level: level, OperationID: operationID, Start: now, End: now}
}

func (m *LogMessage) PutStats(s LogStat) { m.Stats = &s }
func (m *LogMessage) Finish()            { m.End = time.Now() }

// Trace is opened by the scheduler once per run() invocation of a node.
// Variables is only populated through SnapshotVariables; the scheduler
// does not call it, so the traces it records carry no variable snapshot.
type Trace struct {
	ID        string                    `json:"id"`
	NodeID    string                    `json:"node_id"`
	Logs      []*LogMessage             `json:"logs"`
	Start     time.Time                 `json:"start"`
	End       time.Time                 `json:"end"`
	Variables map[string]value.Value    `json:"variables,omitempty"`
	Err       string                    `json:"error,omitempty"`
}

// New opens a trace for nodeID, timestamped at the current instant.
func New(nodeID string) *Trace {
	now := time.Now()
	return &Trace{ID: uuid.NewString(), NodeID: nodeID, Start: now, End: now}
}

// EarliestLogStart returns the earliest log start time, falling back to
// the trace's own Start when it carries no logs yet.
func (t *Trace) EarliestLogStart() time.Time {
	if len(t.Logs) == 0 {
		return t.Start
	}
	earliest := t.Logs[0].Start
	for _, l := range t.Logs[1:] {
		if l.Start.Before(earliest) {
			earliest = l.Start
		}
	}
	return earliest
}

// Finish stamps End at the current instant.
func (t *Trace) Finish() { t.End = time.Now() }

// Fail stamps End and records the failure cause.
func (t *Trace) Fail(err error) {
	t.Finish()
	if err != nil {
		t.Err = err.Error()
	}
}

// Append appends a log message, honoring the board's log_level filter:
// messages below the configured level are dropped at collection.
func (t *Trace) Append(msg *LogMessage, minLevel board.LogLevel) {
	if logLevelRank(msg.Level) < logLevelRank(minLevel) {
		return
	}
	t.Logs = append(t.Logs, msg)
}

// SnapshotVariables captures vars for debugging display.
func (t *Trace) SnapshotVariables(vars map[string]value.Value) {
	snap := make(map[string]value.Value, len(vars))
	for k, v := range vars {
		snap[k] = v
	}
	t.Variables = snap
}

func logLevelRank(l board.LogLevel) int {
	switch l {
	case board.LogDebug:
		return 0
	case board.LogInfo:
		return 1
	case board.LogWarn:
		return 2
	case board.LogError:
		return 3
	case board.LogFatal:
		return 4
	default:
		return 1
	}
}
