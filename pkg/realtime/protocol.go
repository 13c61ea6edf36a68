package realtime

import (
	"encoding/json"
	"time"

	"github.com/KKNMAL003/dash/internal/models"
)

// The change feed speaks a channel protocol: every frame carries a topic,
// an event name, a payload, and a client-assigned ref used to correlate
// replies.
type frame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
}

const (
	eventJoin    = "phx_join"
	eventLeave   = "phx_leave"
	eventReply   = "phx_reply"
	eventError   = "phx_error"
	eventClose   = "phx_close"
	eventChanges = "postgres_changes"

	heartbeatTopic = "phoenix"
	eventHeartbeat = "heartbeat"

	topicPrefix = "realtime:"
)

// joinPayload requests row-change delivery for one table, optionally
// narrowed by a column filter such as "customer_id=eq.<id>".
type joinPayload struct {
	Config joinConfig `json:"config"`
}

type joinConfig struct {
	PostgresChanges []changeRequest `json:"postgres_changes"`
}

type changeRequest struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
}

type replyPayload struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

// changesPayload wraps the row change delivered on a subscribed topic.
type changesPayload struct {
	Data changeData `json:"data"`
}

type changeData struct {
	Type            models.ChangeType `json:"type"`
	Table           string            `json:"table"`
	Schema          string            `json:"schema"`
	CommitTimestamp string            `json:"commit_timestamp"`
	Record          json.RawMessage   `json:"record"`
	OldRecord       json.RawMessage   `json:"old_record"`
}

// Event is a decoded change-feed delivery handed to subscription handlers.
// Old and New stay raw here; the sync layer decodes them against its own
// row types at the validation boundary.
type Event struct {
	Type       models.ChangeType
	Table      string
	CommitTime time.Time
	Old        json.RawMessage
	New        json.RawMessage
}

func (d changeData) toEvent() Event {
	commitTime, err := time.Parse(time.RFC3339, d.CommitTimestamp)
	if err != nil {
		commitTime = time.Time{}
	}
	return Event{
		Type:       d.Type,
		Table:      d.Table,
		CommitTime: commitTime,
		Old:        d.OldRecord,
		New:        d.Record,
	}
}
