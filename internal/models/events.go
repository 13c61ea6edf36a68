package models

import (
	"encoding/json"
	"fmt"
)

// ChangeType is the kind of row change delivered by the realtime feed.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// OrderEvent is a decoded change-feed event for the orders table. Old is
// only populated on updates and deletes, New on inserts and updates.
type OrderEvent struct {
	Type ChangeType
	Old  *Order
	New  *Order
}

// MessageEvent is a decoded change-feed event for the communication-log
// table.
type MessageEvent struct {
	Type ChangeType
	Old  *Message
	New  *Message
}

// ParseOrderEvent decodes the raw rows of an orders change event. Payloads
// are validated at this boundary; untyped maps never travel further.
func ParseOrderEvent(typ ChangeType, oldRaw, newRaw json.RawMessage) (OrderEvent, error) {
	ev := OrderEvent{Type: typ}
	if err := decodeRow(newRaw, &ev.New); err != nil {
		return OrderEvent{}, fmt.Errorf("order event new row: %w", err)
	}
	if err := decodeRow(oldRaw, &ev.Old); err != nil {
		return OrderEvent{}, fmt.Errorf("order event old row: %w", err)
	}
	if err := validateEventShape(typ, ev.Old != nil, ev.New != nil); err != nil {
		return OrderEvent{}, err
	}
	if ev.New != nil && !ev.New.Status.IsValid() {
		return OrderEvent{}, fmt.Errorf("order event: unknown status %q", ev.New.Status)
	}
	return ev, nil
}

// ParseMessageEvent decodes the raw rows of a communication-log change event.
func ParseMessageEvent(typ ChangeType, oldRaw, newRaw json.RawMessage) (MessageEvent, error) {
	ev := MessageEvent{Type: typ}
	if err := decodeRow(newRaw, &ev.New); err != nil {
		return MessageEvent{}, fmt.Errorf("message event new row: %w", err)
	}
	if err := decodeRow(oldRaw, &ev.Old); err != nil {
		return MessageEvent{}, fmt.Errorf("message event old row: %w", err)
	}
	if err := validateEventShape(typ, ev.Old != nil, ev.New != nil); err != nil {
		return MessageEvent{}, err
	}
	return ev, nil
}

func decodeRow[T any](raw json.RawMessage, out **T) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var row T
	if err := json.Unmarshal(raw, &row); err != nil {
		return err
	}
	*out = &row
	return nil
}

func validateEventShape(typ ChangeType, hasOld, hasNew bool) error {
	switch typ {
	case ChangeInsert:
		if !hasNew {
			return fmt.Errorf("insert event missing new row")
		}
	case ChangeUpdate:
		if !hasNew {
			return fmt.Errorf("update event missing new row")
		}
	case ChangeDelete:
		if !hasOld {
			return fmt.Errorf("delete event missing old row")
		}
	default:
		return fmt.Errorf("unknown change type %q", typ)
	}
	return nil
}
