package flutterwave

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// EventChargeCompleted is the only webhook event that is reconciled
const EventChargeCompleted = "charge.completed"

// Event is webhook notification
type Event struct {
	Type          string
	TransactionID string
	TxRef         string
	Status        string
}

type eventPayload struct {
	Event string `json:"event"`
	Data  struct {
		ID     json.Number `json:"id"`
		TxRef  string      `json:"tx_ref"`
		Status string      `json:"status"`
	} `json:"data"`
}

// ParseEvent decodes verified webhook body
func ParseEvent(body []byte) (*Event, error) {
	var payload eventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}

	ev := &Event{
		Type:   payload.Event,
		TxRef:  payload.Data.TxRef,
		Status: payload.Data.Status,
	}

	if payload.Data.ID != "" {
		id, err := strconv.ParseInt(payload.Data.ID.String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode webhook transaction id: %w", err)
		}
		ev.TransactionID = strconv.FormatInt(id, 10)
	}

	return ev, nil
}

// Completed reports whether event must be reconciled
func (e *Event) Completed() bool {
	return e.Type == EventChargeCompleted
}
