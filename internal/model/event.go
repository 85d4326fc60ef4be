package model

import "time"

// Event is an append-only audit record written as a side effect of
// catalog mutations.  Rows are never updated or deleted by the
// service.  The payload is opaque structured data serialized to the
// `events.payload` JSON column.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – event name tag, e.g. "recommend_coffee".
//  Type      – subject type tag, e.g. "coffee".
//  Payload   – arbitrary JSON payload, e.g. {"coffeeId": 7}.
//  CreatedAt – timestamp when the event was appended.
type Event struct {
	ID        uint64         `json:"id"`         // events.id
	Name      string         `json:"name"`       // events.name
	Type      string         `json:"type"`       // events.type
	Payload   map[string]any `json:"payload"`    // events.payload (JSON)
	CreatedAt time.Time      `json:"created_at"` // events.created_at
}
