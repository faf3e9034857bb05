package domain

import "time"

// AuditLog is an append-only record of a business or security action.
type AuditLog struct {
	ID        string    `json:"id"`
	ActorID   *string   `json:"actor_id"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  *string   `json:"entity_id"`
	Data      any       `json:"data"`
	IP        *string   `json:"ip"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditEvent is what callers hand to the audit recorder. Actor and IP are
// resolved by the recorder; ActorID overrides the session actor when set.
type AuditEvent struct {
	Action   string
	Entity   string
	EntityID string
	Data     any
	ActorID  string
}

// Change is the data payload of update audits.
type Change struct {
	Before any `json:"before"`
	After  any `json:"after"`
}
