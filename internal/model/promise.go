package model

import (
	"encoding/json"
	"time"
)

// PromiseStatus is the lifecycle state of a promise.
type PromiseStatus string

// A promise is created pending and moves to submitted exactly once, when its
// magic link is confirmed. There is no other transition.
const (
	PromiseStatusPending   PromiseStatus = "pending_email_verification"
	PromiseStatusSubmitted PromiseStatus = "submitted"
)

// Promise is a user's commitment to an opportunity.
//
// Payload is whatever JSON the client sent, stored and returned byte for
// byte. The server never looks inside it.
type Promise struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	OpportunityKey string          `json:"opportunity_key"`
	Status         PromiseStatus   `json:"status"`
	Payload        json.RawMessage `json:"payload"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// PromiseSummary is the subset of a promise returned to the submitter.
type PromiseSummary struct {
	ID             string        `json:"id"`
	Status         PromiseStatus `json:"status"`
	OpportunityKey string        `json:"opportunity_key"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Summary returns the public view of p.
func (p *Promise) Summary() PromiseSummary {
	return PromiseSummary{
		ID:             p.ID,
		Status:         p.Status,
		OpportunityKey: p.OpportunityKey,
		CreatedAt:      p.CreatedAt,
	}
}
