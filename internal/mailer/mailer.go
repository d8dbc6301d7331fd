// Package mailer sends transactional email.
//
// Addresses are always passed as structured {Name, Address} pairs and
// rendered into headers by the mail library, never by string formatting,
// so a display name can't smuggle in extra headers or recipients.
package mailer

import (
	"context"
	"errors"
)

// Address is a display name and mailbox.
type Address struct {
	Name    string
	Address string
}

// Message is a single plain-text email.
type Message struct {
	From    Address
	To      Address
	Subject string
	Body    string
}

// Sender delivers messages. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("mailer: smtp temporarily unavailable")
