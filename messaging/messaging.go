/*
Package messaging carries internal mail between admins and employees.

Admins and employees live in unrelated identity spaces, so a sender or
recipient is an Actor: a (kind, id) pair rather than a bare numeric id
with an "is admin" flag. A message without a recipient is a broadcast
visible to everyone.

Attachment handling is a stub: only the original filename is recorded,
no bytes are stored.
*/
package messaging

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// ACTOR - Tagged identity across the admin/employee spaces
// =============================================================================

type ActorKind string

const (
	ActorAdmin    ActorKind = "admin"
	ActorEmployee ActorKind = "employee"
)

// Actor identifies an admin or an employee unambiguously.
type Actor struct {
	Kind ActorKind
	ID   int64
}

func AdminActor(id int64) Actor    { return Actor{Kind: ActorAdmin, ID: id} }
func EmployeeActor(id int64) Actor { return Actor{Kind: ActorEmployee, ID: id} }

func (a Actor) String() string {
	return fmt.Sprintf("%s:%d", a.Kind, a.ID)
}

// ParseActor parses the "kind:id" form produced by String.
func ParseActor(s string) (Actor, error) {
	kind, idStr, ok := strings.Cut(s, ":")
	if !ok {
		return Actor{}, fmt.Errorf("%w: %q", ErrBadActor, s)
	}
	switch ActorKind(kind) {
	case ActorAdmin, ActorEmployee:
	default:
		return Actor{}, fmt.Errorf("%w: unknown kind %q", ErrBadActor, kind)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %q", ErrBadActor, s)
	}
	return Actor{Kind: ActorKind(kind), ID: id}, nil
}

// =============================================================================
// MESSAGE
// =============================================================================

type Message struct {
	ID             int64
	Sender         Actor
	Recipient      *Actor // nil = broadcast
	Subject        string
	Body           string
	AttachmentName string // filename only; no storage
	SentAt         time.Time
}

func (m Message) Broadcast() bool { return m.Recipient == nil }

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrBadActor  = errors.New("malformed actor")
	ErrEmptyBody = errors.New("message body is required")
)

// =============================================================================
// STORE & MAILBOX
// =============================================================================

// Store persists messages.
type Store interface {
	// InsertMessage persists a message and returns it with an ID.
	InsertMessage(ctx context.Context, m Message) (*Message, error)

	// Inbox returns messages addressed to the actor plus broadcasts,
	// newest first.
	Inbox(ctx context.Context, actor Actor) ([]Message, error)

	// Outbox returns messages sent by the actor, newest first.
	Outbox(ctx context.Context, actor Actor) ([]Message, error)
}

// Mailbox validates and sends messages.
type Mailbox struct {
	Store Store

	// Now is overridable for tests. Defaults to time.Now.
	Now func() time.Time
}

func NewMailbox(store Store) *Mailbox {
	return &Mailbox{Store: store, Now: time.Now}
}

// Send delivers a direct message, or a broadcast when recipient is nil.
func (mb *Mailbox) Send(ctx context.Context, sender Actor, recipient *Actor, subject, body, attachmentName string) (*Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyBody
	}
	return mb.Store.InsertMessage(ctx, Message{
		Sender:         sender,
		Recipient:      recipient,
		Subject:        subject,
		Body:           body,
		AttachmentName: attachmentName,
		SentAt:         mb.now(),
	})
}

func (mb *Mailbox) Inbox(ctx context.Context, actor Actor) ([]Message, error) {
	return mb.Store.Inbox(ctx, actor)
}

func (mb *Mailbox) Outbox(ctx context.Context, actor Actor) ([]Message, error) {
	return mb.Store.Outbox(ctx, actor)
}

func (mb *Mailbox) now() time.Time {
	if mb.Now != nil {
		return mb.Now()
	}
	return time.Now()
}
