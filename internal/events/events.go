package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	applog "github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/log"
)

type Kind string

const (
	BidAccepted      Kind = "auction.bid.accepted"
	BidRejected      Kind = "auction.bid.rejected"
	AuctionReviewed  Kind = "auction.reviewed"
	AuctionEnded     Kind = "auction.ended"
	ContractSigned   Kind = "contract.signed"
	ContractReady    Kind = "contract.ready"
	PaymentInitiated Kind = "payment.initiated"
	PaymentStatus    Kind = "payment.status"
	TxCancelled      Kind = "transaction.cancelled"
)

type Event struct {
	ID      string         `json:"id"`
	Kind    Kind           `json:"kind"`
	Subject string         `json:"subject"`
	Actor   string         `json:"actor,omitempty"`
	At      time.Time      `json:"at"`
	Data    map[string]any `json:"data,omitempty"`
}

func New(kind Kind, subject, actor string, data map[string]any) Event {
	return Event{ID: uuid.NewString(), Kind: kind, Subject: subject, Actor: actor, At: time.Now().UTC(), Data: data}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops everything.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Log writes each event as an audit line.
type Log struct{}

func (Log) Publish(_ context.Context, e Event) error {
	fields := map[string]any{"event_id": e.ID, "subject": e.Subject}
	if e.Actor != "" {
		fields["user_id"] = e.Actor
	}
	for k, v := range e.Data {
		fields[k] = v
	}
	applog.Audit(nil, string(e.Kind), fields)
	return nil
}

// Emit publishes e and logs a failure instead of returning it. Events are
// notifications; a lost one never undoes the operation that raised it.
func Emit(ctx context.Context, p Publisher, e Event) {
	if err := p.Publish(ctx, e); err != nil {
		applog.Error(nil, "events.publish.fail", err, map[string]any{"kind": string(e.Kind), "subject": e.Subject})
	}
}

// Multi fans an event out to every publisher and joins their errors.
func Multi(ps ...Publisher) Publisher { return multi(ps) }

type multi []Publisher

func (m multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Hub is an in-process fan-out. Slow subscribers miss events rather than
// block publishers.
type Hub struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewHub() *Hub { return &Hub{subs: make(map[int]chan Event)} }

// Subscribe returns a buffered channel and a cancel func that closes it.
func (h *Hub) Subscribe(buf int) (<-chan Event, func()) {
	if buf <= 0 {
		buf = 16
	}
	ch := make(chan Event, buf)
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Publish(_ context.Context, e Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
	return nil
}
