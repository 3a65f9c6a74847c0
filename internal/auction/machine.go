// Package auction holds the client-side view of an auction: its state machine,
// the admin/owner desk that drives it, and the bidding engine.
package auction

import (
	"fmt"
	"sync"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/domain"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/errs"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/session"
)

// Trigger names what causes a transition.
type Trigger string

const (
	TriggerApprove  Trigger = "approve"
	TriggerReject   Trigger = "reject"
	TriggerClock    Trigger = "clock"
	TriggerFinalize Trigger = "finalize"
)

func (t Trigger) adminOnly() bool {
	return t == TriggerApprove || t == TriggerReject || t == TriggerFinalize
}

type edge struct {
	from, to domain.AuctionStatus
	trigger  Trigger
}

var table = []edge{
	{domain.AuctionPending, domain.AuctionPrepare, TriggerApprove},
	{domain.AuctionPending, domain.AuctionRejected, TriggerReject},
	{domain.AuctionPrepare, domain.AuctionStarted, TriggerClock},
	{domain.AuctionStarted, domain.AuctionEnded, TriggerClock},
	{domain.AuctionStarted, domain.AuctionEnded, TriggerFinalize},
}

func legal(from, to domain.AuctionStatus, trig Trigger) bool {
	for _, e := range table {
		if e.from == from && e.to == to && e.trigger == trig {
			return true
		}
	}
	return false
}

// reachable reports whether to lies on some forward path from from.
func reachable(from, to domain.AuctionStatus) bool {
	if from == to {
		return true
	}
	for _, e := range table {
		if e.from == from && reachable(e.to, to) {
			return true
		}
	}
	return false
}

// Machine is the local view of one auction. The server owns the truth; the
// machine only rejects moves and snapshots that cannot follow from what it
// has already seen.
type Machine struct {
	sess *session.Session

	mu   sync.Mutex
	view domain.Auction
}

func NewMachine(s *session.Session, snapshot domain.Auction) *Machine {
	return &Machine{sess: s, view: snapshot}
}

// Snapshot returns a copy of the current view.
func (m *Machine) Snapshot() domain.Auction {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.view
	if v.WinningBidderID != nil {
		w := *v.WinningBidderID
		v.WinningBidderID = &w
	}
	return v
}

func (m *Machine) ID() string { return m.Snapshot().ID }

func (m *Machine) Status() domain.AuctionStatus { return m.Snapshot().Status }

// Check validates a transition against the table and the session's role
// without applying it.
func (m *Machine) Check(to domain.AuctionStatus, trig Trigger) error {
	m.mu.Lock()
	cur := m.view.Status
	m.mu.Unlock()
	return m.check(cur, to, trig)
}

func (m *Machine) check(cur, to domain.AuctionStatus, trig Trigger) error {
	if trig.adminOnly() && !m.sess.IsAdmin() {
		return errs.Forbidden(string(trig)+" auction", "admin role required")
	}
	if !legal(cur, to, trig) {
		return errs.Transition("auction", string(cur), string(to))
	}
	return nil
}

// Observe replaces the view with a server snapshot. Forward jumps are fine
// (a poll may miss prepare); going backwards, lowering the bid, or changing
// the result of an ended auction is a ConflictError and the view is kept.
func (m *Machine) Observe(s domain.Auction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.view
	if cur.ID != "" && s.ID != cur.ID {
		return fmt.Errorf("observe auction %s: snapshot is for %s", cur.ID, s.ID)
	}
	if cur.ID == "" {
		m.view = s
		return nil
	}
	if !reachable(cur.Status, s.Status) {
		return errs.Transition("auction "+cur.ID, string(cur.Status), string(s.Status))
	}
	if cur.Status == domain.AuctionEnded && (!s.CurrentBid.Equal(cur.CurrentBid) || s.Winner() != cur.Winner()) {
		return &errs.ConflictError{
			Code:     errs.CodeInvalidTransition,
			Resource: "auction " + cur.ID,
			Current:  string(cur.Status),
			Message:  "auction " + cur.ID + " has ended, its result is final",
		}
	}
	if s.CurrentBid.LessThan(cur.CurrentBid) {
		return &errs.ConflictError{
			Code:     errs.CodeInvalidTransition,
			Resource: "auction " + cur.ID,
			Current:  string(cur.Status),
			Message:  fmt.Sprintf("stale snapshot: bid %s is below %s", s.CurrentBid, cur.CurrentBid),
		}
	}
	m.view = s
	return nil
}

// CanRemove reports whether the session may delete the auction: its owner
// while it is not taking bids, an admin at any time.
func (m *Machine) CanRemove() error {
	v := m.Snapshot()
	if m.sess.IsAdmin() {
		return nil
	}
	if v.CreatorID != m.sess.UserID {
		return errs.Forbidden("remove auction", "only the owner can remove it")
	}
	if v.Status == domain.AuctionStarted {
		return &errs.ConflictError{
			Code:      errs.CodeInvalidTransition,
			Resource:  "auction " + v.ID,
			Current:   string(v.Status),
			Attempted: "removed",
			Message:   "auction " + v.ID + " has started and can no longer be removed by its owner",
		}
	}
	return nil
}
