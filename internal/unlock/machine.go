// Package unlock tracks which content items are locked for one viewer.
//
// State changes only through Dispatch with one of the action types below.
// The state is a cache of server entitlements and never authorizes access to
// a media asset by itself.
package unlock

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nyashahama/gallery-paywall-backend/internal/entitlement"
)

// ErrIllegalTransition is returned when an action does not apply to the
// item's current state. The state is left unchanged.
var ErrIllegalTransition = errors.New("unlock: illegal transition")

// State is the lifecycle position of one content item.
type State string

const (
	Locked    State = "locked"
	Unlocking State = "unlocking"
	Unlocked  State = "unlocked"
)

// ItemState is the observable state of one item. Err holds the message of
// the last failed attempt until the next RequestUnlock.
type ItemState struct {
	State State
	Err   string
}

// Action is a message accepted by Dispatch.
type Action interface {
	action()
}

type (
	// RequestUnlock starts a purchase: Locked to Unlocking.
	RequestUnlock struct{ Item string }
	// ConfirmUnlock records a confirmed payment: Unlocking to Unlocked.
	ConfirmUnlock struct{ Item string }
	// FailUnlock reverts a failed purchase to Locked, keeping Err.
	FailUnlock struct {
		Item string
		Err  error
	}
	// CancelUnlock reverts an abandoned purchase to Locked without an error.
	CancelUnlock struct{ Item string }
	// ApplyLifetimeGrant unlocks every item.
	ApplyLifetimeGrant struct{}
	// Hydrate rebuilds state from server entitlements.
	Hydrate struct{ Snapshot entitlement.Snapshot }
)

func (RequestUnlock) action()      {}
func (ConfirmUnlock) action()      {}
func (FailUnlock) action()         {}
func (CancelUnlock) action()       {}
func (ApplyLifetimeGrant) action() {}
func (Hydrate) action()            {}

// Transition is delivered to subscribers after every accepted action that
// changed something. Item is empty for ApplyLifetimeGrant.
type Transition struct {
	Item   string
	From   State
	To     State
	Action Action
}

// Machine is safe for concurrent use. Subscribers run synchronously after
// the lock is released, in subscription order.
type Machine struct {
	mu       sync.Mutex
	items    map[string]ItemState
	lifetime bool
	subs     []func(Transition)
}

// New returns a Machine with every item Locked.
func New() *Machine {
	return &Machine{items: make(map[string]ItemState)}
}

// Subscribe registers fn for every future transition.
func (m *Machine) Subscribe(fn func(Transition)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Item returns the state of id. With a lifetime grant every item is Unlocked.
func (m *Machine) Item(id string) ItemState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.itemLocked(id)
}

// Lifetime reports whether a lifetime grant has been applied.
func (m *Machine) Lifetime() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lifetime
}

// IsUnlocked is shorthand for Item(id).State == Unlocked.
func (m *Machine) IsUnlocked(id string) bool {
	return m.Item(id).State == Unlocked
}

func (m *Machine) itemLocked(id string) ItemState {
	if m.lifetime {
		return ItemState{State: Unlocked}
	}
	st, ok := m.items[id]
	if !ok {
		return ItemState{State: Locked}
	}
	return st
}

// Dispatch applies a. It returns ErrIllegalTransition when a does not apply
// to the current state.
func (m *Machine) Dispatch(a Action) error {
	m.mu.Lock()
	ts, err := m.apply(a)
	subs := m.subs
	m.mu.Unlock()

	if err != nil {
		return err
	}
	for _, t := range ts {
		for _, fn := range subs {
			fn(t)
		}
	}
	return nil
}

func (m *Machine) apply(a Action) ([]Transition, error) {
	switch a := a.(type) {
	case RequestUnlock:
		return m.move(a.Item, a, Locked, ItemState{State: Unlocking})
	case ConfirmUnlock:
		return m.move(a.Item, a, Unlocking, ItemState{State: Unlocked})
	case FailUnlock:
		msg := "payment failed"
		if a.Err != nil {
			msg = a.Err.Error()
		}
		return m.move(a.Item, a, Unlocking, ItemState{State: Locked, Err: msg})
	case CancelUnlock:
		return m.move(a.Item, a, Unlocking, ItemState{State: Locked})
	case ApplyLifetimeGrant:
		if m.lifetime {
			return nil, nil
		}
		m.lifetime = true
		return []Transition{{To: Unlocked, Action: a}}, nil
	case Hydrate:
		return m.hydrate(a), nil
	default:
		return nil, fmt.Errorf("unlock: unknown action %T", a)
	}
}

func (m *Machine) move(item string, a Action, from State, to ItemState) ([]Transition, error) {
	if item == "" {
		return nil, fmt.Errorf("%w: empty item id", ErrIllegalTransition)
	}
	cur := m.itemLocked(item)
	if cur.State != from {
		return nil, fmt.Errorf("%w: %T on %s item %s", ErrIllegalTransition, a, cur.State, item)
	}
	m.items[item] = to
	return []Transition{{Item: item, From: cur.State, To: to.State, Action: a}}, nil
}

// hydrate only ever moves items towards Unlocked. A server snapshot can lag
// a payment the client just confirmed, so it never relocks anything.
func (m *Machine) hydrate(a Hydrate) []Transition {
	if a.Snapshot.Lifetime && !m.lifetime {
		m.lifetime = true
		return []Transition{{To: Unlocked, Action: a}}
	}
	var ts []Transition
	for _, id := range a.Snapshot.ContentItemIDs {
		cur := m.itemLocked(id)
		if cur.State == Unlocked {
			continue
		}
		m.items[id] = ItemState{State: Unlocked}
		ts = append(ts, Transition{Item: id, From: cur.State, To: Unlocked, Action: a})
	}
	return ts
}
