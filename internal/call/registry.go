// Package call tracks who is currently on a call and expires participants
// that go quiet, triggering end-of-call finalization.
package call

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive Status = "active"
	StatusLeft   Status = "left"
)

var ErrNotFound = errors.New("participant not found")

// Participant is one connected call member, patient or agent.
type Participant struct {
	ID          string    `json:"participant_id"`
	Identity    string    `json:"identity"`
	Status      Status    `json:"status"`
	JoinedAt    time.Time `json:"joined_at"`
	LastHeardAt time.Time `json:"last_heard_at"`
}

// Registry is the in-process roster of call participants. A janitor expires
// anyone idle past the timeout and fires the leave hook, so calls finalize
// even when the disconnect event never arrives.
type Registry struct {
	mu          sync.RWMutex
	byID        map[string]*Participant
	byIdentity  map[string]string
	idleTimeout time.Duration
	onLeave     func(*Participant)
}

func NewRegistry(idleTimeout time.Duration) *Registry {
	if idleTimeout <= 0 {
		idleTimeout = 2 * time.Minute
	}
	return &Registry{
		byID:        make(map[string]*Participant),
		byIdentity:  make(map[string]string),
		idleTimeout: idleTimeout,
	}
}

func (r *Registry) SetLeaveHook(hook func(*Participant)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onLeave = hook
}

// Join registers a participant. Rejoining with the same identity replaces the
// previous entry rather than duplicating it.
func (r *Registry) Join(identity string) *Participant {
	now := time.Now().UTC()
	p := &Participant{
		ID:          uuid.NewString(),
		Identity:    identity,
		Status:      StatusActive,
		JoinedAt:    now,
		LastHeardAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if identity != "" {
		if oldID, ok := r.byIdentity[identity]; ok {
			delete(r.byID, oldID)
		}
		r.byIdentity[identity] = p.ID
	}
	r.byID[p.ID] = p
	return clone(p)
}

func (r *Registry) Get(id string) (*Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(p), nil
}

// Touch marks the participant as recently heard.
func (r *Registry) Touch(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.LastHeardAt = time.Now().UTC()
	return nil
}

// Leave removes the participant and fires the leave hook once.
func (r *Registry) Leave(id string) (*Participant, error) {
	r.mu.Lock()
	p, ok := r.byID[id]
	if !ok || p.Status != StatusActive {
		r.mu.Unlock()
		return nil, ErrNotFound
	}
	p.Status = StatusLeft
	p.LastHeardAt = time.Now().UTC()
	if p.Identity != "" {
		delete(r.byIdentity, p.Identity)
	}
	out := clone(p)
	hook := r.onLeave
	r.mu.Unlock()

	if hook != nil {
		hook(out)
	}
	return out, nil
}

func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, p := range r.byID {
		if p.Status == StatusActive {
			count++
		}
	}
	return count
}

func (r *Registry) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.expireIdle()
			}
		}
	}()
}

func (r *Registry) expireIdle() {
	now := time.Now().UTC()
	var expired []*Participant

	r.mu.Lock()
	for _, p := range r.byID {
		if p.Status != StatusActive {
			continue
		}
		if now.Sub(p.LastHeardAt) < r.idleTimeout {
			continue
		}
		p.Status = StatusLeft
		p.LastHeardAt = now
		if p.Identity != "" {
			delete(r.byIdentity, p.Identity)
		}
		expired = append(expired, clone(p))
	}
	hook := r.onLeave
	r.mu.Unlock()

	if hook != nil {
		for _, p := range expired {
			hook(p)
		}
	}
}

func clone(p *Participant) *Participant {
	c := *p
	return &c
}
