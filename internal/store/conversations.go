// Package store implements the process-local state the relay correlates
// events through: conversation records, sticky instance assignments, the
// webhook dedup cache, and the pending-order timer table.
//
// Every store owns its data behind an internal mutex and is injected into
// services explicitly; nothing in this package is reachable as a package
// global. All stores are volatile and bounded by the retention sweep — no
// entry survives a process restart and none is meant to.
package store

import (
	"sync"
	"time"

	"github.com/flowzap/pixrelay/internal/domain"
)

// ReplyOutcome is the result of an inbound-message transition attempt.
type ReplyOutcome int

const (
	// ReplyAccepted means this was the first reply while awaiting: the
	// conversation transitioned and the caller must dispatch.
	ReplyAccepted ReplyOutcome = iota
	// ReplyNoConversation means the key has no active conversation.
	ReplyNoConversation
	// ReplyNotAwaiting means no outbound system message preceded the reply.
	ReplyNotAwaiting
	// ReplyAlreadyReplied means the first reply was already dispatched.
	ReplyAlreadyReplied
)

// Conversations is the per-customer conversation state store, keyed by the
// normalized phone. Transitions are linearizable per key: every
// read-modify-write runs under the store lock.
type Conversations struct {
	mu  sync.Mutex
	m   map[string]*domain.Conversation
	now func() time.Time
}

// NewConversations returns an empty store.
func NewConversations() *Conversations {
	return &Conversations{
		m:   make(map[string]*domain.Conversation),
		now: time.Now,
	}
}

// Put creates or overwrites the conversation for key. Overwrite semantics
// are intentional: a new payment event restarts the lifecycle, resetting
// the reply count and the awaiting flag.
func (s *Conversations) Put(key string, c domain.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	s.m[key] = &c
}

// Get returns a copy of the conversation for key.
func (s *Conversations) Get(key string) (domain.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[key]
	if !ok {
		return domain.Conversation{}, false
	}
	return *c, true
}

// MarkAwaiting flags the conversation as waiting for the customer's reply
// and stamps the last system-message time. Returns false when no
// conversation exists for key (a no-op, not an error).
func (s *Conversations) MarkAwaiting(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[key]
	if !ok {
		return false
	}
	c.Awaiting = true
	c.LastSystemAt = s.now()
	return true
}

// FirstReply attempts the reply transition for key: if the conversation is
// awaiting and no reply was counted yet, it records the reply (count=1,
// awaiting=false) and returns the updated snapshot with ReplyAccepted.
// Every other case leaves the record untouched and reports why. At most one
// ReplyAccepted is ever returned per conversation lifecycle.
func (s *Conversations) FirstReply(key string) (domain.Conversation, ReplyOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[key]
	switch {
	case !ok:
		return domain.Conversation{}, ReplyNoConversation
	case c.ReplyCount > 0:
		return *c, ReplyAlreadyReplied
	case !c.Awaiting:
		return *c, ReplyNotAwaiting
	}
	c.ReplyCount = 1
	c.Awaiting = false
	return *c, ReplyAccepted
}

// Count returns the number of active conversations.
func (s *Conversations) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Snapshot returns a copy of every conversation keyed by customer key,
// for the status surface.
func (s *Conversations) Snapshot() map[string]domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.Conversation, len(s.m))
	for k, c := range s.m {
		out[k] = *c
	}
	return out
}

// Sweep removes conversations created before cutoff and returns how many
// were removed.
func (s *Conversations) Sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, c := range s.m {
		if c.CreatedAt.Before(cutoff) {
			delete(s.m, k)
			removed++
		}
	}
	return removed
}
