package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Dialogue steps. The zero value StepNone means no flow is in progress.
type Step string

const (
	StepNone           Step = ""
	StepAskLocation    Step = "ask_location"
	StepAskOrder       Step = "ask_order"
	StepCollectName    Step = "collect_name"
	StepCollectAddress Step = "collect_address"
	StepCollectPhone   Step = "collect_phone"
)

// ConversationContext is the in-process per-sender dialogue state. It is
// owned by the single handling path for a sender and carries everything
// the state machine remembers between turns.
type ConversationContext struct {
	SenderID string
	PageID   string
	Step     Step

	AdID     string
	Location string
	Name     string
	Address  string
	Phone    string
	Quantity int

	AskedLocation bool
	AskedOrder    bool
	OrderRetries  int

	UpdatedAt time.Time
}

// StateStore keeps conversation contexts in memory with idle eviction,
// so memory stays bounded even for senders who never finish a flow.
type StateStore struct {
	mu       sync.RWMutex
	idleTTL  time.Duration
	contexts map[string]*ConversationContext
}

// NewStateStore creates a store evicting contexts idle longer than ttl.
func NewStateStore(ttl time.Duration) *StateStore {
	return &StateStore{
		idleTTL:  ttl,
		contexts: make(map[string]*ConversationContext),
	}
}

func stateKey(senderID, pageID string) string {
	return senderID + "|" + pageID
}

// Get returns the context for a sender, creating one lazily.
func (s *StateStore) Get(senderID, pageID string) *ConversationContext {
	key := stateKey(senderID, pageID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if ctx, ok := s.contexts[key]; ok {
		ctx.UpdatedAt = time.Now()
		return ctx
	}

	ctx := &ConversationContext{
		SenderID:  senderID,
		PageID:    pageID,
		UpdatedAt: time.Now(),
	}
	s.contexts[key] = ctx
	return ctx
}

// Peek returns the context without creating one.
func (s *StateStore) Peek(senderID, pageID string) *ConversationContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contexts[stateKey(senderID, pageID)]
}

// Delete removes a sender's context, e.g. after a completed order.
func (s *StateStore) Delete(senderID, pageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, stateKey(senderID, pageID))
}

// Len returns the number of live contexts.
func (s *StateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contexts)
}

// evictIdle removes contexts untouched for longer than the idle TTL.
func (s *StateStore) evictIdle() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.idleTTL)
	evicted := 0
	for key, ctx := range s.contexts {
		if ctx.UpdatedAt.Before(cutoff) {
			delete(s.contexts, key)
			evicted++
		}
	}
	return evicted
}

// StartCleanup runs periodic idle eviction until ctx is cancelled.
func (s *StateStore) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Conversation state cleanup stopped")
				return
			case <-ticker.C:
				if n := s.evictIdle(); n > 0 {
					slog.Info("Evicted idle conversation contexts", "count", n)
				}
			}
		}
	}()

	slog.Info("Conversation state cleanup started", "interval", interval.String())
}
