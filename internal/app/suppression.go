package app

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/muster/internal/clock"
)

// SuppressionKey identifies a self-caused retraction awaiting its echo.
type SuppressionKey struct {
	OperationID string
	MemberID    string
	Category    string
}

type suppressionEntry struct {
	correlationID string
	registeredAt  time.Time
}

// SuppressionRegistry tracks retractions the engine issued itself so their
// inbound withdraw echoes are consumed instead of reconciled. Entries for one
// key form a FIFO. The registry is volatile; a restart clears it.
type SuppressionRegistry struct {
	mu      sync.Mutex
	entries map[SuppressionKey][]suppressionEntry
	ttl     time.Duration
	clock   clock.Clock
	logger  *slog.Logger
}

// NewSuppressionRegistry creates a registry whose entries expire after ttl.
func NewSuppressionRegistry(ttl time.Duration, clk clock.Clock, logger *slog.Logger) *SuppressionRegistry {
	return &SuppressionRegistry{
		entries: make(map[SuppressionKey][]suppressionEntry),
		ttl:     ttl,
		clock:   clk,
		logger:  logger.With("component", "suppression"),
	}
}

// Register records an outgoing retraction and returns its correlation id.
// Call it before issuing the retraction.
func (r *SuppressionRegistry) Register(key SuppressionKey) string {
	id := uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = append(r.entries[key], suppressionEntry{correlationID: id, registeredAt: r.clock.Now()})
	return id
}

// Consume removes the oldest live entry for key. Expired entries found on
// the way are dropped as anomalies.
func (r *SuppressionRegistry) Consume(key SuppressionKey) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	queue := r.entries[key]
	for len(queue) > 0 {
		head := queue[0]
		queue = queue[1:]
		if r.expired(head, now) {
			r.logExpiry(key, head, now)
			continue
		}
		r.store(key, queue)
		return head.correlationID, true
	}
	r.store(key, queue)
	return "", false
}

// Discard removes a specific entry, used when its retraction was never delivered.
func (r *SuppressionRegistry) Discard(key SuppressionKey, correlationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	queue := r.entries[key]
	for i, e := range queue {
		if e.correlationID == correlationID {
			r.store(key, append(queue[:i:i], queue[i+1:]...))
			return true
		}
	}
	return false
}

// Sweep drops every entry older than the TTL and returns how many it dropped.
func (r *SuppressionRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	dropped := 0
	for key, queue := range r.entries {
		live := queue[:0]
		for _, e := range queue {
			if r.expired(e, now) {
				r.logExpiry(key, e, now)
				dropped++
				continue
			}
			live = append(live, e)
		}
		r.store(key, live)
	}
	return dropped
}

// Len returns the number of outstanding entries.
func (r *SuppressionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, queue := range r.entries {
		n += len(queue)
	}
	return n
}

func (r *SuppressionRegistry) expired(e suppressionEntry, now time.Time) bool {
	return now.Sub(e.registeredAt) > r.ttl
}

func (r *SuppressionRegistry) store(key SuppressionKey, queue []suppressionEntry) {
	if len(queue) == 0 {
		delete(r.entries, key)
		return
	}
	r.entries[key] = queue
}

func (r *SuppressionRegistry) logExpiry(key SuppressionKey, e suppressionEntry, now time.Time) {
	r.logger.Warn("anomalous suppression expiry",
		"operation_id", key.OperationID,
		"member_id", key.MemberID,
		"category", key.Category,
		"correlation_id", e.correlationID,
		"age", now.Sub(e.registeredAt),
	)
}
