// api/audit/appender.go
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	audit_errors "github.com/veritas-grc/veritas/api/errors"
	logger "github.com/veritas-grc/veritas/api/logging"
	"github.com/veritas-grc/veritas/api/util"
)

// Event types published on the event bus.
const (
	EventAppended           = "audit.appended"
	EventIntegrityViolation = "audit.integrity_violation"
)

type appendResult struct {
	entry *Entry
	err   error
}

type appendRequest struct {
	candidate Candidate
	reply     chan appendResult
}

// Appender is the single serialization point of the ledger. All appends
// flow through one worker goroutine that owns the tail, so concurrent
// callers are totally ordered and no two entries ever claim the same
// sequence or link to a stale prev_hash.
type Appender struct {
	store        Store
	bus          *util.EventBus
	validation   *util.ValidationUtil
	clock        func() time.Time
	writeTimeout time.Duration

	requests chan appendRequest
	done     chan struct{}

	// Worker-owned tail cache; never touched outside the worker goroutine.
	tailCached bool
	tailSeq    uint64
	tailHash   string
	lastStamp  time.Time
}

// NewAppender creates an Appender. Start must be called before Append.
func NewAppender(store Store, bus *util.EventBus, validation *util.ValidationUtil, queueSize int) *Appender {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Appender{
		store:        store,
		bus:          bus,
		validation:   validation,
		clock:        time.Now,
		writeTimeout: 10 * time.Second,
		requests:     make(chan appendRequest, queueSize),
		done:         make(chan struct{}),
	}
}

// WithClock overrides the timestamp source for testing.
func (a *Appender) WithClock(clock func() time.Time) *Appender {
	a.clock = clock
	return a
}

// Start launches the worker. When ctx is cancelled the worker drains every
// request already accepted into the queue, then exits; Wait blocks until
// that has happened.
func (a *Appender) Start(ctx context.Context) {
	go a.run(ctx)
}

// Wait blocks until the worker has drained and exited.
func (a *Appender) Wait() {
	<-a.done
}

// Append assigns the next sequence number, links the entry to the current
// tail hash, stamps the server timestamp, computes the entry hash and
// durably persists the entry before returning it. On any failure nothing
// is persisted and no sequence number is consumed.
func (a *Appender) Append(ctx context.Context, candidate Candidate) (*Entry, error) {
	req := appendRequest{candidate: candidate, reply: make(chan appendResult, 1)}

	select {
	case a.requests <- req:
	case <-a.done:
		return nil, audit_errors.ErrAppenderClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// An accepted request is normally processed even during shutdown
	// drain. The done branch covers the narrow window where the request
	// was buffered after the drain finished and will never be seen.
	select {
	case res := <-req.reply:
		return res.entry, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-a.done:
		select {
		case res := <-req.reply:
			return res.entry, res.err
		default:
			return nil, audit_errors.ErrAppenderClosed
		}
	}
}

func (a *Appender) run(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case req := <-a.requests:
			req.reply <- a.handle(req.candidate)
		case <-ctx.Done():
			a.drain()
			return
		}
	}
}

func (a *Appender) drain() {
	for {
		select {
		case req := <-a.requests:
			req.reply <- a.handle(req.candidate)
		default:
			return
		}
	}
}

// handle runs entirely on the worker goroutine: read tail, compute, write.
func (a *Appender) handle(candidate Candidate) appendResult {
	if err := a.validation.ValidateAction(string(candidate.Action)); err != nil {
		return appendResult{err: fmt.Errorf("%w: %v", audit_errors.ErrValidation, err)}
	}

	actor := candidate.Actor
	if actor.ID == "" {
		actor = SystemActor
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.writeTimeout)
	defer cancel()

	if !a.tailCached {
		seq, hash, err := a.store.Tail(ctx)
		if err != nil {
			return appendResult{err: fmt.Errorf("%w: %v", audit_errors.ErrAppend, err)}
		}
		a.tailSeq, a.tailHash, a.tailCached = seq, hash, true
	}

	// Server clock, clamped so timestamps never decrease across sequences.
	stamp := a.clock().UTC()
	if stamp.Before(a.lastStamp) {
		stamp = a.lastStamp
	}

	entry := Entry{
		Sequence:       a.tailSeq + 1,
		Timestamp:      stamp,
		UserID:         actor.ID,
		UserName:       actor.Name,
		UserEmail:      actor.Email,
		Action:         candidate.Action,
		EntityType:     candidate.EntityType,
		EntityID:       candidate.EntityID,
		EntityName:     candidate.EntityName,
		ChangedFields:  candidate.ChangedFields,
		OldValues:      candidate.OldValues,
		NewValues:      candidate.NewValues,
		IPAddress:      candidate.IPAddress,
		ActionCategory: candidate.ActionCategory,
		IsSensitive:    candidate.IsSensitive,
		PrevHash:       a.tailHash,
	}

	hash, err := EntryHash(entry)
	if err != nil {
		// Caller bug: the candidate carried non-canonicalizable values.
		// Rejected before any write, no sequence consumed.
		return appendResult{err: err}
	}
	entry.EntryHash = hash

	if err := a.store.Append(ctx, entry); err != nil {
		// Whatever the failure, the cached tail can no longer be trusted;
		// the next append re-reads it from the store.
		a.tailCached = false
		if errors.Is(err, audit_errors.ErrSequenceConflict) {
			logger.Error("Ledger store rejected a worker-ordered append; serialization is broken",
				zap.Uint64("sequence", entry.Sequence),
				zap.Error(err))
			return appendResult{err: err}
		}
		return appendResult{err: fmt.Errorf("%w: %v", audit_errors.ErrAppend, err)}
	}

	a.tailSeq = entry.Sequence
	a.tailHash = entry.EntryHash
	a.lastStamp = stamp

	if a.bus != nil {
		a.bus.Publish(context.Background(), EventAppended, entry)
	}

	logger.Debug("Audit entry appended",
		zap.Uint64("sequence", entry.Sequence),
		zap.String("action", string(entry.Action)),
		zap.String("entityType", entry.EntityType))
	return appendResult{entry: &entry}
}
