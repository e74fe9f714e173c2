package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/rtc-service/internal/domain/event"
)

// Interface guard
var _ Connector = (*connect)(nil)

// Connector is the live session handle handed to transport layers. The
// concrete type stays unexported so the registry and handlers only depend on
// this contract.
type Connector interface {
	GetID() uuid.UUID
	GetUserID() uuid.UUID
	Send(ev event.Eventer, timeout time.Duration) bool // thread-safe send with backpressure handling
	Recv() <-chan event.Eventer
	Close() // terminate the session and release resources
}

type connect struct {
	id        uuid.UUID
	userID    uuid.UUID
	createdAt time.Time

	ctx      context.Context
	cancelFn context.CancelFunc

	// mu fences Send against Close: a sender holds the read side for the
	// whole push, so the channel is never closed mid-send.
	mu        sync.RWMutex
	closed    bool
	sendCh    chan event.Eventer
	closeOnce sync.Once

	droppedCount uint64 // atomic
}

// [POOL] SYNC.POOL FOR OBJECT REUSE (REDUCES GC PRESSURE)
var connectPool = sync.Pool{
	New: func() any {
		return &connect{}
	},
}

// NewConnector builds a session handle with a buffered mailbox of the given
// size. The context bounds the session: cancelling it aborts pending sends.
func NewConnector(ctx context.Context, userID uuid.UUID, bufferSize int) Connector {
	c := connectPool.Get().(*connect)
	c.reset(ctx, userID, bufferSize)
	return c
}

// reset wipes stale state from a pooled object, including the sync.Once guard.
func (c *connect) reset(ctx context.Context, userID uuid.UUID, bufferSize int) {
	childCtx, cancel := context.WithCancel(ctx)

	*c = connect{
		id:        uuid.New(),
		userID:    userID,
		createdAt: time.Now(),
		ctx:       childCtx,
		cancelFn:  cancel,
		sendCh:    make(chan event.Eventer, bufferSize),
	}
}

func (c *connect) GetID() uuid.UUID     { return c.id }
func (c *connect) GetUserID() uuid.UUID { return c.userID }

// Send attempts to push an event into the session mailbox, waiting up to
// timeout for space. A saturated buffer falls through to priority-aware
// shedding so one stalled consumer cannot hold the caller hostage.
func (c *connect) Send(ev event.Eventer, timeout time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	select {
	case <-c.ctx.Done():
		return false
	case c.sendCh <- ev:
		return true
	case <-ctx.Done():
		return c.handleBackpressure(ev, timeout)
	}
}

// handleBackpressure manages full buffers by dropping low-priority events.
// Typing signals are the usual casualty; message and emergency events evict
// a queued low-priority event instead of being lost.
func (c *connect) handleBackpressure(ev event.Eventer, timeout time.Duration) bool {
	if ev.GetPriority() <= event.PriorityLow {
		atomic.AddUint64(&c.droppedCount, 1)
		return false
	}

	select {
	case oldEv := <-c.sendCh:
		if oldEv.GetPriority() < ev.GetPriority() {
			c.sendCh <- ev
			return true
		}
		// The displaced event was equally important; best effort to requeue.
		select {
		case c.sendCh <- oldEv:
		default:
		}
	case <-time.After(timeout):
	}

	atomic.AddUint64(&c.droppedCount, 1)
	return false
}

func (c *connect) Recv() <-chan event.Eventer { return c.sendCh }

// Close terminates the session, triggers cleanup, and recycles the object.
// Safe under concurrent calls from the registry (supersede), the reaper
// (eviction) and the transport handler (defer).
func (c *connect) Close() {
	c.closeOnce.Do(func() {
		c.cancelFn()

		// Closing the channel signals the transport pump (via !ok) to emit
		// its final frame and exit. Queued events stay readable so a last
		// session_timeout still reaches the wire.
		c.mu.Lock()
		c.closed = true
		close(c.sendCh)
		c.mu.Unlock()

		connectPool.Put(c)
	})
}
