// Package registry tracks live transport bindings and the sessions behind
// them. A session is the durable identity unit; a binding is one open event
// stream. Each binding owns a worker goroutine so messages posted to one
// connection are processed strictly in arrival order.
package registry

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/latticehq/lattice/internal/common/apperrors"
	"github.com/latticehq/lattice/internal/common/uuid"
)

// queueDepth bounds the per-binding backlog of unprocessed messages.
const queueDepth = 64

// EventSink delivers named frames to the client side of a binding's stream.
type EventSink interface {
	Send(event string, data []byte) error
}

// Task is one unit of ordered work on a binding's worker.
type Task func(ctx context.Context)

// TransportBinding is one open event stream bound to a session.
type TransportBinding struct {
	correlationID string
	sessionID     string
	sink          EventSink

	tasks     chan Task
	done      chan struct{}
	closeOnce sync.Once
}

// CorrelationID returns the transport-assigned identifier clients use to
// address this binding.
func (b *TransportBinding) CorrelationID() string {
	return b.correlationID
}

// SessionID returns the logical session this binding belongs to.
func (b *TransportBinding) SessionID() string {
	return b.sessionID
}

// Send writes a named frame to the binding's stream.
func (b *TransportBinding) Send(event string, data []byte) error {
	return b.sink.Send(event, data)
}

// Enqueue submits a task for ordered processing. Tasks queued on the same
// binding run one at a time in submission order. A closed binding rejects
// new work; the closed check comes first so a select with queue capacity
// free cannot accept a task the stopped worker would never run.
func (b *TransportBinding) Enqueue(task Task) apperrors.Error {
	select {
	case <-b.done:
		return ErrUnknownSession.Msg("transport closed")
	default:
	}
	select {
	case <-b.done:
		return ErrUnknownSession.Msg("transport closed")
	case b.tasks <- task:
		return nil
	}
}

// run drains the task queue until the binding closes. A task already running
// when the binding closes completes; its output is discarded by the sink.
func (b *TransportBinding) run(ctx context.Context) {
	for {
		select {
		case <-b.done:
			return
		case task := <-b.tasks:
			b.invoke(ctx, task)
		}
	}
}

// invoke runs one task, containing panics so a failing task cannot take
// the worker goroutine, and with it the process, down.
func (b *TransportBinding) invoke(ctx context.Context, task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Ctx(ctx).Error().
				Str("panic", fmt.Sprintf("%v", rec)).
				Str("stack_trace", string(debug.Stack())).
				Msg("task panicked")
		}
	}()
	task(ctx)
}

// Registry is the set of live bindings plus per-session ephemeral state.
type Registry struct {
	mu        sync.Mutex
	bindings  map[string]*TransportBinding
	delegated map[string]string

	closeHooks []func(sessionID string)
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		bindings:  make(map[string]*TransportBinding),
		delegated: make(map[string]string),
	}
}

// OnClose registers a hook invoked with the session id after the session's
// last binding is removed. Hooks must be registered before bindings open.
func (r *Registry) OnClose(hook func(sessionID string)) {
	r.closeHooks = append(r.closeHooks, hook)
}

// Bind opens a binding for the session and starts its worker. An empty
// session id mints a fresh one. The correlation id is always freshly
// assigned; a reconnecting session gets a new binding but keeps its
// durable identity.
func (r *Registry) Bind(sessionID string, sink EventSink) *TransportBinding {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	b := &TransportBinding{
		correlationID: uuid.New().String(),
		sessionID:     sessionID,
		sink:          sink,
		tasks:         make(chan Task, queueDepth),
		done:          make(chan struct{}),
	}

	r.mu.Lock()
	r.bindings[b.correlationID] = b
	r.mu.Unlock()

	logger := log.With().
		Str("session_id", sessionID).
		Str("correlation_id", b.correlationID).
		Logger()
	go b.run(logger.WithContext(context.Background()))
	return b
}

// Lookup resolves a binding by correlation id.
func (r *Registry) Lookup(correlationID string) (*TransportBinding, apperrors.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bindings[correlationID]
	if !ok {
		return nil, ErrUnknownSession
	}
	return b, nil
}

// Unbind removes the binding and stops its worker. When this was the
// session's last binding, the session's delegated credential cache is
// dropped and close hooks fire. In-flight work is not interrupted.
func (r *Registry) Unbind(correlationID string) {
	r.mu.Lock()
	b, ok := r.bindings[correlationID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.bindings, correlationID)

	lastForSession := true
	for _, other := range r.bindings {
		if other.sessionID == b.sessionID {
			lastForSession = false
			break
		}
	}
	if lastForSession {
		delete(r.delegated, b.sessionID)
	}
	r.mu.Unlock()

	b.closeOnce.Do(func() { close(b.done) })

	if lastForSession {
		for _, hook := range r.closeHooks {
			hook(b.sessionID)
		}
	}
}

// SetDelegatedBearer caches a caller-supplied bearer for the session.
// Repeated posts overwrite; last write wins.
func (r *Registry) SetDelegatedBearer(sessionID, bearer string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delegated[sessionID] = bearer
}

// DelegatedBearer returns the cached bearer for the session, if any.
func (r *Registry) DelegatedBearer(sessionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bearer, ok := r.delegated[sessionID]
	return bearer, ok
}
