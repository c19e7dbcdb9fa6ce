package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/latticehq/lattice/internal/common/httpx"
)

// keepaliveInterval is how often a comment frame is written to hold idle
// streams open through proxies.
const keepaliveInterval = 15 * time.Second

var errStreamClosed = errors.New("event stream closed")

// sseSink serializes writes to one event stream. Dispatch workers and the
// keepalive ticker write concurrently; the lock keeps frames intact. The
// ResponseWriter behind the sink is only valid while the stream handler is
// on the stack, so the handler closes the sink before it returns and a
// worker finishing a call afterward gets errStreamClosed instead of a
// write into a torn-down writer.
type sseSink struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	closed  bool
}

func newSSESink(w io.Writer, flusher http.Flusher) *sseSink {
	return &sseSink{w: w, flusher: flusher}
}

// Send writes one named event frame and flushes it.
func (s *sseSink) Send(event string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStreamClosed
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// comment writes a keepalive comment frame.
func (s *sseSink) comment() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, err := io.WriteString(s.w, ": keepalive\n\n"); err != nil {
		return
	}
	s.flusher.Flush()
}

// close marks the sink unusable. Pending writers blocked on the lock see
// the flag once they acquire it.
func (s *sseSink) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// handleEventStream opens the long-lived event stream. The first frame is
// an endpoint event telling the client where to post messages. The stream
// stays open until the client disconnects; the binding is then removed.
func (s *GatewayServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.ErrApplicationError("streaming unsupported").Send(w)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := newSSESink(w, flusher)
	defer sink.close()
	// A reconnecting client supplies its session id to keep durable state.
	binding := s.registry.Bind(r.URL.Query().Get("session"), sink)
	defer s.registry.Unbind(binding.CorrelationID())

	log.Ctx(r.Context()).Info().
		Str("session_id", binding.SessionID()).
		Str("correlation_id", binding.CorrelationID()).
		Msg("event stream opened")

	endpoint := "/messages?session=" + binding.CorrelationID()
	if err := sink.Send("endpoint", []byte(endpoint)); err != nil {
		return
	}

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			log.Ctx(r.Context()).Info().
				Str("correlation_id", binding.CorrelationID()).
				Msg("event stream closed")
			return
		case <-ticker.C:
			sink.comment()
		}
	}
}
