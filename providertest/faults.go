package providertest

import (
	"net/http"
	"strings"
	"time"
)

type fault struct {
	method     string
	pathPrefix string
	status     int
}

type pendingDelivery struct {
	remaining int
	msg       *storedMessage
}

// FailNext schedules failures for upcoming requests. Each request whose
// method and path prefix match consumes one queued status and returns it
// instead of the normal response, in the order given. Unmatched requests
// are unaffected.
func (s *Server) FailNext(method, pathPrefix string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, status := range statuses {
		s.faults = append(s.faults, fault{
			method:     method,
			pathPrefix: pathPrefix,
			status:     status,
		})
	}
}

// SetLatency adds a fixed delay before every response. Zero disables it.
func (s *Server) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// DeliverAfterPolls schedules msg to appear in the inbox listing once
// the address has been listed n more times. n = 1 delivers on the next
// poll. The message becomes fetchable by ID at the same moment.
func (s *Server) DeliverAfterPolls(address string, n int, msg TestMessage) string {
	stored := buildStoredMessage(address, msg)

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.ensureInboxLocked(address)
	state.pending = append(state.pending, &pendingDelivery{remaining: n, msg: stored})
	return stored.id
}

// advancePendingLocked ticks every scheduled delivery for one listing
// call and promotes those that are due into the inbox. Callers hold s.mu.
func (s *Server) advancePendingLocked(state *inboxState) {
	var still []*pendingDelivery
	for _, p := range state.pending {
		p.remaining--
		if p.remaining <= 0 {
			state.messages = append(state.messages, p.msg)
			s.messages[p.msg.id] = p.msg
		} else {
			still = append(still, p)
		}
	}
	state.pending = still
}

func (s *Server) faultMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		latency := s.latency
		status := 0
		for i, f := range s.faults {
			if f.method == r.Method && strings.HasPrefix(r.URL.Path, f.pathPrefix) {
				status = f.status
				s.faults = append(s.faults[:i], s.faults[i+1:]...)
				break
			}
		}
		s.mu.Unlock()

		if latency > 0 {
			time.Sleep(latency)
		}
		if status != 0 {
			writeError(w, status, http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}
