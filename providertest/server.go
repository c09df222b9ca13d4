// Package providertest runs an in-process fake of the Snailtrap API for
// exercising the SDK without a live provider. All state lives in memory,
// and the server adds hooks for scripted failures and delayed deliveries
// so tests can drive the retry and polling paths deterministically.
package providertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const (
	// Domain is the mail domain the fake server hands out addresses under.
	Domain = "snailtrap.email"

	defaultMaxTTL     = 604800 // 7 days, in seconds
	defaultDefaultTTL = 3600   // 1 hour, in seconds
)

// Server is an in-process fake of the Snailtrap REST API. It implements
// every endpoint the SDK calls and enforces bearer authentication with
// the key passed to Start.
type Server struct {
	apiKey string
	srv    *httptest.Server

	mu       sync.Mutex
	inboxes  map[string]*inboxState
	messages map[string]*storedMessage
	faults   []fault
	latency  time.Duration
}

type inboxState struct {
	address   string
	expiresAt time.Time
	messages  []*storedMessage
	listCalls int
	pending   []*pendingDelivery
}

type storedMessage struct {
	id         string
	address    string
	from       string
	to         []string
	subject    string
	headers    map[string]string
	parts      []storedPart
	receivedAt time.Time
	raw        string
}

type storedPart struct {
	contentType string
	content     string
}

// Start launches the fake provider on a local listener. Callers must
// Close the server when done.
func Start(apiKey string) *Server {
	s := &Server{
		apiKey:   apiKey,
		inboxes:  make(map[string]*inboxState),
		messages: make(map[string]*storedMessage),
	}

	r := mux.NewRouter()
	r.HandleFunc("/check-key", s.handleCheckKey).Methods(http.MethodGet)
	r.HandleFunc("/server-info", s.handleServerInfo).Methods(http.MethodGet)
	r.HandleFunc("/inbox", s.handleCreateInbox).Methods(http.MethodPost)
	r.HandleFunc("/inbox", s.handleDeleteAllInboxes).Methods(http.MethodDelete)
	r.HandleFunc("/inbox/{address}", s.handleListMessages).Methods(http.MethodGet)
	r.HandleFunc("/inbox/{address}", s.handleDeleteInbox).Methods(http.MethodDelete)
	r.HandleFunc("/message/{id}", s.handleGetMessage).Methods(http.MethodGet)
	r.HandleFunc("/message/{id}", s.handleDeleteMessage).Methods(http.MethodDelete)
	r.HandleFunc("/message/{id}/raw", s.handleGetMessageRaw).Methods(http.MethodGet)
	r.Use(s.faultMiddleware, s.authMiddleware)

	s.srv = httptest.NewServer(r)
	return s
}

// URL returns the base URL of the running fake server.
func (s *Server) URL() string {
	return s.srv.URL
}

// Close shuts the server down and releases its listener.
func (s *Server) Close() {
	s.srv.Close()
}

// ListCalls reports how many times the listing endpoint has been hit
// for the given address. Poll-counting tests use it to cross-check
// attempt counts reported by the SDK.
func (s *Server) ListCalls(address string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.inboxes[address]; ok {
		return state.listCalls
	}
	return 0
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleCheckKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleServerInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"maxTtl":         defaultMaxTTL,
		"defaultTtl":     defaultDefaultTTL,
		"allowedDomains": []string{Domain},
	})
}

func (s *Server) handleCreateInbox(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
		TTL     int    `json:"ttl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.TTL == 0 {
		req.TTL = defaultDefaultTTL
	}
	if req.TTL > defaultMaxTTL {
		writeError(w, http.StatusBadRequest, "ttl exceeds server maximum")
		return
	}

	address := req.Address
	if address == "" {
		address = strings.Split(uuid.NewString(), "-")[0] + "@" + Domain
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.inboxes[address]; exists {
		writeError(w, http.StatusConflict, "inbox already exists")
		return
	}

	state := &inboxState{
		address:   address,
		expiresAt: time.Now().Add(time.Duration(req.TTL) * time.Second).UTC(),
	}
	s.inboxes[address] = state

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"address":   state.address,
		"expiresAt": state.expiresAt,
	})
}

func (s *Server) handleDeleteAllInboxes(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := len(s.inboxes)
	s.inboxes = make(map[string]*inboxState)
	s.messages = make(map[string]*storedMessage)

	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.inboxes[address]
	if !ok {
		writeError(w, http.StatusNotFound, "inbox not found")
		return
	}

	state.listCalls++
	s.advancePendingLocked(state)

	stubs := make([]map[string]interface{}, 0, len(state.messages))
	for _, msg := range state.messages {
		stubs = append(stubs, map[string]interface{}{
			"id":         msg.id,
			"subject":    msg.subject,
			"receivedAt": msg.receivedAt,
		})
	}
	writeJSON(w, http.StatusOK, stubs)
}

func (s *Server) handleDeleteInbox(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.inboxes[address]
	if !ok {
		writeError(w, http.StatusNotFound, "inbox not found")
		return
	}
	for _, msg := range state.messages {
		delete(s.messages, msg.id)
	}
	delete(s.inboxes, address)

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}

	parts := make([]map[string]string, 0, len(msg.parts))
	for _, p := range msg.parts {
		parts = append(parts, map[string]string{
			"contentType": p.contentType,
			"content":     p.content,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":         msg.id,
		"from":       msg.from,
		"to":         msg.to,
		"subject":    msg.subject,
		"headers":    msg.headers,
		"parts":      parts,
		"receivedAt": msg.receivedAt,
	})
}

func (s *Server) handleGetMessageRaw(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id":  msg.id,
		"raw": msg.raw,
	})
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	if state, ok := s.inboxes[msg.address]; ok {
		for i, m := range state.messages {
			if m.id == id {
				state.messages = append(state.messages[:i], state.messages[i+1:]...)
				break
			}
		}
	}
	delete(s.messages, id)

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error":      msg,
		"request_id": uuid.NewString(),
	})
}
