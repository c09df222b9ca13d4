package providertest

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-mbox"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

// TestMessage describes a message to deliver into a fake inbox. Empty
// fields get sensible defaults: From falls back to a no-reply sender,
// To to the inbox address, and ReceivedAt to the current time.
type TestMessage struct {
	From       string
	To         []string
	Subject    string
	Text       string
	HTML       string
	Headers    map[string]string
	ReceivedAt time.Time
}

// Deliver places msg in the inbox immediately, creating the inbox if it
// does not exist yet, and returns the assigned message ID.
func (s *Server) Deliver(address string, msg TestMessage) string {
	stored := buildStoredMessage(address, msg)

	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.ensureInboxLocked(address)
	state.messages = append(state.messages, stored)
	s.messages[stored.id] = stored
	return stored.id
}

// DeliverRaw parses an RFC 822 message and delivers it to the inbox.
func (s *Server) DeliverRaw(address, raw string) (string, error) {
	mr, err := mail.CreateReader(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parse raw message: %w", err)
	}

	stored := &storedMessage{
		id:      uuid.NewString(),
		address: address,
		raw:     raw,
		headers: make(map[string]string),
	}
	stored.subject, _ = mr.Header.Subject()
	if date, err := mr.Header.Date(); err == nil && !date.IsZero() {
		stored.receivedAt = date.UTC()
	} else {
		stored.receivedAt = time.Now().UTC()
	}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		stored.from = from[0].Address
	}
	if to, err := mr.Header.AddressList("To"); err == nil {
		for _, addr := range to {
			stored.to = append(stored.to, addr.Address)
		}
	}
	fields := mr.Header.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		stored.headers[fields.Key()] = value
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse message part: %w", err)
		}
		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ctype, _, err := inline.ContentType()
		if err != nil {
			ctype = "text/plain"
		}
		content, err := io.ReadAll(part.Body)
		if err != nil {
			return "", fmt.Errorf("read message part: %w", err)
		}
		stored.parts = append(stored.parts, storedPart{
			contentType: ctype,
			content:     string(content),
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.ensureInboxLocked(address)
	state.messages = append(state.messages, stored)
	s.messages[stored.id] = stored
	return stored.id, nil
}

// SeedMbox reads an mbox archive and delivers every message in it to
// the given address. It returns the number of messages delivered.
func (s *Server) SeedMbox(address string, r io.Reader) (int, error) {
	mr := mbox.NewReader(r)
	count := 0
	for {
		entry, err := mr.NextMessage()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("read mbox: %w", err)
		}
		raw, err := io.ReadAll(entry)
		if err != nil {
			return count, fmt.Errorf("read mbox message: %w", err)
		}
		if _, err := s.DeliverRaw(address, string(raw)); err != nil {
			return count, err
		}
		count++
	}
}

// ensureInboxLocked returns the inbox state for address, creating it if
// needed. Callers hold s.mu.
func (s *Server) ensureInboxLocked(address string) *inboxState {
	state, ok := s.inboxes[address]
	if !ok {
		state = &inboxState{
			address:   address,
			expiresAt: time.Now().Add(time.Hour).UTC(),
		}
		s.inboxes[address] = state
	}
	return state
}

func buildStoredMessage(address string, msg TestMessage) *storedMessage {
	stored := &storedMessage{
		id:         uuid.NewString(),
		address:    address,
		from:       msg.From,
		to:         msg.To,
		subject:    msg.Subject,
		headers:    msg.Headers,
		receivedAt: msg.ReceivedAt,
	}
	if stored.from == "" {
		stored.from = "no-reply@" + Domain
	}
	if len(stored.to) == 0 {
		stored.to = []string{address}
	}
	if stored.receivedAt.IsZero() {
		stored.receivedAt = time.Now().UTC()
	}
	if msg.Text != "" {
		stored.parts = append(stored.parts, storedPart{contentType: "text/plain", content: msg.Text})
	}
	if msg.HTML != "" {
		stored.parts = append(stored.parts, storedPart{contentType: "text/html", content: msg.HTML})
	}
	stored.raw = buildRaw(stored)
	return stored
}

// buildRaw synthesizes the RFC 822 source for a constructed message.
// Inputs are fully controlled, so encoding failures indicate a broken
// fixture and panic rather than propagate.
func buildRaw(msg *storedMessage) string {
	var buf bytes.Buffer

	var h mail.Header
	h.SetDate(msg.receivedAt)
	h.SetAddressList("From", []*mail.Address{{Address: msg.from}})
	to := make([]*mail.Address, 0, len(msg.to))
	for _, addr := range msg.to {
		to = append(to, &mail.Address{Address: addr})
	}
	h.SetAddressList("To", to)
	h.SetSubject(msg.subject)
	h.SetMessageID(msg.id + "@" + Domain)
	for k, v := range msg.headers {
		h.Set(k, v)
	}

	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		panic("providertest: create message writer: " + err.Error())
	}
	iw, err := mw.CreateInline()
	if err != nil {
		panic("providertest: create inline writer: " + err.Error())
	}
	for _, p := range msg.parts {
		var ph mail.InlineHeader
		ph.SetContentType(p.contentType, map[string]string{"charset": "utf-8"})
		pw, err := iw.CreatePart(ph)
		if err != nil {
			panic("providertest: create message part: " + err.Error())
		}
		if _, err := io.WriteString(pw, p.content); err != nil {
			panic("providertest: write message part: " + err.Error())
		}
		pw.Close()
	}
	iw.Close()
	mw.Close()
	return buf.String()
}
