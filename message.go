package snailtrap

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/snailtrap/client-go/internal/api"
	"github.com/snailtrap/client-go/linkscan"
)

// MessageStub is one row of an inbox listing. Listings are cheap; use
// Inbox.GetMessage to fetch the full message for a stub.
type MessageStub struct {
	ID         string
	Subject    string
	ReceivedAt time.Time
}

// BodyPart is one body segment of a message. Parts keep the order in
// which they appeared in the delivered message.
type BodyPart struct {
	ContentType string
	Content     string
}

// Message represents a fully fetched message. It is a pure data
// struct; operations on messages live on Inbox
// (GetMessageRaw for the RFC 822 source, DeleteMessage to remove).
type Message struct {
	ID      string
	From    string
	To      []string
	Subject string
	// Headers contains message headers as string key-value pairs.
	Headers    map[string]string
	Parts      []BodyPart
	ReceivedAt time.Time
}

// HTML returns the content of the first text/html body part, or "".
func (m *Message) HTML() string {
	return m.partOfType("text/html")
}

// Text returns the content of the first text/plain body part, or "".
func (m *Message) Text() string {
	return m.partOfType("text/plain")
}

func (m *Message) partOfType(contentType string) string {
	for _, p := range m.Parts {
		ct := strings.ToLower(strings.TrimSpace(p.ContentType))
		if ct == contentType || strings.HasPrefix(ct, contentType+";") {
			return p.Content
		}
	}
	return ""
}

// Links extracts hyperlinks from the message body, ranked by the
// verification keywords. See the linkscan package for the ordering
// rules.
func (m *Message) Links(opts ...linkscan.Option) []linkscan.Link {
	return linkscan.Extract(m.scanParts(), opts...)
}

func (m *Message) scanParts() []linkscan.Part {
	parts := make([]linkscan.Part, 0, len(m.Parts))
	for _, p := range m.Parts {
		parts = append(parts, linkscan.Part{ContentType: p.ContentType, Content: p.Content})
	}
	return parts
}

func newMessageFromAPI(msg *api.Message) *Message {
	parts := make([]BodyPart, 0, len(msg.Parts))
	for _, p := range msg.Parts {
		parts = append(parts, BodyPart{ContentType: p.ContentType, Content: p.Content})
	}
	headers := make(map[string]string, len(msg.Headers))
	for k, v := range msg.Headers {
		headers[k] = v
	}
	return &Message{
		ID:         msg.ID,
		From:       msg.From,
		To:         append([]string(nil), msg.To...),
		Subject:    msg.Subject,
		Headers:    headers,
		Parts:      parts,
		ReceivedAt: msg.ReceivedAt,
	}
}

func newStubFromAPI(s api.MessageStub) MessageStub {
	return MessageStub{ID: s.ID, Subject: s.Subject, ReceivedAt: s.ReceivedAt}
}

// ParseMessage builds a Message from RFC 822 source. Each inline MIME
// part contributes one BodyPart in document order; attachments are
// skipped. The message ID comes from the Message-ID header when
// present.
func ParseMessage(raw []byte) (*Message, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	msg := &Message{Headers: make(map[string]string)}

	if id, err := mr.Header.MessageID(); err == nil {
		msg.ID = id
	}
	if subject, err := mr.Header.Subject(); err == nil {
		msg.Subject = subject
	}
	if date, err := mr.Header.Date(); err == nil {
		msg.ReceivedAt = date
	}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = from[0].Address
	}
	if to, err := mr.Header.AddressList("To"); err == nil {
		for _, addr := range to {
			msg.To = append(msg.To, addr.Address)
		}
	}

	fields := mr.Header.Fields()
	for fields.Next() {
		text, err := fields.Text()
		if err != nil {
			text = fields.Value()
		}
		msg.Headers[fields.Key()] = text
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse message part: %w", err)
		}
		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := header.ContentType()
		if err != nil {
			contentType = "text/plain"
		}
		body, err := io.ReadAll(part.Body)
		if err != nil {
			return nil, fmt.Errorf("read message part: %w", err)
		}
		msg.Parts = append(msg.Parts, BodyPart{ContentType: contentType, Content: string(body)})
	}

	return msg, nil
}
