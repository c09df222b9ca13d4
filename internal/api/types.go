package api

import "time"

// ServerInfo represents the /server-info response.
type ServerInfo struct {
	MaxTTL         int      `json:"maxTtl"`
	DefaultTTL     int      `json:"defaultTtl"`
	AllowedDomains []string `json:"allowedDomains"`
}

// CreateInboxRequest represents the POST /inbox request.
type CreateInboxRequest struct {
	Address string `json:"address,omitempty"`
	TTL     int    `json:"ttl,omitempty"`
}

// CreateInboxResponse represents the POST /inbox response.
type CreateInboxResponse struct {
	Address   string    `json:"address"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// MessageStub is one row of the GET /inbox/{address} listing.
type MessageStub struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// BodyPart is one body part of a delivered message, in document order.
type BodyPart struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// Message represents the GET /message/{id} response.
type Message struct {
	ID         string            `json:"id"`
	From       string            `json:"from"`
	To         []string          `json:"to"`
	Subject    string            `json:"subject"`
	Headers    map[string]string `json:"headers,omitempty"`
	Parts      []BodyPart        `json:"parts"`
	ReceivedAt time.Time         `json:"receivedAt"`
}

// RawMessage represents the GET /message/{id}/raw response.
type RawMessage struct {
	ID  string `json:"id"`
	Raw string `json:"raw"`
}
