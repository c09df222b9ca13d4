package snailtrap

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/snailtrap/client-go/internal/api"
	"github.com/snailtrap/client-go/linkscan"
	"github.com/snailtrap/client-go/retry"
)

// TTL constants for inbox creation.
const (
	MinTTL = 60 * time.Second     // Minimum TTL: 1 minute
	MaxTTL = 604800 * time.Second // Maximum TTL: 7 days
)

// ServerInfo contains server configuration.
type ServerInfo struct {
	AllowedDomains []string
	MaxTTL         time.Duration
	DefaultTTL     time.Duration
}

// Client is the main Snailtrap client for managing inboxes and running
// verification waits. It is safe for concurrent use.
type Client struct {
	config     *clientConfig
	apiClient  *api.Client
	serverInfo *api.ServerInfo
	log        *slog.Logger

	inboxes map[string]*Inbox // keyed by email address
	mu      sync.RWMutex
	closed  bool

	// Subscription manager for Watch notifications; owns the poll loops.
	subs *subscriptionManager

	watchCtx    context.Context
	watchCancel context.CancelFunc
}

// buildAPIClient creates and configures an API client from the given config.
func buildAPIClient(apiKey string, cfg *clientConfig) (*api.Client, error) {
	opts := []api.Option{api.WithBaseURL(cfg.baseURL)}
	if cfg.timeout > 0 {
		opts = append(opts, api.WithTimeout(cfg.timeout))
	}
	if cfg.httpClient != nil {
		opts = append(opts, api.WithHTTPClient(cfg.httpClient))
	}
	if cfg.userAgent != "" {
		opts = append(opts, api.WithUserAgent(cfg.userAgent))
	}
	if cfg.rateLimit > 0 {
		opts = append(opts, api.WithRateLimit(cfg.rateLimit, cfg.rateBurst))
	}
	return api.New(apiKey, opts...)
}

// New creates a client, validates the API key against the server, and
// fetches the server limits used for inbox TTL validation.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	cfg := &clientConfig{
		baseURL:                  defaultBaseURL,
		timeout:                  api.DefaultTimeout,
		retryPolicy:              retry.DefaultPolicy(),
		breakerThreshold:         retry.DefaultBreakerThreshold,
		breakerCooldown:          retry.DefaultBreakerCooldown,
		keywords:                 linkscan.DefaultKeywords(),
		pollingInitialInterval:   pollingInitialInterval,
		pollingMaxBackoff:        pollingMaxBackoff,
		pollingBackoffMultiplier: pollingBackoffMultiplier,
		pollingJitterFactor:      pollingJitterFactor,
	}

	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	apiClient, err := buildAPIClient(apiKey, cfg)
	if err != nil {
		return nil, err //coverage:ignore
	}

	// Validate API key
	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	if err := apiClient.CheckKey(ctx); err != nil {
		return nil, err
	}

	// Fetch server info
	serverInfo, err := apiClient.GetServerInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch server info: %w", err)
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())

	c := &Client{
		config:      cfg,
		apiClient:   apiClient,
		serverInfo:  serverInfo,
		log:         cfg.logger,
		inboxes:     make(map[string]*Inbox),
		watchCtx:    watchCtx,
		watchCancel: watchCancel,
	}
	c.subs = newSubscriptionManager(c, watchCtx)

	return c, nil
}

// checkClosed returns ErrClientClosed if the client has been closed.
func (c *Client) checkClosed() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	return nil
}

// registerInbox adds an inbox to the client's tracking map.
func (c *Client) registerInbox(inbox *Inbox) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	c.inboxes[inbox.address] = inbox
	return nil
}

// CreateInbox creates a new disposable email inbox.
func (c *Client) CreateInbox(ctx context.Context, opts ...InboxOption) (*Inbox, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	cfg := &inboxConfig{
		ttl: time.Hour, // Default 1 hour
	}
	for _, opt := range opts {
		opt(cfg)
	}

	// Validate TTL against limits
	if cfg.ttl > 0 {
		if cfg.ttl < MinTTL {
			return nil, fmt.Errorf("TTL %v is below minimum %v", cfg.ttl, MinTTL)
		}
		serverMaxTTL := time.Duration(c.serverInfo.MaxTTL) * time.Second
		if cfg.ttl > serverMaxTTL {
			return nil, fmt.Errorf("TTL %v exceeds server maximum %v", cfg.ttl, serverMaxTTL)
		}
	}

	req := api.CreateInboxRequest{
		Address: cfg.address,
		TTL:     int(cfg.ttl / time.Second),
	}

	resp, err := c.apiClient.CreateInbox(ctx, req)
	if err != nil {
		return nil, err
	}

	inbox := &Inbox{
		address:   resp.Address,
		expiresAt: resp.ExpiresAt,
		client:    c,
	}

	if err := c.registerInbox(inbox); err != nil {
		return nil, err //coverage:ignore
	}

	return inbox, nil
}

// ImportInbox imports a previously exported inbox.
func (c *Client) ImportInbox(ctx context.Context, data *ExportedInbox) (*Inbox, error) {
	if data == nil {
		return nil, fmt.Errorf("exported inbox data cannot be nil")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}

	// Check for duplicate
	if _, exists := c.inboxes[data.Address]; exists {
		c.mu.Unlock()
		return nil, ErrInboxAlreadyExists
	}
	c.mu.Unlock()

	inbox, err := newInboxFromExport(data, c)
	if err != nil {
		return nil, err
	}

	// Verify inbox still exists on server
	if _, err := c.apiClient.ListMessages(ctx, inbox.address); err != nil {
		return nil, fmt.Errorf("verify inbox: %w", err)
	}

	if err := c.registerInbox(inbox); err != nil {
		return nil, err //coverage:ignore
	}

	return inbox, nil
}

// DeleteInbox deletes an inbox by email address.
func (c *Client) DeleteInbox(ctx context.Context, address string) error {
	c.mu.Lock()
	_, exists := c.inboxes[address]
	if exists {
		delete(c.inboxes, address)
	}
	c.mu.Unlock()

	if exists {
		c.subs.drop(address)
	}

	return c.apiClient.DeleteInbox(ctx, address)
}

// DeleteAllInboxes deletes all inboxes belonging to the API key and
// returns the number of inboxes the server removed.
func (c *Client) DeleteAllInboxes(ctx context.Context) (int, error) {
	c.mu.Lock()
	addresses := make([]string, 0, len(c.inboxes))
	for address := range c.inboxes {
		addresses = append(addresses, address)
		delete(c.inboxes, address)
	}
	c.mu.Unlock()

	for _, address := range addresses {
		c.subs.drop(address)
	}

	return c.apiClient.DeleteAllInboxes(ctx)
}

// GetInbox returns an inbox by email address.
func (c *Client) GetInbox(address string) (*Inbox, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inbox, exists := c.inboxes[address]
	return inbox, exists
}

// Inboxes returns all inboxes managed by this client.
func (c *Client) Inboxes() []*Inbox {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*Inbox, 0, len(c.inboxes))
	for _, inbox := range c.inboxes {
		result = append(result, inbox)
	}
	return result
}

// ServerInfo returns the server configuration.
func (c *Client) ServerInfo() *ServerInfo {
	return &ServerInfo{
		AllowedDomains: c.serverInfo.AllowedDomains,
		MaxTTL:         time.Duration(c.serverInfo.MaxTTL) * time.Second,
		DefaultTTL:     time.Duration(c.serverInfo.DefaultTTL) * time.Second,
	}
}

// CheckKey validates the API key.
// Returns nil if the key is valid, otherwise returns an error.
func (c *Client) CheckKey(ctx context.Context) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	return c.apiClient.CheckKey(ctx)
}

// ExportInboxToFile exports an inbox to a JSON file with secure permissions (0600).
func (c *Client) ExportInboxToFile(inbox *Inbox, filePath string) error {
	if inbox == nil {
		return fmt.Errorf("inbox is nil")
	}

	data := inbox.Export()

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal inbox data: %w", err) //coverage:ignore
	}

	if err := os.WriteFile(filePath, jsonData, 0600); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}

// ImportInboxFromFile imports an inbox from a JSON file.
// Returns the imported inbox or an error if the file cannot be read or parsed.
func (c *Client) ImportInboxFromFile(ctx context.Context, filePath string) (*Inbox, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	jsonData, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var data ExportedInbox
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("parse inbox data: %w", err)
	}

	return c.ImportInbox(ctx, &data)
}

// InboxEvent represents a message arriving in a specific inbox.
type InboxEvent struct {
	Inbox   *Inbox
	Message *Message
}

// WatchInboxes returns a channel that receives events from multiple inboxes.
// The channel is not closed when the context is cancelled; use a select
// on ctx.Done() to detect cancellation.
//
// Example:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
//	defer cancel()
//
//	ch := client.WatchInboxes(ctx, inbox1, inbox2)
//	for {
//	    select {
//	    case <-ctx.Done():
//	        return
//	    case event := <-ch:
//	        fmt.Printf("Message in %s: %s\n", event.Inbox.Address(), event.Message.Subject)
//	    }
//	}
func (c *Client) WatchInboxes(ctx context.Context, inboxes ...*Inbox) <-chan *InboxEvent {
	ch := make(chan *InboxEvent, 16)

	if len(inboxes) == 0 {
		close(ch)
		return ch
	}

	// Track unsubscribe functions
	unsubscribes := make([]func(), 0, len(inboxes))

	for _, inbox := range inboxes {
		unsub := c.subs.subscribe(inbox.address, func(msg *Message) {
			// Spawn goroutine to guarantee delivery without blocking the poll loop
			go func(m *Message) { ch <- &InboxEvent{Inbox: inbox, Message: m} }(msg)
		})
		unsubscribes = append(unsubscribes, unsub)
	}

	// Cleanup goroutine: unsubscribe when context is cancelled.
	// We intentionally do not close(ch) to avoid a race where an
	// in-flight callback tries to send after close.
	go func() {
		<-ctx.Done()
		for _, unsub := range unsubscribes {
			unsub()
		}
	}()

	return ch
}

// WatchInboxesFunc calls fn for each event from multiple inboxes until context is cancelled.
// This is a convenience wrapper around WatchInboxes for simpler use cases.
func (c *Client) WatchInboxesFunc(ctx context.Context, fn func(*InboxEvent), inboxes ...*Inbox) {
	events := c.WatchInboxes(ctx, inboxes...)
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			if event != nil {
				fn(event)
			}
		}
	}
}

// Close releases client resources: all Watch poll loops stop and all
// subscriptions are dropped. Close is safe to call multiple times.
// Operations on a closed client return ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.inboxes = make(map[string]*Inbox)
	c.mu.Unlock()

	c.watchCancel()
	c.subs.clear()

	return nil
}
