package snailtrap

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
)

// subscription represents an active message subscription.
type subscription struct {
	id       string
	address  string
	callback func(*Message)
	active   atomic.Bool
}

// subscriptionManager fans arriving messages out to Watch subscribers
// with safe lifecycle management. The first subscriber for an address
// starts its poll loop and the last unsubscribe stops it. Callbacks
// are never invoked after unsubscription completes.
type subscriptionManager struct {
	client  *Client
	rootCtx context.Context

	mu      sync.RWMutex
	subs    map[string]map[string]*subscription // address -> subID -> subscription
	pollers map[string]context.CancelFunc       // address -> poll loop cancel
	nextID  atomic.Uint64
}

// newSubscriptionManager creates a new subscription manager. Poll
// loops it starts are children of rootCtx, so cancelling rootCtx stops
// them all.
func newSubscriptionManager(c *Client, rootCtx context.Context) *subscriptionManager {
	return &subscriptionManager{
		client:  c,
		rootCtx: rootCtx,
		subs:    make(map[string]map[string]*subscription),
		pollers: make(map[string]context.CancelFunc),
	}
}

// subscribe registers a callback for messages arriving at the given address.
// The callback will be invoked synchronously from the poll loop.
// Returns an unsubscribe function that must be called to clean up.
func (m *subscriptionManager) subscribe(address string, callback func(*Message)) func() {
	id := strconv.FormatUint(m.nextID.Add(1), 10)

	sub := &subscription{
		id:       id,
		address:  address,
		callback: callback,
	}
	sub.active.Store(true)

	m.mu.Lock()
	if m.subs[address] == nil {
		m.subs[address] = make(map[string]*subscription)
	}
	m.subs[address][id] = sub
	if _, running := m.pollers[address]; !running {
		ctx, cancel := context.WithCancel(m.rootCtx)
		m.pollers[address] = cancel
		go m.client.pollInbox(ctx, address)
	}
	m.mu.Unlock()

	return func() {
		m.unsubscribe(address, id)
	}
}

// unsubscribe removes a subscription. Safe to call multiple times.
func (m *subscriptionManager) unsubscribe(address, subID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	addrSubs, ok := m.subs[address]
	if !ok {
		return
	}
	sub, ok := addrSubs[subID]
	if !ok {
		return
	}

	sub.active.Store(false) // Mark inactive before removing
	delete(addrSubs, subID)
	if len(addrSubs) == 0 {
		delete(m.subs, address)
		if cancel, running := m.pollers[address]; running {
			cancel()
			delete(m.pollers, address)
		}
	}
}

// notify calls all registered callbacks for the given address.
// Callbacks are invoked synchronously after releasing the read lock.
// The active flag is checked before invoking to prevent calls after unsubscribe.
func (m *subscriptionManager) notify(address string, msg *Message) {
	m.mu.RLock()
	addrSubs := m.subs[address]
	if len(addrSubs) == 0 {
		m.mu.RUnlock()
		return
	}

	// Copy subscriptions to avoid holding lock during callbacks
	subs := make([]*subscription, 0, len(addrSubs))
	for _, sub := range addrSubs {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		if sub.active.Load() {
			sub.callback(msg)
		}
	}
}

// drop deactivates every subscription for an address and stops its
// poll loop. Called when the inbox is deleted.
func (m *subscriptionManager) drop(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sub := range m.subs[address] {
		sub.active.Store(false)
	}
	delete(m.subs, address)
	if cancel, running := m.pollers[address]; running {
		cancel()
		delete(m.pollers, address)
	}
}

// clear removes all subscriptions and stops all poll loops. Called during Client.Close().
func (m *subscriptionManager) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, addrSubs := range m.subs {
		for _, sub := range addrSubs {
			sub.active.Store(false)
		}
	}
	for _, cancel := range m.pollers {
		cancel()
	}
	m.subs = make(map[string]map[string]*subscription)
	m.pollers = make(map[string]context.CancelFunc)
}
