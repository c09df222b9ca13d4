package snailtrap

import (
	"context"
	"math/rand"
	"time"
)

// Polling cadence for Watch subscriptions. The interval starts low for
// fast pickup, backs off while the inbox is quiet, and resets when a
// new message arrives.
const (
	pollingInitialInterval   = 2 * time.Second
	pollingMaxBackoff        = 30 * time.Second
	pollingBackoffMultiplier = 1.5
	pollingJitterFactor      = 0.3
)

// Watch returns a channel that receives messages as they arrive.
// Messages already in the inbox when the watch starts are not
// delivered. The channel is not closed when the context is cancelled;
// use a select on ctx.Done() to detect cancellation.
//
// Example:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
//	defer cancel()
//
//	ch := inbox.Watch(ctx)
//	for {
//	    select {
//	    case <-ctx.Done():
//	        return
//	    case msg := <-ch:
//	        fmt.Printf("New message: %s\n", msg.Subject)
//	    }
//	}
func (i *Inbox) Watch(ctx context.Context) <-chan *Message {
	ch := make(chan *Message, 16)

	// Subscribe with callback that sends to channel
	unsubscribe := i.client.subs.subscribe(i.address, func(msg *Message) {
		select {
		case ch <- msg:
		default:
			// Buffer full, drop
		}
	})

	// Cleanup goroutine: unsubscribe when context is cancelled.
	// We intentionally do not close(ch) to avoid a race where an
	// in-flight callback tries to send after close.
	go func() {
		<-ctx.Done()
		unsubscribe()
	}()

	return ch
}

// WatchFunc calls fn for each message as they arrive until the context is cancelled.
// This is a convenience wrapper around Watch for simpler use cases.
//
// Example:
//
//	inbox.WatchFunc(ctx, func(msg *snailtrap.Message) {
//	    fmt.Printf("New message: %s\n", msg.Subject)
//	})
func (i *Inbox) WatchFunc(ctx context.Context, fn func(*Message)) {
	msgs := i.Watch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-msgs:
			if msg != nil {
				fn(msg)
			}
		}
	}
}

// pollInbox is the background loop behind Watch subscriptions for one
// address. It lists the inbox, fetches messages it has not seen, and
// hands them to the subscription manager. The loop runs until ctx is
// cancelled, which happens when the last watcher unsubscribes or the
// client closes.
func (c *Client) pollInbox(ctx context.Context, address string) {
	interval := c.config.pollingInitialInterval
	seen := make(map[string]struct{})
	primed := false

	for {
		if ctx.Err() != nil {
			return
		}

		stubs, err := c.apiClient.ListMessages(ctx, address)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("watch poll failed", "address", address, "error", err)
			interval = c.nextPollInterval(interval)
		case !primed:
			// The first listing establishes the baseline; messages
			// already present do not count as arrivals.
			for _, stub := range stubs {
				seen[stub.ID] = struct{}{}
			}
			primed = true
		default:
			fresh := false
			for _, stub := range stubs {
				if _, ok := seen[stub.ID]; ok {
					continue
				}
				msg, err := c.apiClient.GetMessage(ctx, stub.ID)
				if err != nil {
					// Leave the ID unseen; the next poll retries the fetch.
					c.log.Warn("watch fetch failed", "address", address, "id", stub.ID, "error", err)
					continue
				}
				seen[stub.ID] = struct{}{}
				c.subs.notify(address, newMessageFromAPI(msg))
				fresh = true
			}
			if fresh {
				interval = c.config.pollingInitialInterval // Reset backoff
			} else {
				interval = c.nextPollInterval(interval)
			}
		}

		// Jitter prevents synchronized polling across clients.
		jitter := time.Duration(rand.Float64() * c.config.pollingJitterFactor * float64(interval))
		timer := time.NewTimer(interval + jitter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (c *Client) nextPollInterval(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * c.config.pollingBackoffMultiplier)
	if next > c.config.pollingMaxBackoff {
		next = c.config.pollingMaxBackoff
	}
	return next
}
