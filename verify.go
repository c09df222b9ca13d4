package snailtrap

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/snailtrap/client-go/internal/api"
	"github.com/snailtrap/client-go/linkscan"
	"github.com/snailtrap/client-go/retry"
)

// verifyTick bounds individual sleeps inside a wait so context
// cancellation is observed promptly even with long poll intervals.
const verifyTick = 250 * time.Millisecond

// Outcome says how a verification wait ended.
type Outcome string

const (
	// OutcomeFound means a matching message arrived within the budget.
	OutcomeFound Outcome = "found"
	// OutcomeTimedOut means the budget elapsed without a match.
	OutcomeTimedOut Outcome = "timed_out"
	// OutcomeAborted means the wait stopped early: a fatal error, an
	// open circuit breaker, or a cancelled context.
	OutcomeAborted Outcome = "aborted"
)

// VerificationRequest describes the message a test is waiting for.
// Criteria left at their zero value are ignored; the ones set must all
// hold. A request with no criteria matches the first message to
// arrive.
type VerificationRequest struct {
	// Address is the inbox to watch. Required on client-level calls;
	// inbox-scoped calls fill it in.
	Address string

	// Subject matches the message subject exactly.
	Subject string

	// SubjectRegexp matches the message subject by pattern.
	SubjectRegexp *regexp.Regexp

	// MatchFunc is an arbitrary predicate over the listing stub.
	MatchFunc func(MessageStub) bool

	// Timeout bounds the whole wait. Default: 60 seconds.
	Timeout time.Duration

	// PollInterval is the pause between polls. Default: 2 seconds.
	PollInterval time.Duration

	// Keywords overrides the client's link-ranking keyword set for
	// this wait.
	Keywords []string
}

// matches checks if a listing stub satisfies the request criteria.
func (r *VerificationRequest) matches(stub MessageStub) bool {
	if r.Subject != "" && stub.Subject != r.Subject {
		return false
	}
	if r.SubjectRegexp != nil && !r.SubjectRegexp.MatchString(stub.Subject) {
		return false
	}
	if r.MatchFunc != nil && !r.MatchFunc(stub) {
		return false
	}
	return true
}

// VerificationResult is the outcome of one WaitForMessage call.
type VerificationResult struct {
	// Outcome says how the wait ended.
	Outcome Outcome

	// Message is the matching message. Set only for OutcomeFound.
	Message *Message

	// Link is the top-ranked action link from the message body. A
	// found message with a nil Link means link extraction failed.
	Link *linkscan.Link

	// AttemptsMade counts the poll cycles begun, including the one
	// that ended the wait.
	AttemptsMade int

	// Elapsed is the wall-clock duration of the wait.
	Elapsed time.Duration

	// Err is the terminal error. Set only for OutcomeAborted.
	Err error
}

// ActionLink returns the URL a test should drive the browser to.
// It fails when the wait produced no message, or when the message
// contained no keyword-ranked link (ErrExtractionFailed). The second
// case is deliberately distinct from a timeout: the message arrived,
// its content just had nothing to click.
func (r *VerificationResult) ActionLink() (string, error) {
	if r.Outcome != OutcomeFound || r.Message == nil {
		return "", fmt.Errorf("no message found (outcome %s)", r.Outcome)
	}
	if r.Link == nil {
		return "", ErrExtractionFailed
	}
	return r.Link.URL, nil
}

// WaitForMessage polls an inbox until a message matching the request
// arrives, the time budget runs out, or a terminal condition stops the
// wait early.
//
// Each poll cycle lists the inbox through the retry layer: transient
// failures are retried with backoff, a fatal error (invalid API key, a
// 4xx response, a cancelled context) aborts the wait at once, and an
// open circuit breaker aborts it without issuing the call. The breaker
// is created per wait, so one stormy verification cannot poison
// another.
//
// Runtime outcomes are data, not errors: the returned error is
// reserved for an unusable request or a closed client. Inspect
// VerificationResult.Outcome (and Err, for aborts) to learn how the
// wait ended.
func (c *Client) WaitForMessage(ctx context.Context, req VerificationRequest) (*VerificationResult, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	if req.Address == "" {
		return nil, fmt.Errorf("verification request: address is required")
	}
	if req.Timeout <= 0 {
		req.Timeout = defaultWaitTimeout
	}
	if req.PollInterval <= 0 {
		req.PollInterval = defaultPollInterval
	}
	keywords := req.Keywords
	if len(keywords) == 0 {
		keywords = c.config.keywords
	}

	breaker := retry.NewBreaker(retry.BreakerConfig{
		Name:      "verify " + req.Address,
		Threshold: c.config.breakerThreshold,
		Cooldown:  c.config.breakerCooldown,
		OnStateChange: func(name string, from, to retry.State) {
			c.log.Warn("circuit breaker state change", "name", name, "from", from, "to", to)
		},
	})

	start := time.Now()
	deadline := start.Add(req.Timeout)
	result := &VerificationResult{}

	finish := func(outcome Outcome, err error) (*VerificationResult, error) {
		result.Outcome = outcome
		result.Err = err
		result.Elapsed = time.Since(start)
		return result, nil
	}

	for {
		result.AttemptsMade++

		stubs, err := retry.Do(ctx, c.config.retryPolicy, breaker, RetryClassifier,
			func(ctx context.Context) ([]api.MessageStub, error) {
				return c.apiClient.ListMessages(ctx, req.Address)
			})
		switch {
		case err == nil:
			for _, s := range stubs {
				stub := newStubFromAPI(s)
				if !req.matches(stub) {
					continue
				}

				msg, err := retry.Do(ctx, c.config.retryPolicy, breaker, RetryClassifier,
					func(ctx context.Context) (*api.Message, error) {
						return c.apiClient.GetMessage(ctx, stub.ID)
					})
				if err != nil {
					if terminalWaitError(err) {
						return finish(OutcomeAborted, err)
					}
					// The listing may still hold another match; the
					// next poll retries this one anyway.
					continue
				}

				result.Message = newMessageFromAPI(msg)
				result.Link = firstLink(result.Message, keywords)
				return finish(OutcomeFound, nil)
			}
		case terminalWaitError(err):
			return finish(OutcomeAborted, err)
		default:
			// Transient failure that exhausted its retries: keep
			// polling while budget remains.
			c.log.Warn("inbox poll failed", "address", req.Address, "error", err)
		}

		if !sleepUntilNextPoll(ctx, deadline, req.PollInterval) {
			if ctx.Err() != nil {
				return finish(OutcomeAborted, ctx.Err())
			}
			return finish(OutcomeTimedOut, nil)
		}
	}
}

// WaitForEach runs one WaitForMessage per request concurrently and
// returns the results in request order. Each wait is bounded by its
// own request's Timeout. The returned error is reserved for unusable
// requests; per-wait outcomes are carried in the results.
func (c *Client) WaitForEach(ctx context.Context, reqs ...VerificationRequest) ([]*VerificationResult, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	results := make([]*VerificationResult, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	for idx, req := range reqs {
		g.Go(func() error {
			res, err := c.WaitForMessage(ctx, req)
			if err != nil {
				return err
			}
			results[idx] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// terminalWaitError reports whether a poll error should end the wait
// immediately instead of being absorbed into the next cycle.
func terminalWaitError(err error) bool {
	return errors.Is(err, ErrBreakerOpen) || RetryClassifier(err) == retry.ClassFatal
}

// firstLink runs link extraction over the message body and returns the
// top-ranked link, or nil when the body has no keyword match.
func firstLink(msg *Message, keywords []string) *linkscan.Link {
	links := msg.Links(linkscan.WithKeywords(keywords...))
	if len(links) == 0 {
		return nil
	}
	link := links[0]
	return &link
}

// sleepUntilNextPoll pauses for the poll interval, never past the
// deadline, in short ticks so cancellation is noticed promptly. It
// reports false when the wait should stop: the deadline arrived or the
// context was cancelled.
func sleepUntilNextPoll(ctx context.Context, deadline time.Time, interval time.Duration) bool {
	wait := interval
	if remaining := time.Until(deadline); remaining < wait {
		wait = remaining
	}
	if wait <= 0 {
		return false
	}

	end := time.Now().Add(wait)
	for {
		tick := time.Until(end)
		if tick <= 0 {
			break
		}
		if tick > verifyTick {
			tick = verifyTick
		}
		timer := time.NewTimer(tick)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}

	return time.Now().Before(deadline)
}
