// Package snailtrap provides a Go client SDK for Snailtrap, a
// disposable-inbox email service for QA and end-to-end test suites.
//
// The SDK's centerpiece is the bounded verification wait: a test
// triggers an email (sign-up confirmation, share notification,
// password reset), then asks the SDK to poll the inbox until the
// expected message arrives and to hand back the action link a browser
// should follow. Polling is classification-aware: transient provider
// hiccups are retried with backoff, fatal errors abort immediately,
// and a circuit breaker stops hammering a provider that is clearly
// down.
//
// Basic usage:
//
//	client, err := snailtrap.New("your-api-key")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Create a disposable inbox
//	inbox, err := client.CreateInbox(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Wait for the verification message and its action link
//	result, err := inbox.WaitForMessage(ctx, snailtrap.VerificationRequest{
//	    Subject: "Confirm your account",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	url, err := result.ActionLink()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Open:", url)
//
// The retry and circuit-breaker machinery lives in the retry
// subpackage and is shared with uiwait, which drives browser-side
// element waits with the same bounded-probe semantics.
package snailtrap
