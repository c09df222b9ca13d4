package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/snailtrap/client-go/internal/apierrors"
)

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{
		BaseURL: "https://example.com",
		APIKey:  "",
	})
	if !errors.Is(err, apierrors.ErrMissingAPIKey) {
		t.Errorf("NewClient() error = %v, want ErrMissingAPIKey", err)
	}
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{
		BaseURL: "",
		APIKey:  "test-key",
	})
	if err == nil {
		t.Error("expected error for empty base URL")
	}
}

func TestNewClient_DefaultValues(t *testing.T) {
	client, err := NewClient(Config{
		BaseURL: "https://example.com",
		APIKey:  "test-key",
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if client.httpClient == nil {
		t.Error("httpClient is nil")
	}
	if client.httpClient.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", client.httpClient.Timeout, DefaultTimeout)
	}
	if client.limiter != nil {
		t.Error("limiter should be nil when no rate limit is configured")
	}
}

func TestNewClient_CustomValues(t *testing.T) {
	customHTTPClient := &http.Client{Timeout: 60 * time.Second}

	client, err := NewClient(Config{
		BaseURL:    "https://custom.example.com",
		APIKey:     "custom-key",
		HTTPClient: customHTTPClient,
		RateLimit:  10,
		RateBurst:  2,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if client.httpClient != customHTTPClient {
		t.Error("httpClient not set correctly")
	}
	if client.limiter == nil {
		t.Error("limiter should be set when a rate limit is configured")
	}
}

func TestNew_WithOptions(t *testing.T) {
	client, err := New("test-key",
		WithBaseURL("https://example.com"),
		WithTimeout(60*time.Second),
		WithUserAgent("custom-agent/1.0"),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if client.baseURL != "https://example.com" {
		t.Errorf("baseURL = %s, want https://example.com", client.baseURL)
	}
	if client.httpClient.Timeout != 60*time.Second {
		t.Errorf("timeout = %v, want 60s", client.httpClient.Timeout)
	}
	if client.userAgent != "custom-agent/1.0" {
		t.Errorf("userAgent = %s, want custom-agent/1.0", client.userAgent)
	}
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New("test-key") // No base URL option
	if err == nil {
		t.Error("expected error for missing base URL")
	}
}

func TestClient_Do_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Verify headers
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Authorization = %s, want Bearer test-key", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %s, want application/json", r.Header.Get("Content-Type"))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}))
	defer server.Close()

	client, _ := New("test-key", WithBaseURL(server.URL))

	var result struct{ OK bool }
	err := client.Do(context.Background(), "GET", "/test", nil, &result)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !result.OK {
		t.Error("result.OK = false, want true")
	}
}

func TestClient_Do_WithBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Name string }
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		if body.Name != "test" {
			t.Errorf("body.Name = %s, want test", body.Name)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"received": body.Name})
	}))
	defer server.Close()

	client, _ := New("test-key", WithBaseURL(server.URL))

	request := struct{ Name string }{Name: "test"}
	var result struct{ Received string }

	err := client.Do(context.Background(), "POST", "/test", request, &result)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if result.Received != "test" {
		t.Errorf("result.Received = %s, want test", result.Received)
	}
}

func TestClient_Do_NoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client, _ := New("test-key", WithBaseURL(server.URL))

	err := client.Do(context.Background(), "DELETE", "/test", nil, nil)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
}

func TestClient_Do_SingleAttempt(t *testing.T) {
	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "service unavailable"})
	}))
	defer server.Close()

	client, _ := New("test-key", WithBaseURL(server.URL))

	err := client.Do(context.Background(), "GET", "/test", nil, nil)
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("attempts = %d, want 1 (transport never retries)", got)
	}

	var apiErr *apierrors.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != 503 {
		t.Errorf("StatusCode = %d, want 503", apiErr.StatusCode)
	}
}

func TestClient_Do_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, _ := New("test-key", WithBaseURL(server.URL))

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	err := client.Do(ctx, "GET", "/test", nil, nil)
	if err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestClient_Do_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // Closed server refuses connections

	client, _ := New("test-key", WithBaseURL(server.URL))

	err := client.Do(context.Background(), "GET", "/test", nil, nil)
	var netErr *apierrors.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %T: %v", err, err)
	}
}

func TestClient_Do_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"truncated`))
	}))
	defer server.Close()

	client, _ := New("test-key", WithBaseURL(server.URL))

	var result struct{ OK bool }
	err := client.Do(context.Background(), "GET", "/test", nil, &result)
	var payloadErr *apierrors.PayloadError
	if !errors.As(err, &payloadErr) {
		t.Fatalf("expected PayloadError, got %T: %v", err, err)
	}
}

func TestClient_Do_ErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		sentinel   error
	}{
		{
			name:       "unauthorized",
			statusCode: 401,
			body:       `{"error": "invalid API key"}`,
			sentinel:   apierrors.ErrUnauthorized,
		},
		{
			name:       "rate limited",
			statusCode: 429,
			body:       `{"error": "rate limit exceeded"}`,
			sentinel:   apierrors.ErrRateLimited,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, _ := New("test-key", WithBaseURL(server.URL))

			err := client.Do(context.Background(), "GET", "/test", nil, nil)
			if err == nil {
				t.Fatal("expected error")
			}

			var apiErr *apierrors.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %T", err)
			}
			if apiErr.StatusCode != tt.statusCode {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.statusCode)
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false, want true", err, tt.sentinel)
			}
		})
	}
}

func TestClient_Do_ErrorResponseRequestID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "boom", "request_id": "req-789"}`))
	}))
	defer server.Close()

	client, _ := New("test-key", WithBaseURL(server.URL))

	err := client.Do(context.Background(), "GET", "/test", nil, nil)
	var apiErr *apierrors.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.RequestID != "req-789" {
		t.Errorf("RequestID = %q, want req-789", apiErr.RequestID)
	}
	if apiErr.Message != "boom" {
		t.Errorf("Message = %q, want boom", apiErr.Message)
	}
}

func TestClient_Do_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	// 20 rps with burst 1: the second request must wait roughly 50ms.
	client, _ := New("test-key", WithBaseURL(server.URL), WithRateLimit(20, 1))

	start := time.Now()
	for i := 0; i < 2; i++ {
		if err := client.Do(context.Background(), "GET", "/test", nil, nil); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
	}
	elapsed := time.Since(start)

	if elapsed < 40*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 40ms (limiter should pace requests)", elapsed)
	}
}

func TestClient_BaseURL(t *testing.T) {
	client, _ := NewClient(Config{
		BaseURL: "https://example.com",
		APIKey:  "test-key",
	})

	if client.BaseURL() != "https://example.com" {
		t.Errorf("BaseURL() = %s, want https://example.com", client.BaseURL())
	}
}

func TestClient_HTTPClient(t *testing.T) {
	customHTTPClient := &http.Client{Timeout: 60 * time.Second}

	client, _ := NewClient(Config{
		BaseURL:    "https://example.com",
		APIKey:     "test-key",
		HTTPClient: customHTTPClient,
	})

	if client.HTTPClient() != customHTTPClient {
		t.Error("HTTPClient() did not return the custom client")
	}
}

func TestClient_SetHTTPClient(t *testing.T) {
	client, _ := NewClient(Config{
		BaseURL: "https://example.com",
		APIKey:  "test-key",
	})

	newHTTPClient := &http.Client{Timeout: 120 * time.Second}
	client.SetHTTPClient(newHTTPClient)

	if client.HTTPClient() != newHTTPClient {
		t.Error("SetHTTPClient() did not update the client")
	}
}

func TestWithHTTPClient(t *testing.T) {
	customClient := &http.Client{Timeout: 99 * time.Second}

	client, err := New("test-key",
		WithBaseURL("https://example.com"),
		WithHTTPClient(customClient),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if client.httpClient != customClient {
		t.Error("WithHTTPClient did not set the custom client")
	}
}

// ExampleNewClient demonstrates creating an API client with struct-based configuration.
func ExampleNewClient() {
	// Create a client with explicit configuration.
	client, err := NewClient(Config{
		BaseURL: "https://api.snailtrap.dev",
		APIKey:  "your-api-key",
		Timeout: 30 * time.Second,
	})
	if err != nil {
		panic(err)
	}

	fmt.Printf("Client created for: %s\n", client.BaseURL())
	// Output: Client created for: https://api.snailtrap.dev
}

// ExampleNew demonstrates creating an API client with functional options.
func ExampleNew() {
	// Create a client using the functional options pattern.
	client, err := New("your-api-key",
		WithBaseURL("https://api.snailtrap.dev"),
		WithTimeout(60*time.Second),
	)
	if err != nil {
		panic(err)
	}

	fmt.Printf("Client created for: %s\n", client.BaseURL())
	// Output: Client created for: https://api.snailtrap.dev
}
