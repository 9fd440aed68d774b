package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	c, err := New(DefaultConfig("TestApp/1.0.0 (test@example.com)"))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

func defaultCall() CallConfig {
	return CallConfig{Timeout: time.Second}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid config",
			config: DefaultConfig("TestApp/1.0.0"),
		},
		{
			name: "custom transport",
			config: Config{
				DefaultUserAgent: "TestApp/1.0.0",
				Transport:        http.DefaultTransport,
			},
		},
		{
			name:        "empty user agent",
			config:      Config{},
			expectError: true,
			errorMsg:    "user-agent is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}
			if client == nil {
				t.Error("Client is nil")
			}
		})
	}
}

func TestFetch_Success(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		key         string
		want        string
	}{
		{"json", "application/json; charset=utf-8", `{"email":"x"}`, "email", "x"},
		{"xml", "application/xml", `<root><id>11133</id></root>`, "id", "11133"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := newTestClient(t)
			for _, policy := range []Policy{PolicyReplace, PolicyFailFast} {
				outcome, err := c.Fetch(context.Background(), server.URL, policy, defaultCall())
				if err != nil {
					t.Fatalf("Fetch(%s) failed: %v", policy, err)
				}

				tree, ok := outcome.Value()
				if !ok {
					t.Fatalf("Fetch(%s) returned absent outcome", policy)
				}
				obj, ok := tree.(map[string]any)
				if !ok {
					t.Fatalf("tree is %T, want object", tree)
				}
				if obj[tt.key] != tt.want {
					t.Errorf("tree[%q] = %v, want %q", tt.key, obj[tt.key], tt.want)
				}
			}
		})
	}
}

func TestFetch_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		call    CallConfig
		class   ErrorClass
	}{
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":"missing"}`, http.StatusNotFound)
			},
			class: ErrorClassClient,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			class: ErrorClassServer,
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
			},
			class: ErrorClassEmptyBody,
		},
		{
			name: "no content",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			},
			class: ErrorClassEmptyBody,
		},
		{
			name: "unparseable json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`@#$$%%{"a":1}`))
			},
			class: ErrorClassDecode,
		},
		{
			name: "unparseable xml",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/xml")
				w.Write([]byte(`<a><b></a>`))
			},
			class: ErrorClassDecode,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(2 * time.Second):
				case <-r.Context().Done():
				}
				w.Write([]byte(`{"late":true}`))
			},
			call:  CallConfig{Timeout: 50 * time.Millisecond},
			class: ErrorClassTimeout,
		},
		{
			name: "body too large",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"data":"` + strings.Repeat("x", 128) + `"}`))
			},
			call:  CallConfig{Timeout: time.Second, MaxBodyBytes: 64},
			class: ErrorClassTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			call := tt.call
			if call.Timeout == 0 {
				call = defaultCall()
			}

			c := newTestClient(t)

			outcome, err := c.Fetch(context.Background(), server.URL, PolicyReplace, call)
			if err != nil {
				t.Fatalf("Fetch(replace) returned error: %v", err)
			}
			if !outcome.IsAbsent() {
				t.Error("Fetch(replace) should return absent outcome")
			}

			_, err = c.Fetch(context.Background(), server.URL, PolicyFailFast, call)
			if !errors.Is(err, ErrAggregationFailed) {
				t.Fatalf("Fetch(fail_any) error = %v, want ErrAggregationFailed", err)
			}
			var endpointErr *EndpointError
			if !errors.As(err, &endpointErr) {
				t.Fatalf("Fetch(fail_any) error %v does not carry an EndpointError", err)
			}
			if endpointErr.ErrorClass != tt.class {
				t.Errorf("ErrorClass = %q, want %q", endpointErr.ErrorClass, tt.class)
			}
		})
	}
}

func TestFetch_InvalidEndpoint(t *testing.T) {
	c := newTestClient(t)

	outcome, err := c.Fetch(context.Background(), "://not a url", PolicyReplace, defaultCall())
	if err != nil || !outcome.IsAbsent() {
		t.Fatalf("Fetch(replace) = (%v, %v), want absent outcome", outcome, err)
	}

	_, err = c.Fetch(context.Background(), "://not a url", PolicyFailFast, defaultCall())
	var endpointErr *EndpointError
	if !errors.As(err, &endpointErr) || endpointErr.ErrorClass != ErrorClassInvalidEndpoint {
		t.Errorf("Fetch(fail_any) error = %v, want invalid endpoint", err)
	}
}

func TestFetch_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := newTestClient(t)

	_, err := c.Fetch(context.Background(), url, PolicyFailFast, defaultCall())
	var endpointErr *EndpointError
	if !errors.As(err, &endpointErr) || endpointErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("Fetch() error = %v, want network failure", err)
	}
}

func TestFetch_Headers(t *testing.T) {
	var userAgent, accept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		accept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(t)

	if _, err := c.Fetch(context.Background(), server.URL, PolicyFailFast, defaultCall()); err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if userAgent != "TestApp/1.0.0 (test@example.com)" {
		t.Errorf("User-Agent = %q, want default user agent", userAgent)
	}
	if !strings.HasPrefix(accept, "application/json") {
		t.Errorf("Accept = %q, want JSON first", accept)
	}

	call := defaultCall()
	call.UserAgent = "Override/2.0"
	if _, err := c.Fetch(context.Background(), server.URL, PolicyFailFast, call); err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if userAgent != "Override/2.0" {
		t.Errorf("User-Agent = %q, want per-call user agent", userAgent)
	}
}

func TestFetch_CanceledIsNotCountedAsFailure(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	c := newTestClient(t)

	tests := []struct {
		name   string
		policy Policy
	}{
		{"fail_any", PolicyFailFast},
		{"replace", PolicyReplace},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(upstreamFailuresTotal.WithLabelValues(string(ErrorClassNetwork)))

			ctx, cancel := context.WithCancel(context.Background())
			go func() {
				<-started
				cancel()
			}()

			outcome, err := c.Fetch(ctx, server.URL, tt.policy, defaultCall())
			cancel()

			if tt.policy == PolicyFailFast {
				if !errors.Is(err, ErrAggregationFailed) {
					t.Errorf("Fetch() error = %v, want ErrAggregationFailed", err)
				}
			} else if err != nil || !outcome.IsAbsent() {
				t.Errorf("Fetch() = (%v, %v), want absent outcome", outcome, err)
			}

			after := testutil.ToFloat64(upstreamFailuresTotal.WithLabelValues(string(ErrorClassNetwork)))
			if after != before {
				t.Errorf("network failures grew by %v for a canceled fetch", after-before)
			}
		})
	}
}

func TestSetHTTPClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	transport := &countingTransport{next: http.DefaultTransport}
	c := newTestClient(t)
	c.SetHTTPClient(&http.Client{Transport: transport})

	outcome, err := c.Fetch(context.Background(), server.URL, PolicyFailFast, defaultCall())
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if outcome.IsAbsent() {
		t.Error("Expected present outcome")
	}
	if transport.calls != 1 {
		t.Errorf("custom transport calls = %d, want 1", transport.calls)
	}
}

type countingTransport struct {
	next  http.RoundTripper
	calls int
}

func (t *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.calls++
	return t.next.RoundTrip(req)
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		statusCode int
		expected   ErrorClass
	}{
		{200, ""},
		{201, ""},
		{204, ""},
		{304, ErrorClassServer},
		{403, ErrorClassClient},
		{404, ErrorClassClient},
		{500, ErrorClassServer},
		{503, ErrorClassServer},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.statusCode); got != tt.expected {
			t.Errorf("classifyStatus(%d) = %q, want %q", tt.statusCode, got, tt.expected)
		}
	}
}
