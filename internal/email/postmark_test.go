package email

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// rewriteTransport redirects all requests to a test server URL.
type rewriteTransport struct {
	base   http.RoundTripper
	target string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = t.target[len("http://"):]
	return t.base.RoundTrip(req)
}

func testClient(serverURL string) *Client {
	c := NewClient("test-token", "noreply@example.com", "https://shepherd.test")
	c.httpClient = &http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, target: serverURL}}
	return c
}

func TestSendAuthCode(t *testing.T) {
	var received postmarkEmail
	var gotToken string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	defer server.Close()

	if err := testClient(server.URL).SendAuthCode("alice@example.com", "483920"); err != nil {
		t.Fatalf("send auth code: %v", err)
	}

	if gotToken != "test-token" {
		t.Errorf("server token = %q, want %q", gotToken, "test-token")
	}
	if received.To != "alice@example.com" {
		t.Errorf("To = %q", received.To)
	}
	if !strings.Contains(received.TextBody, "483920") {
		t.Errorf("TextBody missing code: %q", received.TextBody)
	}
}

func TestSendAssignmentOmitsContent(t *testing.T) {
	var received postmarkEmail

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	defer server.Close()

	if err := testClient(server.URL).SendAssignment("bob@example.com", "Pastor Dave"); err != nil {
		t.Fatalf("send assignment: %v", err)
	}

	if !strings.Contains(received.TextBody, "Pastor Dave") {
		t.Errorf("TextBody missing assigner name: %q", received.TextBody)
	}
	// The notification must only say an assignment exists.
	if strings.Contains(received.Subject, "request text") {
		t.Errorf("unexpected subject: %q", received.Subject)
	}
}

func TestSendNotConfigured(t *testing.T) {
	client := NewClient("", "noreply@example.com", "https://shepherd.test")
	if err := client.SendAuthCode("alice@example.com", "123456"); err == nil {
		t.Fatal("expected error for unconfigured client")
	}
}

func TestSendAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	if err := testClient(server.URL).SendAuthCode("alice@example.com", "123456"); err == nil {
		t.Fatal("expected error for API failure")
	}
}
