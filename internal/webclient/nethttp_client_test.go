package webclient_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/raysh454/sift/internal/logging"
	"github.com/raysh454/sift/internal/webclient"
)

// ─── Do: real HTTP round-trip via httptest ──────────────────────────────

func TestNetHTTPClient_Do_GET_ReturnsBody(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Custom", "hello")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "response body")
	}))
	defer ts.Close()

	client, err := webclient.NewNetHTTPClient(webclient.Config{}, logging.Nop(), ts.Client())
	if err != nil {
		t.Fatalf("NewNetHTTPClient: %v", err)
	}
	defer client.Close()

	resp, err := client.Get(context.Background(), ts.URL+"/test")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !resp.OK() {
		t.Errorf("expected 2xx, got %d", resp.StatusCode)
	}
	if string(resp.Body) != "response body" {
		t.Errorf("expected 'response body', got %q", resp.Body)
	}
	if resp.Headers.Get("X-Custom") != "hello" {
		t.Errorf("expected X-Custom header 'hello', got %q", resp.Headers.Get("X-Custom"))
	}
}

func TestNetHTTPClient_Do_JSONRequest(t *testing.T) {
	t.Parallel()
	var gotBody, gotCT, gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotCT = r.Header.Get("Content-Type")
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"abc"}`)
	}))
	defer ts.Close()

	client, err := webclient.NewNetHTTPClient(webclient.Config{UserAgent: "sift-test"}, logging.Nop(), ts.Client())
	if err != nil {
		t.Fatalf("NewNetHTTPClient: %v", err)
	}

	req, err := webclient.NewJSONRequest(http.MethodPost, ts.URL, map[string]string{"username": "alice"})
	if err != nil {
		t.Fatalf("NewJSONRequest: %v", err)
	}
	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	if gotBody != `{"username":"alice"}` {
		t.Errorf("unexpected body %q", gotBody)
	}
	if gotCT != "application/json" {
		t.Errorf("unexpected content type %q", gotCT)
	}
	if gotUA != "sift-test" {
		t.Errorf("unexpected user agent %q", gotUA)
	}
	var out struct{ ID string }
	if err := resp.DecodeJSON(&out); err != nil || out.ID != "abc" {
		t.Errorf("DecodeJSON: %v %+v", err, out)
	}
}

func TestNetHTTPClient_Do_NilRequest(t *testing.T) {
	t.Parallel()
	client, _ := webclient.NewNetHTTPClient(webclient.Config{}, nil, nil)
	if _, err := client.Do(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil request")
	}
}

func TestNetHTTPClient_Do_ContextCanceled(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	client, _ := webclient.NewNetHTTPClient(webclient.Config{}, logging.Nop(), ts.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Get(ctx, ts.URL)
	if err == nil {
		t.Fatal("expected error on canceled context")
	}
}

func TestNetHTTPClient_Do_RejectsOversizedBody(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("x", 100))
	}))
	defer ts.Close()

	client, _ := webclient.NewNetHTTPClient(webclient.Config{MaxBodyBytes: 10}, logging.Nop(), ts.Client())
	_, err := client.Get(context.Background(), ts.URL)
	if !errors.Is(err, webclient.ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
	if !strings.Contains(err.Error(), "exceeds 10 bytes") {
		t.Errorf("error should name the limit, got %q", err)
	}
}

func TestNetHTTPClient_Do_BodyAtLimit(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("x", 10))
	}))
	defer ts.Close()

	client, _ := webclient.NewNetHTTPClient(webclient.Config{MaxBodyBytes: 10}, logging.Nop(), ts.Client())
	resp, err := client.Get(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(resp.Body) != 10 {
		t.Errorf("expected full 10 byte body, got %d", len(resp.Body))
	}
}

func TestNewWebClient_DefaultBackend(t *testing.T) {
	t.Parallel()
	client, err := webclient.NewWebClient(webclient.Config{}, logging.Nop())
	if err != nil {
		t.Fatalf("NewWebClient: %v", err)
	}
	if client == nil {
		t.Fatal("client is nil")
	}
	_ = client.Close()
}

func TestNewWebClient_UnknownBackend(t *testing.T) {
	t.Parallel()
	if _, err := webclient.NewWebClient(webclient.Config{Client: "chromedp"}, logging.Nop()); err == nil {
		t.Fatal("expected error for unsupported backend")
	}
}
