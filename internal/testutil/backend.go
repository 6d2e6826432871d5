package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// RecordedRequest is a request received by FakeBackend
type RecordedRequest struct {
	Method        string
	Path          string
	Authorization string
	Body          map[string]any
}

// Reply is a canned response
type Reply struct {
	Status int
	// Body is encoded as JSON unless it is a string, which is written verbatim
	Body any
}

// FakeBackend is an httptest server that records requests and answers from a
// route table keyed by "METHOD /path".
type FakeBackend struct {
	*httptest.Server

	mu       sync.Mutex
	routes   map[string]Reply
	requests []RecordedRequest
}

// NewFakeBackend starts a fake backend that is closed when t finishes
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	fb := &FakeBackend{routes: make(map[string]Reply)}
	fb.Server = httptest.NewServer(http.HandlerFunc(fb.serve))
	t.Cleanup(fb.Close)
	return fb
}

// On sets the reply for route, e.g. "POST /auth/login"
func (fb *FakeBackend) On(route string, status int, body any) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.routes[route] = Reply{Status: status, Body: body}
}

// Requests returns a copy of every request received so far
func (fb *FakeBackend) Requests() []RecordedRequest {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	out := make([]RecordedRequest, len(fb.requests))
	copy(out, fb.requests)
	return out
}

// RequestsTo returns the recorded requests for route
func (fb *FakeBackend) RequestsTo(route string) []RecordedRequest {
	var out []RecordedRequest
	for _, r := range fb.Requests() {
		if r.Method+" "+r.Path == route {
			out = append(out, r)
		}
	}
	return out
}

func (fb *FakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	rec := RecordedRequest{
		Method:        r.Method,
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
	}
	if data, err := io.ReadAll(r.Body); err == nil && len(data) > 0 {
		_ = json.Unmarshal(data, &rec.Body)
	}

	fb.mu.Lock()
	fb.requests = append(fb.requests, rec)
	reply, ok := fb.routes[r.Method+" "+r.URL.Path]
	fb.mu.Unlock()

	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"success":false,"message":"Not Found"}`)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.Status)
	switch body := reply.Body.(type) {
	case nil:
	case string:
		_, _ = io.WriteString(w, body)
	default:
		_ = json.NewEncoder(w).Encode(body)
	}
}
