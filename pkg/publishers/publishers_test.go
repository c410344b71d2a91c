package publishers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRegistryEnabledFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "publishers.yaml")
	raw := `
publishers:
  - id: hook
    type: http
    enabled: false
    http:
      url: https://example.com
  - id: queue
    type: sqs
    sqs:
      uri: https://sqs.eu-west-1.amazonaws.com/1/claims
      region: eu-west-1
      endpoint: http://localhost:4566
  - id: topic
    type: pubsub
    pubsub:
      project_id: p1
      topic: claims
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	enabled := reg.Enabled()
	if len(enabled) != 2 || enabled[0].ID != "queue" || enabled[1].ID != "topic" {
		t.Fatalf("unexpected enabled set %#v", enabled)
	}
	queue, ok := reg.ByID("queue")
	if !ok || queue.SQS.Endpoint != "http://localhost:4566" || queue.SQS.Region != "eu-west-1" {
		t.Fatalf("inline aws settings not decoded: %#v", queue.SQS)
	}
	hook, _ := reg.ByID("hook")
	if hook.HTTP.Method != "POST" || hook.HTTP.TimeoutSeconds != httpDefaultTimeoutSeconds {
		t.Fatalf("http defaults not applied: %#v", hook.HTTP)
	}
}

func TestLoadRegistryJSONAndEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "publishers.json")
	if err := os.WriteFile(path, []byte(`{"publishers": []}`), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if len(reg.Enabled()) != 0 {
		t.Fatalf("expected no publishers")
	}
}

func TestLoadRegistryRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "publishers.yml")
	raw := `
publishers:
  - {id: a, type: http, http: {url: "https://x"}}
  - {id: a, type: http, http: {url: "https://y"}}
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := LoadRegistry(path); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestValidateRejectsIncompleteEntries(t *testing.T) {
	cases := []PublisherConfig{
		{ID: "h1", Type: TypeHTTP},
		{ID: "s1", Type: TypeSNS, SNS: &SNSPublisherConfig{TopicARN: "arn"}},
		{ID: "p1", Type: TypePubSub, PubSub: &GCPQueueConfig{ProjectID: "p"}},
		{ID: "x1", Type: "kafka"},
		{Type: TypeHTTP},
	}
	for _, cfg := range cases {
		if err := validate(cfg); err == nil {
			t.Fatalf("expected validation error for %#v", cfg)
		}
	}
}

type stubPublisher struct {
	id    string
	err   error
	calls int
}

func (s *stubPublisher) ID() string   { return s.id }
func (s *stubPublisher) Type() string { return "stub" }
func (s *stubPublisher) Publish(context.Context, ClaimEvent) error {
	s.calls++
	return s.err
}

func TestFanoutPublishAggregatesErrors(t *testing.T) {
	ok := &stubPublisher{id: "ok"}
	bad := &stubPublisher{id: "bad", err: errors.New("failed")}
	fanout := NewFanout([]Publisher{ok, nil, bad})

	if fanout.Size() != 2 {
		t.Fatalf("nil publishers must be dropped, size %d", fanout.Size())
	}
	count, err := fanout.Publish(context.Background(), sampleEvent())
	if count != 1 || err == nil {
		t.Fatalf("expected 1 success and an error, got %d %v", count, err)
	}
	if ok.calls != 1 || bad.calls != 1 {
		t.Fatalf("every publisher must be attempted")
	}
}

func TestNilFanoutIsNoop(t *testing.T) {
	var f *Fanout
	if n, err := f.Publish(context.Background(), sampleEvent()); n != 0 || err != nil {
		t.Fatalf("nil fanout should do nothing, got %d %v", n, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestBuildAllWithDefaultRegistry(t *testing.T) {
	pubs, err := BuildAll(context.Background(), DefaultRegistry(), []PublisherConfig{
		normalize(PublisherConfig{ID: "hook", Type: TypeHTTP, HTTP: &HTTPPublisherConfig{URL: "https://example.com"}}),
	}, nil)
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	if len(pubs) != 1 || pubs[0].Type() != TypeHTTP {
		t.Fatalf("unexpected publishers %#v", pubs)
	}

	if _, err := BuildAll(context.Background(), DefaultRegistry(), []PublisherConfig{{ID: "k", Type: "kafka"}}, nil); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestHTTPPublisher(t *testing.T) {
	var received bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.Header.Get("X-Token") != "1" {
			t.Errorf("unexpected request %s %v", r.Method, r.Header)
		}
		if r.Header.Get("X-Claim-Run-Id") != "run-1" || r.Header.Get("X-Claim-Scope") != "daily" {
			t.Errorf("missing claim headers %v", r.Header)
		}
		received = true
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	pub, err := newHTTPPublisher(context.Background(), normalize(PublisherConfig{
		ID:   "hook",
		Type: TypeHTTP,
		HTTP: &HTTPPublisherConfig{URL: srv.URL, Method: "put", Headers: map[string]string{"X-Token": "1", "": "x"}},
	}), nil)
	if err != nil {
		t.Fatalf("newHTTPPublisher: %v", err)
	}
	if err := pub.Publish(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !received {
		t.Fatalf("server did not receive request")
	}
}

func TestHTTPPublisherErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	pub, err := newHTTPPublisher(context.Background(), normalize(PublisherConfig{
		ID: "hook", Type: TypeHTTP, HTTP: &HTTPPublisherConfig{URL: srv.URL, TimeoutSeconds: 1},
	}), nil)
	if err != nil {
		t.Fatalf("newHTTPPublisher: %v", err)
	}
	if err := pub.Publish(context.Background(), sampleEvent()); err == nil {
		t.Fatalf("expected error on non-2xx response")
	}
}
