package vagkoll

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestSSEStream_DeliversFramesInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("missing event-stream accept header")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		fmt.Fprintf(w, ": keepalive\n\n")
		fmt.Fprintf(w, "data: {\"id\":1,\"externalId\":\"a\",\"countyNo\":3,\"createdAt\":%q}\n\n", time.Now().UTC().Format(time.RFC3339))
		fmt.Fprintf(w, "data: {\"id\":2,\"externalId\":\"b\",\"countyNo\":14,\"createdAt\":%q}\n\n", time.Now().UTC().Format(time.RFC3339))
		flusher.Flush()
	}))
	defer server.Close()

	stream := NewSSEStream(server.URL)

	var mu sync.Mutex
	var received []string
	err := stream.Run(context.Background(), func(payload []byte) {
		var e Event
		if err := json.Unmarshal(payload, &e); err != nil {
			t.Errorf("undecodable frame: %v", err)
			return
		}
		mu.Lock()
		received = append(received, e.ExternalID)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	// The keepalive comment is skipped; data frames arrive in order.
	if len(received) != 2 || received[0] != "a" || received[1] != "b" {
		t.Errorf("expected [a b], got %v", received)
	}
}

// A frame the engine can't decode is dropped at the merge step; the stream
// keeps delivering and the well-formed neighbours still land in the store.
func TestSSEStream_MalformedFrameDoesNotAbort(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: {\"id\":1,\"externalId\":\"a\",\"countyNo\":3,\"createdAt\":%q}\n\n", time.Now().UTC().Format(time.RFC3339))
		fmt.Fprintf(w, "data: not json at all\n\n")
		fmt.Fprintf(w, "data: {\"id\":2,\"externalId\":\"b\",\"countyNo\":14,\"createdAt\":%q}\n\n", time.Now().UTC().Format(time.RFC3339))
	}))
	defer server.Close()

	eng := NewEngine(newFakeLoader(), 20)
	stream := NewSSEStream(server.URL)
	if err := stream.Run(context.Background(), eng.HandleIncomingPayload); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := eng.Status().StoreSize; got != 2 {
		t.Errorf("expected 2 merged events around the bad frame, got %d", got)
	}
	if eng.store.Get("a") == nil || eng.store.Get("b") == nil {
		t.Error("well-formed frames did not survive the malformed one")
	}
}

func TestSSEStream_NonOKStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	stream := NewSSEStream(server.URL)
	err := stream.Run(context.Background(), func(payload []byte) {
		t.Error("no frames expected")
	})
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestSSEStream_MultiLineDataFrame(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		// Payload split across two data lines, per the SSE framing rules.
		fmt.Fprintf(w, "data: {\"id\":3,\"externalId\":\"c\",\n")
		fmt.Fprintf(w, "data: \"countyNo\":1,\"createdAt\":%q}\n\n", time.Now().UTC().Format(time.RFC3339))
	}))
	defer server.Close()

	stream := NewSSEStream(server.URL)
	var got *Event
	err := stream.Run(context.Background(), func(payload []byte) {
		var e Event
		if err := json.Unmarshal(payload, &e); err != nil {
			t.Errorf("reassembled frame undecodable: %v", err)
			return
		}
		got = &e
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got == nil || got.ExternalID != "c" || got.CountyNo != 1 {
		t.Errorf("multi-line frame not reassembled: %+v", got)
	}
}
