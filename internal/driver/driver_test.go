package driver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chatpilot/chatpilot/internal/orchestrator"
)

func newTestDriver(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL)
	c.client = srv.Client()
	return c
}

func TestCaptureText(t *testing.T) {
	c := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/capture/text" {
			t.Errorf("path = %q, want /capture/text", r.URL.Path)
		}
		var req captureTextRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Language != "eng+rus" {
			t.Errorf("language = %q, want eng+rus", req.Language)
		}
		if req.Region.Width != 800 {
			t.Errorf("region width = %d, want 800", req.Region.Width)
		}
		json.NewEncoder(w).Encode(captureTextResponse{Text: "Alice: hello"})
	})

	text, err := c.CaptureText(context.Background(),
		orchestrator.Region{X: 10, Y: 20, Width: 800, Height: 600}, "eng+rus")
	if err != nil {
		t.Fatalf("CaptureText: %v", err)
	}
	if text != "Alice: hello" {
		t.Errorf("text = %q, want Alice: hello", text)
	}
}

func TestCaptureAmount(t *testing.T) {
	c := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(captureAmountResponse{Amount: 1200})
	})

	amount, err := c.CaptureAmount(context.Background(), orchestrator.Region{Width: 100, Height: 30})
	if err != nil {
		t.Fatalf("CaptureAmount: %v", err)
	}
	if amount != 1200 {
		t.Errorf("amount = %d, want 1200", amount)
	}
}

func TestLocateMiss(t *testing.T) {
	c := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(locateResponse{Found: false})
	})

	_, found, err := c.Locate(context.Background(), "accept_partnership_tile", nil, 0.9)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if found {
		t.Error("miss should report found=false")
	}
}

func TestTypeAndSendFlag(t *testing.T) {
	var got []typeRequest
	c := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		var req typeRequest
		json.NewDecoder(r.Body).Decode(&req)
		got = append(got, req)
		w.WriteHeader(http.StatusOK)
	})

	if err := c.TypeAndSend(context.Background(), "hello"); err != nil {
		t.Fatalf("TypeAndSend: %v", err)
	}
	if err := c.Type(context.Background(), "."); err != nil {
		t.Fatalf("Type: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("requests = %d, want 2", len(got))
	}
	if !got[0].Send || got[0].Text != "hello" {
		t.Errorf("first request = %+v, want send hello", got[0])
	}
	if got[1].Send || got[1].Text != "." {
		t.Errorf("second request = %+v, want non-send dot", got[1])
	}
}

func TestErrorStatus(t *testing.T) {
	c := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent busy", http.StatusServiceUnavailable)
	})

	if err := c.EraseInput(context.Background()); err == nil {
		t.Error("non-200 status should surface as an error")
	}
}
