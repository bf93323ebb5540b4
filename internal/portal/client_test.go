package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"video-streamer/internal/platform/logger"
	"video-streamer/internal/relay"
)

func testDescriptor() relay.Descriptor {
	return relay.Descriptor{
		Name:      "evening-news",
		Endpoint:  "tcp://localhost:9600",
		VideoSize: "480x270",
		BitRate:   "400k",
		Keywords:  []string{"news", "sports"},
	}
}

func TestClient_Register(t *testing.T) {
	var gotMethod, gotPath string
	var gotDesc relay.Descriptor

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotDesc); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, logger.Discard())
	if err := c.Register(context.Background(), testDescriptor()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if gotPath != "/streams" {
		t.Errorf("path = %s, want /streams", gotPath)
	}
	if !reflect.DeepEqual(gotDesc, testDescriptor()) {
		t.Errorf("descriptor round-trip mismatch: %+v", gotDesc)
	}
}

func TestClient_Deregister(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", logger.Discard())
	if err := c.Deregister(context.Background(), testDescriptor()); err != nil {
		t.Fatalf("Deregister: %v", err)
	}
	if gotPath != "/streams/evening-news/close" {
		t.Errorf("path = %s, want /streams/evening-news/close", gotPath)
	}
}

func TestClient_Register_error_status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, logger.Discard())
	if err := c.Register(context.Background(), testDescriptor()); err == nil {
		t.Fatal("Register should fail on a 5xx response")
	}
}

func TestClient_Register_unreachable_portal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, logger.Discard())
	if err := c.Register(context.Background(), testDescriptor()); err == nil {
		t.Fatal("Register should fail when the portal is unreachable")
	}
}
