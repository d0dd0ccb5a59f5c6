package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestClient_StartRoom(t *testing.T) {
	var got startRoomRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected json content type, got %q", r.Header.Get("Content-Type"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"roomCode":"ABCD"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, time.Second)
	code, err := c.StartRoom(context.Background(), "wordbot", true, "token")
	if err != nil {
		t.Fatalf("StartRoom failed: %v", err)
	}
	if code != "ABCD" {
		t.Errorf("Expected ABCD, got %q", code)
	}
	if got.GameID != GameID || !got.IsPublic || got.CreatorUserToken != "token" || got.Name != "wordbot" {
		t.Errorf("Unexpected request %+v", got)
	}
}

func TestClient_JoinRoom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req joinRoomRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.RoomCode != "ABCD" {
			t.Errorf("Expected room code ABCD, got %q", req.RoomCode)
		}
		w.Write([]byte(`{"url":"https://phoenix.example.com"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, time.Second)
	url, err := c.JoinRoom(context.Background(), "ABCD")
	if err != nil {
		t.Fatalf("JoinRoom failed: %v", err)
	}
	if url != "https://phoenix.example.com" {
		t.Errorf("Unexpected url %q", url)
	}
}

func TestClient_MissingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, time.Second)
	if _, err := c.JoinRoom(context.Background(), "ABCD"); !errors.Is(err, ErrBadResponse) {
		t.Errorf("Expected ErrBadResponse, got %v", err)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"url":"https://phoenix.example.com"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, time.Second)
	if _, err := c.JoinRoom(context.Background(), "ABCD"); err != nil {
		t.Fatalf("JoinRoom should succeed after a retry, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 calls, got %d", calls.Load())
	}
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, time.Second)
	if _, err := c.JoinRoom(context.Background(), "ABCD"); !errors.Is(err, ErrBadResponse) {
		t.Errorf("Expected ErrBadResponse, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("A 404 must not be retried, got %d calls", calls.Load())
	}
}

func TestNewUserToken(t *testing.T) {
	a, b := NewUserToken(), NewUserToken()
	if len(a) != 16 {
		t.Errorf("Expected 16 characters, got %d", len(a))
	}
	if a == b {
		t.Error("Tokens should be random")
	}
}
