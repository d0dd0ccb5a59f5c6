package room

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wfunc/wordbot/dictionary"
)

func newManagedActor(code string) *Actor {
	return NewActor(code, dictionary.New([]string{"apple"}, nil))
}

func TestRoomManager_RegisterAndGetRoom(t *testing.T) {
	manager := NewRoomManager()
	defer manager.CloseAll()

	a := newManagedActor("ABCD")
	registered, ok := manager.Register(a)
	if !ok || registered != a {
		t.Fatal("Register should store a new room")
	}

	retrieved, exists := manager.GetRoom("ABCD")
	if !exists {
		t.Fatal("GetRoom should find the registered room")
	}
	if retrieved != a {
		t.Error("GetRoom should return the same actor instance")
	}

	dup := newManagedActor("ABCD")
	defer dup.Close()
	existing, ok := manager.Register(dup)
	if ok || existing != a {
		t.Error("Registering a duplicate code should return the existing actor")
	}
}

func TestRoomManager_GetOrCreateConcurrent(t *testing.T) {
	manager := NewRoomManager()
	defer manager.CloseAll()

	var created atomic.Int32
	create := func(code string) *Actor {
		created.Add(1)
		return newManagedActor(code)
	}

	const n = 50
	results := make([]*Actor, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, _ = manager.GetOrCreate("WXYZ", create)
		}(i)
	}
	wg.Wait()

	if created.Load() != 1 {
		t.Errorf("Expected exactly one actor to be created, got %d", created.Load())
	}
	for i, a := range results {
		if a != results[0] {
			t.Fatalf("Caller %d got a different actor", i)
		}
	}
}

func TestRoomManager_GetOrCreateCodeMismatch(t *testing.T) {
	manager := NewRoomManager()
	defer manager.CloseAll()

	var built *Actor
	a, created, err := manager.GetOrCreate("ABCD", func(string) *Actor {
		built = newManagedActor("ZZZZ")
		return built
	})
	if !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("Expected ErrCodeMismatch, got %v", err)
	}
	if a != nil || created {
		t.Errorf("Expected no actor, got %v (created=%v)", a, created)
	}
	if manager.Count() != 0 {
		t.Errorf("Mismatched actor must not be registered, got %d rooms", manager.Count())
	}
	select {
	case <-built.Done():
	case <-time.After(time.Second):
		t.Error("Mismatched actor should be closed")
	}
}

func TestRoomManager_ConcurrentLookup(t *testing.T) {
	manager := NewRoomManager()
	defer manager.CloseAll()
	a := newManagedActor("ABCD")
	manager.Register(a)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, ok := manager.GetRoom("ABCD")
			if !ok || got != a {
				t.Error("Concurrent lookups should return the same actor")
			}
		}()
	}
	wg.Wait()
}

func TestRoomManager_RemoveRoom(t *testing.T) {
	manager := NewRoomManager()
	a := newManagedActor("ABCD")
	manager.Register(a)

	if !manager.RemoveRoom("ABCD") {
		t.Fatal("RemoveRoom should report an existing room")
	}
	if _, exists := manager.GetRoom("ABCD"); exists {
		t.Error("Room should be gone after RemoveRoom")
	}

	select {
	case <-a.Done():
	case <-time.After(time.Second):
		t.Fatal("RemoveRoom should stop the actor")
	}

	if manager.RemoveRoom("ABCD") {
		t.Error("Removing twice should report false")
	}
}

func TestRoomManager_ForgetsStoppedActors(t *testing.T) {
	manager := NewRoomManager()
	a := newManagedActor("ABCD")
	manager.Register(a)

	a.Close()

	deadline := time.Now().Add(time.Second)
	for manager.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Stopped actor should be removed from the registry")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRoomManager_Codes(t *testing.T) {
	manager := NewRoomManager()
	defer manager.CloseAll()
	manager.Register(newManagedActor("ZZZZ"))
	manager.Register(newManagedActor("AAAA"))

	codes := manager.Codes()
	if len(codes) != 2 || codes[0] != "AAAA" || codes[1] != "ZZZZ" {
		t.Errorf("Expected sorted codes, got %v", codes)
	}
	if len(manager.Rooms()) != 2 {
		t.Errorf("Expected 2 rooms, got %d", len(manager.Rooms()))
	}
}
