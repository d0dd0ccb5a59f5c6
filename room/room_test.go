package room

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/wordbot/dictionary"
)

type emitted struct {
	event string
	args  []any
}

// MockEmitter is a test double for the Emitter interface.
type MockEmitter struct {
	mu     sync.Mutex
	events []emitted
	closed bool
}

func (m *MockEmitter) Emit(event string, args ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, emitted{event: event, args: args})
	return nil
}

func (m *MockEmitter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockEmitter) Events() []emitted {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events)
}

func (m *MockEmitter) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func newTestActor(t *testing.T, words, notable []string) *Actor {
	t.Helper()
	a := NewActor("TEST", dictionary.New(words, notable), WithRand(rand.New(rand.NewPCG(1, 2))))
	t.Cleanup(a.Close)
	return a
}

func dictionaryOrder(t *testing.T, a *Actor) []string {
	t.Helper()
	words, err := ask(context.Background(), a, func(s *state) ([]string, error) {
		return s.dict.Words(), nil
	})
	if err != nil {
		t.Fatalf("reading dictionary failed: %v", err)
	}
	return words
}

func TestActor_IncrementLivesConcurrent(t *testing.T) {
	a := newTestActor(t, []string{"apple"}, nil)
	ctx := context.Background()

	if err := a.AddPlayer(ctx, 7, "alice", nil); err != nil {
		t.Fatalf("AddPlayer failed: %v", err)
	}

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := a.IncrementLives(ctx, 7); err != nil {
				t.Errorf("IncrementLives failed: %v", err)
			}
		}()
	}
	wg.Wait()

	p, err := a.Player(ctx, 7)
	if err != nil {
		t.Fatalf("Player failed: %v", err)
	}
	if p.Lives != n {
		t.Errorf("Expected %d lives, got %d", n, p.Lives)
	}
}

func TestActor_IncrementLivesMissingPlayer(t *testing.T) {
	a := newTestActor(t, []string{"apple"}, nil)
	if _, err := a.IncrementLives(context.Background(), 99); !errors.Is(err, ErrPlayerNotFound) {
		t.Errorf("Expected ErrPlayerNotFound, got %v", err)
	}
}

func TestActor_SearchReshufflesOnlyOnMatch(t *testing.T) {
	var words []string
	for i := 0; i < 20; i++ {
		words = append(words, fmt.Sprintf("axyz%d", i))
	}
	words = append(words, "apple", "pear")
	a := newTestActor(t, words, nil)
	ctx := context.Background()

	before := dictionaryOrder(t, a)
	res, err := a.Search(ctx, "qqq")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if res.Total != 0 {
		t.Fatalf("Expected no matches, got %d", res.Total)
	}
	if !slices.Equal(before, dictionaryOrder(t, a)) {
		t.Error("A search without matches must not reshuffle the dictionary")
	}

	res, err = a.Search(ctx, "xyz")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if res.Total != 20 {
		t.Errorf("Expected total 20, got %d", res.Total)
	}
	if len(res.Matches) > dictionary.SearchLimit {
		t.Errorf("Expected at most %d matches, got %d", dictionary.SearchLimit, len(res.Matches))
	}
	if slices.Equal(before, dictionaryOrder(t, a)) {
		t.Error("A search with matches should reshuffle the dictionary")
	}
}

func TestActor_SearchInvalidPattern(t *testing.T) {
	a := newTestActor(t, []string{"apple"}, nil)
	res, err := a.Search(context.Background(), "[")
	if err != nil {
		t.Fatalf("An invalid pattern must not be an error, got %v", err)
	}
	if !res.TooExpensive {
		t.Error("Expected a too expensive result")
	}
}

func TestActor_Remove(t *testing.T) {
	a := newTestActor(t, []string{"apple", "pear"}, nil)
	ctx := context.Background()

	if err := a.Remove(ctx, "apple"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := a.Remove(ctx, "nonexistent"); err != nil {
		t.Fatalf("Removing a missing word should be a no-op, got %v", err)
	}

	words := dictionaryOrder(t, a)
	if slices.Contains(words, "apple") {
		t.Error("apple should have been removed")
	}
	if len(words) != 1 || words[0] != "pear" {
		t.Errorf("Expected only pear to remain, got %v", words)
	}
}

func TestActor_PickSkipsUsedWords(t *testing.T) {
	a := newTestActor(t, []string{"foo", "bar"}, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := a.MarkUsed(ctx, "foo"); err != nil {
			t.Fatalf("MarkUsed failed: %v", err)
		}
	}

	used, err := a.IsUsed(ctx, "foo")
	if err != nil {
		t.Fatalf("IsUsed failed: %v", err)
	}
	if !used {
		t.Error("foo should be used")
	}

	if word, err := a.Pick(ctx, "fo"); !errors.Is(err, ErrWordNotFound) {
		t.Errorf("Expected ErrWordNotFound, got %q (%v)", word, err)
	}

	all, err := a.UsedWords(ctx)
	if err != nil {
		t.Fatalf("UsedWords failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("Marking a word twice should record it once, got %v", all)
	}

	word, err := a.Pick(ctx, "ar")
	if err != nil || word != "bar" {
		t.Errorf("Expected bar, got %q (%v)", word, err)
	}
}

func TestActor_AddPlayerSkipsSelf(t *testing.T) {
	a := newTestActor(t, []string{"apple"}, nil)
	ctx := context.Background()

	_ = a.SetPeerID(ctx, 5)
	_ = a.AddPlayer(ctx, 5, "wordbot", nil)
	_ = a.AddPlayer(ctx, 6, "bob", []string{"developer"})

	if _, err := a.Player(ctx, 5); !errors.Is(err, ErrPlayerNotFound) {
		t.Errorf("The bot must not track itself, got %v", err)
	}
	p, err := a.Player(ctx, 6)
	if err != nil {
		t.Fatalf("Player failed: %v", err)
	}
	if p.Nickname != "bob" || !slices.Equal(p.Roles, []string{"developer"}) {
		t.Errorf("Unexpected player %+v", p)
	}
}

func TestActor_ScoreHyphen(t *testing.T) {
	a := newTestActor(t, []string{"apple"}, nil)
	ctx := context.Background()
	chat := &MockEmitter{}
	_ = a.SetRoomConn(ctx, chat)
	_ = a.AddPlayer(ctx, 1, "alice", nil)

	announcement, err := a.Score(ctx, "alice", 1, "hyphen-ated")
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if announcement != "alice has placed a hyphen (1): hyphen-ated" {
		t.Errorf("Unexpected announcement %q", announcement)
	}

	p, _ := a.Player(ctx, 1)
	if p.Hyphens != 1 || p.Words != 1 || p.Longs != 0 || p.Subs != 0 || p.Multi != 0 {
		t.Errorf("Only hyphens and words should change, got %+v", p)
	}

	events := chat.Events()
	if len(events) != 1 || events[0].event != "chat" || events[0].args[0] != announcement {
		t.Errorf("Expected the announcement in chat, got %+v", events)
	}
}

func TestActor_ScoreLong(t *testing.T) {
	a := newTestActor(t, []string{"apple"}, nil)
	ctx := context.Background()
	_ = a.SetRoomConn(ctx, &MockEmitter{})
	_ = a.AddPlayer(ctx, 1, "alice", nil)

	word := strings.Repeat("a", 25)
	announcement, err := a.Score(ctx, "alice", 1, word)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if !strings.Contains(announcement, "a long (1)") {
		t.Errorf("Unexpected announcement %q", announcement)
	}

	p, _ := a.Player(ctx, 1)
	if p.Longs != 1 || p.Words != 1 || p.Hyphens != 0 || p.Subs != 0 || p.Multi != 0 {
		t.Errorf("Only longs and words should change, got %+v", p)
	}
}

func TestActor_ScoreCombinedBonuses(t *testing.T) {
	a := newTestActor(t, []string{"ice", "cream", "ice-cream-cone"}, []string{"ice cream"})
	ctx := context.Background()
	_ = a.SetRoomConn(ctx, &MockEmitter{})
	_ = a.AddPlayer(ctx, 1, "alice", nil)

	announcement, err := a.Score(ctx, "alice", 1, "ice cream")
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if announcement != "alice has placed a sn (1) — a multi (1): ice cream" {
		t.Errorf("Unexpected announcement %q", announcement)
	}

	announcement, _ = a.Score(ctx, "alice", 1, "ice scream")
	if announcement != "" {
		t.Errorf("A multi word with an unknown token earns nothing, got %q", announcement)
	}

	p, _ := a.Player(ctx, 1)
	if p.Words != 2 || p.Subs != 1 || p.Multi != 1 {
		t.Errorf("Unexpected stats %+v", p)
	}
}

func TestActor_ScorePlainWordIsSilent(t *testing.T) {
	a := newTestActor(t, []string{"apple"}, nil)
	ctx := context.Background()
	chat := &MockEmitter{}
	_ = a.SetRoomConn(ctx, chat)
	_ = a.AddPlayer(ctx, 1, "alice", nil)

	announcement, err := a.Score(ctx, "alice", 1, "apple")
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if announcement != "" {
		t.Errorf("Expected no announcement, got %q", announcement)
	}
	if len(chat.Events()) != 0 {
		t.Errorf("Expected no chat message, got %+v", chat.Events())
	}
}

func TestActor_ScoreMissingPlayer(t *testing.T) {
	a := newTestActor(t, []string{"apple"}, nil)
	if _, err := a.Score(context.Background(), "ghost", 42, "apple"); !errors.Is(err, ErrPlayerNotFound) {
		t.Errorf("Expected ErrPlayerNotFound, got %v", err)
	}
}

func TestActor_Streak(t *testing.T) {
	a := newTestActor(t, []string{"apple"}, nil)
	ctx := context.Background()
	_ = a.AddPlayer(ctx, 1, "alice", nil)

	a.IncrementStreak(ctx, 1)
	streak, _ := a.IncrementStreak(ctx, 1)
	if streak != 2 {
		t.Errorf("Expected streak 2, got %d", streak)
	}
	if err := a.ResetStreak(ctx, 1); err != nil {
		t.Fatalf("ResetStreak failed: %v", err)
	}
	p, _ := a.Player(ctx, 1)
	if p.Streak != 0 {
		t.Errorf("Expected streak 0 after reset, got %d", p.Streak)
	}
}

func TestActor_OutboundEvents(t *testing.T) {
	a := newTestActor(t, []string{"apple"}, nil)
	ctx := context.Background()
	game, chat := &MockEmitter{}, &MockEmitter{}
	_ = a.SetGameConn(ctx, game)
	_ = a.SetRoomConn(ctx, chat)

	_ = a.SendChat(ctx, "hello")
	_ = a.StartRoundNow(ctx)
	// Info is served after the fire-and-forget requests above.
	if _, err := a.Info(ctx); err != nil {
		t.Fatalf("Info failed: %v", err)
	}

	if ev := chat.Events(); len(ev) != 1 || ev[0].event != "chat" || ev[0].args[0] != "hello" {
		t.Errorf("Unexpected chat events %+v", ev)
	}
	if ev := game.Events(); len(ev) != 1 || ev[0].event != "startRoundNow" {
		t.Errorf("Unexpected game events %+v", ev)
	}
}

func TestActor_Getters(t *testing.T) {
	a := newTestActor(t, []string{"apple", "pear"}, nil)
	ctx := context.Background()

	_ = a.SetPeerID(ctx, 12)
	_ = a.SetRoomCreator(ctx, "creator-id")
	_ = a.SetSyllable(ctx, "ap")
	_ = a.SetPlayerWord(ctx, "appl")

	if id, _ := a.PeerID(ctx); id != 12 {
		t.Errorf("Expected peer id 12, got %d", id)
	}
	if c, _ := a.RoomCreator(ctx); c != "creator-id" {
		t.Errorf("Expected room creator, got %q", c)
	}
	if s, _ := a.Syllable(ctx); s != "ap" {
		t.Errorf("Expected syllable ap, got %q", s)
	}
	if w, _ := a.PlayerWord(ctx); w != "appl" {
		t.Errorf("Expected player word appl, got %q", w)
	}

	info, err := a.Info(ctx)
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.Code != "TEST" || info.Dictionary != 2 || info.SelfPeerID != 12 {
		t.Errorf("Unexpected info %+v", info)
	}
}

func TestActor_Closed(t *testing.T) {
	a := newTestActor(t, []string{"apple"}, nil)
	ctx := context.Background()
	game := &MockEmitter{}
	_ = a.SetGameConn(ctx, game)
	_, _ = a.Info(ctx)

	a.Close()
	a.Close()
	<-a.Done()

	if _, err := a.PeerID(ctx); !errors.Is(err, ErrActorUnavailable) {
		t.Errorf("Expected ErrActorUnavailable, got %v", err)
	}
	if err := a.MarkUsed(ctx, "apple"); !errors.Is(err, ErrActorUnavailable) {
		t.Errorf("Expected ErrActorUnavailable, got %v", err)
	}
	if !game.Closed() {
		t.Error("Stopping the actor should close its connections")
	}
}

func TestActor_RequestAfterCloseIsRejected(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		a := newTestActor(t, []string{"apple"}, nil)
		a.Close()
		if _, err := a.Pick(ctx, "a"); !errors.Is(err, ErrActorUnavailable) {
			t.Fatalf("Expected ErrActorUnavailable right after Close, got %v", err)
		}
	}
}

func TestActor_CloseDropsQueuedRequests(t *testing.T) {
	a := newTestActor(t, []string{"apple"}, nil)
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	_ = a.tell(ctx, func(s *state) {
		close(started)
		<-release
	})
	<-started

	errs := make(chan error, 1)
	go func() {
		_, err := a.Pick(ctx, "a")
		errs <- err
	}()
	// wait until the pick is queued behind the blocked request
	for len(a.mailbox) == 0 {
		time.Sleep(time.Millisecond)
	}

	a.Close()
	close(release)

	select {
	case err := <-errs:
		if !errors.Is(err, ErrActorUnavailable) {
			t.Errorf("Expected queued request to be dropped, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Queued request never returned")
	}
}

func TestActor_AbandonedReplyDoesNotBlock(t *testing.T) {
	a := newTestActor(t, []string{"apple"}, nil)
	release := make(chan struct{})
	_ = a.tell(context.Background(), func(s *state) { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := a.PeerID(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
	close(release)

	if _, err := a.PeerID(context.Background()); err != nil {
		t.Errorf("Actor should keep serving after an abandoned reply, got %v", err)
	}
}

func TestActor_PanicDoesNotStopLoop(t *testing.T) {
	a := newTestActor(t, []string{"apple"}, nil)
	ctx := context.Background()

	_, err := ask(ctx, a, func(s *state) (int, error) { panic("boom") })
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("Expected ErrRequestFailed, got %v", err)
	}
	_ = a.tell(ctx, func(s *state) { panic("boom again") })

	if _, err := a.PeerID(ctx); err != nil {
		t.Errorf("Actor should survive a panicking request, got %v", err)
	}
}
