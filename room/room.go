package room

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/wfunc/wordbot/dictionary"
	"github.com/wfunc/wordbot/logger"
)

// DefaultMailboxSize is the number of requests an actor buffers.
const DefaultMailboxSize = 512

var (
	// ErrActorUnavailable means the room has shut down.
	ErrActorUnavailable = errors.New("room actor unavailable")
	ErrPlayerNotFound   = errors.New("player not found")
	// ErrWordNotFound is returned by Pick when every candidate has been used.
	ErrWordNotFound = errors.New("no unused word for syllable")
	// ErrRequestFailed is returned when a request panicked inside the actor.
	ErrRequestFailed = errors.New("room request failed")
)

type request func(s *state)

type result[T any] struct {
	value T
	err   error
}

// Actor owns one room's state and applies requests to it one at a time.
type Actor struct {
	code      string
	mailbox   chan request
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type options struct {
	rng         *rand.Rand
	mailboxSize int
}

type Option func(*options)

// WithRand sets the source used for shuffling the dictionary.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) { o.rng = rng }
}

// WithMailboxSize sets the request queue length. Non-positive values keep the default.
func WithMailboxSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.mailboxSize = n
		}
	}
}

// NewActor starts the actor for room code. The actor takes ownership of dict
// and shuffles it before serving the first request.
func NewActor(code string, dict *dictionary.Dictionary, opts ...Option) *Actor {
	o := options{mailboxSize: DefaultMailboxSize}
	for _, opt := range opts {
		opt(&o)
	}

	a := &Actor{
		code:    code,
		mailbox: make(chan request, o.mailboxSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go a.loop(newState(code, dict, o.rng))
	return a
}

func (a *Actor) Code() string { return a.code }

// Done is closed once the actor has stopped.
func (a *Actor) Done() <-chan struct{} { return a.done }

// Close stops the actor. Requests still queued are dropped and their callers
// receive ErrActorUnavailable.
func (a *Actor) Close() {
	a.closeOnce.Do(func() { close(a.quit) })
}

func (a *Actor) loop(s *state) {
	defer close(a.done)
	defer closeConns(s)

	for {
		select {
		case <-a.quit:
			return
		case req := <-a.mailbox:
			select {
			case <-a.quit:
				return
			default:
			}
			a.handle(s, req)
		}
	}
}

func (a *Actor) handle(s *state, req request) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorw("room request panicked", "room", a.code, "panic", r)
		}
	}()
	req(s)
}

func closeConns(s *state) {
	for _, conn := range []Emitter{s.gameConn, s.roomConn} {
		if c, ok := conn.(io.Closer); ok {
			if err := c.Close(); err != nil {
				logger.Log.Debugw("close room connection", "room", s.code, "error", err)
			}
		}
	}
}

// tell enqueues a request without waiting for it to run.
func (a *Actor) tell(ctx context.Context, req request) error {
	select {
	case <-a.quit:
		return ErrActorUnavailable
	default:
	}
	select {
	case a.mailbox <- req:
		return nil
	case <-a.quit:
		return ErrActorUnavailable
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ask runs fn inside the actor and waits for its result. The reply channel has
// room for one value so the actor never blocks on a caller that went away.
func ask[T any](ctx context.Context, a *Actor, fn func(s *state) (T, error)) (T, error) {
	var zero T
	reply := make(chan result[T], 1)

	err := a.tell(ctx, func(s *state) {
		defer func() {
			if r := recover(); r != nil {
				logger.Log.Errorw("room request panicked", "room", a.code, "panic", r)
				reply <- result[T]{err: fmt.Errorf("%w: %v", ErrRequestFailed, r)}
			}
		}()
		v, err := fn(s)
		reply <- result[T]{value: v, err: err}
	})
	if err != nil {
		return zero, err
	}

	select {
	case res := <-reply:
		return res.value, res.err
	case <-a.done:
		select {
		case res := <-reply:
			return res.value, res.err
		default:
			return zero, ErrActorUnavailable
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (a *Actor) PeerID(ctx context.Context) (int64, error) {
	return ask(ctx, a, func(s *state) (int64, error) { return s.selfPeerID, nil })
}

func (a *Actor) SetPeerID(ctx context.Context, id int64) error {
	return a.tell(ctx, func(s *state) { s.selfPeerID = id })
}

func (a *Actor) RoomCreator(ctx context.Context) (string, error) {
	return ask(ctx, a, func(s *state) (string, error) { return s.roomCreator, nil })
}

func (a *Actor) SetRoomCreator(ctx context.Context, creator string) error {
	return a.tell(ctx, func(s *state) { s.roomCreator = creator })
}

func (a *Actor) Syllable(ctx context.Context) (string, error) {
	return ask(ctx, a, func(s *state) (string, error) { return s.syllable, nil })
}

func (a *Actor) SetSyllable(ctx context.Context, syllable string) error {
	return a.tell(ctx, func(s *state) { s.syllable = syllable })
}

// PlayerWord returns the word currently being typed.
func (a *Actor) PlayerWord(ctx context.Context) (string, error) {
	return ask(ctx, a, func(s *state) (string, error) { return s.playerWord, nil })
}

func (a *Actor) SetPlayerWord(ctx context.Context, word string) error {
	return a.tell(ctx, func(s *state) { s.playerWord = word })
}

// Search looks query up in the dictionary. The dictionary is reshuffled after
// any search that matched, so repeated queries surface different words.
func (a *Actor) Search(ctx context.Context, query string) (dictionary.SearchResult, error) {
	return ask(ctx, a, func(s *state) (dictionary.SearchResult, error) {
		res := s.dict.Search(query)
		if res.Total > 0 {
			s.dict.Shuffle(s.rng)
		}
		return res, nil
	})
}

// Pick returns the first unused word containing syllable.
func (a *Actor) Pick(ctx context.Context, syllable string) (string, error) {
	return ask(ctx, a, func(s *state) (string, error) {
		word, ok := s.dict.Pick(syllable, s.isUsed)
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrWordNotFound, syllable)
		}
		return word, nil
	})
}

func (a *Actor) MarkUsed(ctx context.Context, word string) error {
	return a.tell(ctx, func(s *state) { s.markUsed(word) })
}

func (a *Actor) IsUsed(ctx context.Context, word string) (bool, error) {
	return ask(ctx, a, func(s *state) (bool, error) { return s.isUsed(word), nil })
}

// UsedWords returns the played words in the order they were first used.
func (a *Actor) UsedWords(ctx context.Context) ([]string, error) {
	return ask(ctx, a, func(s *state) ([]string, error) { return slices.Clone(s.usedOrder), nil })
}

// Remove drops one occurrence of word from the dictionary.
func (a *Actor) Remove(ctx context.Context, word string) error {
	return a.tell(ctx, func(s *state) { s.dict.Remove(word) })
}

// AddPlayer starts tracking peerID, replacing any previous stats. The bot's
// own peer id is ignored.
func (a *Actor) AddPlayer(ctx context.Context, peerID int64, nickname string, roles []string) error {
	roles = slices.Clone(roles)
	return a.tell(ctx, func(s *state) {
		if peerID == s.selfPeerID {
			return
		}
		s.players[peerID] = &PlayerStats{Nickname: nickname, Roles: roles}
	})
}

func (a *Actor) Player(ctx context.Context, peerID int64) (PlayerStats, error) {
	return ask(ctx, a, func(s *state) (PlayerStats, error) {
		p, ok := s.players[peerID]
		if !ok {
			return PlayerStats{}, ErrPlayerNotFound
		}
		return p.clone(), nil
	})
}

// Players returns a snapshot of every tracked player keyed by peer id.
func (a *Actor) Players(ctx context.Context) (map[int64]PlayerStats, error) {
	return ask(ctx, a, func(s *state) (map[int64]PlayerStats, error) {
		out := make(map[int64]PlayerStats, len(s.players))
		for id, p := range s.players {
			out[id] = p.clone()
		}
		return out, nil
	})
}

// IncrementLives adds a life to peerID and returns the new count.
func (a *Actor) IncrementLives(ctx context.Context, peerID int64) (int, error) {
	return a.updatePlayer(ctx, peerID, func(p *PlayerStats) int {
		p.Lives++
		return p.Lives
	})
}

// IncrementStreak records one more correct word in a row for peerID.
func (a *Actor) IncrementStreak(ctx context.Context, peerID int64) (int, error) {
	return a.updatePlayer(ctx, peerID, func(p *PlayerStats) int {
		p.Streak++
		return p.Streak
	})
}

func (a *Actor) ResetStreak(ctx context.Context, peerID int64) error {
	_, err := a.updatePlayer(ctx, peerID, func(p *PlayerStats) int {
		p.Streak = 0
		return 0
	})
	return err
}

func (a *Actor) updatePlayer(ctx context.Context, peerID int64, fn func(p *PlayerStats) int) (int, error) {
	return ask(ctx, a, func(s *state) (int, error) {
		p, ok := s.players[peerID]
		if !ok {
			return 0, ErrPlayerNotFound
		}
		return fn(p), nil
	})
}

// Score credits word to peerID and announces it in chat when it earned a
// bonus. The announcement is returned, empty when there was none.
func (a *Actor) Score(ctx context.Context, nickname string, peerID int64, word string) (string, error) {
	return ask(ctx, a, func(s *state) (string, error) {
		p, ok := s.players[peerID]
		if !ok {
			return "", ErrPlayerNotFound
		}
		announcement := score(p, nickname, word, s.dict)
		if announcement != "" {
			s.emit(s.roomConn, eventChat, announcement)
		}
		return announcement, nil
	})
}

func (a *Actor) SetGameConn(ctx context.Context, conn Emitter) error {
	return a.tell(ctx, func(s *state) { s.gameConn = conn })
}

func (a *Actor) SetRoomConn(ctx context.Context, conn Emitter) error {
	return a.tell(ctx, func(s *state) { s.roomConn = conn })
}

// SendChat posts text to the room chat.
func (a *Actor) SendChat(ctx context.Context, text string) error {
	return a.tell(ctx, func(s *state) { s.emit(s.roomConn, eventChat, text) })
}

// StartRoundNow asks the game to skip the start countdown.
func (a *Actor) StartRoundNow(ctx context.Context) error {
	return a.tell(ctx, func(s *state) { s.emit(s.gameConn, eventStartRoundNow) })
}

func (a *Actor) Info(ctx context.Context) (Info, error) {
	return ask(ctx, a, func(s *state) (Info, error) { return s.info(), nil })
}

// emit is best effort: failures are logged and never retried.
func (s *state) emit(conn Emitter, event string, args ...any) {
	if conn == nil {
		logger.Log.Warnw("no connection for outbound event", "room", s.code, "event", event)
		return
	}
	if err := conn.Emit(event, args...); err != nil {
		logger.Log.Warnw("emit failed", "room", s.code, "event", event, "error", err)
	}
}
