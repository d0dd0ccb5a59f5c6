// Package game turns socket events into room actor requests and chat replies.
package game

import (
	"context"
	"errors"
	"time"

	"github.com/tidwall/gjson"

	"github.com/wfunc/wordbot/command"
	"github.com/wfunc/wordbot/logger"
	"github.com/wfunc/wordbot/monitor"
	"github.com/wfunc/wordbot/network"
	"github.com/wfunc/wordbot/room"
	"github.com/wfunc/wordbot/timer"
)

const (
	DefaultTimeout   = 5 * time.Second
	DefaultExitDelay = 500 * time.Millisecond
)

// RoomLeaver tears a room down. The bot server implements it.
type RoomLeaver interface {
	LeaveRoom(ctx context.Context, code string) error
}

type Options struct {
	// Moderators are authenticated ids promoted to moderator when they join.
	Moderators []string
	// Timeout bounds the actor requests made for one event.
	Timeout time.Duration
	// ExitDelay is how long the farewell stays visible before the room is left.
	ExitDelay time.Duration
}

type eventFunc func(ctx context.Context, a *room.Actor, conn network.Conn, payload gjson.Result)

type Dispatcher struct {
	auth       *command.Authorizer
	monitor    *monitor.Monitor
	timers     *timer.TimerManager
	leaver     RoomLeaver
	moderators map[string]struct{}
	timeout    time.Duration
	exitDelay  time.Duration

	roomEvents map[string]eventFunc
	gameEvents map[string]eventFunc
}

func NewDispatcher(auth *command.Authorizer, mon *monitor.Monitor, timers *timer.TimerManager, leaver RoomLeaver, opts Options) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ExitDelay <= 0 {
		opts.ExitDelay = DefaultExitDelay
	}
	d := &Dispatcher{
		auth:       auth,
		monitor:    mon,
		timers:     timers,
		leaver:     leaver,
		moderators: make(map[string]struct{}, len(opts.Moderators)),
		timeout:    opts.Timeout,
		exitDelay:  opts.ExitDelay,
	}
	for _, id := range opts.Moderators {
		if id != "" {
			d.moderators[id] = struct{}{}
		}
	}

	d.roomEvents = map[string]eventFunc{
		network.EventChat:         d.onChat,
		network.EventChatterAdded: d.onChatterAdded,
	}
	d.gameEvents = map[string]eventFunc{
		network.EventSetup:                  d.onSetup,
		network.EventSetMilestone:           d.onSetMilestone,
		network.EventNextTurn:               d.onNextTurn,
		network.EventSetPlayerWord:          d.onSetPlayerWord,
		network.EventCorrectWord:            d.onCorrectWord,
		network.EventFailWord:               d.onFailWord,
		network.EventAddPlayer:              d.onAddPlayer,
		network.EventLivesLost:              d.onLivesLost,
		network.EventBonusAlphabetCompleted: d.onBonusAlphabetCompleted,
	}
	return d
}

// RoomHandler handles the chat socket of a.
func (d *Dispatcher) RoomHandler(a *room.Actor) network.Handler {
	return d.handler(a, "room", d.roomEvents)
}

// GameHandler handles the game socket of a.
func (d *Dispatcher) GameHandler(a *room.Actor) network.Handler {
	return d.handler(a, "game", d.gameEvents)
}

func (d *Dispatcher) handler(a *room.Actor, socket string, events map[string]eventFunc) network.Handler {
	return network.HandlerFunc(func(conn network.Conn, event string, payload []byte) {
		d.monitor.IncEventsReceived(event)

		fn, ok := events[event]
		if !ok {
			return
		}
		if !gjson.ValidBytes(payload) {
			logger.Log.Warnw("invalid event payload", "room", a.Code(), "socket", socket, "event", event)
			return
		}

		defer func() {
			if r := recover(); r != nil {
				logger.Log.Errorw("event handler panicked", "room", a.Code(), "event", event, "panic", r)
			}
		}()

		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		fn(ctx, a, conn, gjson.ParseBytes(payload))
		d.monitor.ObserveEventLatency(time.Since(start))
	})
}

// emit sends on conn and counts failures. Sends are never retried.
func (d *Dispatcher) emit(conn network.Conn, event string, args ...any) {
	if err := conn.Emit(event, args...); err != nil {
		d.monitor.IncEmitFailures()
		logger.Log.Warnw("emit failed", "event", event, "error", err)
	}
}

func (d *Dispatcher) reply(conn network.Conn, text string) {
	d.emit(conn, network.EventChat, text)
}

// soft logs err unless it only means the room is gone or the element is
// missing. It reports whether the caller should stop.
func soft(a *room.Actor, event string, err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, room.ErrActorUnavailable):
		logger.Log.Debugw("room closed", "room", a.Code(), "event", event)
	case errors.Is(err, room.ErrPlayerNotFound), errors.Is(err, room.ErrWordNotFound):
		logger.Log.Debugw("lookup failed", "room", a.Code(), "event", event, "error", err)
	default:
		logger.Log.Warnw("room request failed", "room", a.Code(), "event", event, "error", err)
	}
	return true
}

func stringsOf(r gjson.Result) []string {
	values := r.Array()
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.String())
	}
	return out
}
