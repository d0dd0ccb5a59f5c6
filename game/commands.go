package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/wfunc/wordbot/command"
	"github.com/wfunc/wordbot/logger"
	"github.com/wfunc/wordbot/monitor"
	"github.com/wfunc/wordbot/network"
	"github.com/wfunc/wordbot/room"
)

const farewell = "sayonara!"

func (d *Dispatcher) runCommand(ctx context.Context, a *room.Actor, conn network.Conn, chatter gjson.Result, inv command.Invocation) {
	name, err := d.auth.Resolve(inv.Command)
	if err != nil {
		d.monitor.IncCommand("unknown", monitor.OutcomeUnknown)
		d.reply(conn, err.Error())
		return
	}

	creator, err := a.RoomCreator(ctx)
	if soft(a, string(name), err) {
		return
	}
	caller := command.Caller{
		Roles:       stringsOf(chatter.Get("roles")),
		AuthID:      chatter.Get("auth.id").String(),
		RoomCreator: creator,
	}
	if err := d.auth.Authorize(name, caller); err != nil {
		d.monitor.IncCommand(string(name), monitor.OutcomeNotEligible)
		d.reply(conn, err.Error())
		return
	}

	if err := d.execute(ctx, a, conn, name, chatter, inv.Query); err != nil {
		d.monitor.IncCommand(string(name), monitor.OutcomeFailed)
		soft(a, string(name), err)
		return
	}
	d.monitor.IncCommand(string(name), monitor.OutcomeOK)
}

func (d *Dispatcher) execute(ctx context.Context, a *room.Actor, conn network.Conn, name command.Name, chatter gjson.Result, query string) error {
	switch name {
	case command.Search:
		if query == "" {
			syllable, err := a.Syllable(ctx)
			if err != nil {
				return err
			}
			query = syllable
		}
		res, err := a.Search(ctx, query)
		if err != nil {
			return err
		}
		d.reply(conn, res.String())

	case command.Exit:
		d.reply(conn, farewell)
		code := a.Code()
		d.timers.AfterFunc("exit "+code, d.exitDelay, func() {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()
			if err := d.leaver.LeaveRoom(ctx, code); err != nil {
				logger.Log.Warnw("leave room failed", "room", code, "error", err)
			}
		})

	case command.StartNow:
		return a.StartRoundNow(ctx)

	case command.Help:
		target, err := d.auth.Resolve(query)
		if err != nil {
			d.reply(conn, err.Error())
			return nil
		}
		d.reply(conn, d.auth.Describe(target))

	case command.Stats:
		nickname := chatter.Get("nickname").String()
		p, err := a.Player(ctx, chatter.Get("peerId").Int())
		if errors.Is(err, room.ErrPlayerNotFound) {
			d.reply(conn, fmt.Sprintf("No stats for %s yet", nickname))
			return nil
		}
		if err != nil {
			return err
		}
		d.reply(conn, fmt.Sprintf("%s: %s — streak: %d", nickname, statLine(p), p.Streak))

	default:
		return fmt.Errorf("%w: %s", command.ErrUnknownCommand, name)
	}
	return nil
}

func statLine(p room.PlayerStats) string {
	return fmt.Sprintf("lives: %d — words: %d — subs: %d — longs: %d — hyphens: %d — multi: %d",
		p.Lives, p.Words, p.Subs, p.Longs, p.Hyphens, p.Multi)
}
