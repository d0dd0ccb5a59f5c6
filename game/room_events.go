package game

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/wfunc/wordbot/command"
	"github.com/wfunc/wordbot/logger"
	"github.com/wfunc/wordbot/network"
	"github.com/wfunc/wordbot/room"
)

// onChat handles [chatter, message].
func (d *Dispatcher) onChat(ctx context.Context, a *room.Actor, conn network.Conn, payload gjson.Result) {
	chatter := payload.Get("0")
	message := payload.Get("1").String()

	inv, ok := command.Parse(message)
	if !ok {
		return
	}
	d.runCommand(ctx, a, conn, chatter, inv)
}

// onChatterAdded handles [{auth, nickname, peerId}].
func (d *Dispatcher) onChatterAdded(_ context.Context, a *room.Actor, conn network.Conn, payload gjson.Result) {
	chatter := payload.Get("0")
	nickname := chatter.Get("nickname").String()
	d.reply(conn, fmt.Sprintf("Hey, %s!", nickname))

	id := chatter.Get("auth.id").String()
	if _, ok := d.moderators[id]; ok && id != "" {
		logger.Log.Infow("promoting moderator", "room", a.Code(), "nickname", nickname)
		d.emit(conn, network.EventSetUserModerator, chatter.Get("peerId").Int(), true)
	}
}
