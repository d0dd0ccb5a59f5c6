// Package broadcast posts chat messages to the rooms the bot is in.
package broadcast

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/wfunc/wordbot/room"
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

// 广播接口
type Broadcaster interface {
	BroadcastToRoom(ctx context.Context, code, text string) error
	BroadcastToRooms(ctx context.Context, codes []string, text string) error
	BroadcastToAll(ctx context.Context, text string) error
}

// 基于房间的广播器
type RoomBroadcaster struct {
	roomManager *room.Manager
}

func NewRoomBroadcaster(roomManager *room.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{roomManager: roomManager}
}

func (b *RoomBroadcaster) BroadcastToRoom(ctx context.Context, code, text string) error {
	actor, exists := b.roomManager.GetRoom(code)
	if !exists {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	return actor.SendChat(ctx, text)
}

// BroadcastToRooms sends to every listed room and reports each failure.
func (b *RoomBroadcaster) BroadcastToRooms(ctx context.Context, codes []string, text string) error {
	var errs error
	for _, code := range codes {
		errs = multierr.Append(errs, b.BroadcastToRoom(ctx, code, text))
	}
	return errs
}

func (b *RoomBroadcaster) BroadcastToAll(ctx context.Context, text string) error {
	var errs error
	for _, actor := range b.roomManager.Rooms() {
		if err := actor.SendChat(ctx, text); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", actor.Code(), err))
		}
	}
	return errs
}
