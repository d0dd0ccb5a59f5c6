package rpc

import (
	"context"
	"time"

	"github.com/wfunc/wordbot/models"
	"github.com/wfunc/wordbot/room"
)

const callTimeout = 10 * time.Second

// Controller is what the bot server offers to operators.
type Controller interface {
	ListRooms(ctx context.Context) ([]room.Info, error)
	RoomInfo(ctx context.Context, code string) (room.Info, error)
	StartRoom(ctx context.Context, name string, public bool) (string, error)
	JoinRoom(ctx context.Context, code, creator string) error
	LeaveRoom(ctx context.Context, code string) error
	// Say posts text to code, or to every room when code is empty.
	Say(ctx context.Context, code, text string) error
	History(ctx context.Context, code string, limit int) ([]models.RoomRecord, error)
}

// BotService is the struct that exposes RPC methods. Every method follows the
// net/rpc signature: exported args, pointer reply, error result.
type BotService struct {
	ctrl Controller
}

func NewBotService(ctrl Controller) *BotService {
	return &BotService{ctrl: ctrl}
}

type Empty struct{}

type RoomArgs struct {
	Code string
}

type StartRoomArgs struct {
	Name   string
	Public bool
}

type JoinRoomArgs struct {
	Code string
	// Creator is the authenticated id treated as the room creator.
	Creator string
}

type SayArgs struct {
	Code string
	Text string
}

type HistoryArgs struct {
	Code  string
	Limit int
}

type RoomsReply struct {
	Rooms []room.Info
}

type RoomReply struct {
	Room room.Info
}

type StartRoomReply struct {
	Code string
}

type HistoryReply struct {
	Records []models.RoomRecord
}

func (bs *BotService) ListRooms(_ *Empty, reply *RoomsReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	rooms, err := bs.ctrl.ListRooms(ctx)
	if err != nil {
		return err
	}
	reply.Rooms = rooms
	return nil
}

func (bs *BotService) RoomInfo(args *RoomArgs, reply *RoomReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	info, err := bs.ctrl.RoomInfo(ctx, args.Code)
	if err != nil {
		return err
	}
	reply.Room = info
	return nil
}

func (bs *BotService) StartRoom(args *StartRoomArgs, reply *StartRoomReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	code, err := bs.ctrl.StartRoom(ctx, args.Name, args.Public)
	if err != nil {
		return err
	}
	reply.Code = code
	return nil
}

func (bs *BotService) JoinRoom(args *JoinRoomArgs, _ *Empty) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	return bs.ctrl.JoinRoom(ctx, args.Code, args.Creator)
}

func (bs *BotService) LeaveRoom(args *RoomArgs, _ *Empty) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	return bs.ctrl.LeaveRoom(ctx, args.Code)
}

func (bs *BotService) Say(args *SayArgs, _ *Empty) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	return bs.ctrl.Say(ctx, args.Code, args.Text)
}

func (bs *BotService) History(args *HistoryArgs, reply *HistoryReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	records, err := bs.ctrl.History(ctx, args.Code, args.Limit)
	if err != nil {
		return err
	}
	reply.Records = records
	return nil
}
