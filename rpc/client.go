package rpc

import (
	"net/rpc"

	"github.com/wfunc/wordbot/models"
	"github.com/wfunc/wordbot/room"
)

// Client is a typed wrapper over a BotService connection.
type Client struct {
	rpc *rpc.Client
}

func Dial(addr string) (*Client, error) {
	c, err := rpc.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{rpc: c}, nil
}

func (c *Client) call(method string, args, reply any) error {
	return c.rpc.Call(ServiceName+"."+method, args, reply)
}

func (c *Client) ListRooms() ([]room.Info, error) {
	var reply RoomsReply
	err := c.call("ListRooms", &Empty{}, &reply)
	return reply.Rooms, err
}

func (c *Client) RoomInfo(code string) (room.Info, error) {
	var reply RoomReply
	err := c.call("RoomInfo", &RoomArgs{Code: code}, &reply)
	return reply.Room, err
}

func (c *Client) StartRoom(name string, public bool) (string, error) {
	var reply StartRoomReply
	err := c.call("StartRoom", &StartRoomArgs{Name: name, Public: public}, &reply)
	return reply.Code, err
}

func (c *Client) JoinRoom(code, creator string) error {
	return c.call("JoinRoom", &JoinRoomArgs{Code: code, Creator: creator}, &Empty{})
}

func (c *Client) LeaveRoom(code string) error {
	return c.call("LeaveRoom", &RoomArgs{Code: code}, &Empty{})
}

func (c *Client) Say(code, text string) error {
	return c.call("Say", &SayArgs{Code: code, Text: text}, &Empty{})
}

func (c *Client) History(code string, limit int) ([]models.RoomRecord, error) {
	var reply HistoryReply
	err := c.call("History", &HistoryArgs{Code: code, Limit: limit}, &reply)
	return reply.Records, err
}

func (c *Client) Close() error {
	return c.rpc.Close()
}
