// Command client drives a running bot over its RPC port.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/pflag"

	botrpc "github.com/wfunc/wordbot/rpc"
)

const usage = `usage: client [--addr host:port] <command> [args]

commands:
  rooms                      list joined rooms
  info <code>                show one room
  start [name] [--public]    start a new room and join it
  join <code> [creator-id]   join an existing room
  leave <code>               archive and leave a room
  say [--room code] <text>   post to one room, or every room
  history <code> [--limit n] show archived games of a room
`

func main() {
	addr := pflag.String("addr", "127.0.0.1:9091", "bot RPC address")
	public := pflag.Bool("public", false, "make a started room public")
	roomCode := pflag.String("room", "", "target room for say")
	limit := pflag.Int("limit", 10, "history records to show")
	pflag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	pflag.Parse()

	args := pflag.Args()
	if len(args) == 0 {
		pflag.Usage()
		os.Exit(2)
	}

	c, err := botrpc.Dial(*addr)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	if err := run(c, args, *public, *roomCode, *limit); err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func run(c *botrpc.Client, args []string, public bool, roomCode string, limit int) error {
	switch args[0] {
	case "rooms":
		rooms, err := c.ListRooms()
		if err != nil {
			return err
		}
		for _, r := range rooms {
			fmt.Printf("%s\tplayers=%d\tused=%d\tsyllable=%q\n", r.Code, r.Players, r.UsedWords, r.Syllable)
		}
	case "info":
		r, err := c.RoomInfo(arg(args, 1))
		if err != nil {
			return err
		}
		fmt.Printf("%+v\n", r)
	case "start":
		code, err := c.StartRoom(arg(args, 1), public)
		if err != nil {
			return err
		}
		fmt.Println(code)
	case "join":
		return c.JoinRoom(arg(args, 1), arg(args, 2))
	case "leave":
		return c.LeaveRoom(arg(args, 1))
	case "say":
		return c.Say(roomCode, strings.Join(args[1:], " "))
	case "history":
		records, err := c.History(arg(args, 1), limit)
		if err != nil {
			return err
		}
		for _, r := range records {
			fmt.Printf("%s\t%s\twords=%d\tplayers=%d\n", r.ClosedAt.Format("2006-01-02 15:04"), r.RoomCode, len(r.UsedWords), len(r.Players))
		}
	default:
		pflag.Usage()
		os.Exit(2)
	}
	return nil
}
