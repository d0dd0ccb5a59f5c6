// Package server wires the room registry, the sockets and the operator
// surfaces into a running bot.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/wfunc/wordbot/broadcast"
	"github.com/wfunc/wordbot/command"
	"github.com/wfunc/wordbot/config"
	"github.com/wfunc/wordbot/dictionary"
	"github.com/wfunc/wordbot/game"
	"github.com/wfunc/wordbot/lobby"
	"github.com/wfunc/wordbot/logger"
	"github.com/wfunc/wordbot/models"
	"github.com/wfunc/wordbot/monitor"
	"github.com/wfunc/wordbot/network"
	"github.com/wfunc/wordbot/persistence"
	"github.com/wfunc/wordbot/room"
	botrpc "github.com/wfunc/wordbot/rpc"
	"github.com/wfunc/wordbot/services"
	"github.com/wfunc/wordbot/timer"
)

const (
	farewell       = "sayonara!"
	refreshEvery   = 15 * time.Second
	timerPrecision = 50 * time.Millisecond

	shutdownTimeout = 10 * time.Second
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrAlreadyInRoom = errors.New("already in room")
	ErrJoinRejected  = errors.New("join rejected")
)

// DialFunc opens an event socket. network.Dial is the production dialer.
type DialFunc func(ctx context.Context, url string, handler network.Handler, opts network.Options) (network.Conn, error)

func dialWS(ctx context.Context, url string, handler network.Handler, opts network.Options) (network.Conn, error) {
	c, err := network.Dial(ctx, url, handler, opts)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Lobby is the HTTP room API.
type Lobby interface {
	StartRoom(ctx context.Context, name string, public bool, token string) (string, error)
	JoinRoom(ctx context.Context, code string) (string, error)
}

type Bot struct {
	cfg   *config.Config
	token string
	dict  *dictionary.Dictionary

	rooms       *room.Manager
	lobby       Lobby
	dial        DialFunc
	dispatcher  *game.Dispatcher
	monitor     *monitor.Monitor
	timers      *timer.TimerManager
	archive     *services.ArchiveService
	broadcaster broadcast.Broadcaster
	rpcServer   *botrpc.Server
}

// NewBot builds a bot. Every room gets its own copy of dict.
func NewBot(cfg *config.Config, auth *command.Authorizer, dict *dictionary.Dictionary, archive persistence.Archive) *Bot {
	token := cfg.Bot.Token
	if token == "" {
		token = lobby.NewUserToken()
	}

	b := &Bot{
		cfg:     cfg,
		token:   token,
		dict:    dict,
		rooms:   room.NewRoomManager(),
		lobby:   lobby.NewClient(cfg.API.StartRoomURL, cfg.API.JoinRoomURL, cfg.API.Timeout),
		dial:    dialWS,
		monitor: monitor.NewMonitor(cfg.Monitor.Namespace),
		timers:  timer.NewTimerManager(timerPrecision),
		archive: services.NewArchiveService(archive),
	}
	b.broadcaster = broadcast.NewRoomBroadcaster(b.rooms)
	b.dispatcher = game.NewDispatcher(auth, b.monitor, b.timers, b, game.Options{
		Moderators: cfg.Bot.ModeratorIDs,
	})
	return b
}

func (b *Bot) socketOptions(name string) network.Options {
	opts := network.DefaultOptions()
	opts.Name = name
	opts.ChatRate = b.cfg.Transport.ChatRate
	opts.ChatBurst = b.cfg.Transport.ChatBurst
	opts.WriteTimeout = b.cfg.Transport.WriteTimeout
	opts.SendBuffer = b.cfg.Transport.SendBuffer
	return opts
}

// StartRoom creates a room through the lobby and joins it. The bot is the
// creator of rooms it starts.
func (b *Bot) StartRoom(ctx context.Context, name string, public bool) (string, error) {
	code, err := b.lobby.StartRoom(ctx, name, public, b.token)
	if err != nil {
		return "", err
	}
	if err := b.JoinRoom(ctx, code, b.token); err != nil {
		return "", err
	}
	return code, nil
}

// JoinRoom performs the two-socket join handshake and registers the room.
// creator is the authenticated id allowed to use creator commands.
func (b *Bot) JoinRoom(ctx context.Context, code, creator string) (err error) {
	if _, exists := b.rooms.GetRoom(code); exists {
		return fmt.Errorf("%w: %s", ErrAlreadyInRoom, code)
	}

	url, err := b.lobby.JoinRoom(ctx, code)
	if err != nil {
		return err
	}

	a := room.NewActor(code, b.dict.Clone(), room.WithMailboxSize(b.cfg.Bot.MailboxSize))
	var roomConn, gameConn network.Conn
	defer func() {
		if err == nil {
			return
		}
		for _, c := range []network.Conn{roomConn, gameConn} {
			if c != nil {
				c.Close()
			}
		}
		a.Close()
	}()

	if err = a.SetRoomCreator(ctx, creator); err != nil {
		return err
	}

	roomConn, err = b.dial(ctx, url, b.dispatcher.RoomHandler(a), b.socketOptions("room "+code))
	if err != nil {
		return err
	}
	ack, err := roomConn.EmitWithAck(ctx, network.EventJoinRoom, map[string]any{
		"roomCode":  code,
		"userToken": b.token,
		"nickname":  b.cfg.Bot.Nickname,
		"language":  b.cfg.Bot.Language,
		"picture":   b.cfg.Bot.Picture,
	})
	if err != nil {
		return fmt.Errorf("join room %s: %w", code, err)
	}
	selfPeerID := gjson.GetBytes(ack, "0.selfPeerId")
	if !selfPeerID.Exists() {
		return fmt.Errorf("%w: %s: %s", ErrJoinRejected, code, ack)
	}
	if err = a.SetPeerID(ctx, selfPeerID.Int()); err != nil {
		return err
	}
	if err = a.SetRoomConn(ctx, roomConn); err != nil {
		return err
	}

	gameConn, err = b.dial(ctx, url, b.dispatcher.GameHandler(a), b.socketOptions("game "+code))
	if err != nil {
		return err
	}
	if err = a.SetGameConn(ctx, gameConn); err != nil {
		return err
	}
	if err = gameConn.Emit(network.EventJoinGame, lobby.GameID, code, b.token); err != nil {
		return fmt.Errorf("join game %s: %w", code, err)
	}
	if err = gameConn.Emit(network.EventJoinRound); err != nil {
		logger.Log.Warnw("join round failed", "room", code, "error", err)
	}

	if _, ok := b.rooms.Register(a); !ok {
		err = fmt.Errorf("%w: %s", ErrAlreadyInRoom, code)
		return err
	}
	b.monitor.SetActiveRooms(b.rooms.Count())
	logger.Log.Infow("joined room", "room", code, "peer", selfPeerID.Int())

	go b.watch(a, roomConn, gameConn)
	return nil
}

// watch leaves the room when the server drops either socket.
func (b *Bot) watch(a *room.Actor, conns ...network.Conn) {
	lost := make(chan struct{}, len(conns))
	for _, c := range conns {
		go func() {
			select {
			case <-c.Done():
				lost <- struct{}{}
			case <-a.Done():
			}
		}()
	}

	select {
	case <-a.Done():
		return
	case <-lost:
	}

	if current, ok := b.rooms.GetRoom(a.Code()); !ok || current != a {
		return
	}
	logger.Log.Infow("socket lost, leaving room", "room", a.Code())
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.API.Timeout)
	defer cancel()
	if err := b.LeaveRoom(ctx, a.Code()); err != nil && !errors.Is(err, ErrRoomNotFound) {
		logger.Log.Warnw("leave room failed", "room", a.Code(), "error", err)
	}
}

// LeaveRoom archives the room and shuts its actor down.
func (b *Bot) LeaveRoom(ctx context.Context, code string) error {
	a, ok := b.rooms.GetRoom(code)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	if err := b.archive.ArchiveRoom(ctx, a); err != nil {
		logger.Log.Warnw("archive room failed", "room", code, "error", err)
	}
	b.rooms.RemoveRoom(code)
	b.monitor.SetActiveRooms(b.rooms.Count())
	logger.Log.Infow("left room", "room", code)
	return nil
}

func (b *Bot) ListRooms(ctx context.Context) ([]room.Info, error) {
	var infos []room.Info
	for _, a := range b.rooms.Rooms() {
		info, err := a.Info(ctx)
		if errors.Is(err, room.ErrActorUnavailable) {
			continue
		}
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (b *Bot) RoomInfo(ctx context.Context, code string) (room.Info, error) {
	a, ok := b.rooms.GetRoom(code)
	if !ok {
		return room.Info{}, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	return a.Info(ctx)
}

func (b *Bot) Say(ctx context.Context, code, text string) error {
	if code == "" {
		return b.broadcaster.BroadcastToAll(ctx, text)
	}
	return b.broadcaster.BroadcastToRoom(ctx, code, text)
}

func (b *Bot) History(ctx context.Context, code string, limit int) ([]models.RoomRecord, error) {
	return b.archive.History(ctx, code, limit)
}

// Run starts the operator surfaces, enters the configured rooms and blocks
// until ctx is cancelled. Everything is shut down before it returns, also when
// entering the rooms fails.
func (b *Bot) Run(ctx context.Context) error {
	b.monitor.StartServer(b.cfg.Monitor.Address)
	if addr := b.cfg.RPC.Address; addr != "" {
		srv, err := botrpc.NewServer(addr, botrpc.NewBotService(b))
		if err != nil {
			return fmt.Errorf("rpc server: %w", err)
		}
		b.rpcServer = srv
		go srv.Start()
	}
	b.timers.AddTimer("active rooms", 0, refreshEvery, func() {
		b.monitor.SetActiveRooms(b.rooms.Count())
	})

	err := b.enterRooms(ctx)
	if err == nil {
		<-ctx.Done()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return multierr.Append(err, b.Shutdown(shutdownCtx))
}

// enterRooms joins the configured rooms concurrently, or starts a new one when
// none are configured.
func (b *Bot) enterRooms(ctx context.Context) error {
	if len(b.cfg.Bot.Rooms) == 0 {
		code, err := b.StartRoom(ctx, b.cfg.Bot.RoomName, b.cfg.Bot.Public)
		if err != nil {
			return err
		}
		logger.Log.Infof("Playing in room %s", code)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, code := range b.cfg.Bot.Rooms {
		g.Go(func() error {
			return b.JoinRoom(gctx, code, "")
		})
	}
	return g.Wait()
}

// Shutdown says goodbye in every room, archives them and stops the
// background services.
func (b *Bot) Shutdown(ctx context.Context) error {
	var errs error
	if b.rooms.Count() > 0 {
		if err := b.broadcaster.BroadcastToAll(ctx, farewell); err != nil {
			logger.Log.Warnw("farewell failed", "error", err)
		}
		// let the writers flush the farewell before the sockets close
		select {
		case <-time.After(game.DefaultExitDelay):
		case <-ctx.Done():
		}
	}
	for _, code := range b.rooms.Codes() {
		if err := b.LeaveRoom(ctx, code); err != nil && !errors.Is(err, ErrRoomNotFound) {
			errs = multierr.Append(errs, err)
		}
	}
	if b.rpcServer != nil {
		b.rpcServer.Stop()
	}
	b.timers.Stop()
	errs = multierr.Append(errs, b.monitor.Shutdown(ctx))
	errs = multierr.Append(errs, b.archive.Close())
	return errs
}
