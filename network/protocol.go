package network

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Room socket events.
const (
	EventChat             = "chat"
	EventChatterAdded     = "chatterAdded"
	EventJoinRoom         = "joinRoom"
	EventSetUserModerator = "setUserModerator"
)

// Game socket events.
const (
	EventJoinGame               = "joinGame"
	EventJoinRound              = "joinRound"
	EventSetWord                = "setWord"
	EventStartRoundNow          = "startRoundNow"
	EventSetup                  = "setup"
	EventSetMilestone           = "setMilestone"
	EventNextTurn               = "nextTurn"
	EventSetPlayerWord          = "setPlayerWord"
	EventCorrectWord            = "correctWord"
	EventFailWord               = "failWord"
	EventAddPlayer              = "addPlayer"
	EventLivesLost              = "livesLost"
	EventBonusAlphabetCompleted = "bonusAlphabetCompleted"
)

type PacketType int

const (
	PacketOpen PacketType = iota
	PacketClose
	PacketPing
	PacketPong
	PacketConnect
	PacketDisconnect
	PacketEvent
	PacketAck
	PacketConnectError
	PacketNoop
)

func (t PacketType) String() string {
	switch t {
	case PacketOpen:
		return "open"
	case PacketClose:
		return "close"
	case PacketPing:
		return "ping"
	case PacketPong:
		return "pong"
	case PacketConnect:
		return "connect"
	case PacketDisconnect:
		return "disconnect"
	case PacketEvent:
		return "event"
	case PacketAck:
		return "ack"
	case PacketConnectError:
		return "connect_error"
	default:
		return "noop"
	}
}

var ErrMalformedPacket = errors.New("malformed packet")

// Packet is one decoded text frame.
//
// Frames are "<engine type>[<socket type>][<ack id>]<json>": "0{...}" opens the
// session, "2"/"3" are ping/pong, "40" connects, "42[event,args...]" is an
// event and "43<id>[args...]" acknowledges event <id>.
type Packet struct {
	Type PacketType
	// ID is the ack id, -1 when the packet carries none.
	ID    int64
	Event string
	// Data is a JSON array of the event arguments for events and acks, and
	// the raw JSON object for open and connect packets.
	Data []byte
}

// NoAck marks an event that does not request an acknowledgement.
const NoAck int64 = -1

// EncodeEvent builds an event frame. Pass NoAck as id for a plain event.
func EncodeEvent(id int64, event string, args ...any) ([]byte, error) {
	body, err := json.Marshal(append([]any{event}, args...))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return frame("42", id, body), nil
}

// EncodeAck builds the acknowledgement for a server event that asked for one.
func EncodeAck(id int64, args ...any) ([]byte, error) {
	if args == nil {
		args = []any{}
	}
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode ack %d: %w", id, err)
	}
	return frame("43", id, body), nil
}

func frame(prefix string, id int64, body []byte) []byte {
	var b strings.Builder
	b.Grow(len(prefix) + len(body) + 8)
	b.WriteString(prefix)
	if id >= 0 {
		b.WriteString(strconv.FormatInt(id, 10))
	}
	b.Write(body)
	return []byte(b.String())
}

var (
	framePing    = []byte("2")
	framePong    = []byte("3")
	frameConnect = []byte("40")
)

// Decode parses a text frame.
func Decode(data []byte) (Packet, error) {
	p := Packet{ID: NoAck}
	if len(data) == 0 {
		return p, fmt.Errorf("%w: empty frame", ErrMalformedPacket)
	}

	switch data[0] {
	case '0':
		p.Type = PacketOpen
		p.Data = data[1:]
		return p, nil
	case '1':
		p.Type = PacketClose
		return p, nil
	case '2':
		p.Type = PacketPing
		return p, nil
	case '3':
		p.Type = PacketPong
		return p, nil
	case '6':
		p.Type = PacketNoop
		return p, nil
	case '4':
	default:
		return p, fmt.Errorf("%w: unknown engine type %q", ErrMalformedPacket, data[0])
	}

	if len(data) < 2 {
		return p, fmt.Errorf("%w: missing socket type", ErrMalformedPacket)
	}
	rest := skipNamespace(data[2:])

	switch data[1] {
	case '0':
		p.Type = PacketConnect
		p.Data = rest
		return p, nil
	case '1':
		p.Type = PacketDisconnect
		return p, nil
	case '4':
		p.Type = PacketConnectError
		p.Data = rest
		return p, nil
	case '2':
		p.Type = PacketEvent
	case '3':
		p.Type = PacketAck
	default:
		return p, fmt.Errorf("%w: unknown socket type %q", ErrMalformedPacket, data[1])
	}

	id, body := splitAckID(rest)
	p.ID = id
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsArray() {
		return p, fmt.Errorf("%w: payload is not a json array", ErrMalformedPacket)
	}

	if p.Type == PacketAck {
		p.Data = body
		return p, nil
	}

	args := gjson.ParseBytes(body).Array()
	if len(args) == 0 || args[0].Type != gjson.String {
		return p, fmt.Errorf("%w: event without a name", ErrMalformedPacket)
	}
	p.Event = args[0].String()
	p.Data = joinRaw(args[1:])
	return p, nil
}

// skipNamespace drops a "/ns," prefix. Only the default namespace is used.
func skipNamespace(b []byte) []byte {
	if len(b) == 0 || b[0] != '/' {
		return b
	}
	for i, c := range b {
		if c == ',' {
			return b[i+1:]
		}
	}
	return nil
}

func splitAckID(b []byte) (int64, []byte) {
	i := 0
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
	}
	if i == 0 {
		return NoAck, b
	}
	id, err := strconv.ParseInt(string(b[:i]), 10, 64)
	if err != nil {
		return NoAck, b[i:]
	}
	return id, b[i:]
}

func joinRaw(values []gjson.Result) []byte {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(v.Raw)
	}
	b.WriteByte(']')
	return []byte(b.String())
}
