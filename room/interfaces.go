package room

// Emitter is the outbound side of a transport connection.
// This is defined here so room does not depend on the network package.
type Emitter interface {
	Emit(event string, args ...any) error
}

// Outbound events the actor emits itself.
const (
	eventChat          = "chat"
	eventStartRoundNow = "startRoundNow"
)
