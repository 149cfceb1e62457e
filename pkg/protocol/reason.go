package protocol

// Disconnect reasons shown to the dropped client. They travel as the
// argument of a final "disconnect" reliable command.
const (
	ReasonTooManyCommands  = "too many pending commands"
	ReasonMessageOverflow  = "server message overflowed"
	ReasonIllegibleMessage = "illegible client message"
	ReasonTimedOut         = "timed out"
	ReasonServerShutdown   = "server shutting down"
	ReasonServerFull       = "server is full"
	ReasonBadChallenge     = "no or bad challenge for your address"
	ReasonBadVersion       = "server uses a different protocol version"
	ReasonRejected         = "connection rejected"
	ReasonClientQuit       = "disconnected"
	ReasonKicked           = "kicked"
	ReasonLostCommands     = "lost reliable commands"
)
