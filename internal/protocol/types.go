package protocol

const (
	// Magic prefixes every frame on the wire.
	Magic uint32 = 0x30061990

	// HeaderLen is magic(4) + length(4).
	HeaderLen = 8

	// PortFlag is the command-line flag a host application reads its driver port from.
	PortFlag = "--e2e-test-port"

	KindCommand  = "command"
	KindResponse = "response"
	KindEvent    = "event"

	// QuitCommand ends the host application's run loop after its response is sent.
	QuitCommand = "quit"

	// UnhandledMessage is the failure text for commands no handler claims.
	UnhandledMessage = "Unhandled message"
)
