package assembler

import "fmt"

// ProtocolError is a fatal protocol violation: a malformed message
// sequence or a Begin/Commit disagreement. It terminates
// the session; the engine reconnects without acknowledging the in-flight
// transaction.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("assembler: protocol violation: %s", e.Reason)
}
