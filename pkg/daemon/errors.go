package daemon

import (
	"errors"
	"fmt"
	"strings"
)

// Error categories. Every daemon error matches exactly one of them with
// errors.Is.
var (
	// ErrTransport covers dead subprocesses, broken pipes, framing violations
	// and USB I/O failures. A Client that saw one stays broken.
	ErrTransport = errors.New("daemon: transport error")
	// ErrProtocol is a well-formed error reply from the other side.
	ErrProtocol = errors.New("daemon: protocol error")
	// ErrDeviceGone reports a board id that is no longer attached.
	ErrDeviceGone = errors.New("daemon: board not found")
	// ErrCapability reports a feature the board does not have.
	ErrCapability = errors.New("daemon: capability not supported")
	// ErrNotImplemented lets variants reject an operation they cannot serve.
	ErrNotImplemented = errors.New("daemon: not implemented")
)

// RemoteError is an error message produced by the far side of a daemon
// connection or by keyboard firmware. Message is kept verbatim.
type RemoteError struct {
	Message string
	// Kind is the category the error matches. Nil means ErrProtocol.
	Kind error
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Is matches the error's Kind.
func (e *RemoteError) Is(target error) bool {
	if e.Kind == nil {
		return target == ErrProtocol
	}
	return target == e.Kind
}

// remoteKinds are the categories a server keeps as message prefixes.
var remoteKinds = []error{ErrDeviceGone, ErrCapability, ErrNotImplemented}

// newRemoteError recovers the category of a message relayed by a Server from
// its prefix.
func newRemoteError(msg string) *RemoteError {
	for _, kind := range remoteKinds {
		if strings.HasPrefix(msg, kind.Error()) {
			return &RemoteError{Message: msg, Kind: kind}
		}
	}
	return &RemoteError{Message: msg, Kind: ErrProtocol}
}

func transportError(err error) error {
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

func deviceGone(board fmt.Stringer) error {
	return fmt.Errorf("%w: %s", ErrDeviceGone, board)
}
