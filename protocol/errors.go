package protocol

import "errors"

// Error wraps an inner error with a human-readable message, the way
// Daedaluz-goserial's serial.Error does, so callers can both print a
// sensible message and errors.Is/errors.As through to the cause.
type Error struct {
	msg string
	err error
}

func (e Error) Error() string {
	if e.msg != "" {
		if e.err != nil {
			return e.msg + ": " + e.err.Error()
		}
		return e.msg
	}
	if e.err != nil {
		return e.err.Error()
	}
	return ""
}

func (e Error) Unwrap() error {
	return e.err
}

func wrapErr(msg string, err error) error {
	if err == nil {
		return nil
	}
	return Error{msg: msg, err: err}
}

// Sentinel error taxonomy for classifying failures by cause.
// Use errors.Is(err, ErrTransportOpen) (etc.) to classify a returned error;
// wrap(sentinel, detail) below attaches context while keeping Is() working.
var (
	// ErrTransportOpen: port/socket could not be opened, baud not
	// supported, or connect timed out.
	ErrTransportOpen = errors.New("transport open failed")

	// ErrTransportIO: read or write returned an error, or an orderly
	// close happened mid-operation.
	ErrTransportIO = errors.New("transport i/o error")

	// ErrFramingTimeout: retries exhausted waiting for a frame.
	ErrFramingTimeout = errors.New("framing timeout")

	// ErrProtocol: a frame body failed to parse as the expected grammar.
	ErrProtocol = errors.New("protocol error")

	// ErrTransferRejected: the device replied with status 0 during upload.
	ErrTransferRejected = errors.New("transfer rejected by device")

	// ErrNotSupported: operation attempted with TransportKind == None (or
	// an operation-specific transport mismatch, e.g. SetBaud over TCP).
	ErrNotSupported = errors.New("not supported on the active transport")
)

// wrap attaches msg to sentinel while keeping errors.Is(result, sentinel)
// true, through Error.Unwrap returning the sentinel.
func wrap(sentinel error, msg string) error {
	return Error{msg: msg, err: sentinel}
}
