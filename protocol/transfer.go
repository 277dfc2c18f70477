package protocol

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// fetchBlockSize bounds each raw chunk Fetch reads off the device; there
// is no negotiated blocksize for ?G the way ?P negotiates one for upload,
// so this is a fixed, generous chunk size.
const fetchBlockSize = 256

// Transfer uploads filename to the device: negotiates a blocksize with
// ?P, then streams the file in ACK/NAK-prefixed, checksummed blocks,
// retrying a block indefinitely on checksum mismatch, by design.
func (e *Engine) Transfer(filename string) error {
	if e.kind == TransportNone {
		return wrap(ErrNotSupported, "remote file transfer not supported")
	}

	f, err := os.Open(filename)
	if err != nil {
		return wrapErr("open transfer file", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return wrapErr("stat transfer file", err)
	}
	remaining := info.Size()

	if fc, ok := e.transport.(flowController); ok {
		fc.DisableFlowControl()
		defer fc.RestoreFlowControl()
	}

	cmd := fmt.Sprintf("?P %x,%s\n", remaining, filepath.Base(filename))
	if _, err := e.transport.Write([]byte(cmd)); err != nil {
		return wrap(ErrTransportIO, "transfer setup write")
	}
	body, err := e.readResponse(e.cfg.FrameRetries)
	if err != nil {
		return err
	}
	blockSize, perr := strconv.ParseUint(strings.TrimSpace(string(body)), 16, 64)
	if perr != nil || blockSize == 0 {
		return wrap(ErrTransferRejected, "device refused transfer")
	}

	payload := make([]byte, blockSize)
	block := make([]byte, blockSize+1)
	for remaining > 0 {
		n, err := f.Read(payload)
		if n == 0 {
			if err != nil {
				return wrapErr("read transfer file", err)
			}
			break
		}

		checksum := Checksum8(payload[:n])
		block[0] = ack
		copy(block[1:], payload[:n])

		for {
			if _, err := e.transport.Write(block[:n+1]); err != nil {
				return wrap(ErrTransportIO, "transfer block write")
			}
			reply, err := e.readResponse(e.cfg.FrameRetries)
			if err != nil {
				return err
			}
			status, perr := strconv.ParseUint(strings.TrimSpace(string(reply)), 16, 64)
			if perr != nil {
				return wrap(ErrProtocol, "malformed transfer status")
			}
			if status == 0 {
				return wrap(ErrTransferRejected, "device rejected transfer")
			}
			if status == uint64(checksum) {
				break
			}
			block[0] = nak
		}

		remaining -= int64(n)
	}

	if _, err := e.transport.Write([]byte{ack}); err != nil {
		return wrap(ErrTransportIO, "transfer terminator write")
	}
	if _, err := e.transport.Write([]byte("?U*\n")); err != nil {
		return wrap(ErrTransportIO, "transfer reboot write")
	}
	return nil
}

// Fetch retrieves name from the device (the ?G direction): the device
// replies with the file size, then streams it as raw, non-frame-wrapped
// bytes; each chunk is acknowledged with its computed checksum as a
// courtesy echo for the device's own verification.
func (e *Engine) Fetch(name string) ([]byte, error) {
	if e.kind == TransportNone {
		return nil, wrap(ErrNotSupported, "remote file fetch not supported")
	}

	if _, err := e.transport.Write([]byte(fmt.Sprintf("?G%s\n", name))); err != nil {
		return nil, wrap(ErrTransportIO, "fetch setup write")
	}
	body, err := e.readResponse(e.cfg.FrameRetries)
	if err != nil {
		return nil, err
	}
	size, perr := strconv.ParseUint(strings.TrimSpace(string(body)), 16, 64)
	if perr != nil {
		return nil, wrap(ErrProtocol, "malformed fetch size reply")
	}
	if size == 0 {
		return nil, wrap(ErrTransferRejected, "device refused fetch")
	}

	if fc, ok := e.transport.(flowController); ok {
		fc.DisableFlowControl()
		defer fc.RestoreFlowControl()
	}

	data := make([]byte, 0, size)
	for uint64(len(data)) < size {
		remaining := size - uint64(len(data))
		want := uint64(fetchBlockSize)
		if remaining < want {
			want = remaining
		}
		chunk := make([]byte, want)
		if err := e.readFull(chunk); err != nil {
			return nil, err
		}
		checksum := Checksum8(chunk)
		e.transport.Write([]byte(fmt.Sprintf("%x\n", checksum)))
		data = append(data, chunk...)
	}
	return data, nil
}

// readFull reads exactly len(b) bytes off the active transport, retrying
// zero-byte (timeout) reads with the configured frame-retry budget.
func (e *Engine) readFull(b []byte) error {
	got := 0
	retries := e.cfg.FrameRetries
	for got < len(b) {
		n, err := e.transport.Read(b[got:])
		if err != nil {
			return wrap(ErrTransportIO, "fetch read")
		}
		if n == 0 {
			if retries <= 0 {
				return ErrFramingTimeout
			}
			e.transport.Sleep(retryDelay)
			retries--
			continue
		}
		got += n
	}
	return nil
}
