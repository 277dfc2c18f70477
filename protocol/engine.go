package protocol

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	serialpkg "amxremote/transport/serial"
	tcppkg "amxremote/transport/tcp"
)

// flowController is implemented by transports that can suspend XON/XOFF
// for the duration of a binary transfer; only the serial transport does,
// so Transfer/Fetch reach it through a type assertion instead of a method
// on the Transport interface every transport would have to stub out.
type flowController interface {
	DisableFlowControl() error
	RestoreFlowControl() error
}

// Engine is the host-side protocol engine: an explicit object a caller
// owns instead of a process-wide transport global, so tests can inject a
// mock Transport without touching package state.
type Engine struct {
	cfg       EngineConfig
	kind      TransportKind
	transport Transport
	pending   PendingBuffer
	frames    *FrameReader
	console   io.Writer

	serialDevice string // remembered so SetBaud can reopen at the new rate
}

// NewEngine constructs an idle engine (TransportKind == None).
func NewEngine(cfg EngineConfig) *Engine {
	applyDefaults(&cfg)
	e := &Engine{cfg: cfg, kind: TransportNone, console: os.Stdout}
	e.frames = &FrameReader{Pending: &e.pending, Console: e.console}
	return e
}

// SetConsole redirects bytes the device emits outside of frames.
// Defaults to os.Stdout.
func (e *Engine) SetConsole(w io.Writer) {
	e.console = w
	e.frames.Console = w
}

// Kind reports the active transport.
func (e *Engine) Kind() TransportKind { return e.kind }

// FrameRetries reports the configured per-call frame-read retry budget, for
// callers (the CLI harness) that want Wait's default rather than a custom
// bound.
func (e *Engine) FrameRetries() int64 { return e.cfg.FrameRetries }

// OpenSerial opens an RS-232 link and performs the handshake. At most one
// transport is ever active, so any prior transport is closed first.
func (e *Engine) OpenSerial(port string, baud int) error {
	if err := e.Close(); err != nil {
		return err
	}
	if !serialpkg.BaudAccepted(baud) {
		return wrap(ErrTransportOpen, fmt.Sprintf("baud %d not in accepted set", baud))
	}

	cfg := serialpkg.DefaultConfig(port)
	cfg.Baud = baud
	p, err := serialpkg.Open(cfg)
	if err != nil {
		return wrap(ErrTransportOpen, "open serial: "+err.Error())
	}

	e.transport = p
	e.kind = TransportSerial
	e.serialDevice = port
	e.frames.Transport = p
	if err := e.handshake(); err != nil {
		e.teardown()
		return err
	}
	return nil
}

// OpenTCP connects to host:port and performs the handshake.
func (e *Engine) OpenTCP(host string, port int) error {
	if err := e.Close(); err != nil {
		return err
	}

	conn, err := tcppkg.Dial(fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return wrap(ErrTransportOpen, "open tcp: "+err.Error())
	}

	e.transport = conn
	e.kind = TransportTCP
	e.frames.Transport = conn
	if err := e.handshake(); err != nil {
		e.teardown()
		return err
	}
	return nil
}

func (e *Engine) teardown() {
	if e.transport != nil {
		e.transport.Close()
	}
	e.transport = nil
	e.kind = TransportNone
	e.frames.Transport = nil
}

// Close best-effort unhooks the debugger and releases the transport.
// Idempotent; errors during close are silent.
func (e *Engine) Close() error {
	if e.kind == TransportNone {
		return nil
	}
	e.transport.Write([]byte("?U\n"))
	e.teardown()
	e.pending.Take()
	return nil
}

// requireOpen reports the dispatcher's "TransportKind == None" no-op
// error; callers of every operation but Transfer/Fetch/ListFiles/SetBaud
// get success instead.
func (e *Engine) requireOpen() error {
	if e.kind == TransportNone {
		return ErrNotSupported
	}
	return nil
}

// ---- handshake ----

func (e *Engine) handshake() error {
	rounds := e.cfg.HandshakeRetries
	for r := 0; r < rounds; r++ {
		if _, err := e.transport.Write([]byte{HandshakeToken}); err != nil {
			return wrap(ErrTransportIO, "handshake write")
		}
		e.transport.Sleep(10 * time.Millisecond)

		for i := 0; i < 4; i++ {
			e.transport.Sleep(10 * time.Millisecond)

			one := make([]byte, 1)
			n, err := e.transport.Read(one)
			if err != nil {
				return wrap(ErrTransportIO, "handshake read")
			}
			if n == 0 || one[0] != FrameStart {
				continue
			}

			e.transport.Sleep(20 * time.Millisecond)
			body, ok, err := e.readHandshakeBody()
			if err != nil {
				return wrap(ErrTransportIO, "handshake read")
			}
			if !ok {
				continue
			}

			// Mid-break special case: a non-empty body is a break-hit frame,
			// not an empty sync ack. Reconstruct it as a full frame in
			// Pending so the next Wait call parses it immediately instead of
			// the handshake silently discarding it.
			if len(body) > 0 {
				e.pending.Fill(append(append([]byte{FrameStart}, body...), FrameEnd))
			}
			e.timeSync()
			return nil
		}
	}
	return ErrFramingTimeout
}

// readHandshakeBody reads bytes until FrameEnd, bounded by scanWindow and
// a short retry budget on zero-byte reads (mirrors ReadFrame's polling,
// simplified since the handshake already knows it is past FrameStart).
func (e *Engine) readHandshakeBody() ([]byte, bool, error) {
	const handshakeBodyRetries = 20

	var body []byte
	one := make([]byte, 1)
	retries := int64(handshakeBodyRetries)
	for len(body) < scanWindow {
		n, err := e.transport.Read(one)
		if err != nil {
			return nil, false, err
		}
		if n == 0 {
			if retries <= 0 {
				return nil, false, nil
			}
			e.transport.Sleep(retryDelay)
			retries--
			continue
		}
		if one[0] == FrameEnd {
			return body, true, nil
		}
		body = append(body, one[0])
	}
	return nil, false, nil
}

// timeSync issues ?T with the current wall clock. Best-effort: the
// original discards this call's result too (remote_rs232 does not check
// settimestamp_rs232's return value), so failures here don't fail Open.
func (e *Engine) timeSync() {
	cmd := fmt.Sprintf("?T%x\n", time.Now().Unix())
	if _, err := e.transport.Write([]byte(cmd)); err != nil {
		return
	}
	e.readResponse(e.cfg.FrameRetries)
}

// readResponse reads one ordinary command reply: skip bytes until
// FrameStart, then accumulate until FrameEnd. Unlike FrameReader.ReadFrame
// this never touches PendingBuffer — in the original C, getresponse_rs232
// (used for ?R/?M/?W/?T/?P/?L/?B replies) is a plain scan-and-accumulate
// with no pending-buffer bookkeeping; only remote_wait_rs232 (Wait, here)
// persists bytes across calls. Using the Pending-aware reader here would
// let a command reply steal bytes a concurrent handshake or Wait call
// already stashed for the next break frame.
func (e *Engine) readResponse(retries int64) ([]byte, error) {
	one := make([]byte, 1)
	for {
		n, err := e.transport.Read(one)
		if err != nil {
			return nil, wrap(ErrTransportIO, "response read")
		}
		if n == 0 {
			if retries <= 0 {
				return nil, ErrFramingTimeout
			}
			e.transport.Sleep(retryDelay)
			retries--
			continue
		}
		if one[0] == FrameStart {
			break
		}
	}

	var body []byte
	for len(body) < scanWindow {
		n, err := e.transport.Read(one)
		if err != nil {
			return nil, wrap(ErrTransportIO, "response read")
		}
		if n == 0 {
			if retries <= 0 {
				return nil, ErrFramingTimeout
			}
			e.transport.Sleep(retryDelay)
			retries--
			continue
		}
		if one[0] == FrameEnd {
			return body, nil
		}
		body = append(body, one[0])
	}
	return nil, wrap(ErrProtocol, "response exceeded scan window")
}

// ---- wait / sync / memory ----

// Wait blocks until a break-hit frame arrives, updating amx.Cip. Bytes
// outside any frame are forwarded to the console. A malformed body is
// printed and scanning continues, sharing the same retries budget across
// every frame read in the call, matching remote_wait_rs232's single outer
// retries variable.
//
// ctx is honored additively: if already canceled before the call, Wait
// returns immediately with ctx.Err(). The engine has no internal
// concurrency to poll ctx.Done() against mid-read, so a cancellation that
// arrives after Wait has started is not observed until the current frame
// read completes.
func (e *Engine) Wait(ctx context.Context, amx *AMView, retries int64) (bool, error) {
	if err := e.requireOpen(); err != nil {
		return true, nil
	}

	for {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return false, err
			}
		}
		body, left, err := e.frames.readFrame(retries)
		retries = left
		if err != nil {
			return false, err
		}
		cip, perr := strconv.ParseUint(strings.TrimSpace(string(body)), 16, 64)
		if perr != nil {
			e.frames.writeConsole(body)
			continue
		}
		amx.Cip = Cell(cip)
		return true, nil
	}
}

// Sync issues ?R and updates amx.Frm/Stk/Hea from the reply.
func (e *Engine) Sync(amx *AMView) error {
	if err := e.requireOpen(); err != nil {
		return nil
	}
	if _, err := e.transport.Write([]byte("?R\n")); err != nil {
		return wrap(ErrTransportIO, "sync write")
	}
	body, err := e.readResponse(e.cfg.FrameRetries)
	if err != nil {
		return err
	}
	parts := strings.Split(strings.TrimSpace(string(body)), ",")
	if len(parts) != 3 {
		return wrap(ErrProtocol, "malformed register snapshot")
	}
	frm, err1 := strconv.ParseUint(strings.TrimSpace(parts[0]), 16, 64)
	stk, err2 := strconv.ParseUint(strings.TrimSpace(parts[1]), 16, 64)
	hea, err3 := strconv.ParseUint(strings.TrimSpace(parts[2]), 16, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return wrap(ErrProtocol, "malformed register snapshot")
	}
	amx.Frm = Cell(frm)
	amx.Stk = Cell(stk)
	amx.Hea = Cell(hea)
	return nil
}

// ReadMem reads n cells starting at vaddr into amx's backing store,
// batching at most 10 cells per ?M command.
func (e *Engine) ReadMem(amx *AMView, vaddr Cell, n int) error {
	if err := e.requireOpen(); err != nil {
		return nil
	}
	for n > 0 {
		count := n
		if count > maxCellsPerPacket {
			count = maxCellsPerPacket
		}
		if _, err := e.transport.Write([]byte(fmt.Sprintf("?M%x,%x\n", vaddr, count))); err != nil {
			return wrap(ErrTransportIO, "read mem write")
		}
		body, err := e.readResponse(e.cfg.FrameRetries)
		if err != nil {
			return err
		}
		values, perr := parseHexCells(body)
		if perr != nil {
			return wrap(ErrProtocol, "malformed memory read reply")
		}
		for _, v := range values {
			if n <= 0 {
				break
			}
			if cell, ok := amx.VirtToPhys(vaddr); ok {
				*cell = Cell(v)
			}
			vaddr += CellSize
			n--
		}
	}
	return nil
}

// WriteMem writes n cells from amx's backing store starting at vaddr,
// batching at most 10 cells per ?W command. Only status 0 counts as
// success for a batch.
func (e *Engine) WriteMem(amx *AMView, vaddr Cell, n int) error {
	if err := e.requireOpen(); err != nil {
		return nil
	}
	for n > 0 {
		count := n
		if count > maxCellsPerPacket {
			count = maxCellsPerPacket
		}

		var b strings.Builder
		fmt.Fprintf(&b, "?W%x", vaddr)
		batchAddr := vaddr
		for i := 0; i < count; i++ {
			cell, ok := amx.VirtToPhys(batchAddr)
			if !ok {
				return wrap(ErrProtocol, "write address out of range")
			}
			fmt.Fprintf(&b, ",%x", uint64(*cell))
			batchAddr += CellSize
		}
		b.WriteByte('\n')

		if _, err := e.transport.Write([]byte(b.String())); err != nil {
			return wrap(ErrTransportIO, "write mem write")
		}
		body, err := e.readResponse(e.cfg.FrameRetries)
		if err != nil {
			return err
		}
		status, perr := strconv.ParseUint(strings.TrimSpace(string(body)), 16, 64)
		if perr != nil {
			return wrap(ErrProtocol, "malformed write status")
		}
		if status != 0 {
			return wrap(ErrProtocol, fmt.Sprintf("write rejected, status %x", status))
		}

		vaddr += Cell(count) * CellSize
		n -= count
	}
	return nil
}

// Resume sends the single-byte resume token; the device replies with
// nothing, it simply runs until the next break.
func (e *Engine) Resume() error {
	if err := e.requireOpen(); err != nil {
		return nil
	}
	if _, err := e.transport.Write([]byte("!")); err != nil {
		return wrap(ErrTransportIO, "resume write")
	}
	return nil
}

// parseHexCells parses a comma/whitespace-separated list of hex cells,
// tolerant of surrounding whitespace.
func parseHexCells(body []byte) ([]uint64, error) {
	fields := strings.FieldsFunc(string(body), func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	values := make([]uint64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 16, 64)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// ---- supplemented commands ----

// ListFiles requests the device's raw filename list via ?L.
func (e *Engine) ListFiles() ([]string, error) {
	if err := e.requireOpen(); err != nil {
		return nil, err
	}
	if _, err := e.transport.Write([]byte("?L\n")); err != nil {
		return nil, wrap(ErrTransportIO, "list write")
	}
	body, err := e.readResponse(e.cfg.FrameRetries)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, nil
	}
	names := strings.Split(trimmed, ",")
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}
	return names, nil
}

// SetBaud requests a baud-rate change on a Serial transport: sends ?B,
// waits for a status reply, and on success reopens the port at the new
// rate (closing the old handle first, per the same "close prior transport
// first" invariant open_* already observes).
func (e *Engine) SetBaud(baud int) error {
	if e.kind != TransportSerial {
		return wrap(ErrNotSupported, "baud change requires a serial transport")
	}
	if !serialpkg.BaudAccepted(baud) {
		return wrap(ErrTransportOpen, fmt.Sprintf("baud %d not in accepted set", baud))
	}
	if _, err := e.transport.Write([]byte(fmt.Sprintf("?B%x\n", baud))); err != nil {
		return wrap(ErrTransportIO, "set baud write")
	}
	body, err := e.readResponse(e.cfg.FrameRetries)
	if err != nil {
		return err
	}
	status, perr := strconv.ParseUint(strings.TrimSpace(string(body)), 16, 64)
	if perr != nil || status != 0 {
		return wrap(ErrProtocol, "device rejected baud change")
	}

	device := e.serialDevice
	e.teardown()
	return e.OpenSerial(device, baud)
}
