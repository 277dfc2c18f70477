package protocol

import "testing"

// newTestEngine builds an Engine already wired to tr as if OpenSerial had
// succeeded, without touching any real transport package — whitebox
// construction that drives package internals directly instead of going
// through the exported constructors meant for production callers.
func newTestEngine(tr Transport) *Engine {
	e := NewEngine(EngineConfig{})
	e.transport = tr
	e.kind = TransportSerial
	e.frames.Transport = tr
	return e
}

func frameOf(body string) []byte {
	f := append([]byte{FrameStart}, []byte(body)...)
	return append(f, FrameEnd)
}

func TestEngineSyncUpdatesRegisters(t *testing.T) {
	tr := newMockTransport(feedBytes(frameOf("2a,4,8"))...)
	e := newTestEngine(tr)

	var amx AMView
	if err := e.Sync(&amx); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if amx.Frm != 0x2a || amx.Stk != 4 || amx.Hea != 8 {
		t.Errorf("Sync() registers = {Frm:%x Stk:%x Hea:%x}, want {Frm:2a Stk:4 Hea:8}", amx.Frm, amx.Stk, amx.Hea)
	}
}

func TestEngineReadMemBatching(t *testing.T) {
	batch1 := "1,2,3,4,5,6,7,8,9,a"
	batch2 := "b,c"
	var chunks [][]byte
	chunks = append(chunks, feedBytes(frameOf(batch1))...)
	chunks = append(chunks, feedBytes(frameOf(batch2))...)
	tr := newMockTransport(chunks...)
	e := newTestEngine(tr)

	amx := AMView{Memory: make([]Cell, 12), Base: 0}
	if err := e.ReadMem(&amx, 0, 12); err != nil {
		t.Fatalf("ReadMem() error = %v", err)
	}
	if len(tr.writes) != 2 {
		t.Fatalf("ReadMem() issued %d commands, want 2 (batches of 10 then 2)", len(tr.writes))
	}
	for i := 0; i < 12; i++ {
		want := Cell(i + 1)
		if amx.Memory[i] != want {
			t.Errorf("Memory[%d] = %x, want %x", i, amx.Memory[i], want)
		}
	}
}

func TestEngineWriteMemBatching(t *testing.T) {
	var chunks [][]byte
	chunks = append(chunks, feedBytes(frameOf("0"))...)
	chunks = append(chunks, feedBytes(frameOf("0"))...)
	tr := newMockTransport(chunks...)
	e := newTestEngine(tr)

	mem := make([]Cell, 12)
	for i := range mem {
		mem[i] = Cell(i)
	}
	amx := AMView{Memory: mem, Base: 0}
	if err := e.WriteMem(&amx, 0, 12); err != nil {
		t.Fatalf("WriteMem() error = %v", err)
	}
	if len(tr.writes) != 2 {
		t.Errorf("WriteMem() issued %d commands, want 2", len(tr.writes))
	}
}

func TestEngineWriteMemRejection(t *testing.T) {
	tr := newMockTransport(feedBytes(frameOf("1"))...)
	e := newTestEngine(tr)

	amx := AMView{Memory: []Cell{1}, Base: 0}
	err := e.WriteMem(&amx, 0, 1)
	if err == nil {
		t.Fatal("WriteMem() with nonzero status should return an error")
	}
}

func TestEngineWaitParsesCip(t *testing.T) {
	tr := newMockTransport(feedBytes(frameOf("2a"))...)
	e := newTestEngine(tr)

	var amx AMView
	ok, err := e.Wait(nil, &amx, 0)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if !ok {
		t.Error("Wait() ok = false, want true")
	}
	if amx.Cip != 0x2a {
		t.Errorf("Wait() Cip = %x, want 2a", amx.Cip)
	}
}

func TestEngineWaitSkipsMalformedBody(t *testing.T) {
	var chunks [][]byte
	chunks = append(chunks, feedBytes(frameOf("not-hex"))...)
	chunks = append(chunks, feedBytes(frameOf("7"))...)
	tr := newMockTransport(chunks...)
	e := newTestEngine(tr)

	var amx AMView
	ok, err := e.Wait(nil, &amx, 0)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if !ok || amx.Cip != 7 {
		t.Errorf("Wait() = (%v, Cip=%x), want (true, Cip=7)", ok, amx.Cip)
	}
}

func TestEngineNoopWhenTransportNone(t *testing.T) {
	e := NewEngine(EngineConfig{}) // kind stays TransportNone

	var amx AMView
	if err := e.Sync(&amx); err != nil {
		t.Errorf("Sync() with no transport = %v, want nil (silent success)", err)
	}
	if err := e.ReadMem(&amx, 0, 1); err != nil {
		t.Errorf("ReadMem() with no transport = %v, want nil", err)
	}
	if err := e.WriteMem(&amx, 0, 1); err != nil {
		t.Errorf("WriteMem() with no transport = %v, want nil", err)
	}
	if err := e.Resume(); err != nil {
		t.Errorf("Resume() with no transport = %v, want nil", err)
	}
	ok, err := e.Wait(nil, &amx, 0)
	if err != nil || !ok {
		t.Errorf("Wait() with no transport = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestEngineOptionalCommandsErrorWhenTransportNone(t *testing.T) {
	e := NewEngine(EngineConfig{})

	if _, err := e.ListFiles(); err == nil {
		t.Error("ListFiles() with no transport should error, not silently succeed")
	}
	if err := e.Transfer("anything"); err == nil {
		t.Error("Transfer() with no transport should error")
	}
	if _, err := e.Fetch("anything"); err == nil {
		t.Error("Fetch() with no transport should error")
	}
}

// TestEngineOrdinaryReplyDoesNotStealPendingBuffer is the regression test
// for the bug class this package's ordinary command replies (Sync, ReadMem,
// WriteMem, ListFiles, SetBaud, the ?P/?G setup reads in transfer.go) must
// not repeat: they read via readResponse, not via the Pending-aware
// FrameReader, so a frame stashed in Pending for the next Wait call (e.g.
// by a mid-break handshake) survives an intervening Sync untouched.
func TestEngineOrdinaryReplyDoesNotStealPendingBuffer(t *testing.T) {
	tr := newMockTransport(feedBytes(frameOf("2a,4,8"))...)
	e := newTestEngine(tr)

	stashed := frameOf("99")
	e.pending.Fill(stashed)

	var amx AMView
	if err := e.Sync(&amx); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if amx.Frm != 0x2a || amx.Stk != 4 || amx.Hea != 8 {
		t.Fatalf("Sync() registers = {Frm:%x Stk:%x Hea:%x}, want values from the transport reply, not Pending", amx.Frm, amx.Stk, amx.Hea)
	}
	if e.pending.Empty() {
		t.Fatal("Sync() drained Pending; an ordinary command reply must not touch the stashed break frame")
	}

	var amx2 AMView
	ok, err := e.Wait(nil, &amx2, 0)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if !ok || amx2.Cip != 0x99 {
		t.Errorf("Wait() after Sync = (%v, Cip=%x), want (true, Cip=99) from the preserved stash", ok, amx2.Cip)
	}
}

func TestHandshakeEmptyBody(t *testing.T) {
	// Device replies with an empty ack (0xBF ']'), then acks the
	// time-sync ?T the handshake issues afterward.
	stream := append([]byte{}, FrameStart, FrameEnd, FrameStart, FrameEnd)
	tr := newMockTransport(feedBytes(stream)...)
	e := newTestEngine(tr)

	if err := e.handshake(); err != nil {
		t.Fatalf("handshake() error = %v", err)
	}
	if !e.pending.Empty() {
		t.Error("empty handshake ack should not stash anything into Pending")
	}
}

func TestHandshakeMidBreakStashesPendingFrame(t *testing.T) {
	// Device hits a breakpoint during the handshake window: the single
	// byte read after 0xBF is followed by more body bytes before ']'.
	// The handshake must reconstruct this as a full frame in Pending so
	// the next Wait call parses the break immediately.
	stream := []byte{FrameStart, '2', 'a', FrameEnd, FrameStart, FrameEnd}
	tr := newMockTransport(feedBytes(stream)...)
	e := newTestEngine(tr)

	if err := e.handshake(); err != nil {
		t.Fatalf("handshake() error = %v", err)
	}
	if e.pending.Empty() {
		t.Fatal("mid-break handshake body should be stashed in Pending")
	}

	var amx AMView
	ok, err := e.Wait(nil, &amx, 0)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if !ok || amx.Cip != 0x2a {
		t.Errorf("Wait() after mid-break handshake = (%v, Cip=%x), want (true, Cip=2a)", ok, amx.Cip)
	}
}

func TestEngineListFiles(t *testing.T) {
	tr := newMockTransport(feedBytes(frameOf("a.amx,b.amx"))...)
	e := newTestEngine(tr)

	names, err := e.ListFiles()
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	want := []string{"a.amx", "b.amx"}
	if len(names) != len(want) {
		t.Fatalf("ListFiles() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("ListFiles()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestEngineListFilesEmpty(t *testing.T) {
	tr := newMockTransport(feedBytes(frameOf(""))...)
	e := newTestEngine(tr)

	names, err := e.ListFiles()
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	if names != nil {
		t.Errorf("ListFiles() with an empty reply = %v, want nil", names)
	}
}

func TestEngineSetBaudRejectsUnknownRate(t *testing.T) {
	e := newTestEngine(newMockTransport())
	if err := e.SetBaud(1234); err == nil {
		t.Error("SetBaud() with an unsupported rate should error before writing anything")
	}
}

func TestEngineSetBaudRequiresSerial(t *testing.T) {
	e := NewEngine(EngineConfig{}) // TransportNone
	if err := e.SetBaud(9600); err == nil {
		t.Error("SetBaud() with no serial transport should error")
	}
}

func TestHandshakeTimesOutWhenDeviceSilent(t *testing.T) {
	e := newTestEngine(newMockTransport()) // no input ever arrives
	e.cfg.HandshakeRetries = 1

	if err := e.handshake(); err != ErrFramingTimeout {
		t.Errorf("handshake() error = %v, want ErrFramingTimeout", err)
	}
}
