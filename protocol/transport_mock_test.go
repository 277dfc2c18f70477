package protocol

import "time"

// mockTransport is a scripted, single-threaded stand-in for Transport used
// by the frame/engine/transfer tests. Read hands out queued input one
// chunk at a time; an empty queue is a timeout (0 bytes, nil error), the
// same contract OpenSerial's real transport gives a short VTIME read.
type mockTransport struct {
	in     [][]byte // queued Read chunks, consumed in order
	writes [][]byte // every Write call, recorded verbatim
	sleeps int
	closed bool
}

func newMockTransport(chunks ...[]byte) *mockTransport {
	return &mockTransport{in: append([][]byte(nil), chunks...)}
}

func (m *mockTransport) Read(b []byte) (int, error) {
	if len(m.in) == 0 {
		return 0, nil
	}
	chunk := m.in[0]
	n := copy(b, chunk)
	if n == len(chunk) {
		m.in = m.in[1:]
	} else {
		m.in[0] = chunk[n:]
	}
	return n, nil
}

func (m *mockTransport) Write(b []byte) (int, error) {
	m.writes = append(m.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (m *mockTransport) Sleep(d time.Duration) { m.sleeps++ }

func (m *mockTransport) Close() error {
	m.closed = true
	return nil
}

// push queues another chunk the next Read calls will consume, for tests
// that append bytes mid-exchange (e.g. a reply arriving after a write).
func (m *mockTransport) push(b []byte) {
	m.in = append(m.in, append([]byte(nil), b...))
}

// feedBytes splits data into one-byte chunks, matching the byte-at-a-time
// reads frame.go and engine.go issue; using whole-slice chunks would let a
// single mock Read satisfy several logical reads at once and mask bugs
// that only show up with a real serial driver's one-byte granularity.
func feedBytes(data []byte) [][]byte {
	chunks := make([][]byte, len(data))
	for i, b := range data {
		chunks[i] = []byte{b}
	}
	return chunks
}
