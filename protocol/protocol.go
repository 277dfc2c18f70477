// Package protocol implements the Pawn/AMX remote-debugging wire protocol:
// framing, handshake, the command/response grammar and block file transfer
// over a transport-independent link.
package protocol

const (
	// FrameStart is the sentinel byte that opens a device-to-host frame.
	FrameStart = 0xBF
	// FrameEnd is the byte that closes a frame.
	FrameEnd = ']'

	// HandshakeToken is the single byte the host sends to request sync.
	HandshakeToken = 0xA1

	// ACK/NAK prefix bytes used in the file-transfer sub-protocol.
	ack = 0x06
	nak = 0x15

	// pendingBufferCap is the bound on PendingBuffer.
	pendingBufferCap = 30

	// maxCellsPerPacket is the batching limit for ?M and ?W commands.
	maxCellsPerPacket = 10

	// scanWindow is the size of the fixed buffer used while scanning for a
	// frame; it mirrors the original C implementation's stack buffer.
	scanWindow = 50
)
