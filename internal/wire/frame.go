// Package wire implements the fixed-layout control-message frame
// exchanged over mailboxes and the three protocol steps that share it:
// request-to-send, confirm, and ack.
package wire

import (
	"encoding/binary"
	"fmt"
)

// FrameSize is the total byte length of the wire control message: the
// last field (slot-id/errcode, 4 bytes at offset 27) ends at byte 31.
const FrameSize = 31

// Frame is the canonical flat record exchanged over mailboxes. A
// single struct covers all three on-wire variants (request-to-send,
// confirm, ack); discrimination between them is positional by protocol
// step, not an explicit tag byte.
type Frame struct {
	ContextID    uint16
	SourceRank   int16
	TargetRank   int16
	Tag          int32
	ReceivedSize uint32
	DatatypeID   int16
	ByteCount    uint64
	PortalPort   uint8
	InboxPort    uint8
	SourceNode   uint8
	SlotIDOrErr  int32
}

// Encode writes f into the fixed little-endian byte layout.
func Encode(f Frame) [FrameSize]byte {
	var buf [FrameSize]byte
	binary.LittleEndian.PutUint16(buf[0:2], f.ContextID)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(f.SourceRank))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(f.TargetRank))
	binary.LittleEndian.PutUint32(buf[6:10], uint32(f.Tag))
	binary.LittleEndian.PutUint32(buf[10:14], f.ReceivedSize)
	binary.LittleEndian.PutUint16(buf[14:16], uint16(f.DatatypeID))
	binary.LittleEndian.PutUint64(buf[16:24], f.ByteCount)
	buf[24] = f.PortalPort
	buf[25] = f.InboxPort
	buf[26] = f.SourceNode
	binary.LittleEndian.PutUint32(buf[27:31], uint32(f.SlotIDOrErr))
	return buf
}

// Decode parses a fixed-layout frame out of buf, which must be at least
// FrameSize bytes.
func Decode(buf []byte) (Frame, error) {
	if len(buf) < FrameSize {
		return Frame{}, fmt.Errorf("wire: short frame: got %d bytes, want %d", len(buf), FrameSize)
	}
	var f Frame
	f.ContextID = binary.LittleEndian.Uint16(buf[0:2])
	f.SourceRank = int16(binary.LittleEndian.Uint16(buf[2:4]))
	f.TargetRank = int16(binary.LittleEndian.Uint16(buf[4:6]))
	f.Tag = int32(binary.LittleEndian.Uint32(buf[6:10]))
	f.ReceivedSize = binary.LittleEndian.Uint32(buf[10:14])
	f.DatatypeID = int16(binary.LittleEndian.Uint16(buf[14:16]))
	f.ByteCount = binary.LittleEndian.Uint64(buf[16:24])
	f.PortalPort = buf[24]
	f.InboxPort = buf[25]
	f.SourceNode = buf[26]
	f.SlotIDOrErr = int32(binary.LittleEndian.Uint32(buf[27:31]))
	return f, nil
}
