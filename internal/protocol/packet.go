package protocol

import (
	"encoding/binary"
	"fmt"
)

// Packet sizes
const (
	PacketSize = 64 // every packet on the wire is exactly 64 bytes
	MaxPayload = 56 // payload bytes carried by one packet
)

// Packet represents one 64-byte boot loader command packet.
//
// Wire format (little-endian, matching the ARM target):
//
//	0:     command
//	1:     payload byte count (max. 56)
//	2:     access width
//	3:     ack request flag
//	4-7:   target address
//	8-63:  payload
type Packet struct {
	Cmd        Command
	ByteCount  byte
	Access     AccessWidth
	AckRequest bool
	Address    uint32
	Data       []byte
}

// ReadRequest creates a read-memory request packet. The boot loader answers
// a read request with one or more data packets, so the ack flag is set.
func ReadRequest(addr uint32, count int, access AccessWidth) (*Packet, error) {
	if count < 1 || count > MaxPayload {
		return nil, fmt.Errorf("read byte count %d out of range 1..%d", count, MaxPayload)
	}
	if uint64(addr)+uint64(count) > 1<<32 {
		return nil, fmt.Errorf("read of %d bytes at 0x%08x wraps the address space", count, addr)
	}
	return &Packet{
		Cmd:        CmdReadMem,
		ByteCount:  byte(count),
		Access:     access,
		AckRequest: true,
		Address:    addr,
	}, nil
}

// WriteRequest creates a write-memory request packet carrying data.
// Writes are not acknowledged by the boot loader.
func WriteRequest(addr uint32, data []byte, access AccessWidth) (*Packet, error) {
	if len(data) < 1 || len(data) > MaxPayload {
		return nil, fmt.Errorf("write byte count %d out of range 1..%d", len(data), MaxPayload)
	}
	if uint64(addr)+uint64(len(data)) > 1<<32 {
		return nil, fmt.Errorf("write of %d bytes at 0x%08x wraps the address space", len(data), addr)
	}
	return &Packet{
		Cmd:       CmdWriteMem,
		ByteCount: byte(len(data)),
		Access:    access,
		Address:   addr,
		Data:      data,
	}, nil
}

// VersionRequest creates a get-version request packet.
func VersionRequest() *Packet {
	return &Packet{Cmd: CmdGetVersion, AckRequest: true}
}

// Encode serializes the packet into its fixed 64-byte wire form.
func (p *Packet) Encode() []byte {
	buf := make([]byte, PacketSize)
	buf[0] = byte(p.Cmd)
	buf[1] = p.ByteCount
	buf[2] = byte(p.Access)
	if p.AckRequest {
		buf[3] = 1
	}
	binary.LittleEndian.PutUint32(buf[4:8], p.Address)
	copy(buf[8:], p.Data)
	return buf
}

// Decode parses a packet received from the boot loader.
func Decode(buf []byte) (*Packet, error) {
	if len(buf) < PacketSize {
		return nil, fmt.Errorf("packet too short: %d bytes", len(buf))
	}
	count := buf[1]
	if count > MaxPayload {
		return nil, fmt.Errorf("packet byte count %d exceeds %d", count, MaxPayload)
	}
	p := &Packet{
		Cmd:        Command(buf[0]),
		ByteCount:  count,
		Access:     AccessWidth(buf[2]),
		AckRequest: buf[3] != 0,
		Address:    binary.LittleEndian.Uint32(buf[4:8]),
	}
	p.Data = make([]byte, count)
	copy(p.Data, buf[8:8+int(count)])
	return p, nil
}
