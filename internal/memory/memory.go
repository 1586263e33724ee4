// Package memory reads and writes the target's physical address space
// through the boot loader packet protocol. It has no knowledge of flash
// semantics; it only chunks arbitrary-length transfers into packets.
package memory

import (
	"encoding/binary"
	"fmt"

	"github.com/ondrej-zary/cx861xx-flash/internal/protocol"
)

// Transport exchanges single packets with the boot loader. Exchanges are
// strictly synchronous: one request out, responses (if any) in, nothing
// pipelined.
type Transport interface {
	Send(p *protocol.Packet) error
	Receive() (*protocol.Packet, error)
}

// Accessor provides chunked memory access over a packet transport.
type Accessor struct {
	t Transport
}

// New creates an Accessor on top of a packet transport.
func New(t Transport) *Accessor {
	return &Accessor{t: t}
}

// Read reads count bytes starting at addr using the given access width.
// The transfer is split into requests of at most 56 bytes; each request is
// answered by one or more data packets, each carrying its own byte count
// (the tail response of a request may be short).
func (a *Accessor) Read(addr uint32, count int, access protocol.AccessWidth) ([]byte, error) {
	buf := make([]byte, 0, count)
	for count > 0 {
		n := count
		if n > protocol.MaxPayload {
			n = protocol.MaxPayload
		}
		req, err := protocol.ReadRequest(addr, n, access)
		if err != nil {
			return nil, err
		}
		if err := a.t.Send(req); err != nil {
			return nil, err
		}
		for remaining := n; remaining > 0; {
			resp, err := a.t.Receive()
			if err != nil {
				return nil, err
			}
			if int(resp.ByteCount) > remaining {
				return nil, fmt.Errorf("read at 0x%08x: got %d bytes, expected at most %d",
					addr, resp.ByteCount, remaining)
			}
			buf = append(buf, resp.Data[:resp.ByteCount]...)
			remaining -= int(resp.ByteCount)
		}
		addr += uint32(n)
		count -= n
	}
	return buf, nil
}

// Write writes data starting at addr using the given access width, split
// into packets of at most 56 bytes. Writes are not acknowledged.
func (a *Accessor) Write(addr uint32, data []byte, access protocol.AccessWidth) error {
	for len(data) > 0 {
		n := len(data)
		if n > protocol.MaxPayload {
			n = protocol.MaxPayload
		}
		req, err := protocol.WriteRequest(addr, data[:n], access)
		if err != nil {
			return err
		}
		if err := a.t.Send(req); err != nil {
			return err
		}
		addr += uint32(n)
		data = data[n:]
	}
	return nil
}

// WriteTwoWords writes two consecutive 16-bit words at addr in a single
// word-access transfer. Merging a flash command word and a data word into
// one packet this way halves the USB round trips during programming.
func (a *Accessor) WriteTwoWords(addr uint32, w0, w1 uint16) error {
	var buf [4]byte
	binary.LittleEndian.PutUint16(buf[0:2], w0)
	binary.LittleEndian.PutUint16(buf[2:4], w1)
	return a.Write(addr, buf[:], protocol.AccessWord)
}
