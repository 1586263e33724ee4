package memory

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ondrej-zary/cx861xx-flash/internal/protocol"
)

// mockTransport records sent packets and plays back scripted responses.
type mockTransport struct {
	sent      []*protocol.Packet
	responses []*protocol.Packet
	sendErr   error
	recvErr   error
}

func (m *mockTransport) Send(p *protocol.Packet) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, p)
	return nil
}

func (m *mockTransport) Receive() (*protocol.Packet, error) {
	if m.recvErr != nil {
		return nil, m.recvErr
	}
	if len(m.responses) == 0 {
		return nil, errors.New("mock: no more responses")
	}
	p := m.responses[0]
	m.responses = m.responses[1:]
	return p, nil
}

func dataPacket(data []byte) *protocol.Packet {
	return &protocol.Packet{
		Cmd:       protocol.CmdReadMem,
		ByteCount: byte(len(data)),
		Access:    protocol.AccessWord,
		Data:      data,
	}
}

func TestRead_SingleChunk(t *testing.T) {
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	m := &mockTransport{responses: []*protocol.Packet{dataPacket(want)}}
	a := New(m)

	got, err := a.Read(0x04000000, len(want), protocol.AccessWord)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Read() = %v, want %v", got, want)
	}

	if len(m.sent) != 1 {
		t.Fatalf("sent %d packets, want 1", len(m.sent))
	}
	req := m.sent[0]
	if req.Cmd != protocol.CmdReadMem {
		t.Errorf("request Cmd = %d, want %d", req.Cmd, protocol.CmdReadMem)
	}
	if !req.AckRequest {
		t.Error("read request must set the ack flag")
	}
	if req.ByteCount != 10 {
		t.Errorf("request ByteCount = %d, want 10", req.ByteCount)
	}
}

func TestRead_ChunksRequests(t *testing.T) {
	// 130 bytes = 56 + 56 + 18
	total := 130
	src := make([]byte, total)
	for i := range src {
		src[i] = byte(i)
	}
	m := &mockTransport{responses: []*protocol.Packet{
		dataPacket(src[0:56]),
		dataPacket(src[56:112]),
		dataPacket(src[112:130]),
	}}
	a := New(m)

	got, err := a.Read(0x1000, total, protocol.AccessWord)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(got, src) {
		t.Error("Read() data differs from scripted responses")
	}

	if len(m.sent) != 3 {
		t.Fatalf("sent %d packets, want 3", len(m.sent))
	}
	wantAddrs := []uint32{0x1000, 0x1038, 0x1070}
	wantCounts := []byte{56, 56, 18}
	for i, req := range m.sent {
		if req.Address != wantAddrs[i] {
			t.Errorf("request %d address = 0x%X, want 0x%X", i, req.Address, wantAddrs[i])
		}
		if req.ByteCount != wantCounts[i] {
			t.Errorf("request %d byte count = %d, want %d", i, req.ByteCount, wantCounts[i])
		}
		if req.Access != protocol.AccessWord {
			t.Errorf("request %d access = %d, want %d", i, req.Access, protocol.AccessWord)
		}
	}
}

func TestRead_SplitResponses(t *testing.T) {
	// The target may answer one 56-byte request with several short packets.
	src := make([]byte, 56)
	for i := range src {
		src[i] = byte(0x80 + i)
	}
	m := &mockTransport{responses: []*protocol.Packet{
		dataPacket(src[0:40]),
		dataPacket(src[40:56]),
	}}
	a := New(m)

	got, err := a.Read(0, 56, protocol.AccessWord)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(got, src) {
		t.Error("Read() did not reassemble split responses")
	}
	if len(m.sent) != 1 {
		t.Errorf("sent %d requests, want 1", len(m.sent))
	}
}

func TestRead_OverlongResponse(t *testing.T) {
	m := &mockTransport{responses: []*protocol.Packet{dataPacket(make([]byte, 20))}}
	a := New(m)

	if _, err := a.Read(0, 10, protocol.AccessByte); err == nil {
		t.Error("Read() with overlong response expected error, got nil")
	}
}

func TestRead_TransportErrorPropagates(t *testing.T) {
	wantErr := errors.New("bulk transfer timed out")
	a := New(&mockTransport{sendErr: wantErr})
	if _, err := a.Read(0, 4, protocol.AccessWord); !errors.Is(err, wantErr) {
		t.Errorf("Read() error = %v, want %v", err, wantErr)
	}

	a = New(&mockTransport{recvErr: wantErr})
	if _, err := a.Read(0, 4, protocol.AccessWord); !errors.Is(err, wantErr) {
		t.Errorf("Read() receive error = %v, want %v", err, wantErr)
	}
}

func TestWrite_ChunksRequests(t *testing.T) {
	total := 130
	src := make([]byte, total)
	for i := range src {
		src[i] = byte(i ^ 0x5A)
	}
	m := &mockTransport{}
	a := New(m)

	if err := a.Write(0x2000, src, protocol.AccessByte); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if len(m.sent) != 3 {
		t.Fatalf("sent %d packets, want 3", len(m.sent))
	}
	wantAddrs := []uint32{0x2000, 0x2038, 0x2070}
	off := 0
	for i, req := range m.sent {
		if req.Cmd != protocol.CmdWriteMem {
			t.Errorf("request %d Cmd = %d, want %d", i, req.Cmd, protocol.CmdWriteMem)
		}
		if req.AckRequest {
			t.Errorf("request %d sets ack flag, writes expect no response", i)
		}
		if req.Address != wantAddrs[i] {
			t.Errorf("request %d address = 0x%X, want 0x%X", i, req.Address, wantAddrs[i])
		}
		if !bytes.Equal(req.Data, src[off:off+int(req.ByteCount)]) {
			t.Errorf("request %d payload differs from source", i)
		}
		off += int(req.ByteCount)
	}
	if off != total {
		t.Errorf("total bytes sent = %d, want %d", off, total)
	}
}

func TestWrite_TransportErrorPropagates(t *testing.T) {
	wantErr := errors.New("pipe error")
	a := New(&mockTransport{sendErr: wantErr})
	if err := a.Write(0, []byte{1}, protocol.AccessByte); !errors.Is(err, wantErr) {
		t.Errorf("Write() error = %v, want %v", err, wantErr)
	}
}

func TestWrite_AddressWrap(t *testing.T) {
	a := New(&mockTransport{})
	if err := a.Write(0xFFFFFFFE, []byte{1, 2, 3, 4}, protocol.AccessWord); err == nil {
		t.Error("Write() wrapping the address space expected error, got nil")
	}
}

func TestWriteTwoWords_Layout(t *testing.T) {
	m := &mockTransport{}
	a := New(m)

	if err := a.WriteTwoWords(0x04000ffe, 0x0040, 0xBEEF); err != nil {
		t.Fatalf("WriteTwoWords() error = %v", err)
	}

	if len(m.sent) != 1 {
		t.Fatalf("sent %d packets, want 1 merged packet", len(m.sent))
	}
	req := m.sent[0]
	if req.Address != 0x04000ffe {
		t.Errorf("address = 0x%X, want 0x04000ffe", req.Address)
	}
	if req.Access != protocol.AccessWord {
		t.Errorf("access = %d, want word", req.Access)
	}
	want := []byte{0x40, 0x00, 0xEF, 0xBE} // two little-endian words
	if !bytes.Equal(req.Data, want) {
		t.Errorf("payload = %v, want %v", req.Data, want)
	}
}
