package protocol

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestCommandPair(t *testing.T) {
	tests := []struct {
		name   string
		opcode byte
		want   []byte
	}{
		{name: "get", opcode: CmdGet, want: []byte{0x00, 0xFF}},
		{name: "get id", opcode: CmdGetID, want: []byte{0x02, 0xFD}},
		{name: "go", opcode: CmdGo, want: []byte{0x21, 0xDE}},
		{name: "erase", opcode: CmdErase, want: []byte{0x43, 0xBC}},
		{name: "extended erase", opcode: CmdExtendedErase, want: []byte{0x44, 0xBB}},
		{name: "write", opcode: CmdWriteMemory, want: []byte{0x31, 0xCE}},
		{name: "read", opcode: CmdReadMemory, want: []byte{0x11, 0xEE}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CommandPair(tt.opcode); !bytes.Equal(got, tt.want) {
				t.Errorf("CommandPair(0x%02X) = % X, want % X", tt.opcode, got, tt.want)
			}
		})
	}
}

func TestEncodeAddress(t *testing.T) {
	tests := []struct {
		name string
		addr uint32
		want []byte
	}{
		{name: "flash base", addr: 0x08000000, want: []byte{0x08, 0x00, 0x00, 0x00, 0x08}},
		{name: "mixed bytes", addr: 0x12345678, want: []byte{0x12, 0x34, 0x56, 0x78, 0x08}},
		{name: "zero", addr: 0, want: []byte{0x00, 0x00, 0x00, 0x00, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeAddress(tt.addr); !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeAddress(0x%08X) = % X, want % X", tt.addr, got, tt.want)
			}
		})
	}
}

func TestEncodeWrite(t *testing.T) {
	addr, payload := EncodeWrite(0x08000100, []byte{0x01, 0x02, 0x03, 0x04})

	if want := []byte{0x08, 0x00, 0x01, 0x00, 0x09}; !bytes.Equal(addr, want) {
		t.Errorf("address = % X, want % X", addr, want)
	}
	if want := []byte{0x03, 0x01, 0x02, 0x03, 0x04, 0x07}; !bytes.Equal(payload, want) {
		t.Errorf("payload = % X, want % X", payload, want)
	}
}

func TestEncodeWriteChecksumCoversLength(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		data := make([]byte, 1+rng.Intn(MaxDataSize))
		rng.Read(data)

		_, payload := EncodeWrite(DefaultLoadAddress, data)

		if len(payload) != len(data)+2 {
			t.Fatalf("payload length = %d, want %d", len(payload), len(data)+2)
		}
		if int(payload[0])+1 != len(data) {
			t.Fatalf("length byte = %d, want %d", payload[0], len(data)-1)
		}
		// XOR over every transmitted byte including the checksum is zero.
		if XORChecksum(payload) != 0 {
			t.Fatalf("checksum does not cancel for %d-byte payload", len(data))
		}
	}
}

func TestEncodeRead(t *testing.T) {
	tests := []struct {
		name  string
		count int
		want  []byte
	}{
		{name: "one byte", count: 1, want: []byte{0x00, 0xFF}},
		{name: "full record", count: 256, want: []byte{0xFF, 0x00}},
		{name: "sixteen bytes", count: 16, want: []byte{0x0F, 0xF0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, count := EncodeRead(DefaultLoadAddress, tt.count)
			if !bytes.Equal(addr, EncodeAddress(DefaultLoadAddress)) {
				t.Errorf("address = % X", addr)
			}
			if !bytes.Equal(count, tt.want) {
				t.Errorf("count = % X, want % X", count, tt.want)
			}
		})
	}
}

func TestEncodeErase(t *testing.T) {
	tests := []struct {
		name  string
		units int
		want  []byte
	}{
		{name: "single page", units: 1, want: []byte{0x00, 0x00, 0x00}},
		{name: "three pages", units: 3, want: []byte{0x02, 0x00, 0x01, 0x02, 0x01}},
		{name: "full chip", units: EraseAll, want: []byte{0xFF, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeErase(tt.units); !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeErase(%d) = % X, want % X", tt.units, got, tt.want)
			}
		})
	}
}

func TestEncodeExtendedErase(t *testing.T) {
	tests := []struct {
		name  string
		units int
		want  []byte
	}{
		{name: "single page", units: 1, want: []byte{0x00, 0x00, 0x00, 0x00, 0x00}},
		{name: "three pages", units: 3, want: []byte{0x00, 0x02, 0x00, 0x00, 0x00, 0x01, 0x00, 0x02, 0x01}},
		{name: "full chip", units: EraseAll, want: []byte{0xFF, 0xFF, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeExtendedErase(tt.units); !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeExtendedErase(%d) = % X, want % X", tt.units, got, tt.want)
			}
		})
	}
}

func TestEncodeExtendedEraseLargeList(t *testing.T) {
	frame := EncodeExtendedErase(300)

	if len(frame) != 2+2*300+1 {
		t.Fatalf("frame length = %d, want %d", len(frame), 2+2*300+1)
	}
	if frame[0] != 0x01 || frame[1] != 0x2B {
		t.Errorf("N-1 = %02X%02X, want 012B", frame[0], frame[1])
	}
	// Last page number is 299 = 0x012B.
	if frame[len(frame)-3] != 0x01 || frame[len(frame)-2] != 0x2B {
		t.Errorf("last page = %02X%02X, want 012B", frame[len(frame)-3], frame[len(frame)-2])
	}
	if XORChecksum(frame) != 0 {
		t.Error("checksum does not cancel")
	}
}

func TestCheckDataLength(t *testing.T) {
	tests := []struct {
		n       int
		wantErr bool
	}{
		{0, true},
		{1, false},
		{256, false},
		{257, true},
		{-1, true},
	}

	for _, tt := range tests {
		err := CheckDataLength(tt.n)
		if (err != nil) != tt.wantErr {
			t.Errorf("CheckDataLength(%d) error = %v, wantErr %v", tt.n, err, tt.wantErr)
		}
	}
}

func TestCheckEraseUnits(t *testing.T) {
	tests := []struct {
		name     string
		units    int
		extended bool
		wantErr  bool
	}{
		{name: "zero standard", units: 0, wantErr: true},
		{name: "max standard", units: 255, wantErr: false},
		{name: "over standard", units: 256, wantErr: true},
		{name: "full chip standard", units: EraseAll, wantErr: false},
		{name: "over standard ok extended", units: 256, extended: true, wantErr: false},
		{name: "max extended", units: MaxExtendedEraseUnits, extended: true, wantErr: false},
		{name: "reserved extended", units: MaxExtendedEraseUnits + 1, extended: true, wantErr: true},
		{name: "full chip extended", units: EraseAll, extended: true, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckEraseUnits(tt.units, tt.extended)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckEraseUnits(%d, %v) error = %v, wantErr %v", tt.units, tt.extended, err, tt.wantErr)
			}
		})
	}
}
