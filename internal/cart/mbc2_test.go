package cart

import "testing"

func TestMBC2_ROMBanking(t *testing.T) {
	rom := make([]byte, 256*1024)
	for bank := 0; bank < 16; bank++ {
		rom[bank*0x4000] = byte(bank)
	}
	m := NewMBC2(rom)

	if got := m.Read(0x0000); got != 0x00 {
		t.Fatalf("bank0 read got %02X want 00", got)
	}
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("default switchable bank got %02X want 01", got)
	}

	m.Write(0x2100, 0x05) // bit8 set selects ROM bank
	if got := m.Read(0x4000); got != 0x05 {
		t.Fatalf("bank5 read got %02X want 05", got)
	}

	m.Write(0x2100, 0x00) // 0 remaps to 1
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("bank0->1 remap failed: got %02X", got)
	}
}

func TestMBC2_BuiltinRAMIsFourBitAndMirrored(t *testing.T) {
	m := NewMBC2(make([]byte, 0x4000))

	if got := m.Read(0xA000); got != 0xFF {
		t.Fatalf("RAM read while disabled got %02X want FF", got)
	}

	m.Write(0x0000, 0x0A) // bit8 clear: RAM enable
	m.Write(0xA000, 0x5A)
	if got := m.Read(0xA000); got != 0xF0|0x0A {
		t.Fatalf("RAM nibble read got %02X want %02X", got, 0xF0|0x0A)
	}
	// The 512 nibbles mirror across the whole A000-BFFF window.
	if got := m.Read(0xA200); got != 0xF0|0x0A {
		t.Fatalf("mirrored RAM read got %02X want %02X", got, 0xF0|0x0A)
	}
}

func TestMBC2_SaveAndLoadState(t *testing.T) {
	rom := make([]byte, 0x10000)
	rom[3*0x4000] = 0x03
	m := NewMBC2(rom)
	m.Write(0x0000, 0x0A)
	m.Write(0xA010, 0x07)
	m.Write(0x2100, 0x03)

	data := m.SaveState()
	n := NewMBC2(rom)
	n.LoadState(data)

	if got := n.Read(0xA010); got != 0xF0|0x07 {
		t.Fatalf("restored RAM nibble got %02X want %02X", got, 0xF0|0x07)
	}
	if got := n.Read(0x4000); got != 0x03 {
		t.Fatalf("restored ROM bank got %02X want 03", got)
	}
}
