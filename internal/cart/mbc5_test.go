package cart

import "testing"

func TestMBC5_ROMBankZeroIsSelectable(t *testing.T) {
	// Unlike MBC1, MBC5 allows bank 0 in the switchable window.
	rom := make([]byte, 1024*1024)
	for bank := 0; bank < 16; bank++ {
		rom[bank*0x4000] = byte(bank)
	}
	m := NewMBC5(rom, 0)

	m.Write(0x2000, 0x05)
	if got := m.Read(0x4000); got != 0x05 {
		t.Fatalf("bank5 read got %02X want 05", got)
	}

	m.Write(0x2000, 0x00)
	if got := m.Read(0x4000); got != 0x00 {
		t.Fatalf("bank0 should be selectable on MBC5, got %02X want 00", got)
	}
}

func TestMBC5_RAMBankingAndState(t *testing.T) {
	rom := make([]byte, 1024*1024)
	m := NewMBC5(rom, 128*1024)

	m.Write(0x0000, 0x0A)
	m.Write(0x4000, 0x03)
	m.Write(0xA000, 0x42)

	data := m.SaveState()
	n := NewMBC5(rom, 128*1024)
	n.LoadState(data)
	n.Write(0x4000, 0x03)
	if got := n.Read(0xA000); got != 0x42 {
		t.Fatalf("restored RAM bank3 byte got %02X want 42", got)
	}
}
