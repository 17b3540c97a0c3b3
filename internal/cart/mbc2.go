package cart

import (
	"bytes"
	"encoding/gob"
)

// MBC2 supports up to 256KB ROM and has 512x4-bit built-in RAM; it has no
// external RAM pins at all, so ramSize is ignored.
//
// Addressing (0000-3FFF only; writes here never touch the switchable bank):
//   - bit 8 of the address (addr&0x0100) clear: RAM enable (0x0A in low nibble)
//   - bit 8 set: ROM bank number, low 4 bits (0 maps to 1)
type MBC2 struct {
	rom []byte
	ram [512]byte // only the low nibble of each byte is meaningful

	ramEnabled bool
	romBank    byte // 4 bits (1..15)
}

func NewMBC2(rom []byte) *MBC2 {
	m := &MBC2{rom: rom}
	m.romBank = 1
	return m
}

func (m *MBC2) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.romBank & 0x0F)
		if bank == 0 {
			bank = 1
		}
		off := bank*0x4000 + int(addr-0x4000)
		if off >= 0 && off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		return 0xF0 | (m.ram[addr%0x200] & 0x0F)
	default:
		return 0xFF
	}
}

func (m *MBC2) Write(addr uint16, value byte) {
	switch {
	case addr < 0x4000:
		if addr&0x0100 == 0 {
			m.ramEnabled = (value & 0x0F) == 0x0A
			return
		}
		v := value & 0x0F
		if v == 0 {
			v = 1
		}
		m.romBank = v
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		m.ram[addr%0x200] = value & 0x0F
	}
}

func (m *MBC2) SaveRAM() []byte {
	out := make([]byte, len(m.ram))
	copy(out, m.ram[:])
	return out
}

func (m *MBC2) LoadRAM(data []byte) {
	n := copy(m.ram[:], data)
	_ = n
}

type mbc2State struct {
	RAM        [512]byte
	RAMEnabled bool
	ROMBank    byte
}

func (m *MBC2) SaveState() []byte {
	s := mbc2State{RAM: m.ram, RAMEnabled: m.ramEnabled, ROMBank: m.romBank}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil
	}
	return buf.Bytes()
}

func (m *MBC2) LoadState(data []byte) {
	var s mbc2State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	m.ram = s.RAM
	m.ramEnabled, m.romBank = s.RAMEnabled, s.ROMBank
}
