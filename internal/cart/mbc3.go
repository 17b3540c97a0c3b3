package cart

import (
	"bytes"
	"encoding/gob"
	"time"
)

// MBC3 implements ROM/RAM banking plus the MBC3 real-time clock: a latched
// seconds/minutes/hours/day counter selectable in the same 0x4000-0x5FFF
// register that otherwise picks the external RAM bank.
//
// Addressing:
//   - 0000-1FFF: RAM/RTC enable (0x0A in low nibble)
//   - 2000-3FFF: ROM bank, 7 bits (0 maps to 1)
//   - 4000-5FFF: RAM bank 0-3, or RTC register select 0x08-0x0C
//   - 6000-7FFF: latch clock on a 0->1 write
//   - A000-BFFF: external RAM (when 0-3 selected) or the latched RTC
//     register (when 0x08-0x0C selected)

// nowUnix is the wall-clock source for RTC advancement; overridden in tests.
var nowUnix = func() int64 { return time.Now().Unix() }

const rtcDayMod = 512 * 86400

type MBC3 struct {
	rom []byte
	ram []byte

	ramEnabled bool
	romBank    byte // 7 bits (1..127)
	selected   byte // 0..3: RAM bank; 0x08..0x0C: RTC register select

	latchState byte

	rtcSec, rtcMin, rtcHour byte
	rtcDay                  uint16
	rtcHalt, rtcCarry       bool
	lastRTCWallSec          int64

	latchedSec, latchedMin, latchedHour byte
	latchedDay                          uint16
	latchedHalt, latchedCarry           bool
}

func NewMBC3(rom []byte, ramSize int) *MBC3 {
	m := &MBC3{rom: rom}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	m.romBank = 1
	m.lastRTCWallSec = nowUnix()
	return m
}

// advanceRTC rolls the live RTC registers forward by the wall-clock time
// elapsed since the last access. A halted clock still updates the
// reference timestamp so resuming doesn't replay the gap.
func (m *MBC3) advanceRTC() {
	now := nowUnix()
	delta := now - m.lastRTCWallSec
	m.lastRTCWallSec = now
	if delta <= 0 || m.rtcHalt {
		return
	}
	total := int64(m.rtcDay)*86400 + int64(m.rtcHour)*3600 + int64(m.rtcMin)*60 + int64(m.rtcSec) + delta
	if total >= rtcDayMod {
		total %= rtcDayMod
		m.rtcCarry = true
	}
	m.rtcDay = uint16(total / 86400)
	rem := total % 86400
	m.rtcHour = byte(rem / 3600)
	rem %= 3600
	m.rtcMin = byte(rem / 60)
	m.rtcSec = byte(rem % 60)
}

func (m *MBC3) Read(addr uint16) byte {
	m.advanceRTC()
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.romBank & 0x7F)
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
		if m.selected <= 0x03 {
			if len(m.ram) == 0 {
				return 0xFF
			}
			off := int(m.selected)*0x2000 + int(addr-0xA000)
			if off >= 0 && off < len(m.ram) {
				return m.ram[off]
			}
			return 0xFF
		}
		return m.readRTCReg()
	default:
		return 0xFF
	}
}

func (m *MBC3) readRTCReg() byte {
	switch m.selected {
	case 0x08:
		return m.latchedSec
	case 0x09:
		return m.latchedMin
	case 0x0A:
		return m.latchedHour
	case 0x0B:
		return byte(m.latchedDay & 0xFF)
	case 0x0C:
		v := byte((m.latchedDay >> 8) & 0x01)
		if m.latchedHalt {
			v |= 0x40
		}
		if m.latchedCarry {
			v |= 0x80
		}
		return v
	default:
		return 0xFF
	}
}

func (m *MBC3) Write(addr uint16, value byte) {
	m.advanceRTC()
	switch {
	case addr < 0x2000:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		v := value & 0x7F
		if v == 0 {
			v = 1
		}
		m.romBank = v
	case addr < 0x6000:
		m.selected = value
	case addr < 0x8000:
		if value == 0x01 && m.latchState == 0x00 {
			m.latchedSec, m.latchedMin, m.latchedHour = m.rtcSec, m.rtcMin, m.rtcHour
			m.latchedDay, m.latchedHalt, m.latchedCarry = m.rtcDay, m.rtcHalt, m.rtcCarry
		}
		m.latchState = value
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		if m.selected <= 0x03 {
			if len(m.ram) == 0 {
				return
			}
			off := int(m.selected)*0x2000 + int(addr-0xA000)
			if off >= 0 && off < len(m.ram) {
				m.ram[off] = value
			}
			return
		}
		m.writeRTCReg(value)
	}
}

func (m *MBC3) writeRTCReg(value byte) {
	switch m.selected {
	case 0x08:
		m.rtcSec = value % 60
	case 0x09:
		m.rtcMin = value % 60
	case 0x0A:
		m.rtcHour = value % 24
	case 0x0B:
		m.rtcDay = (m.rtcDay & 0x100) | uint16(value)
	case 0x0C:
		m.rtcDay = (m.rtcDay & 0xFF) | (uint16(value&0x01) << 8)
		m.rtcHalt = value&0x40 != 0
		m.rtcCarry = value&0x80 != 0
	}
}

type mbc3State struct {
	RAM                                 []byte
	RAMEnabled                          bool
	ROMBank, Selected, LatchState       byte
	RTCSec, RTCMin, RTCHour             byte
	RTCDay                              uint16
	RTCHalt, RTCCarry                   bool
	LastRTCWallSec                      int64
	LatchedSec, LatchedMin, LatchedHour byte
	LatchedDay                          uint16
	LatchedHalt, LatchedCarry           bool
}

func (m *MBC3) SaveState() []byte {
	s := mbc3State{
		RAM: append([]byte(nil), m.ram...), RAMEnabled: m.ramEnabled,
		ROMBank: m.romBank, Selected: m.selected, LatchState: m.latchState,
		RTCSec: m.rtcSec, RTCMin: m.rtcMin, RTCHour: m.rtcHour, RTCDay: m.rtcDay,
		RTCHalt: m.rtcHalt, RTCCarry: m.rtcCarry, LastRTCWallSec: m.lastRTCWallSec,
		LatchedSec: m.latchedSec, LatchedMin: m.latchedMin, LatchedHour: m.latchedHour,
		LatchedDay: m.latchedDay, LatchedHalt: m.latchedHalt, LatchedCarry: m.latchedCarry,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil
	}
	return buf.Bytes()
}

func (m *MBC3) LoadState(data []byte) {
	var s mbc3State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	if len(m.ram) == len(s.RAM) {
		copy(m.ram, s.RAM)
	}
	m.ramEnabled, m.romBank, m.selected, m.latchState = s.RAMEnabled, s.ROMBank, s.Selected, s.LatchState
	m.rtcSec, m.rtcMin, m.rtcHour, m.rtcDay = s.RTCSec, s.RTCMin, s.RTCHour, s.RTCDay
	m.rtcHalt, m.rtcCarry, m.lastRTCWallSec = s.RTCHalt, s.RTCCarry, s.LastRTCWallSec
	m.latchedSec, m.latchedMin, m.latchedHour = s.LatchedSec, s.LatchedMin, s.LatchedHour
	m.latchedDay, m.latchedHalt, m.latchedCarry = s.LatchedDay, s.LatchedHalt, s.LatchedCarry
}

// SaveRAM persists external RAM plus the RTC so battery saves survive a
// restart with the clock still running.
func (m *MBC3) SaveRAM() []byte {
	return m.SaveState()
}

func (m *MBC3) LoadRAM(data []byte) {
	m.LoadState(data)
}
