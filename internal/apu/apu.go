package apu

import (
	"bytes"
	"encoding/gob"
)

// regBase is the address of the first sound register, NR10.
const regBase = 0xFF10

// regCount covers NR10 (0xFF10) through NR52 (0xFF26) inclusive.
const regCount = 0xFF26 - regBase + 1

// waveBase is the address of the first wave-RAM byte.
const waveBase = 0xFF30

// waveCount is the size of the wave-pattern RAM window.
const waveCount = 16

// readMask carries the documented "unused bits read back as 1" pattern for
// each sound register, indexed by offset from regBase. Write-only registers
// (duty/length counters, frequency-low bytes) read back as all-ones; NR52's
// three unused bits between the power and channel-status nibbles read as 1
// too. See Pan Docs' sound-register read-mask table.
var readMask = [regCount]byte{
	0x80, 0x3F, 0x00, 0xFF, 0xBF, // NR10-NR14 (FF14 has an unused byte at FF15)
	0xFF,
	0x3F, 0x00, 0xFF, 0xBF, // NR21-NR24 (FF19 has an unused byte at FF1A start below)
	0x7F, 0xFF, 0x9F, 0xFF, 0xBF, // NR30-NR34
	0xFF,                   // unused FF1F
	0xFF, 0x00, 0x00, 0xBF, // NR41-NR44
	0x00, 0x00, 0x70, // NR50-NR52
}

// APU is a register-store model of the DMG sound unit: it holds the NR10-NR52
// register file and wave RAM with the documented read-back masks, and powering
// off (NR52 bit 7 cleared) clears the register file exactly as on real hardware.
// It does not synthesize audio; PullStereo always reports silence, matching the
// host's apuStream sink, which already falls back to silence on an empty pull.
type APU struct {
	sampleRate int
	powered    bool
	regs       [regCount]byte
	wave       [waveCount]byte
}

// New returns a freshly powered-off APU. sampleRate is retained only for the
// host audio-sink API shape; the stub has nothing to resample.
func New(sampleRate int) *APU {
	return &APU{sampleRate: sampleRate}
}

// CPURead reads a sound register or wave-RAM byte with its documented
// read-back mask applied.
func (a *APU) CPURead(addr uint16) byte {
	if addr >= waveBase && addr < waveBase+waveCount {
		return a.wave[addr-waveBase]
	}
	if addr < regBase || addr >= regBase+regCount {
		return 0xFF
	}
	off := addr - regBase
	return a.regs[off] | readMask[off]
}

// CPUWrite stores a sound register or wave-RAM byte. Writing NR52 toggles
// the power bit; powering off clears every other register, matching the
// real hardware's power-off register reset.
func (a *APU) CPUWrite(addr uint16, v byte) {
	if addr >= waveBase && addr < waveBase+waveCount {
		a.wave[addr-waveBase] = v
		return
	}
	if addr < regBase || addr >= regBase+regCount {
		return
	}
	off := addr - regBase
	if addr == 0xFF26 {
		a.powered = v&0x80 != 0
		if !a.powered {
			for i := range a.regs {
				if regBase+uint16(i) != 0xFF26 {
					a.regs[i] = 0
				}
			}
		}
		a.regs[off] = v & 0x80
		return
	}
	a.regs[off] = v
}

// Tick is a no-op: the stub performs no per-cycle synthesis, only register
// bookkeeping driven entirely by CPURead/CPUWrite.
func (a *APU) Tick(cycles int) {}

// StereoAvailable always reports no buffered audio; this is a register
// store, not a synthesizer.
func (a *APU) StereoAvailable() int { return 0 }

// PullStereo always returns no samples. The host's playback stream already
// treats an empty pull as a silence underrun, so this is a correct trivial
// sink rather than a special case the caller needs to detect.
func (a *APU) PullStereo(max int) []int16 { return nil }

type apuState struct {
	Powered bool
	Regs    [regCount]byte
	Wave    [waveCount]byte
}

// SaveState gob-encodes the register file and power state.
func (a *APU) SaveState() []byte {
	var buf bytes.Buffer
	s := apuState{Powered: a.powered, Regs: a.regs, Wave: a.wave}
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil
	}
	return buf.Bytes()
}

// LoadState restores a blob written by SaveState.
func (a *APU) LoadState(data []byte) {
	var s apuState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	a.powered = s.Powered
	a.regs = s.Regs
	a.wave = s.Wave
}
