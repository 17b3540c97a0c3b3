// Package emu wires the CPU, bus, and cartridge into a single driveable
// machine: load a ROM, step whole frames, and pull out the framebuffer,
// audio, and battery RAM.
package emu

import (
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/nox-emu/gbcore/internal/bus"
	"github.com/nox-emu/gbcore/internal/cart"
	"github.com/nox-emu/gbcore/internal/cpu"
)

// clocksPerFrame is the number of CPU clocks in one 154-line DMG frame
// (154 * 456).
const clocksPerFrame = 70224

// Buttons is the held-state of the eight joypad inputs for one frame.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

func (b Buttons) mask() byte {
	var m byte
	if b.Right {
		m |= bus.JoypRight
	}
	if b.Left {
		m |= bus.JoypLeft
	}
	if b.Up {
		m |= bus.JoypUp
	}
	if b.Down {
		m |= bus.JoypDown
	}
	if b.A {
		m |= bus.JoypA
	}
	if b.B {
		m |= bus.JoypB
	}
	if b.Select {
		m |= bus.JoypSelectBtn
	}
	if b.Start {
		m |= bus.JoypStart
	}
	return m
}

// Machine drives a CPU/Bus/Cartridge triple and exposes a frame-oriented
// API to hosts (a windowed UI, a headless harness, a test runner).
type Machine struct {
	cfg Config

	bus *bus.Bus
	cpu *cpu.CPU

	w, h int
	fb   []byte // RGBA 160x144*4

	romPath  string
	romTitle string
	bootROM  []byte

	lastFrame time.Time
}

// New constructs a Machine with no cartridge loaded; call LoadCartridge or
// LoadROMFromFile before stepping frames.
func New(cfg Config) *Machine {
	m := &Machine{cfg: cfg, w: 160, h: 144}
	m.fb = make([]byte, m.w*m.h*4)
	m.resetWith(cart.NewCartridge(nil))
	return m
}

func (m *Machine) resetWith(c cart.Cartridge) {
	m.bus = bus.NewWithCartridge(c)
	if len(m.bootROM) >= 0x100 {
		m.bus.SetBootROM(m.bootROM)
	}
	m.cpu = cpu.New(m.bus)
	if len(m.bootROM) >= 0x100 {
		m.cpu.SP = 0xFFFE
		m.cpu.PC = 0x0000
		m.cpu.IME = false
	} else {
		m.ResetPostBoot()
	}
}

// ResetPostBoot initializes CPU registers and IO to the values the DMG boot
// ROM leaves behind, for running without a boot ROM image.
func (m *Machine) ResetPostBoot() {
	m.cpu.ResetNoBoot()
	m.cpu.SetPC(0x0100)
	m.bus.Write(0xFF00, 0xCF)
	m.bus.Write(0xFF05, 0x00)
	m.bus.Write(0xFF06, 0x00)
	m.bus.Write(0xFF07, 0x00)
	m.bus.Write(0xFF40, 0x91)
	m.bus.Write(0xFF42, 0x00)
	m.bus.Write(0xFF43, 0x00)
	m.bus.Write(0xFF45, 0x00)
	m.bus.Write(0xFF47, 0xFC)
	m.bus.Write(0xFF48, 0xFF)
	m.bus.Write(0xFF49, 0xFF)
	m.bus.Write(0xFF4A, 0x00)
	m.bus.Write(0xFF4B, 0x00)
	m.bus.Write(0xFFFF, 0x00)
}

// ResetWithBoot restarts execution from 0x0000 through the loaded boot ROM,
// re-running its startup animation and register init. Without a boot ROM it
// falls back to the ResetPostBoot state at 0x0100.
func (m *Machine) ResetWithBoot() {
	c := m.bus.Cart()
	m.resetWith(c)
}

// SetBootROM loads a DMG boot image to run from 0x0000 until it disables
// itself via FF50. The image is mapped over 0x0000 on the current bus at
// once; the CPU starts running it from 0x0000 on the next reset.
func (m *Machine) SetBootROM(data []byte) {
	m.bootROM = data
	if m.bus != nil {
		m.bus.SetBootROM(data)
	}
}

// LoadCartridge builds the appropriate MBC for rom's header and resets the
// machine to run it. boot, if at least 256 bytes, replaces any previously
// set boot ROM.
func (m *Machine) LoadCartridge(rom []byte, boot []byte) error {
	if len(rom) < 0x150 {
		return errors.New("emu: ROM too small to contain a header")
	}
	h, err := cart.ParseHeader(rom)
	if err != nil {
		return err
	}
	if len(boot) >= 0x100 {
		m.bootROM = boot
	}
	m.romTitle = h.Title
	m.resetWith(cart.NewCartridge(rom))
	return nil
}

// LoadROMFromFile reads and loads a ROM from disk, recording its path so
// callers can derive a sibling .sav file or display it in a title bar.
func (m *Machine) LoadROMFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := m.LoadCartridge(data, m.bootROM); err != nil {
		return err
	}
	if abs, err := filepath.Abs(path); err == nil {
		m.romPath = abs
	} else {
		m.romPath = path
	}
	return nil
}

// ROMPath returns the absolute form of the path LoadROMFromFile was last
// called with (the path as given if it cannot be made absolute), or "".
func (m *Machine) ROMPath() string { return m.romPath }

// ROMTitle returns the cartridge header title of the loaded ROM, or "".
func (m *Machine) ROMTitle() string { return m.romTitle }

// LoadBattery restores external cartridge RAM from a prior SaveBattery dump.
// It reports whether the cartridge supports battery-backed RAM at all.
func (m *Machine) LoadBattery(data []byte) bool {
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return false
	}
	bb.LoadRAM(data)
	return true
}

// SaveBattery returns a copy of the cartridge's external RAM, if any.
func (m *Machine) SaveBattery() ([]byte, bool) {
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return nil, false
	}
	return bb.SaveRAM(), true
}

// SaveStateToFile writes a full machine snapshot (CPU + bus + cartridge) to
// path using gob encoding, the same format as SaveState.
func (m *Machine) SaveStateToFile(path string) error {
	return os.WriteFile(path, m.SaveState(), 0o644)
}

// LoadStateFromFile restores a snapshot previously written by
// SaveStateToFile.
func (m *Machine) LoadStateFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	m.LoadState(data)
	return nil
}

type machineState struct {
	CPU cpu.State
	Bus []byte
}

// SaveState snapshots CPU registers and the full bus (including cartridge
// banking/RAM and RTC where applicable).
func (m *Machine) SaveState() []byte {
	s := machineState{CPU: m.cpu.SaveState(), Bus: m.bus.SaveState()}
	return encodeGob(s)
}

// LoadState restores a snapshot produced by SaveState.
func (m *Machine) LoadState(data []byte) {
	var s machineState
	if !decodeGob(data, &s) {
		return
	}
	m.cpu.LoadState(s.CPU)
	m.bus.LoadState(s.Bus)
}

// SetSerialWriter routes bytes written to the serial port (SB, with a
// transfer request) to w, e.g. to capture link-cable test-ROM output.
func (m *Machine) SetSerialWriter(w io.Writer) { m.bus.SetSerialWriter(w) }

// SetUseFetcherBG toggles the fetcher/FIFO background renderer. The PPU's
// scanline renderer always uses the fetcher path; this is kept so hosts
// built against the older two-mode renderer still compile and link.
func (m *Machine) SetUseFetcherBG(v bool) { m.cfg.UseFetcherBG = v }

// SetButtons replaces the held joypad state for the next Step/StepFrame.
func (m *Machine) SetButtons(b Buttons) { m.bus.SetJoypadState(b.mask()) }

// Framebuffer returns the last rendered frame as packed RGBA (160*144*4
// bytes), suitable for uploading straight into a texture.
func (m *Machine) Framebuffer() []byte { return m.fb }

// StepFrame runs the CPU for one 70224-clock frame (the last instruction may
// end a few clocks past that; the excess is not carried over) and composites
// the result into Framebuffer. If cfg.LimitFPS is set it paces itself to
// roughly 60Hz by sleeping off whatever time the frame didn't use.
func (m *Machine) StepFrame() {
	m.runFrame()
	m.renderFramebuffer()
	if m.cfg.LimitFPS {
		m.pace()
	}
}

// StepFrameNoRender runs one frame's worth of CPU/PPU/APU ticks without
// touching Framebuffer, for harnesses that only care about serial output
// or final CPU state (test ROMs, CI).
func (m *Machine) StepFrameNoRender() {
	m.runFrame()
}

func (m *Machine) runFrame() {
	done := 0
	for done < clocksPerFrame {
		if m.cfg.Trace {
			pc := m.cpu.PC
			op := m.bus.Read(pc)
			log.Printf("PC=%04X OP=%02X", pc, op)
		}
		done += m.cpu.Step()
	}
}

func (m *Machine) pace() {
	const frameDur = time.Second / 60
	now := time.Now()
	if !m.lastFrame.IsZero() {
		elapsed := now.Sub(m.lastFrame)
		if elapsed < frameDur {
			time.Sleep(frameDur - elapsed)
		}
	}
	m.lastFrame = time.Now()
}

var shadeRGBA = [4][4]byte{
	0: {0xE0, 0xF8, 0xD0, 0xFF}, // lightest
	1: {0x88, 0xC0, 0x70, 0xFF},
	2: {0x34, 0x68, 0x56, 0xFF},
	3: {0x08, 0x18, 0x20, 0xFF}, // darkest
}

func (m *Machine) renderFramebuffer() {
	fb := m.bus.PPU().Framebuffer()
	for y := 0; y < 144; y++ {
		for x := 0; x < 160; x++ {
			shade := fb[y][x] & 0x03
			c := shadeRGBA[shade]
			i := (y*160 + x) * 4
			m.fb[i+0], m.fb[i+1], m.fb[i+2], m.fb[i+3] = c[0], c[1], c[2], c[3]
		}
	}
}

// --- audio pump ---

// APUBufferedStereo returns the number of stereo sample frames currently
// queued for playback.
func (m *Machine) APUBufferedStereo() int { return m.bus.APU().StereoAvailable() }

// APUPullStereo drains up to max interleaved stereo frames ([L0,R0,L1,R1,...]).
func (m *Machine) APUPullStereo(max int) []int16 { return m.bus.APU().PullStereo(max) }

// APUCapBufferedStereo drops queued frames beyond keep, to recover from an
// audio consumer falling behind without growing playback latency.
func (m *Machine) APUCapBufferedStereo(keep int) {
	for m.bus.APU().StereoAvailable() > keep {
		if len(m.bus.APU().PullStereo(m.bus.APU().StereoAvailable()-keep)) == 0 {
			break
		}
	}
}

// APUClearAudioLatency drains all buffered audio, e.g. after a pause or
// seek so playback resumes without a stale backlog.
func (m *Machine) APUClearAudioLatency() {
	for m.bus.APU().StereoAvailable() > 0 {
		if len(m.bus.APU().PullStereo(4096)) == 0 {
			break
		}
	}
}
