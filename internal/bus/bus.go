// Package bus implements the unified 64 KiB CPU address space: cartridge
// ROM/RAM, work RAM with its echo mirror, high RAM, the PPU's VRAM/OAM and
// register window, OAM DMA, and the timer/joypad/serial/interrupt
// peripherals delegated to their own packages.
package bus

import (
	"bytes"
	"encoding/gob"
	"io"

	"github.com/nox-emu/gbcore/internal/apu"
	"github.com/nox-emu/gbcore/internal/cart"
	"github.com/nox-emu/gbcore/internal/interrupt"
	"github.com/nox-emu/gbcore/internal/joypad"
	"github.com/nox-emu/gbcore/internal/ppu"
	"github.com/nox-emu/gbcore/internal/serial"
	"github.com/nox-emu/gbcore/internal/timer"
)

// dmaStartupClocks is the delay between an 0xFF46 write and the start of
// the blocking 160 M-cycle OAM transfer window.
const dmaStartupClocks = 8

// dmaTransferClocks is the duration of the blocking transfer itself
// (160 M-cycles = 640 clocks), one source byte copied per M-cycle.
const dmaTransferClocks = 640

// Bus wires CPU-visible address space to cartridge, WRAM, HRAM, PPU, and
// the timer/joypad/serial/interrupt peripherals.
type Bus struct {
	cart cart.Cartridge
	ppu  *ppu.PPU

	irq   *interrupt.Controller
	tmr   *timer.Timer
	joyp  *joypad.Joypad
	ser   *serial.Serial
	snd   *apu.APU

	wram [0x2000]byte // 0xC000–0xDFFF, echoed at 0xE000–0xFDFF
	hram [0x7F]byte   // 0xFF80–0xFFFE

	dma byte // FF46 last-written source page

	// OAM DMA sequencing: startup delay, then a blocking byte-per-M-cycle
	// transfer window.
	dmaStartupLeft  int
	dmaTransferLeft int
	dmaActive       bool
	dmaSrc          uint16
	dmaIndex        int

	bootROM     []byte
	bootEnabled bool
}

// New constructs a Bus with a ROM-only cartridge for convenience.
func New(rom []byte) *Bus {
	return NewWithCartridge(cart.NewCartridge(rom))
}

// NewWithCartridge wires a provided cartridge implementation.
func NewWithCartridge(c cart.Cartridge) *Bus {
	b := &Bus{cart: c, irq: interrupt.New()}
	b.ppu = ppu.New(func(bit int) { b.irq.Request(interrupt.Kind(bit)) })
	b.tmr = timer.New(b.irq)
	b.joyp = joypad.New(b.irq)
	b.ser = serial.New(b.irq)
	b.snd = apu.New(48000)
	return b
}

// PPU returns the internal PPU for rendering helpers.
func (b *Bus) PPU() *ppu.PPU { return b.ppu }

// APU returns the internal sound unit for audio pump helpers.
func (b *Bus) APU() *apu.APU { return b.snd }

// Cart returns the underlying cartridge for battery persistence.
func (b *Bus) Cart() cart.Cartridge { return b.cart }

// Interrupts returns the interrupt controller for CPU servicing.
func (b *Bus) Interrupts() *interrupt.Controller { return b.irq }

func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if b.bootEnabled && addr < 0x0100 && len(b.bootROM) >= 0x100 {
			return b.bootROM[addr]
		}
		return b.cart.Read(addr)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.ppu.CPURead(addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		return b.cart.Read(addr)
	case addr >= 0xC000 && addr <= 0xDFFF:
		return b.wram[addr-0xC000]
	case addr >= 0xE000 && addr <= 0xFDFF:
		return b.wram[addr-0x2000-0xC000]
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.hram[addr-0xFF80]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.dmaActive && b.dmaStartupLeft == 0 {
			return 0xFF
		}
		return b.ppu.CPURead(addr)
	case addr == 0xFF00:
		return b.joyp.Read()
	case addr == 0xFF01:
		return b.ser.SB()
	case addr == 0xFF02:
		return b.ser.SC()
	case addr == 0xFF04:
		return b.tmr.DIV()
	case addr == 0xFF05:
		return b.tmr.TIMA()
	case addr == 0xFF06:
		return b.tmr.TMA()
	case addr == 0xFF07:
		return b.tmr.TAC()
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		return b.ppu.CPURead(addr)
	case addr == 0xFF46:
		return b.dma
	case addr == 0xFF50:
		return 0xFF
	case addr == 0xFF0F:
		return b.irq.ReadIF()
	case addr == 0xFFFF:
		return b.irq.ReadIE()
	case addr >= 0xFF10 && addr <= 0xFF26, addr >= 0xFF30 && addr <= 0xFF3F:
		return b.snd.CPURead(addr)
	}
	return 0xFF
}

func (b *Bus) Write(addr uint16, value byte) {
	switch {
	case addr < 0x8000:
		b.cart.Write(addr, value)
	case addr >= 0x8000 && addr <= 0x9FFF:
		b.ppu.CPUWrite(addr, value)
	case addr >= 0xA000 && addr <= 0xBFFF:
		b.cart.Write(addr, value)
	case addr >= 0xC000 && addr <= 0xDFFF:
		b.wram[addr-0xC000] = value
	case addr >= 0xE000 && addr <= 0xFDFF:
		b.wram[addr-0x2000-0xC000] = value
	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.dmaActive && b.dmaStartupLeft == 0 {
			return
		}
		b.ppu.CPUWrite(addr, value)
	case addr == 0xFF00:
		b.joyp.Write(value)
	case addr == 0xFF01:
		b.ser.WriteSB(value)
	case addr == 0xFF02:
		b.ser.WriteSC(value)
	case addr == 0xFF04:
		b.tmr.WriteDIV()
	case addr == 0xFF05:
		b.tmr.WriteTIMA(value)
	case addr == 0xFF06:
		b.tmr.WriteTMA(value)
	case addr == 0xFF07:
		b.tmr.WriteTAC(value)
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		b.ppu.CPUWrite(addr, value)
	case addr == 0xFF46:
		b.dma = value
		b.dmaSrc = uint16(value) << 8
		b.dmaIndex = 0
		b.dmaStartupLeft = dmaStartupClocks
		b.dmaTransferLeft = 0
		b.dmaActive = true
	case addr == 0xFF50:
		if value != 0x00 {
			b.bootEnabled = false
		}
	case addr == 0xFF0F:
		b.irq.WriteIF(value)
	case addr == 0xFFFF:
		b.irq.WriteIE(value)
	case addr >= 0xFF10 && addr <= 0xFF26, addr >= 0xFF30 && addr <= 0xFF3F:
		b.snd.CPUWrite(addr, value)
	}
}

// Joypad button bitmasks for SetJoypadState, re-exported from the joypad package.
const (
	JoypRight     = joypad.Right
	JoypLeft      = joypad.Left
	JoypUp        = joypad.Up
	JoypDown      = joypad.Down
	JoypA         = joypad.A
	JoypB         = joypad.B
	JoypSelectBtn = joypad.Select
	JoypStart     = joypad.Start
)

// SetJoypadState sets which buttons are currently pressed (set bits = pressed).
func (b *Bus) SetJoypadState(mask byte) { b.joyp.SetState(mask) }

// SetSerialWriter sets a sink that receives bytes written via the serial port.
func (b *Bus) SetSerialWriter(w io.Writer) { b.ser.SetWriter(w) }

// SetBootROM loads a DMG boot ROM mapped at 0x0000-0x00FF until disabled via 0xFF50.
func (b *Bus) SetBootROM(data []byte) {
	b.bootROM = nil
	b.bootEnabled = false
	if len(data) >= 0x100 {
		b.bootROM = make([]byte, 0x100)
		copy(b.bootROM, data[:0x100])
		b.bootEnabled = true
	}
}

// Tick advances timer, serial, PPU, and OAM DMA by the given number of CPU clocks.
func (b *Bus) Tick(cycles int) {
	if cycles <= 0 {
		return
	}
	for i := 0; i < cycles; i++ {
		b.tmr.Tick()
		b.ser.Tick()
		if b.ppu != nil {
			b.ppu.Tick(1)
		}
		if b.snd != nil {
			b.snd.Tick(1)
		}
		b.stepDMA()
	}
}

func (b *Bus) stepDMA() {
	if !b.dmaActive {
		return
	}
	if b.dmaStartupLeft > 0 {
		b.dmaStartupLeft--
		return
	}
	// 640 clocks transfer 160 bytes, 4 clocks per byte (one M-cycle each).
	b.dmaTransferLeft++
	if b.dmaTransferLeft%4 != 0 {
		return
	}
	if b.dmaIndex < 0xA0 {
		v := b.dmaReadSrc(b.dmaSrc + uint16(b.dmaIndex))
		b.ppu.CPUWrite(0xFE00+uint16(b.dmaIndex), v)
		b.dmaIndex++
	}
	if b.dmaIndex >= 0xA0 {
		b.dmaActive = false
	}
}

// dmaReadSrc reads the DMA source byte directly, bypassing the OAM-read
// blackout that Read() applies while dmaActive is set.
func (b *Bus) dmaReadSrc(addr uint16) byte {
	switch {
	case addr < 0x8000:
		return b.cart.Read(addr)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.ppu.CPURead(addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		return b.cart.Read(addr)
	case addr >= 0xC000 && addr <= 0xDFFF:
		return b.wram[addr-0xC000]
	case addr >= 0xE000 && addr <= 0xFDFF:
		return b.wram[addr-0x2000-0xC000]
	default:
		return 0xFF
	}
}

// --- Save/Load state ---

type busState struct {
	WRAM      [0x2000]byte
	HRAM      [0x7F]byte
	DMA       byte
	DMAActive bool
	DMASrc    uint16
	DMAIdx    int
	DMAStart  int
	DMAXfer   int
	BootEn    bool

	IE, IF byte
	Timer  timer.State
	Joypad joypad.State
	Serial serial.State
	PPU    ppu.State
	APU    []byte
}

func (b *Bus) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	ie, ifReg := b.irq.SaveState()
	s := busState{
		WRAM: b.wram, HRAM: b.hram,
		DMA: b.dma, DMAActive: b.dmaActive, DMASrc: b.dmaSrc, DMAIdx: b.dmaIndex,
		DMAStart: b.dmaStartupLeft, DMAXfer: b.dmaTransferLeft,
		BootEn: b.bootEnabled,
		IE:     ie, IF: ifReg,
		Timer:  b.tmr.SaveState(),
		Joypad: b.joyp.SaveState(),
		Serial: b.ser.SaveState(),
	}
	if b.ppu != nil {
		s.PPU = b.ppu.SaveState()
	}
	if b.snd != nil {
		s.APU = b.snd.SaveState()
	}
	_ = enc.Encode(s)
	if bb, ok := b.cart.(interface{ SaveState() []byte }); ok {
		_ = enc.Encode(bb.SaveState())
	} else {
		_ = enc.Encode([]byte(nil))
	}
	return buf.Bytes()
}

func (b *Bus) LoadState(data []byte) {
	dec := gob.NewDecoder(bytes.NewReader(data))
	var s busState
	if err := dec.Decode(&s); err != nil {
		return
	}
	b.wram = s.WRAM
	b.hram = s.HRAM
	b.dma, b.dmaActive, b.dmaSrc, b.dmaIndex = s.DMA, s.DMAActive, s.DMASrc, s.DMAIdx
	b.dmaStartupLeft, b.dmaTransferLeft = s.DMAStart, s.DMAXfer
	b.bootEnabled = s.BootEn
	b.irq.LoadState(s.IE, s.IF)
	b.tmr.LoadState(s.Timer)
	b.joyp.LoadState(s.Joypad)
	b.ser.LoadState(s.Serial)
	if b.ppu != nil {
		b.ppu.LoadState(s.PPU)
	}
	if b.snd != nil && s.APU != nil {
		b.snd.LoadState(s.APU)
	}
	var cs []byte
	if err := dec.Decode(&cs); err == nil {
		if bb, ok := b.cart.(interface{ LoadState([]byte) }); ok {
			bb.LoadState(cs)
		}
	}
}
