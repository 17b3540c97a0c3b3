// Package serial models the SB/SC serial port as an 8-tick shift register:
// a transfer started with the internal clock completes after eight Tick
// calls, at which point the sent byte is delivered to a sink and the
// serial interrupt fires.
package serial

import (
	"io"

	"github.com/nox-emu/gbcore/internal/interrupt"
)

type Serial struct {
	sb        byte
	sc        byte
	ticksLeft int
	writer    io.Writer
	irq       *interrupt.Controller
}

func New(irq *interrupt.Controller) *Serial {
	return &Serial{irq: irq}
}

// SetWriter installs the sink that receives each transmitted byte; a nil
// writer simply discards output. Defaults to discarding until set.
func (s *Serial) SetWriter(w io.Writer) { s.writer = w }

func (s *Serial) SB() byte { return s.sb }

func (s *Serial) WriteSB(v byte) {
	// Writes mid-transfer are ignored on real hardware; harmless to allow
	// here since no partner is ever connected (link-cable networking is out
	// of scope).
	s.sb = v
}

// SC exposes bit7 (transfer active) and bit0 (clock select); the unused
// middle bits read back as 1.
func (s *Serial) SC() byte { return 0x7E | (s.sc & 0x81) }

func (s *Serial) WriteSC(v byte) {
	s.sc = v & 0x81
	if v&0x80 != 0 {
		s.ticksLeft = 8
	}
}

// Tick advances the in-flight transfer by one step; the bus calls it once
// per CPU clock, so a transfer completes eight clocks after it starts. With no link
// partner ever attached, a completed transfer delivers the pending byte to
// the sink and then reads back 0xFF, matching real hardware's idle line.
func (s *Serial) Tick() {
	if s.ticksLeft == 0 {
		return
	}
	s.ticksLeft--
	if s.ticksLeft == 0 {
		if s.writer != nil {
			s.writer.Write([]byte{s.sb})
		}
		s.sb = 0xFF
		s.sc &^= 0x80
		s.irq.Request(interrupt.Serial)
	}
}

// State is a serializable snapshot for save states.
type State struct {
	SB        byte
	SC        byte
	TicksLeft int
}

func (s *Serial) SaveState() State { return State{s.sb, s.sc, s.ticksLeft} }

func (s *Serial) LoadState(st State) {
	s.sb = st.SB
	s.sc = st.SC
	s.ticksLeft = st.TicksLeft
}
