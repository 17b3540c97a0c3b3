// Package timer implements the DIV/TIMA/TMA/TAC hardware timer, including the
// falling-edge TIMA increment and the one-cycle overflow reload window.
package timer

import "github.com/nox-emu/gbcore/internal/interrupt"

// selectMask maps TAC's low two bits to the internal-counter bit whose
// falling edge increments TIMA.
var selectMask = [4]uint16{1 << 9, 1 << 3, 1 << 5, 1 << 7}

// Timer owns the 16-bit internal divider and the TIMA overflow state
// machine. It must be ticked exactly once per CPU clock.
type Timer struct {
	counter     uint16
	tima        byte
	tma         byte
	tac         byte
	reloadDelay int
	irq         *interrupt.Controller
}

func New(irq *interrupt.Controller) *Timer {
	return &Timer{irq: irq}
}

func (t *Timer) inputHigh() bool {
	if t.tac&0x04 == 0 {
		return false
	}
	return t.counter&selectMask[t.tac&0x03] != 0
}

// Tick advances the divider by one clock, applying any reload pending from a
// prior overflow before evaluating this clock's own falling edge.
func (t *Timer) Tick() {
	if t.reloadDelay > 0 {
		t.reloadDelay--
		if t.reloadDelay == 0 {
			t.tima = t.tma
			t.irq.Request(interrupt.Timer)
		}
	}
	before := t.inputHigh()
	t.counter++
	after := t.inputHigh()
	if before && !after {
		t.incrementTIMA()
	}
}

func (t *Timer) incrementTIMA() {
	t.tima++
	if t.tima == 0 {
		// One machine cycle (4 clocks) of TIMA reading 0 before TMA loads.
		t.reloadDelay = 4
	}
}

// DIV returns the visible high byte of the internal counter.
func (t *Timer) DIV() byte { return byte(t.counter >> 8) }

// WriteDIV resets the internal counter to zero; if the reset itself causes a
// falling edge on the currently-selected bit, TIMA still increments.
func (t *Timer) WriteDIV() {
	before := t.inputHigh()
	t.counter = 0
	after := t.inputHigh()
	if before && !after {
		t.incrementTIMA()
	}
}

func (t *Timer) TIMA() byte { return t.tima }

// WriteTIMA cancels any pending overflow reload; the written value wins.
func (t *Timer) WriteTIMA(v byte) {
	t.tima = v
	t.reloadDelay = 0
}

func (t *Timer) TMA() byte { return t.tma }

// WriteTMA just stores the value; if a reload is still pending, the eventual
// reload reads TMA at fire time and so observes this write.
func (t *Timer) WriteTMA(v byte) { t.tma = v }

// TAC reads back with the undocumented upper bits pinned to 1.
func (t *Timer) TAC() byte { return 0xF8 | (t.tac & 0x07) }

func (t *Timer) WriteTAC(v byte) {
	before := t.inputHigh()
	t.tac = v & 0x07
	after := t.inputHigh()
	if before && !after {
		t.incrementTIMA()
	}
}

// State is a serializable snapshot for save states.
type State struct {
	Counter     uint16
	TIMA        byte
	TMA         byte
	TAC         byte
	ReloadDelay int
}

func (t *Timer) SaveState() State {
	return State{t.counter, t.tima, t.tma, t.tac, t.reloadDelay}
}

func (t *Timer) LoadState(s State) {
	t.counter = s.Counter
	t.tima = s.TIMA
	t.tma = s.TMA
	t.tac = s.TAC
	t.reloadDelay = s.ReloadDelay
}
