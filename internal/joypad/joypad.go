// Package joypad models the P1/JOYP register: two selectable 4-button
// groups (D-pad, buttons) multiplexed onto one active-low nibble, with a
// joypad interrupt fired on any newly-pressed button.
package joypad

import "github.com/nox-emu/gbcore/internal/interrupt"

// Button bit positions in the host-state byte passed to SetState.
const (
	Right = 1 << iota
	Left
	Up
	Down
	A
	B
	Select
	Start
)

// Joypad owns the JOYP register and the most recently sampled host button
// state.
type Joypad struct {
	selectBits byte
	state      byte
	irq        *interrupt.Controller
}

func New(irq *interrupt.Controller) *Joypad {
	return &Joypad{selectBits: 0x30, irq: irq}
}

func (j *Joypad) lowerNibble() byte {
	result := byte(0x0F)
	if j.selectBits&0x10 == 0 { // P14 low selects the D-pad group
		result &= ^j.state & 0x0F
	}
	if j.selectBits&0x20 == 0 { // P15 low selects the button group
		result &= (^j.state >> 4) & 0x0F
	}
	return result
}

// Read returns the full JOYP byte with the two unused top bits read as 1.
func (j *Joypad) Read() byte {
	return 0xC0 | j.selectBits | j.lowerNibble()
}

// Write stores the two group-select bits; the lower nibble is read-only.
func (j *Joypad) Write(v byte) {
	j.selectBits = v & 0x30
}

// SetState replaces the held-button bitmask (Right..Start bit constants
// above) and requests a joypad interrupt if any selected line transitions
// from released (1) to pressed (0).
func (j *Joypad) SetState(state byte) {
	before := j.lowerNibble()
	j.state = state
	after := j.lowerNibble()
	if before&^after != 0 {
		j.irq.Request(interrupt.Joypad)
	}
}

// State returns a serializable snapshot for save states.
type State struct {
	SelectBits byte
	Buttons    byte
}

func (j *Joypad) SaveState() State { return State{j.selectBits, j.state} }

func (j *Joypad) LoadState(s State) {
	j.selectBits = s.SelectBits
	j.state = s.Buttons
}
