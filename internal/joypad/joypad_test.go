package joypad

import (
	"testing"

	"github.com/nox-emu/gbcore/internal/interrupt"
)

func TestDefaultReadIsAllReleased(t *testing.T) {
	irq := interrupt.New()
	j := New(irq)
	if got := j.Read() & 0x0F; got != 0x0F {
		t.Fatalf("default lower bits got %02X want 0F", got)
	}
}

func TestDPadSelection(t *testing.T) {
	irq := interrupt.New()
	j := New(irq)
	j.Write(0x20) // P15=1, P14=0 -> select D-pad
	j.SetState(Right | Up)
	if got := j.Read() & 0x0F; got != 0x0A {
		t.Fatalf("D-pad got %02X want 0A", got)
	}
}

func TestButtonSelection(t *testing.T) {
	irq := interrupt.New()
	j := New(irq)
	j.Write(0x10) // P15=0, P14=1 -> select buttons
	j.SetState(A | Start)
	if got := j.Read() & 0x0F; got != 0x06 {
		t.Fatalf("buttons got %02X want 06", got)
	}
}

func TestPressEdgeRaisesJoypadInterrupt(t *testing.T) {
	irq := interrupt.New()
	irq.WriteIE(1 << uint(interrupt.Joypad))
	j := New(irq)
	j.Write(0x20) // select D-pad
	j.SetState(0)
	if irq.ReadIF()&(1<<uint(interrupt.Joypad)) != 0 {
		t.Fatalf("no interrupt expected before any press")
	}
	j.SetState(Down)
	if irq.ReadIF()&(1<<uint(interrupt.Joypad)) == 0 {
		t.Fatalf("expected joypad interrupt on press edge")
	}
}
