package serial

import (
	"testing"

	"github.com/nox-emu/gbcore/internal/interrupt"
)

type collector struct{ out []byte }

func (c *collector) Write(p []byte) (int, error) {
	c.out = append(c.out, p...)
	return len(p), nil
}

func TestTransferCompletesAfterEightTicksAndInterrupts(t *testing.T) {
	irq := interrupt.New()
	irq.WriteIE(1 << uint(interrupt.Serial))
	s := New(irq)
	c := &collector{}
	s.SetWriter(c)

	s.WriteSB(0x41)
	s.WriteSC(0x81) // start, internal clock

	for i := 0; i < 7; i++ {
		s.Tick()
		if len(c.out) != 0 {
			t.Fatalf("transfer completed early at tick %d", i)
		}
		if s.SC()&0x80 == 0 {
			t.Fatalf("transfer flag cleared early at tick %d", i)
		}
	}
	s.Tick() // 8th tick completes
	if len(c.out) != 1 || c.out[0] != 0x41 {
		t.Fatalf("serial out got %v want [0x41]", c.out)
	}
	if s.SC()&0x80 != 0 {
		t.Fatalf("transfer flag not cleared after completion")
	}
	if irq.ReadIF()&(1<<uint(interrupt.Serial)) == 0 {
		t.Fatalf("serial interrupt not requested after completion")
	}
	if s.SB() != 0xFF {
		t.Fatalf("SB after transfer with no partner got %02X want FF", s.SB())
	}
}

func TestIdleTickIsNoop(t *testing.T) {
	irq := interrupt.New()
	s := New(irq)
	s.Tick()
	if irq.ReadIF() != 0xE0 {
		t.Fatalf("idle tick must not raise any interrupt")
	}
}
