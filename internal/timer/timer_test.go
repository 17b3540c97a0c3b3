package timer

import (
	"testing"

	"github.com/nox-emu/gbcore/internal/interrupt"
)

func newTestTimer() (*Timer, *interrupt.Controller) {
	irq := interrupt.New()
	irq.WriteIE(0x1F)
	return New(irq), irq
}

func TestFallingEdgeOnDIVReset(t *testing.T) {
	tm, _ := newTestTimer()
	tm.WriteTAC(0x05) // enabled, select bit 3
	tm.tima = 0x10
	tm.counter = 0x0008 // bit3=1
	if !tm.inputHigh() {
		t.Fatalf("expected input high before reset")
	}
	tm.WriteDIV()
	if tm.tima != 0x11 {
		t.Fatalf("TIMA not incremented on DIV falling edge: got %02X want 11", tm.tima)
	}
}

func TestFallingEdgeOnTACChange(t *testing.T) {
	tm, _ := newTestTimer()
	tm.tima = 0x20
	tm.counter = 0x0008
	tm.WriteTAC(0x05) // enable + bit3, currently high
	if !tm.inputHigh() {
		t.Fatalf("expected input high before TAC change")
	}
	tm.WriteTAC(0x06) // switch to bit5, which reads 0 -> falling edge
	if tm.tima != 0x21 {
		t.Fatalf("TIMA not incremented on TAC falling edge: got %02X want 21", tm.tima)
	}
}

func TestOverflowReloadTimingAndCancellation(t *testing.T) {
	tm, irq := newTestTimer()
	tm.WriteTAC(0x05)
	tm.WriteTMA(0xAB)
	tm.tima = 0xFF
	tm.counter = 0x000F // bit3=1, next tick clears it -> falling edge
	tm.Tick()
	if tm.tima != 0x00 {
		t.Fatalf("after overflow, TIMA got %02X want 00", tm.tima)
	}
	for i := 0; i < 3; i++ {
		tm.Tick()
		if tm.tima != 0x00 {
			t.Fatalf("during delay cycle %d, TIMA got %02X want 00", i, tm.tima)
		}
		if irq.ReadIF()&(1<<uint(interrupt.Timer)) != 0 {
			t.Fatalf("timer IF set prematurely during delay")
		}
	}
	tm.Tick()
	if tm.tima != 0xAB {
		t.Fatalf("after delay, TIMA got %02X want AB", tm.tima)
	}
	if irq.ReadIF()&(1<<uint(interrupt.Timer)) == 0 {
		t.Fatalf("timer IF not set on reload")
	}
}

func TestOverflowReloadCancelledByTIMAWrite(t *testing.T) {
	tm, irq := newTestTimer()
	tm.WriteTAC(0x05)
	tm.WriteTMA(0x55)
	tm.tima = 0xFF
	tm.counter = 0x000F
	tm.Tick() // overflow -> pending reload
	tm.WriteTIMA(0x77)
	for i := 0; i < 8; i++ {
		tm.Tick()
	}
	if tm.tima != 0x77 {
		t.Fatalf("TIMA write during delay not retained: got %02X want 77", tm.tima)
	}
	if irq.ReadIF()&(1<<uint(interrupt.Timer)) != 0 {
		t.Fatalf("timer IF set despite cancellation")
	}
}

func TestOverflowReloadReflectsLateTMAWrite(t *testing.T) {
	tm, _ := newTestTimer()
	tm.WriteTAC(0x05)
	tm.tima = 0xFF
	tm.WriteTMA(0x11)
	tm.counter = 0x000F
	tm.Tick() // overflow
	tm.WriteTMA(0x22)
	for i := 0; i < 4; i++ {
		tm.Tick()
	}
	if tm.tima != 0x22 {
		t.Fatalf("TMA write during delay not reflected in reload: got %02X want 22", tm.tima)
	}
}

func TestTACReadBackPinsUnusedBits(t *testing.T) {
	tm, _ := newTestTimer()
	tm.WriteTAC(0xFD)
	if got := tm.TAC(); got != 0xF8|(0xFD&0x07) {
		t.Fatalf("TAC got %02X want %02X", got, 0xF8|(0xFD&0x07))
	}
}

func TestDIVReadsHighByteAndWriteResets(t *testing.T) {
	tm, _ := newTestTimer()
	tm.counter = 0x1234
	if got := tm.DIV(); got != 0x12 {
		t.Fatalf("DIV got %02X want 12", got)
	}
	tm.WriteDIV()
	if got := tm.DIV(); got != 0x00 {
		t.Fatalf("DIV after write got %02X want 00", got)
	}
}
