package emu

import "testing"

func romWithHeader(title string, cartType byte, ramCode byte) []byte {
	rom := make([]byte, 0x8000)
	copy(rom[0x0134:0x0144], title)
	rom[0x0147] = cartType
	rom[0x0149] = ramCode
	// checksum isn't verified by ParseHeader, leave zeroed
	return rom
}

func TestMachine_LoadCartridgeSetsTitleAndResetsPC(t *testing.T) {
	m := New(Config{})
	rom := romWithHeader("TESTGAME", 0x00, 0x00)
	if err := m.LoadCartridge(rom, nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	if m.ROMTitle() != "TESTGAME" {
		t.Fatalf("ROMTitle got %q want TESTGAME", m.ROMTitle())
	}
	if m.cpu.PC != 0x0100 {
		t.Fatalf("PC after LoadCartridge got %#04x want 0x0100", m.cpu.PC)
	}
}

func TestMachine_StepFrameAdvancesAtLeastOneFrameOfClocks(t *testing.T) {
	m := New(Config{})
	rom := romWithHeader("NOP LOOP", 0x00, 0x00)
	// JP 0x0100 at reset PC so the CPU spins without ever crashing past ROM.
	rom[0x0100] = 0xC3
	rom[0x0101] = 0x00
	rom[0x0102] = 0x01
	if err := m.LoadCartridge(rom, nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	m.StepFrameNoRender()
	// No direct clock counter is exposed; StepFrameNoRender returning at all
	// without looping forever is the behavior under test.
}

func TestMachine_FramebufferIsFullyOpaqueRGBA(t *testing.T) {
	m := New(Config{})
	rom := romWithHeader("BLANK", 0x00, 0x00)
	rom[0x0100] = 0xC3
	rom[0x0101] = 0x00
	rom[0x0102] = 0x01
	if err := m.LoadCartridge(rom, nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	m.StepFrame()
	fb := m.Framebuffer()
	if len(fb) != 160*144*4 {
		t.Fatalf("framebuffer len got %d want %d", len(fb), 160*144*4)
	}
	for i := 3; i < len(fb); i += 4 {
		if fb[i] != 0xFF {
			t.Fatalf("pixel alpha at %d got %02X want FF", i, fb[i])
		}
	}
}

func TestMachine_SaveAndLoadStateRoundTripsPC(t *testing.T) {
	m := New(Config{})
	rom := romWithHeader("STATE", 0x01, 0x02) // MBC1 + RAM
	if err := m.LoadCartridge(rom, nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	m.cpu.SetPC(0x1234)
	data := m.SaveState()

	n := New(Config{})
	if err := n.LoadCartridge(rom, nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	n.LoadState(data)
	if n.cpu.PC != 0x1234 {
		t.Fatalf("restored PC got %04X want 1234", n.cpu.PC)
	}
}

func TestMachine_BatteryRAMRoundTrips(t *testing.T) {
	m := New(Config{})
	rom := romWithHeader("BATTERY", 0x03, 0x02) // MBC1+RAM+BATTERY, 8KB RAM
	if err := m.LoadCartridge(rom, nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	m.bus.Write(0x0000, 0x0A) // enable RAM
	m.bus.Write(0xA000, 0x42)

	data, ok := m.SaveBattery()
	if !ok {
		t.Fatalf("expected battery-backed cartridge")
	}

	n := New(Config{})
	if err := n.LoadCartridge(rom, nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	if !n.LoadBattery(data) {
		t.Fatalf("LoadBattery: cartridge not battery-backed")
	}
	n.bus.Write(0x0000, 0x0A)
	if got := n.bus.Read(0xA000); got != 0x42 {
		t.Fatalf("restored RAM byte got %02X want 42", got)
	}
}
