package ppu

// InterruptRequester is a callback signature to request IF bits (0:VBlank, 1:STAT, etc.).
type InterruptRequester func(bit int)

// PPU models VRAM/OAM, LCDC/STAT regs, LY/LYC, timing, and scanline
// rendering. It exposes CPU-facing Read/Write for VRAM/OAM and PPU IO regs,
// and a VRAMReader-compatible Read for its own internal scanline renderer.
type PPU struct {
	// memory
	vram [0x2000]byte // 0x8000–0x9FFF
	oam  [0xA0]byte   // 0xFE00–0xFE9F

	// regs
	lcdc byte // FF40
	stat byte // FF41 (mode bits 0-1, coincidence flag bit2, enables bits3-6)
	scy  byte // FF42
	scx  byte // FF43
	ly   byte // FF44
	lyc  byte // FF45
	bgp  byte // FF47
	obp0 byte // FF48
	obp1 byte // FF49
	wy   byte // FF4A
	wx   byte // FF4B

	dot int // dots within current line [0..455]

	// statLine is the internal OR-of-enabled-sources line; the STAT
	// interrupt fires only on its rising edge.
	statLine bool

	framebuffer [144][160]byte

	// winLineCounter is the window's own internal line counter: it only
	// advances on lines where the window actually renders, and resets each
	// frame. lines captures, per scanline, the WinLine value observed at
	// that line's mode-3 entry for external inspection/testing.
	winLineCounter byte
	lines          [144]lineRegs

	req InterruptRequester
}

// lineRegs is a per-scanline snapshot of registers whose effective value
// depends on rendering history rather than their live register value.
type lineRegs struct {
	WinLine byte
}

// LineRegs returns the captured window-line-counter snapshot for scanline ly.
func (p *PPU) LineRegs(ly int) lineRegs {
	if ly < 0 || ly >= 144 {
		return lineRegs{}
	}
	return p.lines[ly]
}

func New(req InterruptRequester) *PPU { return &PPU{req: req} }

// Read satisfies VRAMReader for the PPU's own scanline fetcher: it bypasses
// the CPU-facing mode-blocking rules because scanline rendering happens
// once per line rather than dot-by-dot.
func (p *PPU) Read(addr uint16) byte {
	if addr < 0x8000 || addr > 0x9FFF {
		return 0xFF
	}
	return p.vram[addr-0x8000]
}

// CPURead returns bytes for VRAM, OAM, and PPU IO registers. Returns 0xFF for others.
func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if (p.stat & 0x03) == 3 {
			return 0xFF
		}
		return p.vram[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
		return 0x80 | (p.stat & 0x7F)
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	default:
		return 0xFF
	}
}

// CPUWrite handles writes to VRAM, OAM, and PPU IO regs. Others are ignored here.
func (p *PPU) CPUWrite(addr uint16, value byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if (p.stat & 0x03) == 3 {
			return
		}
		p.vram[addr-0x8000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return
		}
		p.oam[addr-0xFE00] = value
	case addr == 0xFF40:
		prev := p.lcdc
		p.lcdc = value
		if (p.lcdc&0x80) == 0 && (prev&0x80) != 0 {
			// Disabling the LCD immediately resets mode/LY and forces the
			// STAT line low without raising a spurious interrupt.
			p.ly = 0
			p.dot = 0
			p.stat &^= 0x03
			p.stat &^= 1 << 2
			p.statLine = false
		} else if (p.lcdc&0x80) != 0 && (prev&0x80) == 0 {
			p.ly = 0
			p.dot = 0
			p.winLineCounter = 0
			p.stat = (p.stat &^ 0x03) | 2
			p.updateLYC()
			p.refreshStatLine()
		}
	case addr == 0xFF41:
		p.stat = (p.stat & 0x07) | (value & 0x78)
		p.refreshStatLine()
	case addr == 0xFF42:
		p.scy = value
	case addr == 0xFF43:
		p.scx = value
	case addr == 0xFF44:
		p.ly = 0
		p.dot = 0
		p.updateLYC()
		if (p.lcdc & 0x80) != 0 {
			p.stat = (p.stat &^ 0x03) | 2
			p.refreshStatLine()
		}
	case addr == 0xFF45:
		p.lyc = value
		p.updateLYC()
	case addr == 0xFF47:
		p.bgp = value
	case addr == 0xFF48:
		p.obp0 = value
	case addr == 0xFF49:
		p.obp1 = value
	case addr == 0xFF4A:
		p.wy = value
	case addr == 0xFF4B:
		p.wx = value
	}
}

// Tick advances PPU state by the given number of dots (CPU cycles).
func (p *PPU) Tick(cycles int) {
	if cycles <= 0 {
		return
	}
	for i := 0; i < cycles; i++ {
		if (p.lcdc & 0x80) == 0 { // LCD off
			continue
		}
		p.dot++

		var mode byte
		if p.ly >= 144 {
			mode = 1
		} else {
			switch {
			case p.dot < 80:
				mode = 2
			case p.dot < 80+172:
				mode = 3
			default:
				mode = 0
			}
		}
		p.setMode(mode)

		if p.dot >= 456 {
			p.dot = 0
			p.ly++
			if p.ly == 144 {
				if p.req != nil {
					p.req(0) // VBlank IF, unconditional
				}
			} else if p.ly > 153 {
				p.ly = 0
				p.winLineCounter = 0
			}
			p.updateLYC()
			if p.ly >= 144 {
				p.setMode(1)
			} else {
				p.setMode(2)
			}
		}
	}
}

func (p *PPU) setMode(mode byte) {
	prev := p.stat & 0x03
	if prev == mode {
		return
	}
	p.stat = (p.stat &^ 0x03) | (mode & 0x03)
	if mode == 3 {
		p.captureLineRegs()
	}
	if mode == 0 {
		// Entering HBlank: the scanline's pixels are now fully determined.
		p.renderScanline()
	}
	p.refreshStatLine()
}

// captureLineRegs snapshots the window line counter for the current
// scanline at the moment pixel transfer begins, and advances the counter
// if the window actually renders on this line.
func (p *PPU) captureLineRegs() {
	ly := int(p.ly)
	if ly < 0 || ly >= 144 {
		return
	}
	visible := p.lcdc&0x20 != 0 && p.wy <= p.ly && p.wx <= 166
	if visible {
		p.lines[ly] = lineRegs{WinLine: p.winLineCounter}
		p.winLineCounter++
	} else {
		p.lines[ly] = lineRegs{}
	}
}

func (p *PPU) updateLYC() {
	if p.ly == p.lyc {
		p.stat |= 1 << 2
	} else {
		p.stat &^= 1 << 2
	}
	p.refreshStatLine()
}

// statLineSources computes the logical OR of the four enable-gated STAT
// sources for the current mode/coincidence state.
func (p *PPU) statLineSources() bool {
	mode := p.stat & 0x03
	switch mode {
	case 0:
		if p.stat&(1<<3) != 0 {
			return true
		}
	case 1:
		if p.stat&(1<<4) != 0 {
			return true
		}
	case 2:
		if p.stat&(1<<5) != 0 {
			return true
		}
	}
	if p.stat&(1<<2) != 0 && p.stat&(1<<6) != 0 {
		return true
	}
	return false
}

// refreshStatLine recomputes the STAT line and raises the STAT interrupt
// only on a rising edge; a line already high never refires.
func (p *PPU) refreshStatLine() {
	now := p.statLineSources()
	if now && !p.statLine {
		if p.req != nil {
			p.req(1)
		}
	}
	p.statLine = now
}

func paletteShade(palette, ci byte) byte {
	return (palette >> (ci * 2)) & 0x03
}

// renderScanline composites background, window, and sprites for the line
// that just finished pixel transfer and stores the result into the
// framebuffer.
func (p *PPU) renderScanline() {
	ly := p.ly
	if ly >= 144 {
		return
	}
	var bgci [160]byte
	if p.lcdc&0x01 != 0 {
		bgMapBase := uint16(0x9800)
		if p.lcdc&0x08 != 0 {
			bgMapBase = 0x9C00
		}
		tileData8000 := p.lcdc&0x10 != 0
		bgci = RenderBGScanlineUsingFetcher(p, bgMapBase, tileData8000, p.scx, p.scy, ly)

		if p.lcdc&0x20 != 0 && p.wy <= ly && p.wx <= 166 {
			winMapBase := uint16(0x9800)
			if p.lcdc&0x40 != 0 {
				winMapBase = 0x9C00
			}
			wxStart := int(p.wx) - 7
			winLine := p.lines[ly].WinLine
			winPixels := RenderWindowScanlineUsingFetcher(p, winMapBase, tileData8000, wxStart, winLine)
			start := wxStart
			if start < 0 {
				start = 0
			}
			for x := start; x < 160; x++ {
				bgci[x] = winPixels[x]
			}
		}
	}

	var shades [160]byte
	for x := 0; x < 160; x++ {
		shades[x] = paletteShade(p.bgp, bgci[x])
	}

	if p.lcdc&0x02 != 0 {
		tall := p.lcdc&0x04 != 0
		sprites := SpritesOnLine(&p.oam, ly, tall)
		if len(sprites) > 0 {
			spriteCi := ComposeSpriteLine(p, sprites, ly, bgci, tall)
			for x := 0; x < 160; x++ {
				if spriteCi[x] == 0 {
					continue
				}
				winner := spriteWinnerAt(p, sprites, ly, x, tall)
				if winner == nil {
					continue
				}
				pal := p.obp0
				if winner.Attr&0x10 != 0 {
					pal = p.obp1
				}
				shades[x] = paletteShade(pal, spriteCi[x])
			}
		}
	}

	p.framebuffer[ly] = shades
}

// spriteWinnerAt re-derives which sprite ComposeSpriteLine chose at column x,
// so the palette (OBP0/OBP1) of exactly that sprite can be applied. Kept as
// a thin re-derivation rather than changing ComposeSpriteLine's tested
// signature.
func spriteWinnerAt(mem VRAMReader, sprites []Sprite, ly byte, x int, tall bool) *Sprite {
	height := byte(8)
	if tall {
		height = 16
	}
	var winner *Sprite
	for i := range sprites {
		s := &sprites[i]
		if x < int(s.X) || x >= int(s.X)+8 {
			continue
		}
		row := ly - s.Y
		if row >= height {
			continue
		}
		if spritePixel(mem, *s, ly, x, height) == 0 {
			continue
		}
		if winner == nil || s.X < winner.X || (s.X == winner.X && s.OAMIndex < winner.OAMIndex) {
			winner = s
		}
	}
	return winner
}

// Framebuffer returns the most recently completed frame's 144 rows of
// 2-bit palette-index pixels.
func (p *PPU) Framebuffer() *[144][160]byte { return &p.framebuffer }

// Mode returns the current 2-bit PPU mode (0=HBlank,1=VBlank,2=OAM,3=Transfer).
func (p *PPU) Mode() byte { return p.stat & 0x03 }

// LY returns the current scanline for external drivers (e.g. VBlank polling).
func (p *PPU) LY() byte { return p.ly }

// Expose palettes and scroll for renderer convenience (optional helpers)
func (p *PPU) BGP() byte  { return p.bgp }
func (p *PPU) OBP0() byte { return p.obp0 }
func (p *PPU) OBP1() byte { return p.obp1 }
func (p *PPU) LCDC() byte { return p.lcdc }
func (p *PPU) SCY() byte  { return p.scy }
func (p *PPU) SCX() byte  { return p.scx }
func (p *PPU) WY() byte   { return p.wy }
func (p *PPU) WX() byte   { return p.wx }

// State is a serializable snapshot for save states.
type State struct {
	VRAM     [0x2000]byte
	OAM      [0xA0]byte
	LCDC     byte
	Stat     byte
	SCY      byte
	SCX      byte
	LY       byte
	LYC      byte
	BGP      byte
	OBP0     byte
	OBP1     byte
	WY       byte
	WX       byte
	Dot            int
	StatLine       bool
	WinLineCounter byte
}

func (p *PPU) SaveState() State {
	return State{
		VRAM: p.vram, OAM: p.oam,
		LCDC: p.lcdc, Stat: p.stat, SCY: p.scy, SCX: p.scx,
		LY: p.ly, LYC: p.lyc, BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1,
		WY: p.wy, WX: p.wx, Dot: p.dot, StatLine: p.statLine,
		WinLineCounter: p.winLineCounter,
	}
}

func (p *PPU) LoadState(s State) {
	p.vram = s.VRAM
	p.oam = s.OAM
	p.lcdc, p.stat, p.scy, p.scx = s.LCDC, s.Stat, s.SCY, s.SCX
	p.ly, p.lyc, p.bgp, p.obp0, p.obp1 = s.LY, s.LYC, s.BGP, s.OBP0, s.OBP1
	p.wy, p.wx, p.dot, p.statLine = s.WY, s.WX, s.Dot, s.StatLine
	p.winLineCounter = s.WinLineCounter
}
