package main

import (
	"bytes"
	"fmt"
	"image/color"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/retroenv/retrogolib/log"
	"golang.org/x/image/font/basicfont"

	"gochip8/pkg/cpu"
	"gochip8/pkg/utils"
)

const (
	panelWidth  = 300
	lineHeight  = 14
	panelMargin = 8
	disasmLines = 15
)

var (
	pixelOn    = color.RGBA{0xE0, 0xF0, 0xE0, 0xFF}
	pixelOff   = color.RGBA{0x10, 0x18, 0x10, 0xFF}
	panelText  = color.RGBA{0xC0, 0xC0, 0xC0, 0xFF}
	panelFocus = color.RGBA{0xFF, 0xD0, 0x40, 0xFF}
	panelFault = color.RGBA{0xFF, 0x50, 0x50, 0xFF}
)

type beeper interface {
	SetActive(on bool)
}

type Game struct {
	vm           *cpu.CPU
	beeper       beeper
	logger       *log.Logger
	stepsPerTick int
	scale        int
	debug        bool
	paused       bool
	romID        string
	shots        int

	displayImg *ebiten.Image // reused 64x32 canvas
}

// runFrame advances the machine by one 60 Hz tick. While paused only an
// explicit single step runs, and it also ticks the timers.
func (g *Game) runFrame(keys cpu.KeySet, stepOnce bool) {
	if g.vm.Halted {
		g.setSound(false)
		return
	}
	switch {
	case !g.paused:
		for i := 0; i < g.stepsPerTick; i++ {
			if err := g.vm.Step(keys); err != nil {
				g.fault(err)
				return
			}
		}
		g.vm.TickTimers()
	case stepOnce:
		if err := g.vm.Step(keys); err != nil {
			g.fault(err)
			return
		}
		g.vm.TickTimers()
	}
	g.setSound(g.vm.SoundActive())
}

func (g *Game) setSound(on bool) {
	if g.beeper != nil {
		g.beeper.SetActive(on)
	}
}

func (g *Game) fault(err error) {
	g.paused = true
	g.setSound(false)
	g.logger.Error("program halted", err)
	var dump bytes.Buffer
	g.vm.DumpRegisters(&dump)
	g.logger.Info("state at halt\n" + dump.String())
}

func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyG) && g.paused {
		g.paused = false
		g.logger.Info("run mode", log.String("mode", "free running"))
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyB) && !g.paused {
		g.paused = true
		g.logger.Info("run mode", log.String("mode", "stepping"))
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		g.screenshot()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF2) {
		g.copyState()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF3) {
		if err := utils.CopyImage(g.vm.Display.Image(g.scale, pixelOn, pixelOff)); err != nil {
			g.logger.Warn("copying display failed", log.Err(err))
		}
	}

	stepOnce := g.paused && (inpututil.IsKeyJustPressed(ebiten.KeySpace) ||
		inpututil.KeyPressDuration(ebiten.KeySpace) > 20)
	g.runFrame(pressedKeys(ebiten.IsKeyPressed), stepOnce)
	return nil
}

func (g *Game) screenshot() {
	g.shots++
	name := fmt.Sprintf("chip8-%s-%03d.png", g.romID, g.shots)
	if err := g.vm.Display.SaveScreenshot(name, g.scale); err != nil {
		g.logger.Warn("screenshot failed", log.Err(err))
		return
	}
	g.logger.Info("screenshot saved", log.String("file", name))
}

func (g *Game) copyState() {
	var sb strings.Builder
	g.vm.DumpRegisters(&sb)
	for _, line := range g.vm.DisassembleNext(disasmLines) {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	if err := utils.CopyText(sb.String()); err != nil {
		g.logger.Warn("copying state failed", log.Err(err))
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	if g.displayImg == nil {
		g.displayImg = ebiten.NewImage(cpu.DisplayWidth, cpu.DisplayHeight)
	}
	g.displayImg.WritePixels(g.vm.Display.RGBA(pixelOn, pixelOff))

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(g.scale), float64(g.scale))
	screen.DrawImage(g.displayImg, op)

	if g.debug {
		g.drawPanel(screen)
	}
}

// panelLines is the debug panel text: upcoming instructions, then registers,
// then the run state.
func (g *Game) panelLines() []string {
	lines := g.vm.DisassembleNext(disasmLines)
	lines = append(lines, "")
	lines = append(lines, g.vm.StateLines()...)
	switch {
	case g.vm.Halted:
		lines = append(lines, "HALTED")
	case g.paused:
		lines = append(lines, "STEPPING (G run, SPACE step)")
	default:
		lines = append(lines, "RUNNING (B break)")
	}
	return lines
}

func (g *Game) drawPanel(screen *ebiten.Image) {
	face := basicfont.Face7x13
	x := cpu.DisplayWidth*g.scale + panelMargin
	lines := g.panelLines()
	for i, line := range lines {
		c := panelText
		switch {
		case i == 0:
			c = panelFocus
		case i == len(lines)-1 && g.vm.Halted:
			c = panelFault
		}
		text.Draw(screen, line, face, x, (i+1)*lineHeight, c)
	}
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	w, h := cpu.DisplayWidth*g.scale, cpu.DisplayHeight*g.scale
	if g.debug {
		w += panelWidth
		if ph := (disasmLines+10)*lineHeight + panelMargin; ph > h {
			h = ph
		}
	}
	return w, h
}
