package main

import (
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"

	"gochip8/pkg/cpu"
)

type fakeBeeper struct {
	on bool
}

func (b *fakeBeeper) SetActive(on bool) { b.on = on }

// newTestGame builds a Game around the given program. Halting tests need a
// nop logger since the test logger fails the test on error records.
func newTestGame(t *testing.T, logger *log.Logger, words ...uint16) (*Game, *fakeBeeper) {
	t.Helper()
	vm := cpu.New(cpu.WithStuckPolicy(cpu.StuckIgnore))
	prog := make([]byte, 0, len(words)*2)
	for _, w := range words {
		prog = append(prog, byte(w>>8), byte(w))
	}
	assert.NoError(t, vm.LoadProgram(prog))
	bp := &fakeBeeper{}
	return &Game{
		vm:           vm,
		beeper:       bp,
		logger:       logger,
		stepsPerTick: 8,
		scale:        10,
	}, bp
}

func TestKeymapCoversKeypad(t *testing.T) {
	assert.Equal(t, 16, len(keymap))
	seen := map[uint8]bool{}
	for _, code := range keymap {
		seen[code] = true
	}
	assert.Equal(t, 16, len(seen))
}

func TestPressedKeys(t *testing.T) {
	down := map[ebiten.Key]bool{ebiten.Key4: true, ebiten.KeyX: true, ebiten.KeyV: true, ebiten.KeyG: true}
	keys := pressedKeys(func(k ebiten.Key) bool { return down[k] })
	assert.Equal(t, cpu.Keys(0xC, 0x0, 0xF), keys)
}

func TestRunFrameFreeRunning(t *testing.T) {
	// LD V1, 0x0A; LD ST, V1; then count in V2 forever.
	g, bp := newTestGame(t, log.NewTestLogger(t), 0x610A, 0xF118, 0x7201, 0x1204)
	g.runFrame(0, false)
	assert.Equal(t, byte(3), g.vm.V[2])
	assert.Equal(t, byte(9), g.vm.ST)
	assert.True(t, bp.on)
}

func TestRunFrameStepping(t *testing.T) {
	g, _ := newTestGame(t, log.NewTestLogger(t), 0x6001, 0x6102)
	g.paused = true
	g.runFrame(0, false)
	assert.Equal(t, uint16(cpu.ProgramStart), g.vm.PC)
	g.runFrame(0, true)
	assert.Equal(t, uint16(cpu.ProgramStart+2), g.vm.PC)
	assert.Equal(t, byte(1), g.vm.V[0])
}

func TestRunFrameFaultPauses(t *testing.T) {
	g, bp := newTestGame(t, log.NewNop(), 0x00EE)
	bp.on = true
	g.runFrame(0, false)
	assert.True(t, g.vm.Halted)
	assert.True(t, g.paused)
	assert.False(t, bp.on)
	assert.Equal(t, "HALTED", g.panelLines()[len(g.panelLines())-1])
}

func TestLayout(t *testing.T) {
	g, _ := newTestGame(t, log.NewNop())
	w, h := g.Layout(0, 0)
	assert.Equal(t, 640, w)
	assert.Equal(t, 320, h)
	g.debug = true
	w, h = g.Layout(0, 0)
	assert.Equal(t, 640+panelWidth, w)
	assert.Equal(t, 25*lineHeight+panelMargin, h)
}

func TestParseFlags(t *testing.T) {
	opts, rom, err := parseFlags([]string{"-scale", "4", "-stuck", "halt", "game.ch8"})
	assert.NoError(t, err)
	assert.Equal(t, "game.ch8", rom)
	assert.Equal(t, 4, opts.scale)
	vm, err := newCPU(opts, log.NewNop())
	assert.NoError(t, err)
	assert.True(t, vm != nil)

	_, _, err = parseFlags(nil)
	assert.Error(t, err, "usage: chip8-desktop [flags] <rom>")
	_, _, err = parseFlags([]string{"-hz", "10", "game.ch8"})
	assert.Error(t, err, "invalid -hz 10 (minimum 60)")
	opts, _, err = parseFlags([]string{"-stuck", "maybe", "game.ch8"})
	assert.NoError(t, err)
	_, err = newCPU(opts, nil)
	assert.Error(t, err, `unknown stuck policy "maybe" (want halt or ignore)`)
}
