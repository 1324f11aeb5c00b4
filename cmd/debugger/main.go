package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/jroimartin/gocui"

	"gochip8/pkg/cpu"
	"gochip8/pkg/utils"
)

const (
	frameRate   = 60
	displayCols = cpu.DisplayWidth + 2
	displayRows = cpu.DisplayHeight/2 + 2
	helpText    = "g run  p pause  n/space step  . breakpoint  o reset  ^C quit"
)

func main() {
	hz := flag.Int("hz", 500, "instructions per second while running")
	stuck := flag.String("stuck", cpu.StuckIgnore.String(), "stuck program counter policy: halt or ignore")
	latchFrames := flag.Int("latch", 6, "frames a key stays down after each keypress")
	seed := flag.Uint64("seed", 0, "seed for RND (0 picks a random sequence)")
	breaks := flag.String("break", "", "comma separated breakpoint addresses, e.g. 0x2A0,0x300")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("usage: chip8-debugger [flags] <rom>")
	}
	policy, err := cpu.ParseStuckPolicy(*stuck)
	if err != nil {
		log.Fatal(err)
	}
	rom, err := utils.LoadROM(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to load ROM: %v", err)
	}

	newCPU := func() *cpu.CPU {
		opts := []cpu.Option{cpu.WithStuckPolicy(policy)}
		if *seed != 0 {
			opts = append(opts, cpu.WithRandom(cpu.NewSeededRandom(*seed)))
		}
		return cpu.New(opts...)
	}
	s, err := newSession(rom, max(1, *hz/frameRate), *latchFrames, newCPU)
	if err != nil {
		log.Fatal(err)
	}
	addrs, err := parseBreakpoints(*breaks)
	if err != nil {
		log.Fatal(err)
	}
	for _, addr := range addrs {
		s.AddBreakpoint(addr)
	}

	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		log.Panicln("Couldn't create gui!")
	}
	defer g.Close()

	g.SetManagerFunc(func(g *gocui.Gui) error {
		if err := layout(g); err != nil {
			return err
		}
		return redraw(g, s)
	})
	if err := bindKeys(g, s); err != nil {
		log.Panicln(err)
	}

	go runFrames(g, s)

	if err := g.MainLoop(); err != nil && err != gocui.ErrQuit {
		log.Panicln(err)
	}
}

// runFrames drives the session at 60 Hz and refreshes the views while it runs.
// gocui allows updating views only through Update.
func runFrames(g *gocui.Gui, s *session) {
	ticker := time.NewTicker(time.Second / frameRate)
	defer ticker.Stop()
	for range ticker.C {
		if !s.Running() {
			continue
		}
		s.Frame()
		g.Update(func(g *gocui.Gui) error {
			return redraw(g, s)
		})
	}
}

func parseBreakpoints(list string) ([]uint16, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	var addrs []uint16
	for _, field := range strings.Split(list, ",") {
		v, err := strconv.ParseUint(strings.TrimSpace(field), 0, 16)
		if err != nil || v >= cpu.MemorySize {
			return nil, fmt.Errorf("invalid breakpoint %q", field)
		}
		addrs = append(addrs, uint16(v))
	}
	return addrs, nil
}

func bindKeys(g *gocui.Gui, s *session) error {
	bindings := []struct {
		key     interface{}
		handler func()
	}{
		{'g', func() { s.SetRunning(true) }},
		{'p', func() { s.SetRunning(false) }},
		{'n', s.Step},
		{gocui.KeySpace, s.Step},
		{'.', s.ToggleBreakpoint},
		{'o', func() { _ = s.Reset() }},
	}
	for _, b := range bindings {
		handler := b.handler
		if err := g.SetKeybinding("", b.key, gocui.ModNone, func(g *gocui.Gui, v *gocui.View) error {
			handler()
			return redraw(g, s)
		}); err != nil {
			return err
		}
	}

	for _, r := range cpu.KeypadRunes() {
		code, _ := cpu.KeyForRune(r)
		if err := g.SetKeybinding("", r, gocui.ModNone, func(g *gocui.Gui, v *gocui.View) error {
			s.PressKey(code)
			return nil
		}); err != nil {
			return err
		}
	}

	return g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, quit)
}

// gocui layout: display top left, disassembly on the right, registers and
// memory below the display, status along the bottom.
func layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	views := []struct {
		name, title    string
		x0, y0, x1, y1 int
	}{
		{"display", "Display", 0, 0, displayCols, displayRows},
		{"disasm", "Disassembly", displayCols + 1, 0, maxX - 1, maxY - 4},
		{"registers", "Registers", 0, displayRows + 1, 30, maxY - 4},
		{"memory", "Memory at I", 31, displayRows + 1, displayCols, maxY - 4},
		{"status", "Status", 0, maxY - 3, maxX - 1, maxY - 1},
	}
	for _, vw := range views {
		if v, err := g.SetView(vw.name, vw.x0, vw.y0, vw.x1, vw.y1); err != nil {
			if err != gocui.ErrUnknownView {
				return err
			}
			v.Title = vw.title
		}
	}
	return nil
}

func redraw(g *gocui.Gui, s *session) error {
	var err error
	s.locked(func() {
		var v *gocui.View
		if v, err = g.View("display"); err != nil {
			return
		}
		v.Clear()
		fmt.Fprint(v, s.vm.Display.HalfBlocks("\n"))

		if v, err = g.View("disasm"); err != nil {
			return
		}
		v.Clear()
		_, h := v.Size()
		s.writeDisasm(v, max(1, h))

		if v, err = g.View("registers"); err != nil {
			return
		}
		v.Clear()
		for _, line := range s.vm.StateLines() {
			fmt.Fprintln(v, line)
		}
		fmt.Fprintln(v, keysLine(s.latch.Keys()))

		if v, err = g.View("memory"); err != nil {
			return
		}
		v.Clear()
		_ = s.vm.Memory.Dump(v, int(s.vm.I), 64)

		if v, err = g.View("status"); err != nil {
			return
		}
		v.Clear()
		fmt.Fprintf(v, "%s | bp: %s | %s", s.status, s.breakpointList(), helpText)
	})
	return err
}

func keysLine(keys cpu.KeySet) string {
	if keys.Empty() {
		return "KEYS:none"
	}
	return "KEYS:" + keys.String()
}

func quit(g *gocui.Gui, v *gocui.View) error {
	return gocui.ErrQuit
}
