package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/retroenv/retrogolib/log"

	"gochip8/pkg/cpu"
	"gochip8/pkg/utils"
)

const (
	frameRate = 60
	keyEscape = 0x1B
	keyCtrlC  = 0x03
)

type console struct {
	vm           *cpu.CPU
	latch        *cpu.KeyLatch
	stepsPerTick int
	out          io.Writer
	beeping      bool
}

// handleInput latches mapped keys. It reports false when the user asked to quit.
func (c *console) handleInput(b byte) bool {
	if b == keyEscape || b == keyCtrlC {
		return false
	}
	if code, ok := cpu.KeyForRune(rune(b)); ok {
		c.latch.Press(code)
	}
	return true
}

// frame runs one 60 Hz tick: the instruction batch, the timers and a redraw.
func (c *console) frame() error {
	keys := c.latch.Keys()
	for i := 0; i < c.stepsPerTick; i++ {
		if err := c.vm.Step(keys); err != nil {
			return err
		}
	}
	c.vm.TickTimers()
	c.latch.Tick()

	fmt.Fprint(c.out, cursorHome, c.vm.Display.HalfBlocks("\r\n"))
	sound := c.vm.SoundActive()
	if sound && !c.beeping {
		fmt.Fprint(c.out, "\a")
	}
	c.beeping = sound
	return nil
}

func main() {
	hz := flag.Int("hz", 500, "instructions per second")
	stuck := flag.String("stuck", cpu.StuckIgnore.String(), "stuck program counter policy: halt or ignore")
	latchFrames := flag.Int("latch", 6, "frames a key stays down after each keypress")
	seed := flag.Uint64("seed", 0, "seed for RND (0 picks a random sequence)")
	logFile := flag.String("log", "", "write logs to this file")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <rom>\n", os.Args[0])
		os.Exit(2)
	}

	// The terminal is the display, so logs only go to a file.
	cfg := log.DefaultConfig()
	cfg.Output = io.Discard
	if *logFile != "" {
		f, err := os.Create(*logFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		cfg.Output = f
	}
	logger := log.NewWithConfig(cfg)

	policy, err := cpu.ParseStuckPolicy(*stuck)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	opts := []cpu.Option{cpu.WithStuckPolicy(policy), cpu.WithLogger(logger)}
	if *seed != 0 {
		opts = append(opts, cpu.WithRandom(cpu.NewSeededRandom(*seed)))
	}
	vm := cpu.New(opts...)

	rom, err := utils.LoadROM(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load ROM: %v\n", err)
		os.Exit(1)
	}
	if err := vm.LoadProgram(rom); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Info("rom loaded", log.String("file", flag.Arg(0)), log.Int("bytes", len(rom)), log.String("xxhash", utils.Fingerprint(rom)))

	host := newTerminalHost()
	if err := host.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Terminal setup failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(clearScreen, hideCursor)

	c := &console{
		vm:           vm,
		latch:        cpu.NewKeyLatch(*latchFrames),
		stepsPerTick: max(1, *hz/frameRate),
		out:          os.Stdout,
	}
	runErr := c.run(host.Input)
	host.Stop()

	if runErr != nil {
		var dump bytes.Buffer
		vm.DumpRegisters(&dump)
		fmt.Fprintf(os.Stderr, "\nhalted: %v\n%s", runErr, dump.String())
		os.Exit(1)
	}
}

func (c *console) run(input <-chan byte) error {
	ticker := time.NewTicker(time.Second / frameRate)
	defer ticker.Stop()
	for {
		select {
		case b, ok := <-input:
			if !ok || !c.handleInput(b) {
				return nil
			}
		case <-ticker.C:
			if err := c.frame(); err != nil {
				if errors.Is(err, cpu.ErrStuckProgramCounter) {
					return fmt.Errorf("program stopped: %w", err)
				}
				return err
			}
		}
	}
}
