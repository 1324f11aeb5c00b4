package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/retroenv/retrogolib/log"

	"gochip8/pkg/beeper"
	"gochip8/pkg/cpu"
	"gochip8/pkg/utils"
)

type options struct {
	scale  int
	hz     int
	stuck  string
	debug  bool
	trace  bool
	mute   bool
	paused bool
	seed   uint64
}

func parseFlags(args []string) (options, string, error) {
	var opts options
	fs := flag.NewFlagSet("chip8-desktop", flag.ContinueOnError)
	fs.IntVar(&opts.scale, "scale", 10, "pixel scale factor")
	fs.IntVar(&opts.hz, "hz", 500, "instructions per second")
	fs.StringVar(&opts.stuck, "stuck", cpu.StuckIgnore.String(), "stuck program counter policy: halt or ignore")
	fs.BoolVar(&opts.debug, "debug", false, "show the disassembly and register panel")
	fs.BoolVar(&opts.trace, "trace", false, "log every executed instruction")
	fs.BoolVar(&opts.mute, "mute", false, "disable the beeper")
	fs.BoolVar(&opts.paused, "paused", false, "start in stepping mode")
	fs.Uint64Var(&opts.seed, "seed", 0, "seed for RND (0 picks a random sequence)")
	if err := fs.Parse(args); err != nil {
		return opts, "", err
	}
	if fs.NArg() != 1 {
		return opts, "", errors.New("usage: chip8-desktop [flags] <rom>")
	}
	if opts.scale < 1 {
		return opts, "", fmt.Errorf("invalid -scale %d", opts.scale)
	}
	if opts.hz < 60 {
		return opts, "", fmt.Errorf("invalid -hz %d (minimum 60)", opts.hz)
	}
	return opts, fs.Arg(0), nil
}

func newCPU(opts options, logger *log.Logger) (*cpu.CPU, error) {
	policy, err := cpu.ParseStuckPolicy(opts.stuck)
	if err != nil {
		return nil, err
	}
	cpuOpts := []cpu.Option{cpu.WithStuckPolicy(policy), cpu.WithLogger(logger)}
	if opts.seed != 0 {
		cpuOpts = append(cpuOpts, cpu.WithRandom(cpu.NewSeededRandom(opts.seed)))
	}
	return cpu.New(cpuOpts...), nil
}

func main() {
	opts, romPath, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg := log.DefaultConfig()
	cfg.Output = os.Stderr
	if opts.trace {
		cfg.Level = log.DebugLevel
	}
	logger := log.NewWithConfig(cfg)

	fullPath, _, err := utils.GetPathInfo(romPath)
	if err != nil {
		logger.Fatal("Invalid ROM path", log.Err(err))
	}
	rom, err := utils.LoadROM(fullPath)
	if err != nil {
		logger.Fatal("Failed to load ROM", log.Err(err))
	}
	romID := utils.Fingerprint(rom)
	logger.Info("rom loaded", log.String("file", fullPath), log.Int("bytes", len(rom)), log.String("xxhash", romID))

	vm, err := newCPU(opts, logger)
	if err != nil {
		logger.Fatal("Invalid options", log.Err(err))
	}
	if err := vm.LoadProgram(rom); err != nil {
		logger.Fatal("Loading program failed", log.Err(err))
	}

	game := &Game{
		vm:           vm,
		logger:       logger,
		stepsPerTick: opts.hz / ebiten.DefaultTPS,
		scale:        opts.scale,
		debug:        opts.debug,
		paused:       opts.paused,
		romID:        romID[:8],
	}
	if !opts.mute {
		dev, err := beeper.Open(beeper.DefaultSampleRate)
		if err != nil {
			logger.Warn("audio unavailable, running muted", log.Err(err))
		} else {
			defer dev.Close()
			game.beeper = dev
		}
	}

	w, h := game.Layout(0, 0)
	ebiten.SetWindowSize(w, h)
	ebiten.SetWindowTitle("CHIP-8 - ESC to exit")
	logger.Info("controls", "G", "free running", "B", "stepping", "SPACE", "step", "F12", "screenshot", "F2", "copy state", "F3", "copy display")

	if err := ebiten.RunGame(game); err != nil {
		logger.Fatal("Game loop failed", log.Err(err))
	}
}
