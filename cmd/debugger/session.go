package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"gochip8/pkg/cpu"
)

// session owns the CPU. The gocui handlers and the frame ticker run on
// different goroutines, so every access goes through mu.
type session struct {
	mu sync.Mutex

	rom          []byte
	newCPU       func() *cpu.CPU
	vm           *cpu.CPU
	latch        *cpu.KeyLatch
	stepsPerTick int
	running      bool
	breakpoints  map[uint16]bool
	status       string
}

func newSession(rom []byte, stepsPerTick, latchFrames int, newCPU func() *cpu.CPU) (*session, error) {
	s := &session{
		rom:          rom,
		newCPU:       newCPU,
		latch:        cpu.NewKeyLatch(latchFrames),
		stepsPerTick: stepsPerTick,
		breakpoints:  make(map[uint16]bool),
	}
	if err := s.reset(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *session) reset() error {
	vm := s.newCPU()
	if err := vm.LoadProgram(s.rom); err != nil {
		return err
	}
	s.vm = vm
	s.running = false
	s.latch.Reset()
	s.status = fmt.Sprintf("loaded %d bytes, stepping", len(s.rom))
	return nil
}

func (s *session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reset()
}

func (s *session) PressKey(code uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latch.Press(code)
}

func (s *session) SetRunning(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vm.Halted {
		return
	}
	s.running = on
	if on {
		s.status = "running"
	} else {
		s.status = "stepping"
	}
}

func (s *session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ToggleBreakpoint sets or clears a breakpoint at the current PC.
func (s *session) ToggleBreakpoint() {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc := s.vm.PC
	if s.breakpoints[pc] {
		delete(s.breakpoints, pc)
		s.status = fmt.Sprintf("breakpoint cleared at %03X", pc)
		return
	}
	s.breakpoints[pc] = true
	s.status = fmt.Sprintf("breakpoint set at %03X", pc)
}

func (s *session) AddBreakpoint(addr uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.breakpoints[addr] = true
}

// Step executes a single instruction and ticks the timers once.
func (s *session) Step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step() {
		s.vm.TickTimers()
		s.latch.Tick()
	}
}

// Frame runs one 60 Hz tick while running: the instruction batch, then the
// timers. Execution pauses when PC lands on a breakpoint.
func (s *session) Frame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	for i := 0; i < s.stepsPerTick; i++ {
		if !s.step() {
			return
		}
		if s.breakpoints[s.vm.PC] {
			s.running = false
			s.status = fmt.Sprintf("break at %03X", s.vm.PC)
			break
		}
	}
	s.vm.TickTimers()
	s.latch.Tick()
}

func (s *session) step() bool {
	if err := s.vm.Step(s.latch.Keys()); err != nil {
		s.running = false
		s.status = "halted: " + err.Error()
		return false
	}
	return true
}

// locked runs fn while holding the session lock.
func (s *session) locked(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

func (s *session) writeDisasm(w io.Writer, n int) {
	for _, line := range s.vm.DisassembleNext(n) {
		var addr uint16
		marker := "  "
		if _, err := fmt.Sscanf(line, "%03X", &addr); err == nil && s.breakpoints[addr] {
			marker = "* "
		}
		fmt.Fprintln(w, marker+line)
	}
}

func (s *session) breakpointList() string {
	addrs := make([]int, 0, len(s.breakpoints))
	for addr := range s.breakpoints {
		addrs = append(addrs, int(addr))
	}
	sort.Ints(addrs)
	parts := make([]string, len(addrs))
	for i, addr := range addrs {
		parts[i] = fmt.Sprintf("%03X", addr)
	}
	return strings.Join(parts, " ")
}
