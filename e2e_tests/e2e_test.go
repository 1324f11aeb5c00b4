package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gochip8/pkg/asm"
	"gochip8/pkg/cpu"
)

// runProgram assembles a program from _programs and runs it until it idles.
func runProgram(t *testing.T, name string, maxSteps int) *cpu.CPU {
	t.Helper()
	source, err := os.ReadFile(filepath.Join("..", "_programs", name))
	if err != nil {
		t.Fatalf("Failed to read source: %v", err)
	}

	machineCode, _, err := asm.Assemble(string(source))
	if err != nil {
		t.Fatalf("Assembly failed: %v", err)
	}

	vm := cpu.New(cpu.WithRandom(cpu.NewSeededRandom(1)))
	if err := vm.LoadProgram(machineCode); err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}

	for i := 0; i < maxSteps; i++ {
		err := vm.Step(0)
		if errors.Is(err, cpu.ErrStuckProgramCounter) {
			return vm
		}
		if err != nil {
			var dump bytes.Buffer
			vm.DumpRegisters(&dump)
			t.Fatalf("Step %d failed: %v\n%s", i, err, dump.String())
		}
		if i%8 == 7 {
			vm.TickTimers()
		}
	}
	t.Fatalf("%s did not reach its idle loop in %d steps", name, maxSteps)
	return nil
}

func TestArithmeticProgram(t *testing.T) {
	vm := runProgram(t, "arith.asm", 1000)

	results, err := vm.Memory.Slice(vm.I, 10)
	if err != nil {
		t.Fatal(err)
	}
	expected := []byte{0x00, 0x01, 0x01, 0xFB, 0x0A, 0x00, 0x40, 0x01, 0x00, 0x00}
	if !bytes.Equal(results, expected) {
		t.Errorf("Expected results % X, got % X", expected, results)
	}
}

func TestDigitsProgram(t *testing.T) {
	vm := runProgram(t, "digits.asm", 1000)

	// Each glyph is 4 pixels wide; digits start at x=2, 7 and 12, row 2.
	// Top rows: "1" = 0x20, "3" = 0xF0, "7" = 0xF0.
	checks := []struct {
		x, y int
		want bool
	}{
		{2, 2, false}, {4, 2, true}, {5, 2, false},
		{7, 2, true}, {10, 2, true},
		{12, 2, true}, {15, 2, true},
		{0, 0, false},
	}
	for _, c := range checks {
		if got := vm.Display.Pixel(c.x, c.y); got != c.want {
			t.Errorf("Pixel(%d,%d): expected %v, got %v", c.x, c.y, c.want, got)
		}
	}
	if vm.V[1] != 17 {
		t.Errorf("Expected cursor V1=17, got %d", vm.V[1])
	}
	if len(vm.Stack) != 0 {
		t.Errorf("Expected empty stack, got %v", vm.Stack)
	}
}

func TestTimerProgram(t *testing.T) {
	vm := runProgram(t, "timer.asm", 2000)

	if vm.V[2] != 1 {
		t.Errorf("Expected V2=1 after the delay, got %d", vm.V[2])
	}
	if vm.DT != 0 {
		t.Errorf("Expected DT=0, got %d", vm.DT)
	}
	if !vm.SoundActive() {
		t.Error("Expected the sound timer to still be running")
	}
}
