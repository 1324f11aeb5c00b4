package main

import (
	"github.com/hajimehoshi/ebiten/v2"

	"gochip8/pkg/cpu"
)

// keymap lays the hex keypad over the left side of a QWERTY keyboard:
//
//	1 2 3 4      1 2 3 C
//	Q W E R  ->  4 5 6 D
//	A S D F      7 8 9 E
//	Z X C V      A 0 B F
var keymap = map[ebiten.Key]uint8{
	ebiten.Key1: 0x1, ebiten.Key2: 0x2, ebiten.Key3: 0x3, ebiten.Key4: 0xC,
	ebiten.KeyQ: 0x4, ebiten.KeyW: 0x5, ebiten.KeyE: 0x6, ebiten.KeyR: 0xD,
	ebiten.KeyA: 0x7, ebiten.KeyS: 0x8, ebiten.KeyD: 0x9, ebiten.KeyF: 0xE,
	ebiten.KeyZ: 0xA, ebiten.KeyX: 0x0, ebiten.KeyC: 0xB, ebiten.KeyV: 0xF,
}

// pressedKeys collects the keypad codes whose host keys are down.
func pressedKeys(isPressed func(ebiten.Key) bool) cpu.KeySet {
	var keys cpu.KeySet
	for key, code := range keymap {
		if isPressed(key) {
			keys = keys.Press(code)
		}
	}
	return keys
}
