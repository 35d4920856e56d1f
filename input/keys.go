package input

import (
	"fmt"
	"strings"
)

// Virtual-key codes for the keys a config file may name.
const (
	VKLButton  = 0x01
	VKRButton  = 0x02
	VKXButton1 = 0x05
	VKXButton2 = 0x06
	VKSpace    = 0x20
	VKShift    = 0x10
	VKControl  = 0x11
	VKAlt      = 0x12
)

var keyCodeMap = map[string]uint8{
	"F1": 0x70, "F2": 0x71, "F3": 0x72, "F4": 0x73,
	"F5": 0x74, "F6": 0x75, "F7": 0x76, "F8": 0x77,
	"F9": 0x78, "F10": 0x79, "F11": 0x7A, "F12": 0x7B,
	"1": 0x31, "2": 0x32, "3": 0x33, "4": 0x34, "5": 0x35,
	"6": 0x36, "7": 0x37, "8": 0x38, "9": 0x39, "0": 0x30,
	"Q": 0x51, "W": 0x57, "E": 0x45, "R": 0x52, "T": 0x54,
	"Y": 0x59, "U": 0x55, "I": 0x49, "O": 0x4F, "P": 0x50,
	"A": 0x41, "S": 0x53, "D": 0x44, "F": 0x46, "G": 0x47,
	"H": 0x48, "J": 0x4A, "K": 0x4B, "L": 0x4C,
	"Z": 0x5A, "X": 0x58, "C": 0x43, "V": 0x56,
	"B": 0x42, "N": 0x4E, "M": 0x4D,
	"SPACE": VKSpace, "ENTER": 0x0D, "TAB": 0x09,
	"SHIFT": VKShift, "CTRL": VKControl, "ALT": VKAlt,
	"CAPSLOCK": 0x14,
	"UP": 0x26, "DOWN": 0x28, "LEFT": 0x25, "RIGHT": 0x27,
	"MOUSE1": VKLButton, "MOUSE2": VKRButton,
	"X1": VKXButton1, "X2": VKXButton2,
	"MOUSE4": VKXButton1, "MOUSE5": VKXButton2,
	"`": 0xC0, "-": 0xBD, "=": 0xBB,
	"[": 0xDB, "]": 0xDD, "\\": 0xDC,
	";": 0xBA, "'": 0xDE,
	",": 0xBC, ".": 0xBE, "/": 0xBF,
}

// ParseKey maps a config key name like "x", "SPACE" or "x2" to its
// virtual-key code.
func ParseKey(name string) (uint8, error) {
	code, ok := keyCodeMap[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown key %q", name)
	}
	return code, nil
}
