package cpu

import (
	"fmt"
	"strings"

	"github.com/valerio/go-dmg/dmg/bit"
)

// Reader is the read side of the bus, enough for disassembly.
type Reader interface {
	Read(address uint16) byte
}

// Disassemble renders the instruction at pc with its immediate operands and
// returns it along with its length in bytes. Reads take no machine time.
func Disassemble(r Reader, pc uint16) (string, int) {
	opcode := r.Read(pc)
	if opcode == 0xCB {
		return cbInstructions[r.Read(pc+1)].name, 2
	}

	in := &instructions[opcode]
	if in.kind == kindIllegal {
		return fmt.Sprintf("ILLEGAL $%02X", opcode), 1
	}

	n := r.Read(pc + 1)
	nn := bit.Combine(r.Read(pc+2), n)
	name := in.name
	switch {
	case strings.Contains(name, "d16"):
		return strings.Replace(name, "d16", fmt.Sprintf("$%04X", nn), 1), 3
	case strings.Contains(name, "a16"):
		return strings.Replace(name, "a16", fmt.Sprintf("$%04X", nn), 1), 3
	case strings.Contains(name, "d8"):
		return strings.Replace(name, "d8", fmt.Sprintf("$%02X", n), 1), 2
	case strings.Contains(name, "a8"):
		return strings.Replace(name, "a8", fmt.Sprintf("$FF%02X", n), 1), 2
	case strings.Contains(name, "r8"):
		if in.kind == kindJump {
			target := pc + 2 + uint16(int16(int8(n)))
			return strings.Replace(name, "r8", fmt.Sprintf("$%04X", target), 1), 2
		}
		name = strings.Replace(name, "+r8", "r8", 1)
		return strings.Replace(name, "r8", fmt.Sprintf("%+d", int8(n)), 1), 2
	}
	return name, 1
}
