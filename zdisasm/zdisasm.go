// Package zdisasm discovers and lists a story's routines without running
// it: starting from the entry point (and, for v6, the packed main
// routine), it decodes forward, queues every call target it finds, and
// repeats until the queue is dry — the same boundary-expansion idea TXD
// uses (see original_source/src/disasm_txd.rs), simplified to a single
// worklist rather than TXD's separate low/high scans and orphan-fragment
// recovery. Every candidate address is validated by actually decoding it
// before being accepted as a routine, so a wrong guess (a call operand
// that happened to be a variable, or packed-address arithmetic that
// landed on non-code) just fails to decode and is dropped rather than
// corrupting the rest of the listing.
package zdisasm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/brinkhall/goz/zcore"
	"github.com/brinkhall/goz/zmachine"
	"github.com/brinkhall/goz/zstring"
)

// Instruction is one decoded instruction within a discovered routine.
type Instruction struct {
	Address  uint32
	Mnemonic string
	Operands []zmachine.DecodedOperand
}

// Routine is one discovered routine: its header address, locals, and the
// linear sequence of instructions found by decoding forward from it until
// a terminal instruction (return family, quit, unconditional jump, or
// throw) is reached.
type Routine struct {
	Address      uint32
	LocalCount   uint8
	Instructions []Instruction
}

// maxRoutineInstructions bounds a single routine's decode in case a
// misidentified header sends decoding into a runaway loop over data that
// happens to look like code; real routines never come close to this.
const maxRoutineInstructions = 20000

// maxLocals is the hard per-routine limit the standard imposes (v1-4) and
// doubles as a quick rejection test for "this address probably isn't a
// routine header" in v5+, where local counts beyond the real maximum seen
// in practice are vanishingly unlikely to be genuine code.
const maxLocals = 15

// Discover walks the call graph reachable from the story's entry point
// (and declared main routine, for v6) and returns every routine found,
// sorted by address. It never touches a live ZMachine — core is read
// directly, so this is safe to run instead of, or before, actually
// executing the story.
func Discover(core *zcore.Core, alphabets *zstring.Alphabets) []Routine {
	version := core.Version

	queue := []uint32{}
	if version == 6 {
		if addr, err := packedAddress(version, core, uint32(core.FirstInstruction), false); err == nil {
			queue = append(queue, addr)
		}
	} else {
		queue = append(queue, uint32(core.FirstInstruction))
	}

	visited := map[uint32]bool{}
	routines := map[uint32]Routine{}

	for len(queue) > 0 {
		addr := queue[0]
		queue = queue[1:]

		if visited[addr] {
			continue
		}
		visited[addr] = true

		routine, calls, ok := decodeRoutine(core, alphabets, version, addr)
		if !ok {
			continue
		}
		routines[addr] = routine

		for _, target := range calls {
			if target != 0 && !visited[target] {
				queue = append(queue, target)
			}
		}
	}

	list := make([]Routine, 0, len(routines))
	for _, r := range routines {
		list = append(list, r)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Address < list[j].Address })
	return list
}

// decodeRoutine validates addr as a routine header (a plausible local
// count, immediately followed by decodable code) and, if valid, decodes
// it to its first terminal instruction.
func decodeRoutine(core *zcore.Core, alphabets *zstring.Alphabets, version uint8, addr uint32) (Routine, []uint32, bool) {
	localCount, err := core.ReadByte(addr)
	if err != nil || localCount > maxLocals {
		return Routine{}, nil, false
	}

	pc := addr + 1
	if version < 5 {
		pc += 2 * uint32(localCount)
	}

	routine := Routine{Address: addr, LocalCount: localCount}
	var calls []uint32

	for i := 0; i < maxRoutineInstructions; i++ {
		inst, err := zmachine.DecodeAt(core, alphabets, version, pc)
		if err != nil {
			if i == 0 {
				return Routine{}, nil, false
			}
			break
		}

		routine.Instructions = append(routine.Instructions, Instruction{
			Address:  inst.Address,
			Mnemonic: inst.Mnemonic,
			Operands: inst.Operands,
		})

		if inst.IsCall && inst.CallTarget != 0 {
			calls = append(calls, inst.CallTarget)
		}

		if inst.Terminal {
			return routine, calls, true
		}

		pc = inst.Address + inst.Length
	}

	// Ran past the safety bound without hitting a terminal instruction:
	// almost certainly not a real routine header.
	if len(routine.Instructions) == maxRoutineInstructions {
		return Routine{}, nil, false
	}
	return routine, calls, true
}

func packedAddress(version uint8, core *zcore.Core, originalAddress uint32, isZString bool) (uint32, error) {
	switch {
	case version < 4:
		return 2 * originalAddress, nil
	case version < 6:
		return 4 * originalAddress, nil
	case version < 8:
		offset := core.RoutinesOffset
		if isZString {
			offset = core.StringOffset
		}
		return 4*originalAddress + 8*uint32(offset), nil
	default:
		return 8 * originalAddress, nil
	}
}

// Listing renders a set of discovered routines as a TXD-style text
// listing: one "Routine N, N locals" header per routine followed by its
// instructions, addresses in hex.
func Listing(routines []Routine) string {
	var b strings.Builder
	for i, r := range routines {
		fmt.Fprintf(&b, "Routine %d, %d local%s (%05x)\n", i, r.LocalCount, plural(r.LocalCount), r.Address)
		for _, inst := range r.Instructions {
			fmt.Fprintf(&b, "  %05x: %-16s", inst.Address, inst.Mnemonic)
			for _, op := range inst.Operands {
				fmt.Fprintf(&b, " %d", op.Value)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func plural(n uint8) string {
	if n == 1 {
		return ""
	}
	return "s"
}
