package zmachine

import (
	"github.com/brinkhall/goz/zcore"
	"github.com/brinkhall/goz/zstring"
)

// DecodedOperand is a single decoded operand, exported for zdisasm's
// benefit; ParseOpcode's own Operand keeps its fields unexported since the
// execution path never needs to inspect one from outside the package.
type DecodedOperand struct {
	Type  OperandType
	Value uint16
}

// DecodedInstruction is everything a decode-only consumer (zdisasm) needs
// to print a listing or follow control flow, without pulling in the
// call-stack/variable-resolution machinery that the live execution path
// requires.
type DecodedInstruction struct {
	Address      uint32
	Length       uint32
	Form         OpcodeForm
	OperandCount OperandCount
	OpcodeNumber uint8
	Mnemonic     string
	Operands     []DecodedOperand
	HasStore     bool
	HasBranch    bool
	BranchTarget uint32 // valid when HasBranch and the offset isn't 0/1 (return)
	IsCall       bool
	CallTarget   uint32 // unpacked routine address, valid when IsCall
	Terminal     bool   // unconditionally ends this block (return family, quit, jump)
	JumpTarget   uint32 // valid for the unconditional "jump" opcode
	HasJump      bool
}

// pcCursor is the decode-only twin of CallStackFrame: just a program
// counter into a zcore.Core, with none of the locals/eval-stack state
// that a running frame needs.
type pcCursor struct {
	core *zcore.Core
	pc   uint32
}

func (c *pcCursor) readByte() (uint8, error) {
	v, err := c.core.ReadByte(c.pc)
	if err != nil {
		return 0, err
	}
	c.pc++
	return v, nil
}

func (c *pcCursor) readWord() (uint16, error) {
	v, err := c.core.ReadWord(c.pc)
	if err != nil {
		return 0, err
	}
	c.pc += 2
	return v, nil
}

func decodeVariableOperands(c *pcCursor, opcode *DecodedInstruction) error {
	operandTypeByte, err := c.readByte()
	if err != nil {
		return err
	}

	operandTypeByteExtendedCall := uint8(0)
	maxVariables := 4

	if (opcode.OpcodeNumber == 12 || opcode.OpcodeNumber == 26) && opcode.OperandCount == VAR {
		operandTypeByteExtendedCall, err = c.readByte()
		if err != nil {
			return err
		}
		maxVariables = 8
	}

	for varIx := 0; varIx < maxVariables; varIx++ {
		var operandType OperandType
		if varIx < 4 {
			operandType = OperandType((operandTypeByte >> (2 * (3 - varIx))) & 0b11)
		} else {
			operandType = OperandType((operandTypeByteExtendedCall >> (2 * (7 - varIx))) & 0b11)
		}

		if operandType == omitted {
			break
		}

		switch operandType {
		case smallConstant, variable:
			b, err := c.readByte()
			if err != nil {
				return err
			}
			opcode.Operands = append(opcode.Operands, DecodedOperand{Type: operandType, Value: uint16(b)})
		case largeConstant:
			w, err := c.readWord()
			if err != nil {
				return err
			}
			opcode.Operands = append(opcode.Operands, DecodedOperand{Type: operandType, Value: w})
		}
	}

	return nil
}

// decodeAt decodes a single instruction at pc using only core reads,
// mirroring ParseOpcode's form/operand logic (see opcode.go) without
// needing a live ZMachine or call frame. It additionally resolves the
// store-byte/branch-bytes/inline-text suffixes that ParseOpcode leaves to
// each dispatch*.go case, since a decode-only consumer has no dispatch
// loop to fall back on for finding an instruction's true length.
func decodeAt(core *zcore.Core, alphabets *zstring.Alphabets, version uint8, pc uint32) (DecodedInstruction, error) {
	c := &pcCursor{core: core, pc: pc}

	opcodeByte, err := c.readByte()
	if err != nil {
		return DecodedInstruction{}, err
	}

	inst := DecodedInstruction{
		Address: pc,
		Form:    OpcodeForm(opcodeByte >> 6),
	}

	switch {
	case opcodeByte == 0xbe && version >= 5:
		extByte, err := c.readByte()
		if err != nil {
			return DecodedInstruction{}, err
		}
		inst.OpcodeNumber = extByte
		inst.Form = extForm
		inst.OperandCount = VAR
		if err := decodeVariableOperandsExt(c, &inst); err != nil {
			return DecodedInstruction{}, err
		}

	case OpcodeForm(opcodeByte>>6) == varForm:
		inst.OpcodeNumber = opcodeByte & 0b1_1111
		inst.OperandCount = VAR
		if ((opcodeByte >> 5) & 1) == 0 {
			inst.OperandCount = OP2
		}
		if err := decodeVariableOperands(c, &inst); err != nil {
			return DecodedInstruction{}, err
		}

	case OpcodeForm(opcodeByte>>6) == shortForm:
		inst.OpcodeNumber = opcodeByte & 0b1111
		operandType := (opcodeByte >> 4) & 0b11

		switch operandType {
		case 0b00:
			w, err := c.readWord()
			if err != nil {
				return DecodedInstruction{}, err
			}
			inst.Operands = append(inst.Operands, DecodedOperand{Type: OperandType(operandType), Value: w})
			inst.OperandCount = OP1
		case 0b01, 0b10:
			b, err := c.readByte()
			if err != nil {
				return DecodedInstruction{}, err
			}
			inst.Operands = append(inst.Operands, DecodedOperand{Type: OperandType(operandType), Value: uint16(b)})
			inst.OperandCount = OP1
		case 0b11:
			inst.OperandCount = OP0
		}

	default: // long form
		inst.OpcodeNumber = opcodeByte & 0b1_1111
		inst.Form = longForm
		inst.OperandCount = OP2

		operand1Type := smallConstant
		operand2Type := smallConstant
		if (opcodeByte>>6)&0b1 == 0b1 {
			operand1Type = variable
		}
		if (opcodeByte>>5)&0b1 == 0b1 {
			operand2Type = variable
		}
		for _, operandType := range []OperandType{operand1Type, operand2Type} {
			b, err := c.readByte()
			if err != nil {
				return DecodedInstruction{}, err
			}
			inst.Operands = append(inst.Operands, DecodedOperand{Type: operandType, Value: uint16(b)})
		}
	}

	lookupCount := inst.OperandCount
	if inst.Form == extForm {
		lookupCount = EXT
	}
	info := opcodeInfo(lookupCount, inst.OpcodeNumber, version)
	inst.Mnemonic = info.mnemonic
	inst.HasStore = info.store
	inst.HasBranch = info.branch
	inst.Terminal = info.terminal
	inst.IsCall = info.call

	if inst.OperandCount == OP0 && (inst.OpcodeNumber == 2 || inst.OpcodeNumber == 3) {
		// print / print_ret: an inline literal Z-string follows, with no
		// other suffix bytes.
		_, length, err := zstring.Decode(core, c.pc, alphabets)
		if err != nil {
			return DecodedInstruction{}, err
		}
		c.pc += uint32(length)
		inst.Length = c.pc - pc
		return inst, nil
	}

	if inst.HasStore {
		if _, err := c.readByte(); err != nil {
			return DecodedInstruction{}, err
		}
	}

	if inst.HasBranch {
		branchArg1, err := c.readByte()
		if err != nil {
			return DecodedInstruction{}, err
		}
		singleByte := (branchArg1>>6)&1 == 1
		offset := int32(branchArg1 & 0b11_1111)
		if !singleByte {
			low, err := c.readByte()
			if err != nil {
				return DecodedInstruction{}, err
			}
			offset = int32(int16((uint16(branchArg1&0b11_1111)<<8|uint16(low))<<2) >> 2)
		}
		if offset != 0 && offset != 1 {
			inst.BranchTarget = uint32(int32(c.pc) + offset - 2)
		}
	}

	if inst.IsCall && len(inst.Operands) > 0 && inst.Operands[0].Type != variable {
		target, err := packedAddressForVersion(version, core, uint32(inst.Operands[0].Value), false)
		if err == nil {
			inst.CallTarget = target
		}
	}

	if inst.OperandCount == OP1 && inst.OpcodeNumber == 12 && len(inst.Operands) > 0 && inst.Operands[0].Type != variable { // jump
		offset := int16(inst.Operands[0].Value)
		inst.HasJump = true
		inst.JumpTarget = uint32(int32(c.pc) + int32(offset) - 2)
	}

	inst.Length = c.pc - pc
	return inst, nil
}

func decodeVariableOperandsExt(c *pcCursor, opcode *DecodedInstruction) error {
	operandTypeByte, err := c.readByte()
	if err != nil {
		return err
	}
	for varIx := 0; varIx < 4; varIx++ {
		operandType := OperandType((operandTypeByte >> (2 * (3 - varIx))) & 0b11)
		if operandType == omitted {
			break
		}
		switch operandType {
		case smallConstant, variable:
			b, err := c.readByte()
			if err != nil {
				return err
			}
			opcode.Operands = append(opcode.Operands, DecodedOperand{Type: operandType, Value: uint16(b)})
		case largeConstant:
			w, err := c.readWord()
			if err != nil {
				return err
			}
			opcode.Operands = append(opcode.Operands, DecodedOperand{Type: operandType, Value: w})
		}
	}
	return nil
}

// packedAddressForVersion mirrors ZMachine.packedAddress without needing a
// live machine; used only by the decode-only path to compute a call
// instruction's target for flow-following.
func packedAddressForVersion(version uint8, core *zcore.Core, originalAddress uint32, isZString bool) (uint32, error) {
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
	case version == 8:
		return 8 * originalAddress, nil
	default:
		return 0, nil
	}
}

type opInfo struct {
	mnemonic string
	store    bool
	branch   bool
	terminal bool
	call     bool
}

// opcodeInfo tables which opcodes carry a trailing store-variable byte,
// a trailing branch, end a basic block, or are a call (and so contribute
// a routine to discover). Grounded on the same opcode semantics already
// encoded across dispatch_0op.go/dispatch_1op.go/dispatch_2op.go/
// dispatch_var.go/dispatch_ext.go.
func opcodeInfo(count OperandCount, number uint8, version uint8) opInfo {
	switch count {
	case OP0:
		switch number {
		case 0:
			return opInfo{mnemonic: "rtrue", terminal: true}
		case 1:
			return opInfo{mnemonic: "rfalse", terminal: true}
		case 2:
			return opInfo{mnemonic: "print"}
		case 3:
			return opInfo{mnemonic: "print_ret", terminal: true}
		case 4:
			return opInfo{mnemonic: "nop"}
		case 5:
			if version >= 4 {
				return opInfo{mnemonic: "save", store: true}
			}
			return opInfo{mnemonic: "save", branch: true}
		case 6:
			if version >= 4 {
				return opInfo{mnemonic: "restore", store: true}
			}
			return opInfo{mnemonic: "restore", branch: true}
		case 7:
			return opInfo{mnemonic: "restart", terminal: true}
		case 8:
			return opInfo{mnemonic: "ret_popped", terminal: true}
		case 9:
			if version >= 5 {
				return opInfo{mnemonic: "catch", store: true}
			}
			return opInfo{mnemonic: "pop"}
		case 10:
			return opInfo{mnemonic: "quit", terminal: true}
		case 11:
			return opInfo{mnemonic: "newline"}
		case 12:
			return opInfo{mnemonic: "show_status"}
		case 13:
			return opInfo{mnemonic: "verify", branch: true}
		case 15:
			return opInfo{mnemonic: "piracy", branch: true}
		}
	case OP1:
		switch number {
		case 0:
			return opInfo{mnemonic: "jz", branch: true}
		case 1:
			return opInfo{mnemonic: "get_sibling", store: true, branch: true}
		case 2:
			return opInfo{mnemonic: "get_child", store: true, branch: true}
		case 3:
			return opInfo{mnemonic: "get_parent", store: true}
		case 4:
			return opInfo{mnemonic: "get_prop_len", store: true}
		case 5:
			return opInfo{mnemonic: "inc"}
		case 6:
			return opInfo{mnemonic: "dec"}
		case 7:
			return opInfo{mnemonic: "print_addr"}
		case 8:
			return opInfo{mnemonic: "call_1s", store: true, call: true}
		case 9:
			return opInfo{mnemonic: "remove_obj"}
		case 10:
			return opInfo{mnemonic: "print_obj"}
		case 11:
			return opInfo{mnemonic: "ret", terminal: true}
		case 12:
			return opInfo{mnemonic: "jump", terminal: true}
		case 13:
			return opInfo{mnemonic: "print_paddr"}
		case 14:
			return opInfo{mnemonic: "load", store: true}
		case 15:
			if version >= 5 {
				return opInfo{mnemonic: "call_1n", call: true}
			}
			return opInfo{mnemonic: "not", store: true}
		}
	case OP2:
		switch number {
		case 1:
			return opInfo{mnemonic: "je", branch: true}
		case 2:
			return opInfo{mnemonic: "jl", branch: true}
		case 3:
			return opInfo{mnemonic: "jg", branch: true}
		case 4:
			return opInfo{mnemonic: "dec_chk", branch: true}
		case 5:
			return opInfo{mnemonic: "inc_chk", branch: true}
		case 6:
			return opInfo{mnemonic: "jin", branch: true}
		case 7:
			return opInfo{mnemonic: "test", branch: true}
		case 8:
			return opInfo{mnemonic: "or", store: true}
		case 9:
			return opInfo{mnemonic: "and", store: true}
		case 10:
			return opInfo{mnemonic: "test_attr", branch: true}
		case 11:
			return opInfo{mnemonic: "set_attr"}
		case 12:
			return opInfo{mnemonic: "clear_attr"}
		case 13:
			return opInfo{mnemonic: "store"}
		case 14:
			return opInfo{mnemonic: "insert_obj"}
		case 15:
			return opInfo{mnemonic: "loadw", store: true}
		case 16:
			return opInfo{mnemonic: "loadb", store: true}
		case 17:
			return opInfo{mnemonic: "get_prop", store: true}
		case 18:
			return opInfo{mnemonic: "get_prop_addr", store: true}
		case 19:
			return opInfo{mnemonic: "get_next_prop", store: true}
		case 20:
			return opInfo{mnemonic: "add", store: true}
		case 21:
			return opInfo{mnemonic: "sub", store: true}
		case 22:
			return opInfo{mnemonic: "mul", store: true}
		case 23:
			return opInfo{mnemonic: "div", store: true}
		case 24:
			return opInfo{mnemonic: "mod", store: true}
		case 25:
			return opInfo{mnemonic: "call_2s", store: true, call: true}
		case 26:
			return opInfo{mnemonic: "call_2n", call: true}
		case 27:
			return opInfo{mnemonic: "set_colour"}
		case 28:
			return opInfo{mnemonic: "throw", terminal: true}
		case 31:
			return opInfo{mnemonic: "2op:0x1f (no-op)"}
		}
	case VAR:
		switch number {
		case 0:
			return opInfo{mnemonic: "call_vs", store: true, call: true}
		case 1:
			return opInfo{mnemonic: "storew"}
		case 2:
			return opInfo{mnemonic: "storeb"}
		case 3:
			return opInfo{mnemonic: "put_prop"}
		case 4:
			if version >= 5 {
				return opInfo{mnemonic: "aread", store: true}
			}
			return opInfo{mnemonic: "sread"}
		case 5:
			return opInfo{mnemonic: "print_char"}
		case 6:
			return opInfo{mnemonic: "print_num"}
		case 7:
			return opInfo{mnemonic: "random", store: true}
		case 8:
			return opInfo{mnemonic: "push"}
		case 9:
			return opInfo{mnemonic: "pull"}
		case 10:
			return opInfo{mnemonic: "split_window"}
		case 11:
			return opInfo{mnemonic: "set_window"}
		case 12:
			return opInfo{mnemonic: "call_vs2", store: true, call: true}
		case 13:
			return opInfo{mnemonic: "erase_window"}
		case 14:
			return opInfo{mnemonic: "erase_line"}
		case 15:
			return opInfo{mnemonic: "set_cursor"}
		case 16:
			return opInfo{mnemonic: "get_cursor"}
		case 17:
			return opInfo{mnemonic: "set_text_style"}
		case 18:
			return opInfo{mnemonic: "buffer_mode"}
		case 19:
			return opInfo{mnemonic: "output_stream"}
		case 20:
			return opInfo{mnemonic: "input_stream"}
		case 21:
			return opInfo{mnemonic: "sound_effect"}
		case 22:
			return opInfo{mnemonic: "read_char", store: true}
		case 23:
			return opInfo{mnemonic: "scan_table", store: true, branch: true}
		case 24:
			return opInfo{mnemonic: "not", store: true}
		case 25:
			return opInfo{mnemonic: "call_vn", call: true}
		case 26:
			return opInfo{mnemonic: "call_vn2", call: true}
		case 27:
			return opInfo{mnemonic: "tokenise"}
		case 29:
			return opInfo{mnemonic: "copy_table"}
		case 30:
			return opInfo{mnemonic: "print_table"}
		case 31:
			return opInfo{mnemonic: "check_arg_count", branch: true}
		}
	case EXT:
		switch number {
		case 0x00:
			return opInfo{mnemonic: "save", store: true}
		case 0x01:
			return opInfo{mnemonic: "restore", store: true}
		case 0x02:
			return opInfo{mnemonic: "log_shift", store: true}
		case 0x03:
			return opInfo{mnemonic: "art_shift", store: true}
		case 0x04:
			return opInfo{mnemonic: "set_font", store: true}
		case 0x09:
			return opInfo{mnemonic: "save_undo", store: true}
		case 0x0a:
			return opInfo{mnemonic: "restore_undo", store: true}
		case 0x0b:
			return opInfo{mnemonic: "print_unicode"}
		case 0x0c:
			return opInfo{mnemonic: "check_unicode", store: true}
		case 0x0d:
			return opInfo{mnemonic: "set_true_colour"}
		}
	}
	return opInfo{mnemonic: "unknown"}
}

// DecodeAt exposes decode-only instruction decoding for zdisasm. It never
// touches a live ZMachine's call stack or variable state, so it's safe to
// call against arbitrary addresses during routine discovery.
func DecodeAt(core *zcore.Core, alphabets *zstring.Alphabets, version uint8, pc uint32) (DecodedInstruction, error) {
	return decodeAt(core, alphabets, version, pc)
}
