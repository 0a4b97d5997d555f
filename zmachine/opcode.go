package zmachine

import "github.com/brinkhall/goz/zerrs"

type OperandType int
type OpcodeForm int
type OperandCount int

const (
	largeConstant OperandType = 0b00
	smallConstant OperandType = 0b01
	variable      OperandType = 0b10
	omitted       OperandType = 0b11
)

const (
	longForm  OpcodeForm = 0b00
	extForm   OpcodeForm = 0b01
	shortForm OpcodeForm = 0b10
	varForm   OpcodeForm = 0b11
)

const (
	OP0 OperandCount = iota
	OP1
	OP2
	VAR
	EXT
)

type Operand struct {
	operandType OperandType
	value       uint16 // byte, half word, or variable number depending on operandType
}

func (operand *Operand) Value(z *ZMachine) (uint16, error) {
	switch operand.operandType {
	case largeConstant, smallConstant:
		return operand.value, nil
	case variable:
		return z.readVariable(uint8(operand.value), false)
	default:
		return 0, nil
	}
}

type Opcode struct {
	opcodeByte   uint8
	operandCount OperandCount
	opcodeForm   OpcodeForm
	opcodeNumber uint8
	operands     []Operand
	pc           uint32 // address of the opcode byte itself, for diagnostics
}

func parseVariableOperands(z *ZMachine, frame *CallStackFrame, opcode *Opcode) error {
	operandTypeByte, err := z.readIncPC(frame)
	if err != nil {
		return err
	}

	operandTypeByteExtendedCall := uint8(0)
	maxVariables := 4

	if (opcode.opcodeNumber == 12 || opcode.opcodeNumber == 26) && opcode.operandCount == VAR {
		operandTypeByteExtendedCall, err = z.readIncPC(frame)
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
			b, err := z.readIncPC(frame)
			if err != nil {
				return err
			}
			opcode.operands = append(opcode.operands, Operand{operandType: operandType, value: uint16(b)})
		case largeConstant:
			w, err := z.readHalfWordIncPC(frame)
			if err != nil {
				return err
			}
			opcode.operands = append(opcode.operands, Operand{operandType: operandType, value: w})
		}
	}

	return nil
}

// ParseOpcode decodes the instruction at the current frame's program
// counter, advancing it past the opcode byte(s), operand type byte(s),
// and operands themselves, per the long/short/variable/extended
// instruction forms.
func ParseOpcode(z *ZMachine) (Opcode, error) {
	frame, err := z.callStack.peek()
	if err != nil {
		return Opcode{}, err
	}

	startPC := frame.pc
	opcodeByte, err := z.readIncPC(frame)
	if err != nil {
		return Opcode{}, err
	}

	opcode := Opcode{
		opcodeForm: OpcodeForm(opcodeByte >> 6),
		opcodeByte: opcodeByte,
		pc:         startPC,
	}

	switch {
	case opcodeByte == 0xbe && z.Core.Version >= 5:
		opcode.opcodeByte, err = z.readIncPC(frame)
		if err != nil {
			return Opcode{}, err
		}
		opcode.opcodeNumber = opcode.opcodeByte
		opcode.opcodeForm = extForm
		opcode.operandCount = VAR

		if err := parseVariableOperands(z, frame, &opcode); err != nil {
			return Opcode{}, err
		}

	case opcode.opcodeForm == varForm:
		opcode.opcodeNumber = opcodeByte & 0b1_1111
		opcode.operandCount = VAR
		if ((opcodeByte >> 5) & 1) == 0 {
			opcode.operandCount = OP2
		}

		if err := parseVariableOperands(z, frame, &opcode); err != nil {
			return Opcode{}, err
		}

	case opcode.opcodeForm == shortForm:
		opcode.opcodeNumber = opcodeByte & 0b1111
		operandType := (opcodeByte >> 4) & 0b11

		switch operandType {
		case 0b00: // large constant (2 bytes)
			w, err := z.readHalfWordIncPC(frame)
			if err != nil {
				return Opcode{}, err
			}
			opcode.operands = append(opcode.operands, Operand{operandType: OperandType(operandType), value: w})
			opcode.operandCount = OP1
		case 0b01, 0b10: // small constant or variable
			b, err := z.readIncPC(frame)
			if err != nil {
				return Opcode{}, err
			}
			opcode.operands = append(opcode.operands, Operand{operandType: OperandType(operandType), value: uint16(b)})
			opcode.operandCount = OP1
		case 0b11: // omitted
			opcode.operandCount = OP0
		}

	default: // long form
		opcode.opcodeNumber = opcodeByte & 0b1_1111
		opcode.opcodeForm = longForm
		opcode.operandCount = OP2

		operand1Type := smallConstant
		operand2Type := smallConstant
		if (opcodeByte>>6)&0b1 == 0b1 {
			operand1Type = variable
		}
		if (opcodeByte>>5)&0b1 == 0b1 {
			operand2Type = variable
		}

		for _, operandType := range []OperandType{operand1Type, operand2Type} {
			b, err := z.readIncPC(frame)
			if err != nil {
				return Opcode{}, err
			}
			opcode.operands = append(opcode.operands, Operand{operandType: operandType, value: uint16(b)})
		}
	}

	return opcode, nil
}

func (o *Opcode) operand(z *ZMachine, ix int) (uint16, error) {
	if ix >= len(o.operands) {
		return 0, zerrs.DecodeError{PC: o.pc, Reason: "opcode referenced a missing operand"}
	}
	return o.operands[ix].Value(z)
}
