// Package zerrs defines the typed error kinds that can abort Z-machine
// execution. Every fallible operation in zcore, zstring, zobject,
// dictionary, ztable and zmachine returns one of these rather than
// panicking, so the execution loop can surface a diagnostic and stop
// cleanly instead of crashing the host process.
package zerrs

import "fmt"

// AddressOutOfBoundsError is returned by any memory access past the end of
// the story image.
type AddressOutOfBoundsError struct {
	Address uint32
	Length  uint32
}

func (e AddressOutOfBoundsError) Error() string {
	return fmt.Sprintf("address %#x out of bounds (memory length %#x)", e.Address, e.Length)
}

// WriteToReadOnlyError is returned when dispatch attempts to write into
// static or high memory.
type WriteToReadOnlyError struct {
	Address    uint32
	StaticBase uint16
}

func (e WriteToReadOnlyError) Error() string {
	return fmt.Sprintf("write to read-only address %#x (static base %#x)", e.Address, e.StaticBase)
}

// StackOverflowError is returned when a push would exceed the evaluation
// stack's maximum depth.
type StackOverflowError struct {
	MaxDepth int
}

func (e StackOverflowError) Error() string {
	return fmt.Sprintf("evaluation stack overflow (max depth %d)", e.MaxDepth)
}

// StackUnderflowError is returned by a pop/peek on an empty evaluation
// stack.
type StackUnderflowError struct{}

func (e StackUnderflowError) Error() string {
	return "evaluation stack underflow"
}

// InvalidLocalError is returned when a routine addresses a local variable
// number beyond its declared local count.
type InvalidLocalError struct {
	Variable  uint8
	NumLocals int
}

func (e InvalidLocalError) Error() string {
	return fmt.Sprintf("local variable %d out of range (frame has %d locals)", e.Variable, e.NumLocals)
}

// InvalidObjectError is returned when object 0 is used where a real object
// is required, or an object number exceeds the version's maximum.
type InvalidObjectError struct {
	ObjectID uint16
	MaxID    uint16
}

func (e InvalidObjectError) Error() string {
	if e.ObjectID == 0 {
		return "object 0 is not a valid object"
	}
	return fmt.Sprintf("object %d exceeds version maximum %d", e.ObjectID, e.MaxID)
}

// InvalidAttributeError is returned when test_attr/set_attr/clear_attr
// names an attribute number beyond the version's maximum (31 for v1-3,
// 47 for v4+).
type InvalidAttributeError struct {
	Attribute uint16
	Max       uint16
}

func (e InvalidAttributeError) Error() string {
	return fmt.Sprintf("attribute %d exceeds version maximum %d", e.Attribute, e.Max)
}

// InvalidPropertyError covers an out-of-range property number, a put_prop
// to an absent property, or a get_prop on a property longer than 2 bytes.
type InvalidPropertyError struct {
	ObjectID   uint16
	PropertyID uint8
	Reason     string
}

func (e InvalidPropertyError) Error() string {
	return fmt.Sprintf("property %d on object %d: %s", e.PropertyID, e.ObjectID, e.Reason)
}

// DivideByZeroError is returned by div/mod with a zero divisor.
type DivideByZeroError struct{}

func (e DivideByZeroError) Error() string {
	return "division by zero"
}

// OutputStreamOverflowError is returned when output_stream 3 is selected
// past its fixed nesting depth.
type OutputStreamOverflowError struct {
	MaxDepth int
}

func (e OutputStreamOverflowError) Error() string {
	return fmt.Sprintf("output stream 3 nested past its maximum depth of %d", e.MaxDepth)
}

// TextDecodeError covers a malformed Z-string (no end bit before memory
// exhaustion) or an invalid abbreviation index.
type TextDecodeError struct {
	Address uint32
	Reason  string
}

func (e TextDecodeError) Error() string {
	return fmt.Sprintf("text decode error at %#x: %s", e.Address, e.Reason)
}

// DecodeError covers an unknown or malformed opcode encoding.
type DecodeError struct {
	PC     uint32
	Reason string
}

func (e DecodeError) Error() string {
	return fmt.Sprintf("decode error at %#x: %s", e.PC, e.Reason)
}

// UnsupportedVersionError is returned when a story file declares a version
// outside the supported set.
type UnsupportedVersionError struct {
	Version uint8
}

func (e UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported story file version %d", e.Version)
}

// SnapshotBindingMismatchError is returned by restore when the snapshot was
// not produced by the currently loaded story.
type SnapshotBindingMismatchError struct {
	Reason string
}

func (e SnapshotBindingMismatchError) Error() string {
	return fmt.Sprintf("snapshot does not match loaded story: %s", e.Reason)
}

// RuntimeError is the diagnostic surfaced by the execution loop when a
// dispatch step fails. It has fields for the PC, opcode name, operands and
// call depth, but zmachine.Run fills in only Cause; the other fields are
// left at their zero values.
type RuntimeError struct {
	PC          uint32
	OpcodeName  string
	Operands    []uint16
	CallDepth   int
	Cause       error
}

func (e RuntimeError) Error() string {
	return fmt.Sprintf("runtime error at pc=%#x op=%s operands=%v depth=%d: %v",
		e.PC, e.OpcodeName, e.Operands, e.CallDepth, e.Cause)
}

func (e RuntimeError) Unwrap() error {
	return e.Cause
}
