// Package interp is the frame-based bytecode interpreter: it owns the
// call stack, the fetch-decode-execute loop, and the opcode table. Control
// flow and the operand-stack push/pop helpers follow jacobin's own
// runFrame loop (src/exec/run.go: a switch over f.meth[pc], push/pop
// helpers taking *frame), adapted from jacobin's flat int32 operand stack
// to this VM's tagged StackSlot union, since this spec's opcode set needs
// both ints and references on one stack.
package interp

import (
	"errors"
	"fmt"

	"classvm/internal/builtin"
	"classvm/internal/classloader"
	"classvm/internal/object"
)

// Error kinds surfaced to the CLI layer. Each is a sentinel so callers can
// errors.Is against it, following the sentinel-error style seen in
// KTStephano-GVM/vm/vm.go (errProgramFinished, errSegmentationFault, ...).
var (
	ErrClassNotLoaded = errors.New("interp: class not loaded")
	ErrMainNotFound   = errors.New("interp: main method not found")
	ErrArithmetic     = errors.New("interp: arithmetic error")
)

const mainKey = "main([Ljava/lang/String;)V"

// Frame is one method activation: the method being executed, its local
// variable slots, its operand stack, and its program counter. Matching
// spec.md's Data Model, every Frame belongs to exactly one Method and
// never pushes a child frame for a user-defined invocation — built-in
// calls execute inline against the current frame's operand stack.
type Frame struct {
	Method   *object.Method
	Locals   []object.StackSlot
	Operands []object.StackSlot
	PC       int
}

// NewFrame allocates a frame sized to the method's declared max_locals,
// matching the original's Frame(Method* m) constructor.
func NewFrame(m *object.Method) *Frame {
	return &Frame{
		Method: m,
		Locals: make([]object.StackSlot, m.MaxLocals),
	}
}

func (f *Frame) push(s object.StackSlot) {
	f.Operands = append(f.Operands, s)
}

func (f *Frame) pop() (object.StackSlot, bool) {
	if len(f.Operands) == 0 {
		return object.StackSlot{}, false
	}
	last := len(f.Operands) - 1
	s := f.Operands[last]
	f.Operands = f.Operands[:last]
	return s, true
}

func (f *Frame) top() (object.StackSlot, bool) {
	if len(f.Operands) == 0 {
		return object.StackSlot{}, false
	}
	return f.Operands[len(f.Operands)-1], true
}

// Machine owns the registry, the built-in environment, and the live call
// stack. It is the single-threaded, synchronous engine spec.md §5
// describes: one goroutine, one call stack, stdin/stdout line-oriented.
type Machine struct {
	Registry *classloader.Registry
	Builtins *builtin.Env

	callStack []*Frame
}

// New wires a Machine against an already-bootstrapped registry/env.
func New(reg *classloader.Registry, env *builtin.Env) *Machine {
	return &Machine{Registry: reg, Builtins: env}
}

// RunMain locates className's main([Ljava/lang/String;)V method, pushes
// its frame, and runs to completion.
func (m *Machine) RunMain(className string) error {
	class, ok := m.Registry.Get(className)
	if !ok {
		return fmt.Errorf("%w: %s", ErrClassNotLoaded, className)
	}

	method, ok := class.FindMethod(mainKey)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMainNotFound, className)
	}

	m.callStack = []*Frame{NewFrame(method)}
	return m.run()
}

// PrimeMain locates className's main method and pushes its frame without
// running it, so callers (the debugger) can then drive execution one
// opcode at a time via Step.
func (m *Machine) PrimeMain(className string) error {
	class, ok := m.Registry.Get(className)
	if !ok {
		return fmt.Errorf("%w: %s", ErrClassNotLoaded, className)
	}

	method, ok := class.FindMethod(mainKey)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMainNotFound, className)
	}

	m.callStack = []*Frame{NewFrame(method)}
	return nil
}

// CurrentFrame exposes the top-of-stack frame for the debugger; it
// returns nil once execution has finished.
func (m *Machine) CurrentFrame() *Frame {
	if len(m.callStack) == 0 {
		return nil
	}
	return m.callStack[len(m.callStack)-1]
}

// Step executes one opcode of the top frame, or pops that frame without
// executing anything when its code is exhausted, returning false once the
// call stack has drained (used by the debugger's single-step mode).
func (m *Machine) Step() (bool, error) {
	if len(m.callStack) == 0 {
		return false, nil
	}
	frame := m.callStack[len(m.callStack)-1]
	if frame.PC >= len(frame.Method.Code) {
		m.callStack = m.callStack[:len(m.callStack)-1]
		return len(m.callStack) > 0, nil
	}

	opcode := frame.Method.Code[frame.PC]
	frame.PC++
	if err := m.dispatch(frame, opcode); err != nil {
		return false, err
	}
	return len(m.callStack) > 0, nil
}

func (m *Machine) run() error {
	for len(m.callStack) > 0 {
		more, err := m.Step()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}
