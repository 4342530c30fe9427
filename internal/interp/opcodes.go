package interp

import (
	"fmt"

	"classvm/internal/classloader"
	"classvm/internal/object"
	"classvm/internal/trace"
)

// Opcode values this interpreter recognizes. Unlisted opcodes fall
// through dispatch's default case: a diagnostic is emitted and execution
// continues, per spec.md's "unimplemented opcode" behavior.
const (
	opNop        = 0x00
	opAconstNull = 0x01
	opIconstM1   = 0x02
	opIconst0    = 0x03
	opIconst1    = 0x04
	opIconst2    = 0x05
	opIconst3    = 0x06
	opIconst4    = 0x07
	opIconst5    = 0x08
	opDconst0    = 0x0E // stub: pushes a nil reference, see DESIGN.md
	opBipush     = 0x10
	opSipush     = 0x11
	opLdc        = 0x12
	opLdcW       = 0x13
	opIload      = 0x15
	opAload      = 0x19
	opIload0     = 0x1A
	opIload1     = 0x1B
	opIload2     = 0x1C
	opIload3     = 0x1D
	opAload0     = 0x2A
	opAload1     = 0x2B
	opAload2     = 0x2C
	opAload3     = 0x2D
	opIstore     = 0x36
	opAstore     = 0x3A
	opIstore0    = 0x3B
	opIstore1    = 0x3C
	opIstore2    = 0x3D
	opIstore3    = 0x3E
	opAstore0    = 0x4B
	opAstore1    = 0x4C
	opAstore2    = 0x4D
	opAstore3    = 0x4E
	opPop        = 0x57
	opDup        = 0x59
	opIadd       = 0x60
	opIsub       = 0x64
	opImul       = 0x68
	opIdiv       = 0x6C
	opIinc       = 0x84
	opIfeq       = 0x99
	opIfne       = 0x9A
	opIflt       = 0x9B
	opIfge       = 0x9C
	opIfgt       = 0x9D
	opIfle       = 0x9E
	opIfIcmpeq   = 0x9F
	opIfIcmpne   = 0xA0
	opIfIcmplt   = 0xA1
	opIfIcmpge   = 0xA2
	opIfIcmpgt   = 0xA3
	opIfIcmple   = 0xA4
	opIfAcmpeq   = 0xA5
	opIfAcmpne   = 0xA6
	opGoto       = 0xA7
	opReturn     = 0xB1
	opGetstatic  = 0xB2
	opInvokevirt = 0xB6
	opInvokestat = 0xB8
)

// dispatch executes a single already-fetched opcode against frame.
func (m *Machine) dispatch(frame *Frame, opcode byte) error {
	trace.Trace(fmt.Sprintf("pc=%d opcode=0x%02X depth=%d", frame.PC-1, opcode, len(m.callStack)))

	switch opcode {
	case opNop:
		// no-op

	case opAconstNull:
		frame.push(object.RefSlot(nil))

	case opIconstM1:
		frame.push(object.IntSlot(-1))
	case opIconst0:
		frame.push(object.IntSlot(0))
	case opIconst1:
		frame.push(object.IntSlot(1))
	case opIconst2:
		frame.push(object.IntSlot(2))
	case opIconst3:
		frame.push(object.IntSlot(3))
	case opIconst4:
		frame.push(object.IntSlot(4))
	case opIconst5:
		frame.push(object.IntSlot(5))

	case opDconst0:
		// stub preserved exactly as specified: pushes a nil reference
		// rather than a double, since this VM has no floating-point
		// support.
		frame.push(object.RefSlot(nil))

	case opBipush:
		b := frame.Method.Code[frame.PC]
		frame.PC++
		frame.push(object.IntSlot(int32(int8(b))))

	case opSipush:
		v := m.readU2(frame)
		frame.push(object.IntSlot(int32(int16(v))))

	case opLdc:
		index := uint16(frame.Method.Code[frame.PC])
		frame.PC++
		m.pushConstant(frame, index)

	case opLdcW:
		index := m.readU2(frame)
		m.pushConstant(frame, index)

	case opIload:
		idx := int(frame.Method.Code[frame.PC])
		frame.PC++
		loadLocal(frame, idx)
	case opIload0:
		loadLocal(frame, 0)
	case opIload1:
		loadLocal(frame, 1)
	case opIload2:
		loadLocal(frame, 2)
	case opIload3:
		loadLocal(frame, 3)

	case opAload:
		idx := int(frame.Method.Code[frame.PC])
		frame.PC++
		loadLocal(frame, idx)
	case opAload0:
		loadLocal(frame, 0)
	case opAload1:
		loadLocal(frame, 1)
	case opAload2:
		loadLocal(frame, 2)
	case opAload3:
		loadLocal(frame, 3)

	case opIstore:
		idx := int(frame.Method.Code[frame.PC])
		frame.PC++
		storeLocal(frame, idx)
	case opIstore0:
		storeLocal(frame, 0)
	case opIstore1:
		storeLocal(frame, 1)
	case opIstore2:
		storeLocal(frame, 2)
	case opIstore3:
		storeLocal(frame, 3)

	case opAstore:
		idx := int(frame.Method.Code[frame.PC])
		frame.PC++
		storeLocal(frame, idx)
	case opAstore0:
		storeLocal(frame, 0)
	case opAstore1:
		storeLocal(frame, 1)
	case opAstore2:
		storeLocal(frame, 2)
	case opAstore3:
		storeLocal(frame, 3)

	case opPop:
		frame.pop()

	case opDup:
		if v, ok := frame.top(); ok {
			frame.push(v)
		}

	case opIadd:
		binaryIntOp(frame, func(a, b int32) int32 { return a + b })
	case opIsub:
		binaryIntOp(frame, func(a, b int32) int32 { return a - b })
	case opImul:
		binaryIntOp(frame, func(a, b int32) int32 { return a * b })
	case opIdiv:
		return m.idiv(frame)

	case opIinc:
		idx := int(frame.Method.Code[frame.PC])
		frame.PC++
		delta := int8(frame.Method.Code[frame.PC])
		frame.PC++
		if idx < len(frame.Locals) && frame.Locals[idx].IsInt() {
			frame.Locals[idx].Int += int32(delta)
		}

	case opIfeq, opIfne, opIflt, opIfge, opIfgt, opIfle:
		m.branchUnary(frame, opcode)

	case opIfIcmpeq, opIfIcmpne, opIfIcmplt, opIfIcmpge, opIfIcmpgt, opIfIcmple:
		m.branchIntCompare(frame, opcode)

	case opIfAcmpeq, opIfAcmpne:
		m.branchRefCompare(frame, opcode)

	case opGoto:
		offset := int16(m.readU2(frame))
		// pc has already advanced past both offset bytes (3 bytes total
		// since the opcode fetch), so pc - 3 + offset lands on
		// pc_of_opcode + offset, matching the original's un-advanced
		// `pc - 1 + offset` (where its pc only ever points at the first
		// offset byte). Same target formula as branchTarget; goto has
		// no separate quirk once the advancing convention is accounted
		// for (see DESIGN.md Open Question: goto offset arithmetic).
		frame.PC = branchTarget(frame.PC, offset)

	case opReturn:
		m.callStack = m.callStack[:len(m.callStack)-1]

	case opGetstatic:
		m.readU2(frame) // index is never inspected: the shortcut always
		// pushes the well-known System.out PrintStream handle (see
		// DESIGN.md Open Question: getstatic shortcut).
		frame.push(object.RefSlot(m.Builtins.SystemOut))

	case opInvokevirt:
		index := m.readU2(frame)
		return m.invokeVirtual(frame, index)

	case opInvokestat:
		index := m.readU2(frame)
		return m.invokeStatic(frame, index)

	default:
		trace.Warn(fmt.Sprintf("unimplemented opcode: 0x%02X", opcode))
	}

	return nil
}

func (m *Machine) readU2(frame *Frame) uint16 {
	hi := frame.Method.Code[frame.PC]
	lo := frame.Method.Code[frame.PC+1]
	frame.PC += 2
	return uint16(hi)<<8 | uint16(lo)
}

func loadLocal(frame *Frame, idx int) {
	if idx >= 0 && idx < len(frame.Locals) {
		frame.push(frame.Locals[idx])
	}
}

func storeLocal(frame *Frame, idx int) {
	v, ok := frame.pop()
	if ok && idx >= 0 && idx < len(frame.Locals) {
		frame.Locals[idx] = v
	}
}

func binaryIntOp(frame *Frame, op func(a, b int32) int32) {
	b, ok1 := frame.pop()
	a, ok2 := frame.pop()
	if !ok1 || !ok2 || !a.IsInt() || !b.IsInt() {
		return
	}
	frame.push(object.IntSlot(op(a.Int, b.Int)))
}

func (m *Machine) idiv(frame *Frame) error {
	b, ok1 := frame.pop()
	a, ok2 := frame.pop()
	if !ok1 || !ok2 || !a.IsInt() || !b.IsInt() {
		return nil
	}
	if b.Int == 0 {
		return fmt.Errorf("%w: division by zero", ErrArithmetic)
	}
	frame.push(object.IntSlot(a.Int / b.Int))
	return nil
}

func (m *Machine) pushConstant(frame *Frame, index uint16) {
	cp := frame.Method.Owner.ConstantPool
	if int(index) >= len(cp) {
		return
	}
	entry := cp[index]
	switch entry.Tag {
	case object.TagString:
		if s, ok := classloader.ResolveString(cp, index); ok {
			strObj := object.NewString(m.Builtins.StringClass, s)
			frame.push(object.RefSlot(strObj))
		}
	case object.TagInteger:
		frame.push(object.IntSlot(entry.IntValue))
	}
}

// branchTarget computes the original's `pc - 3 + offset`: pc has already
// advanced past the 2-byte offset at the point this is called (3 total
// bytes: the opcode plus the 2-byte operand), matching the official
// opcode-relative branch arithmetic exactly. Used by the conditional
// branches and by goto alike.
func branchTarget(pcAfterOperand int, offset int16) int {
	return pcAfterOperand - 3 + int(offset)
}

func (m *Machine) branchUnary(frame *Frame, opcode byte) {
	slot, ok := frame.pop()
	if !ok || !slot.IsInt() {
		m.readU2(frame)
		return
	}
	offset := int16(m.readU2(frame))
	v := slot.Int

	var jump bool
	switch opcode {
	case opIfeq:
		jump = v == 0
	case opIfne:
		jump = v != 0
	case opIflt:
		jump = v < 0
	case opIfge:
		jump = v >= 0
	case opIfgt:
		jump = v > 0
	case opIfle:
		jump = v <= 0
	}
	if jump {
		frame.PC = branchTarget(frame.PC, offset)
	}
}

func (m *Machine) branchIntCompare(frame *Frame, opcode byte) {
	b, ok1 := frame.pop()
	a, ok2 := frame.pop()
	if !ok1 || !ok2 || !a.IsInt() || !b.IsInt() {
		m.readU2(frame)
		return
	}
	offset := int16(m.readU2(frame))
	v1, v2 := a.Int, b.Int

	var jump bool
	switch opcode {
	case opIfIcmpeq:
		jump = v1 == v2
	case opIfIcmpne:
		jump = v1 != v2
	case opIfIcmplt:
		jump = v1 < v2
	case opIfIcmpge:
		jump = v1 >= v2
	case opIfIcmpgt:
		jump = v1 > v2
	case opIfIcmple:
		jump = v1 <= v2
	}
	if jump {
		frame.PC = branchTarget(frame.PC, offset)
	}
}

func (m *Machine) branchRefCompare(frame *Frame, opcode byte) {
	b, ok1 := frame.pop()
	a, ok2 := frame.pop()
	if !ok1 || !ok2 || !a.IsRef() || !b.IsRef() {
		m.readU2(frame)
		return
	}
	offset := int16(m.readU2(frame))

	var jump bool
	switch opcode {
	case opIfAcmpeq:
		jump = a.Ref == b.Ref
	case opIfAcmpne:
		jump = a.Ref != b.Ref
	}
	if jump {
		frame.PC = branchTarget(frame.PC, offset)
	}
}

func (m *Machine) invokeVirtual(frame *Frame, index uint16) error {
	cp := frame.Method.Owner.ConstantPool
	_, methodName, descriptor, ok := classloader.ResolveMethodRef(cp, index)
	if !ok {
		return nil
	}

	builtinMethod, ok := m.Builtins.Lookup(methodName, descriptor)
	if !ok {
		// unrecognized invocation: a no-op, per spec.md §4.5.
		return nil
	}

	args := make([]object.StackSlot, builtinMethod.ParamSlots)
	for i := builtinMethod.ParamSlots - 1; i >= 0; i-- {
		args[i], _ = frame.pop()
	}
	receiverSlot, _ := frame.pop()

	result, pushed, err := builtinMethod.Fn(m.Builtins, receiverSlot.Ref, args)
	if err != nil {
		return err
	}
	if pushed {
		frame.push(result)
	}
	return nil
}

func (m *Machine) invokeStatic(frame *Frame, index uint16) error {
	cp := frame.Method.Owner.ConstantPool
	_, methodName, descriptor, ok := classloader.ResolveMethodRef(cp, index)
	if !ok {
		return nil
	}

	builtinMethod, ok := m.Builtins.Lookup(methodName, descriptor)
	if !ok {
		return nil
	}

	args := make([]object.StackSlot, builtinMethod.ParamSlots)
	for i := builtinMethod.ParamSlots - 1; i >= 0; i-- {
		args[i], _ = frame.pop()
	}

	result, pushed, err := builtinMethod.Fn(m.Builtins, nil, args)
	if err != nil {
		return err
	}
	if pushed {
		frame.push(result)
	}
	return nil
}
