// Package debugger is an interactive Bubble Tea stepper for the
// interpreter, modeled directly on hejops-gone/cpu/debugger.go: one
// opcode advances per keypress, with Lipgloss panes showing the operand
// stack, locals, and the upcoming bytecode window, and a go-spew dump of
// the constant-pool entry about to be touched.
package debugger

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/davecgh/go-spew/spew"

	"classvm/internal/interp"
	"classvm/internal/object"
)

type model struct {
	machine   *interp.Machine
	className string

	prevPC int
	done   bool
	err    error
}

// Init is a no-op: the call stack is already primed by Run before the
// program starts, matching debugger.go's Init/program-load split.
func (m model) Init() tea.Cmd {
	return nil
}

// Update advances one opcode per " " or "j" keypress and quits on "q",
// matching debugger.go's key handling exactly.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q":
			return m, tea.Quit

		case " ", "j":
			frame := m.machine.CurrentFrame()
			if frame != nil {
				m.prevPC = frame.PC
			}
			more, err := m.machine.Step()
			if err != nil {
				m.err = err
				return m, tea.Quit
			}
			if !more {
				m.done = true
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m model) operandStack() string {
	frame := m.machine.CurrentFrame()
	if frame == nil {
		return "operands: (none)"
	}
	var parts []string
	for _, s := range frame.Operands {
		parts = append(parts, slotString(s))
	}
	return "operands | " + strings.Join(parts, " ")
}

func (m model) locals() string {
	frame := m.machine.CurrentFrame()
	if frame == nil {
		return "locals: (none)"
	}
	var parts []string
	for i, s := range frame.Locals {
		parts = append(parts, fmt.Sprintf("[%d]=%s", i, slotString(s)))
	}
	return "locals   | " + strings.Join(parts, " ")
}

func slotString(s object.StackSlot) string {
	if s.IsInt() {
		return fmt.Sprintf("%d", s.Int)
	}
	if s.Ref == nil {
		return "null"
	}
	return fmt.Sprintf("ref(%s)", s.Ref.Class.Name)
}

func (m model) bytecodeWindow() string {
	frame := m.machine.CurrentFrame()
	if frame == nil {
		return "(call stack empty)"
	}
	start := frame.PC
	end := start + 8
	if end > len(frame.Method.Code) {
		end = len(frame.Method.Code)
	}
	s := fmt.Sprintf("%s pc=%d | ", frame.Method.Key(), frame.PC)
	for i := start; i < end; i++ {
		if i == frame.PC {
			s += fmt.Sprintf("[%02x] ", frame.Method.Code[i])
		} else {
			s += fmt.Sprintf(" %02x  ", frame.Method.Code[i])
		}
	}
	return s
}

// View renders the three panes joined exactly the way debugger.go joins
// its page table and status panes.
func (m model) View() string {
	if m.done {
		return "execution finished\n"
	}
	if m.err != nil {
		return fmt.Sprintf("error: %v\n", m.err)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		lipgloss.JoinHorizontal(
			lipgloss.Top,
			m.operandStack(),
			m.locals(),
		),
		"",
		m.bytecodeWindow(),
		"",
		spew.Sdump(m.nextConstantPoolEntry()),
	)
}

// nextConstantPoolEntry treats the two bytes after the next opcode as a
// constant-pool index and returns that entry, purely for display. It does
// not check whether the next opcode actually takes such an operand.
func (m model) nextConstantPoolEntry() interface{} {
	frame := m.machine.CurrentFrame()
	if frame == nil || frame.PC+2 >= len(frame.Method.Code) {
		return "(none)"
	}
	index := uint16(frame.Method.Code[frame.PC+1])<<8 | uint16(frame.Method.Code[frame.PC+2])
	cp := frame.Method.Owner.ConstantPool
	if int(index) >= len(cp) {
		return "(out of range)"
	}
	return cp[index]
}

// Run starts the interactive stepper against className's main method.
// Unlike Machine.RunMain, it primes the call stack without running it:
// Update's Step() calls then drive execution one opcode per keypress.
func Run(machine *interp.Machine, className string) {
	if err := machine.PrimeMain(className); err != nil {
		fmt.Println("Error:", err)
		return
	}

	p := tea.NewProgram(model{machine: machine, className: className})
	result, err := p.Run()
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if mm, ok := result.(model); ok && mm.err != nil {
		fmt.Println("Error:", mm.err)
	}
}
