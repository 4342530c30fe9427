package debugger

import (
	"bytes"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"classvm/internal/builtin"
	"classvm/internal/classloader"
	"classvm/internal/interp"
	"classvm/internal/object"
)

func keyMsg(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(t *testing.T) model {
	t.Helper()
	reg := classloader.NewRegistry()
	env := builtin.NewEnv(reg, &bytes.Buffer{}, strings.NewReader(""))
	class := object.NewClass("Stepped")
	class.AddMethod(object.Method{
		Name:       "main",
		Descriptor: "([Ljava/lang/String;)V",
		IsStatic:   true,
		MaxLocals:  1,
		Code:       []byte{0x03, 0x3B, 0xB1}, // iconst_0; istore_0; return
	})
	reg.Put(class)

	machine := interp.New(reg, env)
	require.NoError(t, machine.PrimeMain("Stepped"))
	return model{machine: machine}
}

func TestOperandStackRendersPushedSlots(t *testing.T) {
	m := newTestModel(t)
	more, err := m.machine.Step() // iconst_0
	require.NoError(t, err)
	require.True(t, more)
	require.Contains(t, m.operandStack(), "0")
}

func TestBytecodeWindowHighlightsCurrentPC(t *testing.T) {
	m := newTestModel(t)
	require.Contains(t, m.bytecodeWindow(), "[03]")
}

func TestUpdateQuitsOnQ(t *testing.T) {
	m := newTestModel(t)
	_, cmd := m.Update(keyMsg("q"))
	require.NotNil(t, cmd)
}

func TestUpdateAdvancesOnSpace(t *testing.T) {
	m := newTestModel(t)
	updated, _ := m.Update(keyMsg(" "))
	um := updated.(model)
	require.Equal(t, 1, um.machine.CurrentFrame().PC)
}

func TestViewReportsFinishedAfterCallStackDrains(t *testing.T) {
	m := newTestModel(t)
	for i := 0; i < 3; i++ {
		updated, _ := m.Update(keyMsg(" "))
		m = updated.(model)
	}
	require.Contains(t, m.View(), "finished")
}
