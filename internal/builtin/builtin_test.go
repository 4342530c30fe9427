package builtin

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"classvm/internal/classloader"
	"classvm/internal/object"
)

func newTestEnv(stdin string) (*Env, *bytes.Buffer) {
	var out bytes.Buffer
	reg := classloader.NewRegistry()
	env := NewEnv(reg, &out, strings.NewReader(stdin))
	return env, &out
}

func TestBootstrapRegistersBuiltinClasses(t *testing.T) {
	env, _ := newTestEnv("")
	for _, name := range []string{ObjectClassName, StringClassName, SystemClassName, PrintStreamClassName, ScannerClassName} {
		_, ok := env.Registry.Get(name)
		require.True(t, ok, "expected %s to be registered", name)
	}
	require.Same(t, env.ObjectClass, env.StringClass.Super)
}

func TestSystemOutFieldHoldsPrintStreamSingleton(t *testing.T) {
	env, _ := newTestEnv("")
	f, ok := env.SystemClass.FindField("out")
	require.True(t, ok)
	require.Same(t, env.SystemOut, f.RefValue)
	require.Same(t, env.PrintStreamClass, f.RefValue.Class)
}

func TestPrintlnString(t *testing.T) {
	env, out := newTestEnv("")
	m, ok := env.Lookup("println", "(Ljava/lang/String;)V")
	require.True(t, ok)

	arg := object.RefSlot(object.NewString(env.StringClass, "hello"))
	_, _, err := m.Fn(env, nil, []object.StackSlot{arg})
	require.NoError(t, err)
	require.Equal(t, "hello\n", out.String())
}

func TestPrintlnInt(t *testing.T) {
	env, out := newTestEnv("")
	m, ok := env.Lookup("println", "(I)V")
	require.True(t, ok)

	_, _, err := m.Fn(env, nil, []object.StackSlot{object.IntSlot(42)})
	require.NoError(t, err)
	require.Equal(t, "42\n", out.String())
}

func TestStringEqualsTrueAndFalse(t *testing.T) {
	env, _ := newTestEnv("")
	m, ok := env.Lookup("equals", "(Ljava/lang/Object;)Z")
	require.True(t, ok)

	a := object.NewString(env.StringClass, "x")
	b := object.NewString(env.StringClass, "x")
	c := object.NewString(env.StringClass, "y")

	result, pushed, err := m.Fn(env, a, []object.StackSlot{object.RefSlot(b)})
	require.NoError(t, err)
	require.True(t, pushed)
	require.Equal(t, int32(1), result.Int)

	result, _, err = m.Fn(env, a, []object.StackSlot{object.RefSlot(c)})
	require.NoError(t, err)
	require.Equal(t, int32(0), result.Int)
}

func TestScannerNextLine(t *testing.T) {
	env, _ := newTestEnv("hello world\n")
	m, ok := env.Lookup("nextLine", "()Ljava/lang/String;")
	require.True(t, ok)

	result, pushed, err := m.Fn(env, nil, nil)
	require.NoError(t, err)
	require.True(t, pushed)
	require.Equal(t, "hello world", result.Ref.StringValue)
}

func TestScannerNextInt(t *testing.T) {
	env, _ := newTestEnv("123\n")
	m, ok := env.Lookup("nextInt", "()I")
	require.True(t, ok)

	result, pushed, err := m.Fn(env, nil, nil)
	require.NoError(t, err)
	require.True(t, pushed)
	require.Equal(t, int32(123), result.Int)
}

func TestSystemInputPromptsAndReadsLine(t *testing.T) {
	env, out := newTestEnv("answer\n")
	m, ok := env.Lookup("input", "(Ljava/lang/String;)Ljava/lang/String;")
	require.True(t, ok)

	prompt := object.RefSlot(object.NewString(env.StringClass, "> "))
	result, pushed, err := m.Fn(env, nil, []object.StackSlot{prompt})
	require.NoError(t, err)
	require.True(t, pushed)
	require.Equal(t, "answer", result.Ref.StringValue)
	require.Equal(t, "> ", out.String())
}

func TestLookupUnrecognizedMethodIsNotFound(t *testing.T) {
	env, _ := newTestEnv("")
	_, ok := env.Lookup("sqrt", "(D)D")
	require.False(t, ok)
}

func TestLookupIgnoresEncodedClassName(t *testing.T) {
	env, _ := newTestEnv("answer\n")
	// "input" is not a real java/lang/System method; the original
	// dispatches on (name, descriptor) alone, so a class file that
	// references it via its own main class (not java/lang/System) must
	// still resolve.
	m, ok := env.Lookup("input", "(Ljava/lang/String;)Ljava/lang/String;")
	require.True(t, ok)
	require.NotNil(t, m.Fn)
}
