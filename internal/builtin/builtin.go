// Package builtin bootstraps the fixed set of standard-library classes
// this VM understands (Object, String, System, PrintStream, Scanner) and
// dispatches their methods. The dispatch table is keyed by
// "methodName descriptor" only, matching the original's resolveMethodRef:
// it never looks at the Methodref's class, so a call encoded against any
// class (including a user's own main class, since java/lang/System.input
// is not a real method) still resolves. Mirrors jacobin's own
// MethodSignatures map (see gfunction/javaLangThread.go,
// javaIoInputStreamReader.go) narrowed from a (class, name, descriptor)
// key to a (name, descriptor) key.
package builtin

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"classvm/internal/classloader"
	"classvm/internal/object"
)

const (
	ObjectClassName      = "java/lang/Object"
	StringClassName      = "java/lang/String"
	SystemClassName      = "java/lang/System"
	PrintStreamClassName = "java/io/PrintStream"
	ScannerClassName     = "java/util/Scanner"
)

// Env holds the bootstrapped classes, the shared System.out PrintStream
// singleton, and the stdio streams every built-in method call closes over — standing in for
// jacobin's global gfunction tables, narrowed to one VM instance so tests
// can swap in their own Stdin/Stdout.
type Env struct {
	Registry *classloader.Registry

	ObjectClass      *object.Class
	StringClass      *object.Class
	SystemClass      *object.Class
	PrintStreamClass *object.Class
	ScannerClass     *object.Class

	SystemOut *object.Object

	Stdout io.Writer
	Stdin  *bufio.Reader

	dispatch map[string]Method
}

// Method is one built-in call: ParamSlots is how many operand-stack slots
// (beyond the receiver, for instance methods) the call consumes, and Fn
// performs the call, returning the slot to push (if any) or an error.
type Method struct {
	ParamSlots int
	Fn         func(e *Env, receiver *object.Object, args []object.StackSlot) (object.StackSlot, bool, error)
}

// key builds the dispatch-table key for a (name, descriptor) pair. The
// class is deliberately not part of the key: the original's
// executeOpcode dispatches purely on the resolved method name and
// descriptor, ignoring which class the Methodref names.
func key(methodName, descriptor string) string {
	return methodName + descriptor
}

// NewEnv bootstraps the built-in classes and registers them with reg,
// matching JVMInstance::bootstrap in the original implementation:
// Object and String first (String supers to Object), then System,
// PrintStream and Scanner, then the System.out static field pointing at a
// single PrintStream instance.
func NewEnv(reg *classloader.Registry, stdout io.Writer, stdin io.Reader) *Env {
	e := &Env{
		Registry: reg,
		Stdout:   stdout,
		Stdin:    bufio.NewReader(stdin),
		dispatch: make(map[string]Method),
	}

	e.ObjectClass = object.NewClass(ObjectClassName)
	reg.Put(e.ObjectClass)

	e.StringClass = object.NewClass(StringClassName)
	e.StringClass.Super = e.ObjectClass
	reg.Put(e.StringClass)

	e.SystemClass = object.NewClass(SystemClassName)
	e.SystemClass.Super = e.ObjectClass
	reg.Put(e.SystemClass)

	e.PrintStreamClass = object.NewClass(PrintStreamClassName)
	e.PrintStreamClass.Super = e.ObjectClass
	reg.Put(e.PrintStreamClass)

	e.ScannerClass = object.NewClass(ScannerClassName)
	e.ScannerClass.Super = e.ObjectClass
	reg.Put(e.ScannerClass)

	e.SystemOut = object.New(e.PrintStreamClass)
	e.SystemClass.AddField(object.Field{
		Name:       "out",
		Descriptor: "Ljava/io/PrintStream;",
		IsStatic:   true,
		RefValue:   e.SystemOut,
	})

	e.registerObject()
	e.registerString()
	e.registerPrintStream()
	e.registerScanner()
	e.registerSystemInput()

	return e
}

// Lookup finds the built-in implementation for a resolved (name,
// descriptor) pair, if any, regardless of the class the call was
// encoded against. Unrecognized pairs are not an error: the interpreter
// treats them as a no-op per spec.
func (e *Env) Lookup(methodName, descriptor string) (Method, bool) {
	m, ok := e.dispatch[key(methodName, descriptor)]
	return m, ok
}

func (e *Env) register(methodName, descriptor string, m Method) {
	e.dispatch[key(methodName, descriptor)] = m
}

func (e *Env) registerObject() {
	// no Object instance methods are dispatched in this VM; the class
	// exists only as the universal superclass.
}

func (e *Env) registerString() {
	e.register("equals", "(Ljava/lang/Object;)Z", Method{
		ParamSlots: 1,
		Fn: func(e *Env, receiver *object.Object, args []object.StackSlot) (object.StackSlot, bool, error) {
			other := args[0]
			result := false
			if receiver != nil && other.IsRef() && other.Ref != nil {
				result = receiver.StringValue == other.Ref.StringValue
			}
			if result {
				return object.IntSlot(1), true, nil
			}
			return object.IntSlot(0), true, nil
		},
	})
}

func (e *Env) registerPrintStream() {
	e.register("println", "(Ljava/lang/String;)V", Method{
		ParamSlots: 1,
		Fn: func(e *Env, receiver *object.Object, args []object.StackSlot) (object.StackSlot, bool, error) {
			arg := args[0]
			if arg.IsRef() && arg.Ref != nil {
				fmt.Fprintln(e.Stdout, arg.Ref.StringValue)
			}
			return object.StackSlot{}, false, nil
		},
	})

	e.register("println", "(I)V", Method{
		ParamSlots: 1,
		Fn: func(e *Env, receiver *object.Object, args []object.StackSlot) (object.StackSlot, bool, error) {
			arg := args[0]
			if arg.IsInt() {
				fmt.Fprintln(e.Stdout, arg.Int)
			}
			return object.StackSlot{}, false, nil
		},
	})
}

func (e *Env) registerScanner() {
	e.register("nextLine", "()Ljava/lang/String;", Method{
		ParamSlots: 0,
		Fn: func(e *Env, receiver *object.Object, args []object.StackSlot) (object.StackSlot, bool, error) {
			line, _ := e.Stdin.ReadString('\n')
			line = strings.TrimRight(line, "\r\n")
			return object.RefSlot(object.NewString(e.StringClass, line)), true, nil
		},
	})

	e.register("nextInt", "()I", Method{
		ParamSlots: 0,
		Fn: func(e *Env, receiver *object.Object, args []object.StackSlot) (object.StackSlot, bool, error) {
			line, _ := e.Stdin.ReadString('\n')
			line = strings.TrimSpace(line)
			n, _ := strconv.Atoi(line)
			return object.IntSlot(int32(n)), true, nil
		},
	})
}

// registerSystemInput implements the static free-function "input" helper
// used by the invokestatic path in the original (prompt to stdout,
// readline from stdin, push the result string) — not a real JDK method,
// but a built-in bridge call this VM's class files rely on. Dispatch
// matches on (name, descriptor) alone, so a class file may reference it
// via any Methodref class, including its own main class.
func (e *Env) registerSystemInput() {
	e.register("input", "(Ljava/lang/String;)Ljava/lang/String;", Method{
		ParamSlots: 1,
		Fn: func(e *Env, receiver *object.Object, args []object.StackSlot) (object.StackSlot, bool, error) {
			prompt := args[0]
			if prompt.IsRef() && prompt.Ref != nil {
				fmt.Fprint(e.Stdout, prompt.Ref.StringValue)
			}
			line, _ := e.Stdin.ReadString('\n')
			line = strings.TrimRight(line, "\r\n")
			return object.RefSlot(object.NewString(e.StringClass, line)), true, nil
		},
	})
}
