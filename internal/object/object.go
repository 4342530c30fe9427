// Package object holds the runtime representation of classes, methods,
// fields, objects, and operand-stack slots shared by the class loader and
// the interpreter.
package object

// CPTag identifies the kind of a constant-pool entry.
type CPTag uint8

const (
	TagUTF8              CPTag = 1
	TagInteger           CPTag = 3
	TagFloat             CPTag = 4
	TagLong              CPTag = 5
	TagDouble            CPTag = 6
	TagClass             CPTag = 7
	TagString            CPTag = 8
	TagFieldref          CPTag = 9
	TagMethodref         CPTag = 10
	TagInterfaceMethodref CPTag = 11
	TagNameAndType       CPTag = 12
)

// CPEntry is one constant-pool slot. Not every field applies to every tag;
// which fields are meaningful is determined by Tag, mirroring the
// original's single flat CPEntry struct rather than a Go interface, since
// the tag set is small, fixed, and never extended by user code.
type CPEntry struct {
	Tag CPTag

	UTF8Value string // TagUTF8

	IntValue int32 // TagInteger

	NameIndex uint16 // TagClass, TagNameAndType

	StringIndex uint16 // TagString

	ClassIndex       uint16 // TagFieldref, TagMethodref, TagInterfaceMethodref
	NameAndTypeIndex uint16 // TagFieldref, TagMethodref, TagInterfaceMethodref

	DescriptorIndex uint16 // TagNameAndType
}

// Field is a class or instance field declaration.
type Field struct {
	Name       string
	Descriptor string
	IsStatic   bool

	// RefValue and IntValue hold a static field's value (built-in classes
	// only; this VM never allocates per-instance field storage).
	RefValue *Object
	IntValue int32
}

// Method is a declared method: either one with a Code attribute belonging
// to a loaded user class, or a built-in stub dispatched through the
// builtin package's method table.
type Method struct {
	Name       string
	Descriptor string
	IsStatic   bool
	Owner      *Class

	MaxStack  int
	MaxLocals int
	Code      []byte
}

// Key is the method-table lookup key: name + descriptor, matching the
// class file's own ambiguity rule (overloads differ only by descriptor).
func (m *Method) Key() string { return m.Name + m.Descriptor }

// Class is a loaded class: either a built-in bootstrapped at VM start or a
// user class decoded from a class file.
type Class struct {
	Name  string
	Super *Class // nil until/unless the superclass is itself loaded

	ConstantPool []CPEntry

	Fields  []Field
	Methods []Method

	fieldIndex  map[string]int
	methodIndex map[string]int
}

// NewClass builds an empty class shell ready to receive fields/methods.
func NewClass(name string) *Class {
	return &Class{
		Name:        name,
		fieldIndex:  make(map[string]int),
		methodIndex: make(map[string]int),
	}
}

// AddField appends a field and indexes it by name.
func (c *Class) AddField(f Field) {
	c.Fields = append(c.Fields, f)
	c.fieldIndex[f.Name] = len(c.Fields) - 1
}

// AddMethod appends a method and indexes it by name+descriptor.
func (c *Class) AddMethod(m Method) {
	m.Owner = c
	c.Methods = append(c.Methods, m)
	c.methodIndex[m.Key()] = len(c.Methods) - 1
}

// FindMethod looks up a method by name+descriptor.
func (c *Class) FindMethod(key string) (*Method, bool) {
	i, ok := c.methodIndex[key]
	if !ok {
		return nil, false
	}
	return &c.Methods[i], true
}

// FindField looks up a field by name.
func (c *Class) FindField(name string) (*Field, bool) {
	i, ok := c.fieldIndex[name]
	if !ok {
		return nil, false
	}
	return &c.Fields[i], true
}

// Object is a heap instance. This VM only ever instantiates built-in
// String objects and the single bootstrapped System.out PrintStream,
// never user-defined instances (no user invoke pushes a
// frame), so Object carries just enough state for those.
type Object struct {
	Class       *Class
	StringValue string
}

// NewString allocates a fresh String object. Strings are never interned:
// every ldc of a TagString entry returns a new *Object.
func NewString(stringClass *Class, value string) *Object {
	return &Object{Class: stringClass, StringValue: value}
}

// New allocates a bare instance of class with no payload, used for the
// singleton System.out PrintStream handle bootstrapped at startup.
func New(class *Class) *Object {
	return &Object{Class: class}
}

// SlotKind discriminates StackSlot's payload.
type SlotKind uint8

const (
	SlotInt SlotKind = iota
	SlotRef
)

// StackSlot is a tagged union occupying one frame-local or operand-stack
// cell: either a 32-bit int or an object reference (possibly nil, for
// aconst_null and the dconst_0 stub).
type StackSlot struct {
	Kind SlotKind
	Int  int32
	Ref  *Object
}

// IntSlot builds an int-kind slot.
func IntSlot(v int32) StackSlot { return StackSlot{Kind: SlotInt, Int: v} }

// RefSlot builds a ref-kind slot, possibly wrapping a nil reference.
func RefSlot(v *Object) StackSlot { return StackSlot{Kind: SlotRef, Ref: v} }

// IsInt reports whether the slot holds an int.
func (s StackSlot) IsInt() bool { return s.Kind == SlotInt }

// IsRef reports whether the slot holds a reference.
func (s StackSlot) IsRef() bool { return s.Kind == SlotRef }
