// Package classloader decodes a masked class file into the runtime types
// defined by package object: the constant pool, fields, methods, and each
// method's Code attribute. Parsing presupposes familiarity with the
// constant-pool-driven class file format this VM is compatible with.
package classloader

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"classvm/internal/maskedio"
	"classvm/internal/object"
	"classvm/internal/trace"
)

const magicNumber = 0xCAFEBABE

const accStatic = 0x0008

// ErrInvalidMagic is returned when a class file's first four bytes do not
// decode to the expected magic number.
var ErrInvalidMagic = errors.New("classloader: invalid magic number")

// ErrUnknownTag is returned when a constant-pool entry carries a tag byte
// outside the set this decoder understands.
var ErrUnknownTag = errors.New("classloader: unknown constant pool tag")

// ErrNoClassName is returned when this_class does not resolve to a usable
// UTF8 name.
var ErrNoClassName = errors.New("classloader: cannot determine class name")

// cfe wraps a class-format error with the file/line of its caller,
// matching jacobin's own cfe() helper in classloader.go.
func cfe(msg string) error {
	errMsg := "class format error: " + msg
	if pc, _, _, ok := runtime.Caller(1); ok {
		fn := runtime.FuncForPC(pc)
		fileName, fileLine := fn.FileLine(pc)
		errMsg += fmt.Sprintf(" (detected by %s:%d)", filepath.Base(fileName), fileLine)
	}
	trace.Error(errMsg)
	return errors.New(errMsg)
}

// Registry is the set of classes known to the VM: the built-in classes
// bootstrapped at startup plus whatever user classes have been decoded.
// It stands in for jacobin's Classloader + method-area combination,
// narrowed to this VM's single flat namespace (no parent/child
// classloader delegation, no archives).
type Registry struct {
	classes map[string]*object.Class
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{classes: make(map[string]*object.Class)}
}

// Put registers a class under its own name.
func (r *Registry) Put(c *object.Class) { r.classes[c.Name] = c }

// Get looks up a previously registered class.
func (r *Registry) Get(name string) (*object.Class, bool) {
	c, ok := r.classes[name]
	return c, ok
}

// LoadFile reads a masked class file from disk, decodes it, and registers
// it (unless a class of that name is already registered, in which case
// the existing class is returned, matching the original's
// loadClassFromFile short-circuit).
func (r *Registry) LoadFile(path string) (*object.Class, error) {
	raw, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return r.LoadBytes(raw)
}

// LoadBytes decodes an in-memory masked class file.
func (r *Registry) LoadBytes(masked []byte) (*object.Class, error) {
	mr := maskedio.New(masked)

	magic, err := mr.ReadU4()
	if err != nil {
		return nil, err
	}
	if magic != magicNumber {
		return nil, ErrInvalidMagic
	}

	if _, err := mr.ReadU2(); err != nil { // minor version
		return nil, err
	}
	if _, err := mr.ReadU2(); err != nil { // major version
		return nil, err
	}

	cp, err := decodeConstantPool(mr)
	if err != nil {
		return nil, err
	}

	if _, err := mr.ReadU2(); err != nil { // access flags
		return nil, err
	}
	thisClass, err := mr.ReadU2()
	if err != nil {
		return nil, err
	}
	superClass, err := mr.ReadU2() // super_class index; resolved lazily below
	if err != nil {
		return nil, err
	}

	className, ok := classNameAt(cp, thisClass)
	if !ok || className == "" {
		return nil, ErrNoClassName
	}

	if existing, ok := r.Get(className); ok {
		return existing, nil
	}

	class := object.NewClass(className)
	class.ConstantPool = cp
	if superName, ok := classNameAt(cp, superClass); ok {
		if super, ok := r.Get(superName); ok {
			class.Super = super
		}
	}
	r.Put(class)

	ifaceCount, err := mr.ReadU2()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(ifaceCount); i++ {
		if _, err := mr.ReadU2(); err != nil {
			return nil, err
		}
	}

	if err := decodeFields(mr, cp, class); err != nil {
		return nil, err
	}
	if err := decodeMethods(mr, cp, class); err != nil {
		return nil, err
	}

	return class, nil
}

func utf8At(cp []object.CPEntry, index uint16) (string, bool) {
	if int(index) <= 0 || int(index) >= len(cp) {
		return "", false
	}
	entry := cp[index]
	if entry.Tag != object.TagUTF8 {
		return "", false
	}
	return entry.UTF8Value, true
}

func classNameAt(cp []object.CPEntry, classIndex uint16) (string, bool) {
	if int(classIndex) <= 0 || int(classIndex) >= len(cp) {
		return "", false
	}
	entry := cp[classIndex]
	if entry.Tag != object.TagClass {
		return "", false
	}
	return utf8At(cp, entry.NameIndex)
}

// decodeConstantPool reads cp_count - 1 tagged entries into a 1-indexed
// slice (index 0 is an unused placeholder, matching the class file
// format's own convention). Long and Double entries consume two
// consecutive indices, per Testable Property 3.
func decodeConstantPool(mr *maskedio.Reader) ([]object.CPEntry, error) {
	count, err := mr.ReadU2()
	if err != nil {
		return nil, err
	}
	cp := make([]object.CPEntry, count)

	for i := 1; i < int(count); i++ {
		tagByte, err := mr.ReadU1()
		if err != nil {
			return nil, err
		}
		tag := object.CPTag(tagByte)
		entry := object.CPEntry{Tag: tag}

		switch tag {
		case object.TagUTF8:
			length, err := mr.ReadU2()
			if err != nil {
				return nil, err
			}
			raw, err := mr.ReadBytes(int(length))
			if err != nil {
				return nil, err
			}
			entry.UTF8Value = string(raw)

		case object.TagInteger:
			v, err := mr.ReadU4()
			if err != nil {
				return nil, err
			}
			entry.IntValue = int32(v)

		case object.TagFloat:
			if _, err := mr.ReadU4(); err != nil {
				return nil, err
			}

		case object.TagLong, object.TagDouble:
			if _, err := mr.ReadU4(); err != nil {
				return nil, err
			}
			if _, err := mr.ReadU4(); err != nil {
				return nil, err
			}
			cp[i] = entry
			i++ // occupies the next index too; that slot stays zero-valued
			continue

		case object.TagClass:
			v, err := mr.ReadU2()
			if err != nil {
				return nil, err
			}
			entry.NameIndex = v

		case object.TagString:
			v, err := mr.ReadU2()
			if err != nil {
				return nil, err
			}
			entry.StringIndex = v

		case object.TagFieldref, object.TagMethodref, object.TagInterfaceMethodref:
			classIdx, err := mr.ReadU2()
			if err != nil {
				return nil, err
			}
			natIdx, err := mr.ReadU2()
			if err != nil {
				return nil, err
			}
			entry.ClassIndex = classIdx
			entry.NameAndTypeIndex = natIdx

		case object.TagNameAndType:
			nameIdx, err := mr.ReadU2()
			if err != nil {
				return nil, err
			}
			descIdx, err := mr.ReadU2()
			if err != nil {
				return nil, err
			}
			entry.NameIndex = nameIdx
			entry.DescriptorIndex = descIdx

		default:
			return nil, fmt.Errorf("%w: 0x%02x at index %d", ErrUnknownTag, tagByte, i)
		}

		cp[i] = entry
	}

	return cp, nil
}

func decodeFields(mr *maskedio.Reader, cp []object.CPEntry, class *object.Class) error {
	count, err := mr.ReadU2()
	if err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		accessFlags, err := mr.ReadU2()
		if err != nil {
			return err
		}
		nameIdx, err := mr.ReadU2()
		if err != nil {
			return err
		}
		descIdx, err := mr.ReadU2()
		if err != nil {
			return err
		}

		f := object.Field{IsStatic: accessFlags&accStatic != 0}
		if name, ok := utf8At(cp, nameIdx); ok {
			f.Name = name
		}
		if desc, ok := utf8At(cp, descIdx); ok {
			f.Descriptor = desc
		}

		if err := skipAttributes(mr, cp, nil); err != nil {
			return err
		}

		class.AddField(f)
	}
	return nil
}

func decodeMethods(mr *maskedio.Reader, cp []object.CPEntry, class *object.Class) error {
	count, err := mr.ReadU2()
	if err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		accessFlags, err := mr.ReadU2()
		if err != nil {
			return err
		}
		nameIdx, err := mr.ReadU2()
		if err != nil {
			return err
		}
		descIdx, err := mr.ReadU2()
		if err != nil {
			return err
		}

		m := object.Method{IsStatic: accessFlags&accStatic != 0}
		if name, ok := utf8At(cp, nameIdx); ok {
			m.Name = name
		}
		if desc, ok := utf8At(cp, descIdx); ok {
			m.Descriptor = desc
		}

		if err := skipAttributes(mr, cp, &m); err != nil {
			return err
		}

		class.AddMethod(m)
	}
	return nil
}

// skipAttributes reads attr_count generic attributes, decoding a "Code"
// attribute into m (when m is non-nil, i.e. we're inside a method) and
// skipping every other attribute's bytes wholesale via Seek, matching the
// original's attribute-skip loop in both the field and method paths.
func skipAttributes(mr *maskedio.Reader, cp []object.CPEntry, m *object.Method) error {
	count, err := mr.ReadU2()
	if err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		nameIdx, err := mr.ReadU2()
		if err != nil {
			return err
		}
		length, err := mr.ReadU4()
		if err != nil {
			return err
		}

		attrName, _ := utf8At(cp, nameIdx)
		if m != nil && attrName == "Code" {
			if err := decodeCodeAttribute(mr, cp, m); err != nil {
				return err
			}
			continue
		}

		mr.Seek(mr.Tell() + int(length))
	}
	return nil
}

// decodeCodeAttribute reads max_stack, max_locals, the raw bytecode, and
// skips the exception table and any nested Code sub-attributes, which
// this VM never interprets (no exception handling, no stack-map frames).
func decodeCodeAttribute(mr *maskedio.Reader, cp []object.CPEntry, m *object.Method) error {
	maxStack, err := mr.ReadU2()
	if err != nil {
		return err
	}
	maxLocals, err := mr.ReadU2()
	if err != nil {
		return err
	}
	codeLength, err := mr.ReadU4()
	if err != nil {
		return err
	}
	code, err := mr.ReadBytes(int(codeLength))
	if err != nil {
		return err
	}

	m.MaxStack = int(maxStack)
	m.MaxLocals = int(maxLocals)
	m.Code = code

	exTableLen, err := mr.ReadU2()
	if err != nil {
		return err
	}
	mr.Seek(mr.Tell() + int(exTableLen)*8)

	subAttrCount, err := mr.ReadU2()
	if err != nil {
		return err
	}
	for i := 0; i < int(subAttrCount); i++ {
		if _, err := mr.ReadU2(); err != nil { // attribute name index
			return err
		}
		subLen, err := mr.ReadU4()
		if err != nil {
			return err
		}
		mr.Seek(mr.Tell() + int(subLen))
	}

	return nil
}

// ResolveMethodRef follows a Methodref/InterfaceMethodref constant-pool
// entry to its declaring class name, method name, and descriptor,
// matching the original's resolveMethodRef.
func ResolveMethodRef(cp []object.CPEntry, index uint16) (className, methodName, descriptor string, ok bool) {
	if int(index) >= len(cp) {
		return "", "", "", false
	}
	entry := cp[index]
	if entry.Tag != object.TagMethodref && entry.Tag != object.TagInterfaceMethodref {
		return "", "", "", false
	}

	className, _ = classNameAt(cp, entry.ClassIndex)

	if int(entry.NameAndTypeIndex) >= len(cp) {
		return className, "", "", className != ""
	}
	nat := cp[entry.NameAndTypeIndex]
	if nat.Tag != object.TagNameAndType {
		return className, "", "", className != ""
	}
	methodName, _ = utf8At(cp, nat.NameIndex)
	descriptor, _ = utf8At(cp, nat.DescriptorIndex)
	return className, methodName, descriptor, true
}

// ResolveString follows a String constant-pool entry to its backing UTF8
// text.
func ResolveString(cp []object.CPEntry, index uint16) (string, bool) {
	if int(index) >= len(cp) {
		return "", false
	}
	entry := cp[index]
	if entry.Tag != object.TagString {
		return "", false
	}
	return utf8At(cp, entry.StringIndex)
}
