package classloader

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"classvm/internal/maskedio"
	"classvm/internal/object"
)

// fixtureBuilder assembles an unmasked class file byte-by-byte; tests mask
// it with maskedio.Mask before feeding it to the decoder, exactly as a
// real class file arrives on disk.
type fixtureBuilder struct {
	buf []byte
}

func (b *fixtureBuilder) u1(v byte)  { b.buf = append(b.buf, v) }
func (b *fixtureBuilder) u2(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}
func (b *fixtureBuilder) u4(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}
func (b *fixtureBuilder) bytes(v []byte) { b.buf = append(b.buf, v...) }
func (b *fixtureBuilder) utf8(s string) {
	b.u1(byte(object.TagUTF8))
	b.u2(uint16(len(s)))
	b.bytes([]byte(s))
}

// buildHelloClass builds a minimal class file: one class entry (name
// "Hello"), a single static void main([Ljava/lang/String;)V method whose
// Code attribute is just a `return` (0xB1). Constant pool indices are
// numbered in the order pushed: 1=UTF8 Hello, 2=Class->1, 3=UTF8 main,
// 4=UTF8 ([Ljava/lang/String;)V, 5=UTF8 Code.
func buildHelloClass() []byte {
	b := &fixtureBuilder{}
	b.u4(0xCAFEBABE)
	b.u2(0) // minor
	b.u2(61) // major

	b.u2(6) // cp_count (indices 1..5 used)
	b.utf8("Hello")               // 1
	b.u1(byte(object.TagClass)); b.u2(1) // 2 -> class "Hello"
	b.utf8("main")                // 3
	b.utf8("([Ljava/lang/String;)V") // 4
	b.utf8("Code")                 // 5

	b.u2(0x0021) // access_flags (public super)
	b.u2(2)      // this_class -> 2
	b.u2(0)      // super_class (none)

	b.u2(0) // interfaces_count

	b.u2(0) // fields_count

	b.u2(1) // methods_count
	b.u2(0x0009) // access_flags: public static
	b.u2(3)      // name_index -> "main"
	b.u2(4)      // descriptor_index
	b.u2(1)      // attributes_count
	b.u2(5)      // attribute_name_index -> "Code"
	code := []byte{0xB1} // return
	codeAttrBody := &fixtureBuilder{}
	codeAttrBody.u2(1) // max_stack
	codeAttrBody.u2(1) // max_locals
	codeAttrBody.u4(uint32(len(code)))
	codeAttrBody.bytes(code)
	codeAttrBody.u2(0) // exception_table_length
	codeAttrBody.u2(0) // code attributes count
	b.u4(uint32(len(codeAttrBody.buf)))
	b.bytes(codeAttrBody.buf)

	return b.buf
}

func TestLoadBytesDecodesMinimalClass(t *testing.T) {
	masked := maskedio.Mask(buildHelloClass())
	reg := NewRegistry()

	class, err := reg.LoadBytes(masked)
	require.NoError(t, err)
	require.Equal(t, "Hello", class.Name)

	m, ok := class.FindMethod("main([Ljava/lang/String;)V")
	require.True(t, ok)
	require.True(t, m.IsStatic)
	require.Equal(t, 1, m.MaxStack)
	require.Equal(t, 1, m.MaxLocals)
	require.Equal(t, []byte{0xB1}, m.Code)
}

func TestLoadBytesRejectsBadMagic(t *testing.T) {
	bad := maskedio.Mask([]byte{0x00, 0x00, 0x00, 0x00})
	reg := NewRegistry()
	_, err := reg.LoadBytes(bad)
	require.ErrorIs(t, err, ErrInvalidMagic)
}

func TestLoadBytesReturnsSameClassOnReload(t *testing.T) {
	masked := maskedio.Mask(buildHelloClass())
	reg := NewRegistry()

	first, err := reg.LoadBytes(masked)
	require.NoError(t, err)
	second, err := reg.LoadBytes(masked)
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestDecodeConstantPoolSkipsLongDoubleIndex(t *testing.T) {
	b := &fixtureBuilder{}
	b.u2(5) // cp_count: indices 1..4, but long occupies 2 and 3
	b.utf8("a")                 // 1
	b.u1(byte(object.TagLong)); b.u4(0); b.u4(0) // 2 (3 is skipped)
	b.utf8("b")                 // 4

	mr := maskedWrap(b.buf)
	cp, err := decodeConstantPool(mr)
	require.NoError(t, err)
	require.Equal(t, object.TagUTF8, cp[1].Tag)
	require.Equal(t, object.TagLong, cp[2].Tag)
	require.Equal(t, object.CPTag(0), cp[3].Tag) // skipped slot, zero value
	require.Equal(t, object.TagUTF8, cp[4].Tag)
	require.Equal(t, "b", cp[4].UTF8Value)
}

func TestDecodeConstantPoolRejectsUnknownTag(t *testing.T) {
	b := &fixtureBuilder{}
	b.u2(2)
	b.u1(0xFF)
	mr := maskedWrap(b.buf)
	_, err := decodeConstantPool(mr)
	require.ErrorIs(t, err, ErrUnknownTag)
}

func TestResolveMethodRef(t *testing.T) {
	b := &fixtureBuilder{}
	b.u2(7)
	b.utf8("java/io/PrintStream")                 // 1
	b.u1(byte(object.TagClass)); b.u2(1)           // 2
	b.utf8("println")                              // 3
	b.utf8("(Ljava/lang/String;)V")                // 4
	b.u1(byte(object.TagNameAndType)); b.u2(3); b.u2(4) // 5
	b.u1(byte(object.TagMethodref)); b.u2(2); b.u2(5)   // 6

	mr := maskedWrap(b.buf)
	cp, err := decodeConstantPool(mr)
	require.NoError(t, err)

	className, methodName, descriptor, ok := ResolveMethodRef(cp, 6)
	require.True(t, ok)
	require.Equal(t, "java/io/PrintStream", className)
	require.Equal(t, "println", methodName)
	require.Equal(t, "(Ljava/lang/String;)V", descriptor)
}

func maskedWrap(raw []byte) *maskedio.Reader {
	return maskedio.New(maskedio.Mask(raw))
}
