package memory

import (
	"encoding/binary"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMemory is a sparse address space backed by a map.
type fakeMemory struct {
	data map[uintptr][]byte
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{data: make(map[uintptr][]byte)}
}

func (f *fakeMemory) put(addr uintptr, b []byte) { f.data[addr] = b }

func (f *fakeMemory) putUint64(addr uintptr, v uint64) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	f.put(addr, b)
}

func (f *fakeMemory) putUint32(addr uintptr, v uint32) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	f.put(addr, b)
}

func (f *fakeMemory) putFloat32(addr uintptr, v float32) {
	f.putUint32(addr, math.Float32bits(v))
}

func (f *fakeMemory) ReadBytes(addr uintptr, buf []byte) error {
	b, ok := f.data[addr]
	if !ok || len(b) < len(buf) {
		return fmt.Errorf("unmapped read at 0x%X", addr)
	}
	copy(buf, b)
	return nil
}

func TestResolveChain(t *testing.T) {
	mem := newFakeMemory()
	// base+0x10 holds a pointer to 0x20000; final field at 0x20000+0x8.
	mem.putUint64(0x100010, 0x20000)

	rv := NewResolver(mem)
	addr, err := rv.Resolve(Chain{Base: 0x100000, Steps: []Step{
		{Offset: 0x10},
		{Deref: true, Offset: 0x8},
	}})
	require.NoError(t, err)
	assert.Equal(t, uintptr(0x20008), addr)
}

func TestResolveNullPointerFails(t *testing.T) {
	mem := newFakeMemory()
	mem.putUint64(0x100010, 0)

	rv := NewResolver(mem)
	_, err := rv.Resolve(Chain{Base: 0x100000, Steps: []Step{
		{Offset: 0x10},
		{Deref: true},
	}})
	require.Error(t, err)

	var re *ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 1, re.Step)
}

func TestResolveImplausiblePointerFails(t *testing.T) {
	mem := newFakeMemory()
	mem.putUint64(0x100010, 0xFFFFFFFFFFFFFFFF)

	rv := NewResolver(mem)
	_, err := rv.Resolve(Chain{Base: 0x100000, Steps: []Step{
		{Offset: 0x10},
		{Deref: true},
	}})
	assert.Error(t, err)
}

func TestResolveUnmappedReadFails(t *testing.T) {
	rv := NewResolver(newFakeMemory())
	_, err := rv.Resolve(Chain{Base: 0x100000, Steps: []Step{{Deref: true}}})
	var re *ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 0, re.Step)
	assert.Equal(t, uintptr(0x100000), re.Addr)
}

func TestTypedReads(t *testing.T) {
	mem := newFakeMemory()
	mem.putUint32(0x1000, 0xFFFFFFFF)
	mem.putFloat32(0x2000, 1.5)

	rv := NewResolver(mem)

	u, err := rv.ReadUint32(0x1000)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFFFFFFFF), u)

	i, err := rv.ReadInt32(0x1000)
	require.NoError(t, err)
	assert.Equal(t, int32(-1), i)

	f, err := rv.ReadFloat32(0x2000)
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), f)
}

func TestReadVec3(t *testing.T) {
	mem := newFakeMemory()
	b := make([]byte, 12)
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(1))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(2))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(3))
	mem.put(0x3000, b)

	v, err := NewResolver(mem).ReadVec3(0x3000)
	require.NoError(t, err)
	assert.Equal(t, Vec3{X: 1, Y: 2, Z: 3}, v)
}

func TestReadMatrixRowMajor(t *testing.T) {
	mem := newFakeMemory()
	b := make([]byte, 64)
	for i := 0; i < 16; i++ {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(float32(i)))
	}
	mem.put(0x4000, b)

	m, err := NewResolver(mem).ReadMatrix(0x4000)
	require.NoError(t, err)
	assert.Equal(t, float32(0), m[0][0])
	assert.Equal(t, float32(3), m[0][3])
	assert.Equal(t, float32(4), m[1][0])
	assert.Equal(t, float32(15), m[3][3])
}

func TestReadCString(t *testing.T) {
	mem := newFakeMemory()
	mem.put(0x5000, []byte("hello\x00junk"))
	mem.put(0x6000, []byte("aaaaaaaaaa"))

	rv := NewResolver(mem)

	s, err := rv.ReadCString(0x5000, 10)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	// No terminator within maxLen: the whole buffer comes back.
	s, err = rv.ReadCString(0x6000, 10)
	require.NoError(t, err)
	assert.Equal(t, "aaaaaaaaaa", s)
}

func TestWriteHelpers(t *testing.T) {
	w := &captureWriter{}
	require.NoError(t, WriteUint32(w, 0x10, 65537))
	require.Equal(t, uintptr(0x10), w.addr)
	assert.Equal(t, uint32(65537), binary.LittleEndian.Uint32(w.buf))

	require.NoError(t, WriteFloat32(w, 0x20, 0.5))
	assert.Equal(t, float32(0.5), math.Float32frombits(binary.LittleEndian.Uint32(w.buf)))
}

type captureWriter struct {
	addr uintptr
	buf  []byte
}

func (c *captureWriter) WriteBytes(addr uintptr, buf []byte) error {
	c.addr = addr
	c.buf = append([]byte(nil), buf...)
	return nil
}
