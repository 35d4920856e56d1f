// Package memory interprets data-driven pointer chains against a live
// process. It holds no structural knowledge of its own; chains are built from
// the offset catalog each cycle and resolved addresses are never reused
// across cycles.
package memory

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Reader is the raw byte-level access the resolver runs on. process.Manager
// implements it; tests use an in-memory fake.
type Reader interface {
	ReadBytes(addr uintptr, buf []byte) error
}

// Step is one navigation step: optionally dereference the current address,
// then add Offset.
type Step struct {
	Deref  bool
	Offset uintptr
}

// Chain is an ordered pointer walk rooted at Base (a module base or an
// absolute address).
type Chain struct {
	Base  uintptr
	Steps []Step
}

// ResolutionError reports which step of a chain failed. Callers treat it as a
// per-field condition, not a fatal one.
type ResolutionError struct {
	Step int
	Addr uintptr
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("chain step %d at 0x%X: %v", e.Step, e.Addr, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// validPointer rejects null and non-canonical user-space values before a
// dereference so a relocated structure yields an error instead of a garbage
// read.
func validPointer(p uintptr) bool {
	return p >= 0x10000 && p < 0x7FFFFFFFFFFF
}

// Resolver decodes typed values through a Reader. Values are fixed
// little-endian IEEE-754/two's-complement, matching the x86-64 target ABI.
type Resolver struct {
	r Reader
}

func NewResolver(r Reader) *Resolver {
	return &Resolver{r: r}
}

// Resolve walks a chain and returns the final absolute address.
func (rv *Resolver) Resolve(c Chain) (uintptr, error) {
	addr := c.Base
	for i, step := range c.Steps {
		if step.Deref {
			if !validPointer(addr) {
				return 0, &ResolutionError{Step: i, Addr: addr, Err: fmt.Errorf("implausible pointer")}
			}
			p, err := rv.ReadPointer(addr)
			if err != nil {
				return 0, &ResolutionError{Step: i, Addr: addr, Err: err}
			}
			if !validPointer(p) {
				return 0, &ResolutionError{Step: i, Addr: addr, Err: fmt.Errorf("dereferenced implausible pointer 0x%X", p)}
			}
			addr = p
		}
		addr += step.Offset
	}
	return addr, nil
}

// ReadPointer reads a pointer-sized little-endian value.
func (rv *Resolver) ReadPointer(addr uintptr) (uintptr, error) {
	var buf [8]byte
	if err := rv.r.ReadBytes(addr, buf[:]); err != nil {
		return 0, err
	}
	return uintptr(binary.LittleEndian.Uint64(buf[:])), nil
}

func (rv *Resolver) ReadUint32(addr uintptr) (uint32, error) {
	var buf [4]byte
	if err := rv.r.ReadBytes(addr, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (rv *Resolver) ReadInt32(addr uintptr) (int32, error) {
	v, err := rv.ReadUint32(addr)
	return int32(v), err
}

func (rv *Resolver) ReadFloat32(addr uintptr) (float32, error) {
	v, err := rv.ReadUint32(addr)
	return math.Float32frombits(v), err
}

// Vec3 is three packed little-endian floats.
type Vec3 struct {
	X, Y, Z float32
}

func (rv *Resolver) ReadVec3(addr uintptr) (Vec3, error) {
	var buf [12]byte
	if err := rv.r.ReadBytes(addr, buf[:]); err != nil {
		return Vec3{}, err
	}
	return Vec3{
		X: math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4])),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8])),
		Z: math.Float32frombits(binary.LittleEndian.Uint32(buf[8:12])),
	}, nil
}

// Matrix is a row-major 4x4 view/projection matrix.
type Matrix [4][4]float32

func (rv *Resolver) ReadMatrix(addr uintptr) (Matrix, error) {
	var buf [64]byte
	var m Matrix
	if err := rv.r.ReadBytes(addr, buf[:]); err != nil {
		return m, err
	}
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			bits := binary.LittleEndian.Uint32(buf[(row*4+col)*4:])
			m[row][col] = math.Float32frombits(bits)
		}
	}
	return m, nil
}

// ReadCString reads a NUL-terminated string of at most maxLen bytes.
func (rv *Resolver) ReadCString(addr uintptr, maxLen int) (string, error) {
	buf := make([]byte, maxLen)
	if err := rv.r.ReadBytes(addr, buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i]), nil
		}
	}
	return string(buf), nil
}
