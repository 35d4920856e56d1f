package memory

import (
	"encoding/binary"
	"math"
)

// Writer is the raw byte-level write access. process.Manager implements it.
type Writer interface {
	WriteBytes(addr uintptr, buf []byte) error
}

// WriteUint32 encodes v little-endian at addr.
func WriteUint32(w Writer, addr uintptr, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return w.WriteBytes(addr, buf[:])
}

// WriteFloat32 encodes v as little-endian IEEE-754 at addr.
func WriteFloat32(w Writer, addr uintptr, v float32) error {
	return WriteUint32(w, addr, math.Float32bits(v))
}
