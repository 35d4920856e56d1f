package automation

import (
	"violetwing/memory"
	"violetwing/offsets"
	"violetwing/snapshot"
)

// NoFlash caps the local player's flash-blindness duration each cycle.
type NoFlash struct {
	w memory.Writer
}

func NewNoFlash(w memory.Writer) *NoFlash {
	return &NoFlash{w: w}
}

// Step clamps the flash duration on the local pawn to strength (0 removes the
// effect entirely). Writes happen only while a snapshot exists, so a lost
// handle stops the feature within one cycle.
func (n *NoFlash) Step(set *offsets.Set, ws *snapshot.WorldSnapshot, strength float64) error {
	if ws == nil || ws.Local.Pawn == 0 {
		return nil
	}
	off, err := set.MustTyped(offsets.MFlashDuration, offsets.KindFloat32)
	if err != nil {
		return err
	}
	return memory.WriteFloat32(n.w, ws.Local.Pawn+off, float32(strength))
}
