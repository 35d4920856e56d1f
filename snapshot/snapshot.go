// Package snapshot reconstructs one immutable world snapshot per polling
// cycle. Consumers never see a partially built snapshot and never mutate a
// published one.
package snapshot

import (
	"time"

	"violetwing/memory"
)

// WeaponClass buckets the active weapon for trigger delay selection.
type WeaponClass string

const (
	Pistols WeaponClass = "Pistols"
	Rifles  WeaponClass = "Rifles"
	Snipers WeaponClass = "Snipers"
	SMGs    WeaponClass = "SMGs"
	Heavy   WeaponClass = "Heavy"
)

// EntitySnapshot is one enemy/teammate pawn captured during a cycle. Bones is
// nil unless skeleton capture was enabled for the cycle.
type EntitySnapshot struct {
	Index    int
	Name     string
	Health   int32
	Team     int32
	Alive    bool
	Position memory.Vec3
	Bones    []memory.Vec3
}

// LocalPlayer is the view-owning player's state for the cycle.
type LocalPlayer struct {
	Pawn        uintptr
	Team        int32
	Position    memory.Vec3
	OnGround    bool
	TargetIndex int32
	Weapon      WeaponClass
}

// WorldSnapshot is the per-cycle capture. It is immutable after Build returns
// it; downstream readers may hold it for the whole cycle without locking.
type WorldSnapshot struct {
	Seq        uint64
	Taken      time.Time
	ViewMatrix memory.Matrix
	Local      LocalPlayer
	Entities   []EntitySnapshot
}

// Entity returns the entity with the given list index, or nil.
func (ws *WorldSnapshot) Entity(index int32) *EntitySnapshot {
	for i := range ws.Entities {
		if ws.Entities[i].Index == int(index) {
			return &ws.Entities[i]
		}
	}
	return nil
}
