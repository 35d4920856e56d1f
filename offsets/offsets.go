// Package offsets holds the versioned symbolic-name → byte-offset catalog the
// resolver navigates with. Sets are replaced atomically and never mutated.
package offsets

import "fmt"

// Kind declares how the field at an offset is decoded.
type Kind uint8

const (
	KindPointer Kind = iota
	KindInt32
	KindUint32
	KindFloat32
	KindVec3
	KindMatrix
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindPointer:
		return "pointer"
	case KindInt32:
		return "int32"
	case KindUint32:
		return "uint32"
	case KindFloat32:
		return "float32"
	case KindVec3:
		return "vec3"
	case KindMatrix:
		return "matrix"
	case KindString:
		return "string"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Entry is one symbolic offset.
type Entry struct {
	Name   string
	Offset uintptr
	Kind   Kind
}

// Set is an immutable offset mapping for one game build.
type Set struct {
	Build   string
	entries map[string]Entry
}

// NewSet copies entries into a fresh immutable set.
func NewSet(build string, entries []Entry) *Set {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		m[e.Name] = e
	}
	return &Set{Build: build, entries: m}
}

// Lookup returns the entry for a symbolic name.
func (s *Set) Lookup(name string) (Entry, bool) {
	e, ok := s.entries[name]
	return e, ok
}

// MustOffset returns the offset for name, or an error naming the missing
// symbol. Resolution code treats a missing symbol like any other failed step.
func (s *Set) MustOffset(name string) (uintptr, error) {
	e, ok := s.entries[name]
	if !ok {
		return 0, fmt.Errorf("offset set %q has no entry %q", s.Build, name)
	}
	return e.Offset, nil
}

// MustTyped returns the offset for name after checking that the catalog
// declares the kind the caller is about to decode. A mismatch means the
// catalog and the reader disagree about the field's shape, which would turn
// into a garbage read, so it fails like a missing symbol.
func (s *Set) MustTyped(name string, kind Kind) (uintptr, error) {
	e, ok := s.entries[name]
	if !ok {
		return 0, fmt.Errorf("offset set %q has no entry %q", s.Build, name)
	}
	if e.Kind != kind {
		return 0, fmt.Errorf("offset %q is declared %s, not %s", name, e.Kind, kind)
	}
	return e.Offset, nil
}

// Len reports how many entries the set carries.
func (s *Set) Len() int { return len(s.entries) }

// Names returns the symbolic names present, for diagnostics.
func (s *Set) Names() []string {
	out := make([]string, 0, len(s.entries))
	for n := range s.entries {
		out = append(out, n)
	}
	return out
}

// Symbolic names used by the snapshot builder and automation helpers. They
// follow the cs2-dumper output naming.
const (
	DwEntityList            = "dwEntityList"
	DwLocalPlayerPawn       = "dwLocalPlayerPawn"
	DwLocalPlayerController = "dwLocalPlayerController"
	DwViewMatrix            = "dwViewMatrix"
	DwForceJump             = "dwForceJump"
	MHealth                 = "m_iHealth"
	MTeamNum                = "m_iTeamNum"
	MIDEntIndex             = "m_iIDEntIndex"
	MPlayerName             = "m_iszPlayerName"
	MOldOrigin              = "m_vOldOrigin"
	MGameSceneNode          = "m_pGameSceneNode"
	MDormant                = "m_bDormant"
	MPlayerPawn             = "m_hPlayerPawn"
	MFlashDuration          = "m_flFlashDuration"
	MBoneArray              = "m_pBoneArray"
	MWeaponServices         = "m_pWeaponServices"
	MActiveWeapon           = "m_hActiveWeapon"
	MAttributeManager       = "m_AttributeManager"
	MItem                   = "m_Item"
	MItemDefinitionIndex    = "m_iItemDefinitionIndex"
	MFlags                  = "m_fFlags"
)
