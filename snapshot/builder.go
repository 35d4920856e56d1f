package snapshot

import (
	"errors"
	"fmt"
	"time"

	"violetwing/memory"
	"violetwing/offsets"
)

// ErrPartialFailure means the cycle-critical stage (offset layout, local
// player or view matrix) could not be resolved. No snapshot is published for
// the cycle; the supervising loop retries on its next tick.
var ErrPartialFailure = errors.New("snapshot cycle aborted")

const (
	// Entity list geometry: chunked array of 512-slot pages, 120-byte slots.
	entityEntrySize = 120
	maxEntities     = 64

	// Bone transforms are 32 bytes apart; the position is the leading vec3.
	boneStride = 32

	// BoneHead is the skeleton joint used for head anchoring.
	BoneHead = 6
)

// skeletonJoints are the bone indices captured when skeleton rendering is on.
var skeletonJoints = []int{0, 2, 4, 5, 6, 8, 9, 11, 13, 14, 16, 22, 23, 24, 25, 26, 27}

// SkeletonPairs are the joint index pairs the overlay connects with line
// segments.
var SkeletonPairs = [][2]int{
	{0, 2}, {2, 4}, {4, 5}, {5, 6},
	{5, 8}, {8, 9}, {9, 11},
	{5, 13}, {13, 14}, {14, 16},
	{0, 22}, {22, 23}, {23, 24},
	{0, 25}, {25, 26}, {26, 27},
}

const maxBoneIndex = 27

// layout is the offset set flattened into the fields one cycle needs. It is
// rebuilt per cycle from the catalog's current set, so a concurrent refresh
// never mixes old and new offsets inside a snapshot. Each entry's declared
// kind is checked against the decoder that will read it.
type layout struct {
	entList, localPawn, localController, viewMatrix         uintptr
	health, team, origin, dormant, flags, target            uintptr
	name, pawnHandle, sceneNode, boneArray                  uintptr
	weaponServices, activeWeapon, attrMgr, item, itemDefIdx uintptr
}

func layoutFrom(set *offsets.Set) (layout, error) {
	var l layout
	for _, f := range []struct {
		dst  *uintptr
		name string
		kind offsets.Kind
	}{
		{&l.entList, offsets.DwEntityList, offsets.KindPointer},
		{&l.localPawn, offsets.DwLocalPlayerPawn, offsets.KindPointer},
		{&l.localController, offsets.DwLocalPlayerController, offsets.KindPointer},
		{&l.viewMatrix, offsets.DwViewMatrix, offsets.KindMatrix},
		{&l.health, offsets.MHealth, offsets.KindInt32},
		{&l.team, offsets.MTeamNum, offsets.KindInt32},
		{&l.origin, offsets.MOldOrigin, offsets.KindVec3},
		{&l.dormant, offsets.MDormant, offsets.KindInt32},
		{&l.flags, offsets.MFlags, offsets.KindUint32},
		{&l.target, offsets.MIDEntIndex, offsets.KindInt32},
		{&l.name, offsets.MPlayerName, offsets.KindString},
		{&l.pawnHandle, offsets.MPlayerPawn, offsets.KindPointer},
		{&l.sceneNode, offsets.MGameSceneNode, offsets.KindPointer},
		{&l.boneArray, offsets.MBoneArray, offsets.KindPointer},
		{&l.weaponServices, offsets.MWeaponServices, offsets.KindPointer},
		{&l.activeWeapon, offsets.MActiveWeapon, offsets.KindPointer},
		{&l.attrMgr, offsets.MAttributeManager, offsets.KindPointer},
		{&l.item, offsets.MItem, offsets.KindPointer},
		{&l.itemDefIdx, offsets.MItemDefinitionIndex, offsets.KindInt32},
	} {
		off, err := set.MustTyped(f.name, f.kind)
		if err != nil {
			return l, err
		}
		*f.dst = off
	}
	return l, nil
}

// Options select the optional per-entity work for one cycle.
type Options struct {
	IncludeBones  bool
	Transliterate bool
}

// Builder walks the entity list once per polling cycle and produces an
// immutable WorldSnapshot. It is driven by a single goroutine.
type Builder struct {
	res  *memory.Resolver
	base func() uintptr
	seq  uint64
}

// NewBuilder wires a builder to a resolver and a module-base provider. The
// base is a func because it is re-read when the process handle is reacquired.
func NewBuilder(res *memory.Resolver, base func() uintptr) *Builder {
	return &Builder{res: res, base: base}
}

// Build captures one snapshot against the given offset set.
func (b *Builder) Build(set *offsets.Set, opts Options) (*WorldSnapshot, error) {
	l, err := layoutFrom(set)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPartialFailure, err)
	}
	base := b.base()

	local, view, entList, localController, err := b.resolveLocal(l, base)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPartialFailure, err)
	}

	ws := &WorldSnapshot{
		Seq:        b.seq + 1,
		Taken:      time.Now(),
		ViewMatrix: view,
		Local:      local,
		Entities:   make([]EntitySnapshot, 0, maxEntities),
	}

	for i := 1; i <= maxEntities; i++ {
		ent, ok := b.readEntity(l, entList, localController, local.Pawn, i, opts)
		if ok {
			ws.Entities = append(ws.Entities, ent)
		}
	}

	b.seq++
	return ws, nil
}

// resolveLocal is the cycle-fatal stage: local pawn, view matrix and the
// entity list base must all resolve or the cycle aborts.
func (b *Builder) resolveLocal(l layout, base uintptr) (LocalPlayer, memory.Matrix, uintptr, uintptr, error) {
	var local LocalPlayer
	var view memory.Matrix

	pawn, err := b.res.Resolve(memory.Chain{Base: base, Steps: []memory.Step{
		{Offset: l.localPawn},
		{Deref: true},
	}})
	if err != nil {
		return local, view, 0, 0, fmt.Errorf("local pawn: %w", err)
	}

	view, err = b.res.ReadMatrix(base + l.viewMatrix)
	if err != nil {
		return local, view, 0, 0, fmt.Errorf("view matrix: %w", err)
	}

	entList, err := b.res.ReadPointer(base + l.entList)
	if err != nil {
		return local, view, 0, 0, fmt.Errorf("entity list: %w", err)
	}

	localController, err := b.res.ReadPointer(base + l.localController)
	if err != nil {
		return local, view, 0, 0, fmt.Errorf("local controller: %w", err)
	}

	local.Pawn = pawn
	if local.Team, err = b.res.ReadInt32(pawn + l.team); err != nil {
		return local, view, 0, 0, fmt.Errorf("local team: %w", err)
	}
	if local.Position, err = b.res.ReadVec3(pawn + l.origin); err != nil {
		return local, view, 0, 0, fmt.Errorf("local origin: %w", err)
	}

	// Non-critical local fields tolerate failure with safe defaults.
	if flags, err := b.res.ReadUint32(pawn + l.flags); err == nil {
		local.OnGround = flags&1 != 0
	}
	if idx, err := b.res.ReadInt32(pawn + l.target); err == nil {
		local.TargetIndex = idx
	}
	local.Weapon = b.readWeaponClass(l, entList, pawn)

	return local, view, entList, localController, nil
}

// readEntity captures one slot. Per-entity failures are absorbed: a failed
// critical field skips the slot; a failed cosmetic field gets a placeholder.
func (b *Builder) readEntity(l layout, entList, localController, localPawn uintptr, index int, opts Options) (EntitySnapshot, bool) {
	var ent EntitySnapshot
	ent.Index = index

	controller, err := b.entitySlot(entList, uintptr(index))
	if err != nil || controller == 0 || controller == localController {
		return ent, false
	}

	pawnHandle, err := b.res.ReadPointer(controller + l.pawnHandle)
	if err != nil || pawnHandle == 0 {
		return ent, false
	}

	pawn, err := b.entitySlot(entList, pawnHandle)
	if err != nil || pawn == 0 || pawn == localPawn {
		return ent, false
	}

	health, err := b.res.ReadInt32(pawn + l.health)
	if err != nil {
		return ent, false
	}
	team, err := b.res.ReadInt32(pawn + l.team)
	if err != nil {
		return ent, false
	}
	pos, err := b.res.ReadVec3(pawn + l.origin)
	if err != nil {
		return ent, false
	}

	dormant := int32(0)
	if d, err := b.res.ReadInt32(pawn + l.dormant); err == nil {
		dormant = d
	}

	ent.Health = clampHealth(health)
	ent.Team = team
	ent.Alive = health > 0 && dormant == 0
	ent.Position = pos

	// Name is cosmetic: a failed lookup keeps the entity with a placeholder
	// so box/trigger positioning stays accurate.
	name, err := b.res.ReadCString(controller+l.name, 128)
	if err != nil || name == "" {
		name = "?"
	} else if opts.Transliterate {
		name = Transliterate(name)
	}
	ent.Name = name

	if opts.IncludeBones {
		ent.Bones = b.readBones(l, pawn)
	}

	return ent, true
}

// entitySlot resolves a controller/pawn pointer from its list index or
// handle, using the chunked list layout.
func (b *Builder) entitySlot(entList, handle uintptr) (uintptr, error) {
	entry, err := b.res.ReadPointer(entList + 8*((handle&0x7FFF)>>9) + 16)
	if err != nil || entry == 0 {
		return 0, err
	}
	return b.res.ReadPointer(entry + entityEntrySize*(handle&0x1FF))
}

// readBones captures the skeleton joints. Any failure drops the whole bone
// set for the entity; box rendering still works from the origin.
func (b *Builder) readBones(l layout, pawn uintptr) []memory.Vec3 {
	scene, err := b.res.ReadPointer(pawn + l.sceneNode)
	if err != nil || scene == 0 {
		return nil
	}
	boneArray, err := b.res.ReadPointer(scene + l.boneArray)
	if err != nil || boneArray == 0 {
		return nil
	}

	bones := make([]memory.Vec3, maxBoneIndex+1)
	for _, joint := range skeletonJoints {
		pos, err := b.res.ReadVec3(boneArray + uintptr(joint)*boneStride)
		if err != nil {
			return nil
		}
		bones[joint] = pos
	}
	return bones
}

// readWeaponClass follows weaponServices → activeWeapon → attributeManager →
// item → itemDefinitionIndex. Every failure falls back to Rifles, matching
// the most common delay profile.
func (b *Builder) readWeaponClass(l layout, entList, pawn uintptr) WeaponClass {
	services, err := b.res.ReadPointer(pawn + l.weaponServices)
	if err != nil || services == 0 {
		return Rifles
	}
	weaponHandle, err := b.res.ReadPointer(services + l.activeWeapon)
	if err != nil || weaponHandle == 0 {
		return Rifles
	}
	weaponEnt, err := b.entitySlot(entList, weaponHandle&0xFFFF)
	if err != nil || weaponEnt == 0 {
		return Rifles
	}
	attrMgr, err := b.res.ReadPointer(weaponEnt + l.attrMgr)
	if err != nil || attrMgr == 0 {
		return Rifles
	}
	item, err := b.res.ReadPointer(attrMgr + l.item)
	if err != nil || item == 0 {
		return Rifles
	}
	itemDef, err := b.res.ReadInt32(item + l.itemDefIdx)
	if err != nil {
		return Rifles
	}
	return ClassifyWeapon(itemDef)
}

func clampHealth(h int32) int32 {
	if h < 0 {
		return 0
	}
	if h > 100 {
		return 100
	}
	return h
}
