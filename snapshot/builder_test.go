package snapshot

import (
	"encoding/binary"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"violetwing/memory"
	"violetwing/offsets"
)

// fakeMemory maps exact addresses to byte slices; unmapped reads fail the way
// a bad ReadProcessMemory call would.
type fakeMemory struct {
	data map[uintptr][]byte
}

func newFakeMemory() *fakeMemory { return &fakeMemory{data: make(map[uintptr][]byte)} }

func (f *fakeMemory) ReadBytes(addr uintptr, buf []byte) error {
	b, ok := f.data[addr]
	if !ok || len(b) < len(buf) {
		return fmt.Errorf("unmapped read at 0x%X", addr)
	}
	copy(buf, b)
	return nil
}

func (f *fakeMemory) putPtr(addr, v uintptr) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
	f.data[addr] = b
}

func (f *fakeMemory) putInt32(addr uintptr, v int32) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	f.data[addr] = b
}

func (f *fakeMemory) putVec3(addr uintptr, v memory.Vec3) {
	b := make([]byte, 12)
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(v.X))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(v.Y))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(v.Z))
	f.data[addr] = b
}

func (f *fakeMemory) putMatrix(addr uintptr, diag float32) {
	b := make([]byte, 64)
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint32(b[(i*4+i)*4:], math.Float32bits(diag))
	}
	f.data[addr] = b
}

func (f *fakeMemory) putName(addr uintptr, name string) {
	b := make([]byte, 128)
	copy(b, name)
	f.data[addr] = b
}

const (
	testBase        = 0x1000000
	localPawnAddr   = 0x2000000
	entListAddr     = 0x3000000
	chunk0Addr      = 0x3100000
	localCtrlAddr   = 0x4000000
	entCtrlAddr     = 0x5000000
	entPawnAddr     = 0x6000000
	weaponSvcAddr   = 0x7000000
	weaponEntAddr   = 0x8000000
	attrMgrAddr     = 0x9000000
	itemAddr        = 0xA000000
)

func testOffsets() *offsets.Set {
	return offsets.NewSet("100", []offsets.Entry{
		{Name: offsets.DwEntityList, Offset: 0x10, Kind: offsets.KindPointer},
		{Name: offsets.DwLocalPlayerPawn, Offset: 0x18, Kind: offsets.KindPointer},
		{Name: offsets.DwLocalPlayerController, Offset: 0x20, Kind: offsets.KindPointer},
		{Name: offsets.DwViewMatrix, Offset: 0x40, Kind: offsets.KindMatrix},
		{Name: offsets.MHealth, Offset: 0x100, Kind: offsets.KindInt32},
		{Name: offsets.MTeamNum, Offset: 0x104, Kind: offsets.KindInt32},
		{Name: offsets.MOldOrigin, Offset: 0x110, Kind: offsets.KindVec3},
		{Name: offsets.MDormant, Offset: 0x120, Kind: offsets.KindInt32},
		{Name: offsets.MFlags, Offset: 0x124, Kind: offsets.KindUint32},
		{Name: offsets.MIDEntIndex, Offset: 0x128, Kind: offsets.KindInt32},
		{Name: offsets.MPlayerName, Offset: 0x130, Kind: offsets.KindString},
		{Name: offsets.MPlayerPawn, Offset: 0x140, Kind: offsets.KindPointer},
		{Name: offsets.MGameSceneNode, Offset: 0x148, Kind: offsets.KindPointer},
		{Name: offsets.MBoneArray, Offset: 0x150, Kind: offsets.KindPointer},
		{Name: offsets.MWeaponServices, Offset: 0x158, Kind: offsets.KindPointer},
		{Name: offsets.MActiveWeapon, Offset: 0x160, Kind: offsets.KindPointer},
		{Name: offsets.MAttributeManager, Offset: 0x168, Kind: offsets.KindPointer},
		{Name: offsets.MItem, Offset: 0x170, Kind: offsets.KindPointer},
		{Name: offsets.MItemDefinitionIndex, Offset: 0x178, Kind: offsets.KindInt32},
	})
}

// populate maps one local player and one entity at list index 1 whose pawn
// handle is 2.
func populate(mem *fakeMemory) {
	mem.putPtr(testBase+0x18, localPawnAddr)
	mem.putPtr(testBase+0x10, entListAddr)
	mem.putPtr(testBase+0x20, localCtrlAddr)
	mem.putMatrix(testBase+0x40, 1)

	// Local pawn.
	mem.putInt32(localPawnAddr+0x104, 2)
	mem.putVec3(localPawnAddr+0x110, memory.Vec3{X: 10, Y: 20, Z: 30})
	mem.putInt32(localPawnAddr+0x124, 1)
	mem.putInt32(localPawnAddr+0x128, 1)

	// Local weapon chain ending in item definition index 9 (AWP).
	mem.putPtr(localPawnAddr+0x158, weaponSvcAddr)
	mem.putPtr(weaponSvcAddr+0x160, 3)
	mem.putPtr(chunk0Addr+120*3, weaponEntAddr)
	mem.putPtr(weaponEntAddr+0x168, attrMgrAddr)
	mem.putPtr(attrMgrAddr+0x170, itemAddr)
	mem.putInt32(itemAddr+0x178, 9)

	// Entity list: one chunk, controller in slot 1, its pawn in slot 2.
	mem.putPtr(entListAddr+16, chunk0Addr)
	mem.putPtr(chunk0Addr+120*1, entCtrlAddr)
	mem.putPtr(entCtrlAddr+0x140, 2)
	mem.putPtr(chunk0Addr+120*2, entPawnAddr)

	mem.putInt32(entPawnAddr+0x100, 75)
	mem.putInt32(entPawnAddr+0x104, 3)
	mem.putVec3(entPawnAddr+0x110, memory.Vec3{X: 100, Y: 200, Z: 0})
	mem.putInt32(entPawnAddr+0x120, 0)
	mem.putName(entCtrlAddr+0x130, "bob")
}

func newTestBuilder(mem *fakeMemory) *Builder {
	return NewBuilder(memory.NewResolver(mem), func() uintptr { return testBase })
}

func TestBuildBasicWorld(t *testing.T) {
	mem := newFakeMemory()
	populate(mem)
	b := newTestBuilder(mem)

	ws, err := b.Build(testOffsets(), Options{})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), ws.Seq)
	assert.Equal(t, uintptr(localPawnAddr), ws.Local.Pawn)
	assert.Equal(t, int32(2), ws.Local.Team)
	assert.Equal(t, memory.Vec3{X: 10, Y: 20, Z: 30}, ws.Local.Position)
	assert.True(t, ws.Local.OnGround)
	assert.Equal(t, int32(1), ws.Local.TargetIndex)
	assert.Equal(t, Snipers, ws.Local.Weapon)
	assert.Equal(t, float32(1), ws.ViewMatrix[0][0])

	require.Len(t, ws.Entities, 1)
	ent := ws.Entities[0]
	assert.Equal(t, 1, ent.Index)
	assert.Equal(t, "bob", ent.Name)
	assert.Equal(t, int32(75), ent.Health)
	assert.Equal(t, int32(3), ent.Team)
	assert.True(t, ent.Alive)
	assert.Nil(t, ent.Bones)
}

func TestBuildSeqMonotonic(t *testing.T) {
	mem := newFakeMemory()
	populate(mem)
	b := newTestBuilder(mem)

	ws1, err := b.Build(testOffsets(), Options{})
	require.NoError(t, err)
	ws2, err := b.Build(testOffsets(), Options{})
	require.NoError(t, err)
	assert.Equal(t, ws1.Seq+1, ws2.Seq)
}

func TestBuildHealthClamped(t *testing.T) {
	mem := newFakeMemory()
	populate(mem)
	mem.putInt32(entPawnAddr+0x100, 999)
	b := newTestBuilder(mem)

	ws, err := b.Build(testOffsets(), Options{})
	require.NoError(t, err)
	require.Len(t, ws.Entities, 1)
	assert.Equal(t, int32(100), ws.Entities[0].Health)
	assert.True(t, ws.Entities[0].Alive)

	mem.putInt32(entPawnAddr+0x100, -5)
	ws, err = b.Build(testOffsets(), Options{})
	require.NoError(t, err)
	require.Len(t, ws.Entities, 1)
	assert.Equal(t, int32(0), ws.Entities[0].Health)
	assert.False(t, ws.Entities[0].Alive)
}

func TestBuildDormantNotAlive(t *testing.T) {
	mem := newFakeMemory()
	populate(mem)
	mem.putInt32(entPawnAddr+0x120, 1)
	b := newTestBuilder(mem)

	ws, err := b.Build(testOffsets(), Options{})
	require.NoError(t, err)
	require.Len(t, ws.Entities, 1)
	assert.False(t, ws.Entities[0].Alive)
}

func TestBuildFatalWithoutViewMatrix(t *testing.T) {
	mem := newFakeMemory()
	populate(mem)
	delete(mem.data, uintptr(testBase+0x40))
	b := newTestBuilder(mem)

	_, err := b.Build(testOffsets(), Options{})
	assert.ErrorIs(t, err, ErrPartialFailure)
}

func TestBuildFatalWithMissingOffsetName(t *testing.T) {
	mem := newFakeMemory()
	populate(mem)
	b := newTestBuilder(mem)

	incomplete := offsets.NewSet("100", []offsets.Entry{
		{Name: offsets.DwEntityList, Offset: 0x10, Kind: offsets.KindPointer},
	})
	_, err := b.Build(incomplete, Options{})
	assert.ErrorIs(t, err, ErrPartialFailure)
}

func TestBuildFatalWithMisdeclaredKind(t *testing.T) {
	mem := newFakeMemory()
	populate(mem)
	b := newTestBuilder(mem)

	// A catalog declaring m_vOldOrigin as a scalar must abort the cycle
	// instead of feeding a 4-byte read to the vec3 decoder.
	entries := make([]offsets.Entry, 0, testOffsets().Len())
	for _, name := range testOffsets().Names() {
		e, _ := testOffsets().Lookup(name)
		if name == offsets.MOldOrigin {
			e.Kind = offsets.KindFloat32
		}
		entries = append(entries, e)
	}
	_, err := b.Build(offsets.NewSet("100", entries), Options{})
	assert.ErrorIs(t, err, ErrPartialFailure)
}

func TestBuildEntityFailureSkipsSlotOnly(t *testing.T) {
	mem := newFakeMemory()
	populate(mem)
	// Break the entity's health read; the cycle still succeeds.
	delete(mem.data, uintptr(entPawnAddr+0x100))
	b := newTestBuilder(mem)

	ws, err := b.Build(testOffsets(), Options{})
	require.NoError(t, err)
	assert.Empty(t, ws.Entities)
}

func TestBuildNamePlaceholder(t *testing.T) {
	mem := newFakeMemory()
	populate(mem)
	delete(mem.data, uintptr(entCtrlAddr+0x130))
	b := newTestBuilder(mem)

	ws, err := b.Build(testOffsets(), Options{})
	require.NoError(t, err)
	require.Len(t, ws.Entities, 1)
	assert.Equal(t, "?", ws.Entities[0].Name)
}

func TestBuildTransliteratesNames(t *testing.T) {
	mem := newFakeMemory()
	populate(mem)
	mem.putName(entCtrlAddr+0x130, "Петя")
	b := newTestBuilder(mem)

	ws, err := b.Build(testOffsets(), Options{Transliterate: true})
	require.NoError(t, err)
	require.Len(t, ws.Entities, 1)
	assert.Equal(t, "Petya", ws.Entities[0].Name)
}

func TestBuildBonesCaptured(t *testing.T) {
	mem := newFakeMemory()
	populate(mem)
	const sceneAddr, bonesAddr = 0xB000000, 0xC000000
	mem.putPtr(entPawnAddr+0x148, sceneAddr)
	mem.putPtr(sceneAddr+0x150, bonesAddr)
	for _, joint := range skeletonJoints {
		mem.putVec3(bonesAddr+uintptr(joint)*boneStride, memory.Vec3{Z: float32(joint)})
	}
	b := newTestBuilder(mem)

	ws, err := b.Build(testOffsets(), Options{IncludeBones: true})
	require.NoError(t, err)
	require.Len(t, ws.Entities, 1)
	bones := ws.Entities[0].Bones
	require.Len(t, bones, maxBoneIndex+1)
	assert.Equal(t, float32(BoneHead), bones[BoneHead].Z)
}

func TestBuildBoneFailureDropsBonesOnly(t *testing.T) {
	mem := newFakeMemory()
	populate(mem)
	// Scene node unmapped: bones nil, entity kept.
	b := newTestBuilder(mem)

	ws, err := b.Build(testOffsets(), Options{IncludeBones: true})
	require.NoError(t, err)
	require.Len(t, ws.Entities, 1)
	assert.Nil(t, ws.Entities[0].Bones)
}

func TestEntityLookup(t *testing.T) {
	ws := &WorldSnapshot{Entities: []EntitySnapshot{{Index: 3}, {Index: 7}}}
	require.NotNil(t, ws.Entity(7))
	assert.Equal(t, 7, ws.Entity(7).Index)
	assert.Nil(t, ws.Entity(1))
}
