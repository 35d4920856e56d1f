package trigger

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"violetwing/config"
	"violetwing/input"
	"violetwing/memory"
	"violetwing/snapshot"
)

func testConfig() config.TriggerConfig {
	return config.TriggerConfig{
		Enabled: true,
		Weapons: map[string]config.WeaponDelay{
			"rifles": {ShotDelayMin: 10, ShotDelayMax: 30, PostShotDelay: 100},
		},
	}
}

func worldWithTarget(targetIdx int32, targetTeam, localTeam int32, alive bool) *snapshot.WorldSnapshot {
	health := int32(0)
	if alive {
		health = 100
	}
	return &snapshot.WorldSnapshot{
		Seq: 1,
		Local: snapshot.LocalPlayer{
			Team:        localTeam,
			TargetIndex: targetIdx,
			Weapon:      snapshot.Rifles,
		},
		Entities: []snapshot.EntitySnapshot{
			{Index: int(targetIdx), Health: health, Team: targetTeam, Alive: alive, Position: memory.Vec3{X: 1}},
		},
	}
}

func newTestMachine(rec *input.Recorder) *Machine {
	return NewMachine(rec, rand.New(rand.NewSource(1)), nil)
}

func TestFiresOnceAfterDelay(t *testing.T) {
	rec := input.NewRecorder()
	m := newTestMachine(rec)
	cfg := testConfig()
	ws := worldWithTarget(5, 3, 2, true)

	now := time.Unix(0, 0)
	m.Step(now, true, ws, cfg)
	require.Equal(t, PendingShot, m.State())

	// Before the deadline nothing fires even across many cycles.
	for i := 0; i < 3; i++ {
		m.Step(now.Add(time.Duration(i)*time.Millisecond), true, ws, cfg)
		assert.Empty(t, rec.Events)
	}

	// Max delay is 30ms; well past it the shot lands exactly once.
	m.Step(now.Add(40*time.Millisecond), true, ws, cfg)
	require.Equal(t, []string{"leftdown", "leftup"}, rec.Events)
	assert.Equal(t, PostShotCooldown, m.State())
}

func TestDelayWithinConfiguredBounds(t *testing.T) {
	cfg := testConfig()
	for seed := int64(0); seed < 50; seed++ {
		rec := input.NewRecorder()
		m := NewMachine(rec, rand.New(rand.NewSource(seed)), nil)
		ws := worldWithTarget(5, 3, 2, true)

		now := time.Unix(0, 0)
		m.Step(now, true, ws, cfg)
		require.Equal(t, PendingShot, m.State())

		d := m.delay
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.LessOrEqual(t, d, 30*time.Millisecond)
	}
}

func TestTargetLeavingCancelsShot(t *testing.T) {
	rec := input.NewRecorder()
	m := newTestMachine(rec)
	cfg := testConfig()

	now := time.Unix(0, 0)
	m.Step(now, true, worldWithTarget(5, 3, 2, true), cfg)
	require.Equal(t, PendingShot, m.State())

	// Crosshair moved off the target before the deadline.
	gone := worldWithTarget(5, 3, 2, true)
	gone.Local.TargetIndex = 0
	m.Step(now.Add(time.Hour), true, gone, cfg)

	assert.Equal(t, Armed, m.State())
	assert.Empty(t, rec.Events)
}

func TestTargetDyingCancelsShot(t *testing.T) {
	rec := input.NewRecorder()
	m := newTestMachine(rec)
	cfg := testConfig()

	now := time.Unix(0, 0)
	m.Step(now, true, worldWithTarget(5, 3, 2, true), cfg)
	require.Equal(t, PendingShot, m.State())

	m.Step(now.Add(time.Hour), true, worldWithTarget(5, 3, 2, false), cfg)
	assert.Equal(t, Armed, m.State())
	assert.Empty(t, rec.Events)
}

func TestTeammateNotShot(t *testing.T) {
	rec := input.NewRecorder()
	m := newTestMachine(rec)
	cfg := testConfig()

	// Same team as local.
	m.Step(time.Unix(0, 0), true, worldWithTarget(5, 2, 2, true), cfg)
	assert.Equal(t, Armed, m.State())
	assert.Empty(t, rec.Events)
}

func TestTeammateShotWhenAttackOnTeammates(t *testing.T) {
	rec := input.NewRecorder()
	m := newTestMachine(rec)
	cfg := testConfig()
	cfg.AttackOnTeammates = true

	now := time.Unix(0, 0)
	m.Step(now, true, worldWithTarget(5, 2, 2, true), cfg)
	require.Equal(t, PendingShot, m.State())

	m.Step(now.Add(time.Second), true, worldWithTarget(5, 2, 2, true), cfg)
	assert.Equal(t, []string{"leftdown", "leftup"}, rec.Events)
}

func TestKeyReleaseDisarms(t *testing.T) {
	rec := input.NewRecorder()
	m := newTestMachine(rec)
	cfg := testConfig()

	now := time.Unix(0, 0)
	m.Step(now, true, worldWithTarget(5, 3, 2, true), cfg)
	require.Equal(t, PendingShot, m.State())

	m.Step(now.Add(time.Second), false, worldWithTarget(5, 3, 2, true), cfg)
	assert.Equal(t, Disarmed, m.State())
	assert.Empty(t, rec.Events)
}

func TestNilSnapshotDisarms(t *testing.T) {
	rec := input.NewRecorder()
	m := newTestMachine(rec)
	cfg := testConfig()

	now := time.Unix(0, 0)
	m.Step(now, true, worldWithTarget(5, 3, 2, true), cfg)
	require.Equal(t, PendingShot, m.State())

	m.Step(now.Add(time.Second), true, nil, cfg)
	assert.Equal(t, Disarmed, m.State())
	assert.Empty(t, rec.Events)
}

func TestPostShotCooldownBlocksRefire(t *testing.T) {
	rec := input.NewRecorder()
	m := newTestMachine(rec)
	cfg := testConfig()
	ws := worldWithTarget(5, 3, 2, true)

	now := time.Unix(0, 0)
	m.Step(now, true, ws, cfg)
	m.Step(now.Add(time.Second), true, ws, cfg)
	require.Len(t, rec.Events, 2)

	// Still cooling down 50ms after the shot (post delay is 100ms).
	fired := now.Add(time.Second)
	m.Step(fired.Add(50*time.Millisecond), true, ws, cfg)
	assert.Equal(t, PostShotCooldown, m.State())
	assert.Len(t, rec.Events, 2)

	// Past the cooldown the machine re-arms and a fresh delay starts.
	m.Step(fired.Add(200*time.Millisecond), true, ws, cfg)
	assert.Equal(t, PendingShot, m.State())
	assert.Len(t, rec.Events, 2)
}

func TestDegenerateDelayRangeCollapsesToMin(t *testing.T) {
	rec := input.NewRecorder()
	m := newTestMachine(rec)
	cfg := testConfig()
	cfg.Weapons["rifles"] = config.WeaponDelay{ShotDelayMin: 20, ShotDelayMax: 20, PostShotDelay: 100}

	m.Step(time.Unix(0, 0), true, worldWithTarget(5, 3, 2, true), cfg)
	require.Equal(t, PendingShot, m.State())
	assert.Equal(t, 20*time.Millisecond, m.delay)
}
