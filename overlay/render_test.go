package overlay

import (
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"violetwing/config"
	"violetwing/snapshot"
)

type fakeWindow struct {
	rect    WindowRect
	ok      bool
	focused bool
}

func (f *fakeWindow) Rect() (WindowRect, bool) { return f.rect, f.ok }
func (f *fakeWindow) Focused() bool            { return f.focused }

func gameSizedWindow() *fakeWindow {
	return &fakeWindow{rect: WindowRect{Width: 1920, Height: 1080}, ok: true, focused: true}
}

func TestRendererFollowsTargetFPS(t *testing.T) {
	store := snapshot.NewStore()
	fps := 60
	r := NewRenderer(store, func() config.OverlayConfig {
		return config.OverlayConfig{Enabled: true, TargetFPS: fps}
	}, gameSizedWindow())

	require.NoError(t, r.Update())
	assert.Equal(t, 60, ebiten.TPS())

	fps = 144
	require.NoError(t, r.Update())
	assert.Equal(t, 144, ebiten.TPS())
}

func TestRendererClearsFrameWhenSnapshotGone(t *testing.T) {
	store := snapshot.NewStore()
	r := NewRenderer(store, func() config.OverlayConfig {
		return config.OverlayConfig{Enabled: true, EnableBox: true, TargetFPS: 60}
	}, gameSizedWindow())

	store.Publish(&snapshot.WorldSnapshot{Seq: 7})
	require.NoError(t, r.Update())
	assert.Equal(t, uint64(7), r.lastSeq)

	store.Clear()
	require.NoError(t, r.Update())
	assert.Equal(t, uint64(0), r.lastSeq)
	assert.Empty(t, r.frame.Boxes)
}

func TestRendererKeepsFrameOnSameSeq(t *testing.T) {
	store := snapshot.NewStore()
	r := NewRenderer(store, func() config.OverlayConfig {
		return config.OverlayConfig{Enabled: true, TargetFPS: 60}
	}, gameSizedWindow())

	store.Publish(&snapshot.WorldSnapshot{Seq: 3})
	require.NoError(t, r.Update())
	r.frame.Labels = []Label{{Text: "sentinel"}}

	// No newer snapshot: the last frame is replayed untouched.
	require.NoError(t, r.Update())
	require.Len(t, r.frame.Labels, 1)
	assert.Equal(t, "sentinel", r.frame.Labels[0].Text)
}
