package overlay

import (
	"fmt"
	"syscall"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/lxn/win"

	"violetwing/config"
	"violetwing/snapshot"
)

// WindowRect is the game window's client area in screen coordinates.
type WindowRect struct {
	X, Y          int
	Width, Height int
}

// GameWindow tracks the target game window by title.
type GameWindow struct {
	title *uint16
	hwnd  win.HWND
}

func NewGameWindow(title string) (*GameWindow, error) {
	t, err := syscall.UTF16PtrFromString(title)
	if err != nil {
		return nil, fmt.Errorf("window title: %w", err)
	}
	return &GameWindow{title: t}, nil
}

// Rect locates the window and returns its client rect. ok is false when the
// window does not exist.
func (g *GameWindow) Rect() (WindowRect, bool) {
	if g.hwnd == 0 || !win.IsWindow(g.hwnd) {
		g.hwnd = win.FindWindow(nil, g.title)
	}
	if g.hwnd == 0 {
		return WindowRect{}, false
	}
	var r win.RECT
	if !win.GetWindowRect(g.hwnd, &r) {
		g.hwnd = 0
		return WindowRect{}, false
	}
	return WindowRect{
		X:      int(r.Left),
		Y:      int(r.Top),
		Width:  int(r.Right - r.Left),
		Height: int(r.Bottom - r.Top),
	}, true
}

// Focused reports whether the game window is in the foreground. The renderer
// and the trigger both gate on this.
func (g *GameWindow) Focused() bool {
	if g.hwnd == 0 {
		if _, ok := g.Rect(); !ok {
			return false
		}
	}
	return win.GetForegroundWindow() == g.hwnd
}

// Window is the game window surface the renderer follows. GameWindow
// implements it; tests use a fake.
type Window interface {
	Rect() (WindowRect, bool)
	Focused() bool
}

// Renderer is the ebiten game driving the transparent overlay. Update
// projects the freshest snapshot; Draw replays the last frame, so a slow
// snapshot cycle never blanks the screen.
type Renderer struct {
	store  *snapshot.Store
	cfg    func() config.OverlayConfig
	window Window

	frame   Frame
	lastSeq uint64
	width   int
	height  int
	tps     int
}

func NewRenderer(store *snapshot.Store, cfg func() config.OverlayConfig, window Window) *Renderer {
	return &Renderer{store: store, cfg: cfg, window: window, width: 1920, height: 1080}
}

func (r *Renderer) Update() error {
	cfg := r.cfg()

	// Target FPS follows the live config like every other overlay option.
	if cfg.TargetFPS > 0 && cfg.TargetFPS != r.tps {
		ebiten.SetTPS(cfg.TargetFPS)
		r.tps = cfg.TargetFPS
	}

	if rect, ok := r.window.Rect(); ok {
		if rect.Width != r.width || rect.Height != r.height {
			r.width, r.height = rect.Width, rect.Height
			ebiten.SetWindowSize(r.width, r.height)
		}
		ebiten.SetWindowPosition(rect.X, rect.Y)
	}

	ws := r.store.Latest()
	if ws == nil {
		// Handle lost or not yet acquired: clear rather than draw stale boxes.
		r.frame = Frame{}
		r.lastSeq = 0
		return nil
	}
	if ws.Seq == r.lastSeq {
		return nil
	}
	r.frame = Project(ws, cfg, float32(r.width), float32(r.height))
	r.lastSeq = ws.Seq
	return nil
}

func (r *Renderer) Draw(screen *ebiten.Image) {
	if !r.cfg().Enabled || !r.window.Focused() {
		return
	}
	for _, b := range r.frame.Boxes {
		th := b.Thickness
		if th <= 0 {
			th = 1
		}
		vector.StrokeRect(screen, b.X, b.Y, b.W, b.H, th, b.Color, false)
	}
	for _, l := range r.frame.Lines {
		vector.StrokeLine(screen, l.X1, l.Y1, l.X2, l.Y2, 1, l.Color, false)
	}
	for _, bar := range r.frame.Bars {
		filled := bar.H * bar.Fill
		vector.DrawFilledRect(screen, bar.X, bar.Y+bar.H-filled, bar.W, filled, bar.Color, false)
	}
	for _, lbl := range r.frame.Labels {
		ebitenutil.DebugPrintAt(screen, lbl.Text, lbl.X, lbl.Y)
	}
}

func (r *Renderer) Layout(outsideWidth, outsideHeight int) (int, int) {
	return r.width, r.height
}

// Run configures the transparent click-through window and blocks on the
// ebiten loop. Must run on the main goroutine.
func (r *Renderer) Run(targetFPS int) error {
	ebiten.SetWindowDecorated(false)
	ebiten.SetWindowFloating(true)
	ebiten.SetWindowMousePassthrough(true)
	ebiten.SetWindowSize(r.width, r.height)
	ebiten.SetWindowTitle("overlay")
	if targetFPS > 0 {
		ebiten.SetTPS(targetFPS)
		r.tps = targetFPS
	}
	return ebiten.RunGameWithOptions(r, &ebiten.RunGameOptions{
		ScreenTransparent: true,
		SkipTaskbar:       true,
	})
}
