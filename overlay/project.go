// Package overlay projects world snapshots to screen space and renders the
// result on a transparent click-through window. Projection is pure so it can
// be tested without a display.
package overlay

import (
	"fmt"
	"image/color"
	"math"

	"violetwing/config"
	"violetwing/memory"
	"violetwing/snapshot"
)

// Frame is one projected draw list. The renderer consumes it verbatim, so a
// frame built from a stale snapshot still draws without touching game memory.
type Frame struct {
	Seq    uint64
	Boxes  []Box
	Lines  []Line
	Bars   []Bar
	Labels []Label
}

type Box struct {
	X, Y, W, H float32
	Thickness  float32
	Color      color.RGBA
}

type Line struct {
	X1, Y1, X2, Y2 float32
	Color          color.RGBA
}

// Bar is a vertical health bar: Fill is 0..1 of the bar height, drawn bottom
// up.
type Bar struct {
	X, Y, W, H float32
	Fill       float32
	Color      color.RGBA
}

type Label struct {
	X, Y int
	Text string
}

// headOffset lifts the box top above the origin when no head bone is
// available.
const headOffset = 70.0

// WorldToScreen projects a world position through the row-major view matrix.
// ok is false when the point is behind the camera or degenerate.
func WorldToScreen(m memory.Matrix, p memory.Vec3, width, height float32) (x, y float32, ok bool) {
	sx := m[0][0]*p.X + m[0][1]*p.Y + m[0][2]*p.Z + m[0][3]
	sy := m[1][0]*p.X + m[1][1]*p.Y + m[1][2]*p.Z + m[1][3]
	w := m[3][0]*p.X + m[3][1]*p.Y + m[3][2]*p.Z + m[3][3]
	if w < 0.01 {
		return 0, 0, false
	}
	inv := 1.0 / w
	sx *= inv
	sy *= inv
	x = width/2 + 0.5*sx*width
	y = height/2 - 0.5*sy*height
	if math.IsNaN(float64(x)) || math.IsNaN(float64(y)) ||
		math.IsInf(float64(x), 0) || math.IsInf(float64(y), 0) {
		return 0, 0, false
	}
	return x, y, true
}

// Project builds the draw list for one snapshot. Entities that are dead,
// off-screen, or filtered by team produce nothing.
func Project(ws *snapshot.WorldSnapshot, cfg config.OverlayConfig, width, height float32) Frame {
	frame := Frame{Seq: ws.Seq}

	boxColor := ParseHexColor(cfg.BoxColorHex, color.RGBA{R: 255, A: 255})
	mateColor := ParseHexColor(cfg.TeammateColorHex, color.RGBA{G: 255, B: 255, A: 255})
	snapColor := ParseHexColor(cfg.SnaplinesColorHex, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	boneColor := ParseHexColor(cfg.SkeletonColorHex, color.RGBA{R: 255, G: 255, A: 255})

	for i := range ws.Entities {
		ent := &ws.Entities[i]
		if !ent.Alive {
			continue
		}
		teammate := ent.Team == ws.Local.Team
		if teammate && !cfg.DrawTeammates {
			continue
		}

		feetX, feetY, ok := WorldToScreen(ws.ViewMatrix, ent.Position, width, height)
		if !ok {
			continue
		}

		head := ent.Position
		head.Z += headOffset
		if len(ent.Bones) > snapshot.BoneHead {
			if b := ent.Bones[snapshot.BoneHead]; b != (memory.Vec3{}) {
				head = b
				head.Z += 8
			}
		}
		headX, headY, ok := WorldToScreen(ws.ViewMatrix, head, width, height)
		if !ok {
			continue
		}

		boxH := feetY - headY
		if boxH <= 1 {
			continue
		}
		boxW := boxH / 2
		boxX := headX - boxW/2

		clr := boxColor
		if teammate {
			clr = mateColor
		}

		if cfg.EnableBox {
			frame.Boxes = append(frame.Boxes, Box{
				X: boxX, Y: headY, W: boxW, H: boxH,
				Thickness: float32(cfg.BoxLineThickness),
				Color:     clr,
			})
			frame.Bars = append(frame.Bars, Bar{
				X: boxX - 6, Y: headY, W: 3, H: boxH,
				Fill:  float32(ent.Health) / 100,
				Color: healthColor(ent.Health),
			})
		}

		if cfg.DrawSnaplines {
			frame.Lines = append(frame.Lines, Line{
				X1: width / 2, Y1: height,
				X2: feetX, Y2: feetY,
				Color: snapColor,
			})
		}

		if cfg.DrawSkeleton && ent.Bones != nil {
			frame.Lines = append(frame.Lines, projectSkeleton(ws.ViewMatrix, ent.Bones, width, height, boneColor)...)
		}

		if cfg.DrawNicknames {
			frame.Labels = append(frame.Labels, Label{
				X:    int(headX) - len(ent.Name)*3,
				Y:    int(headY) - 16,
				Text: ent.Name,
			})
		}
		if cfg.DrawHealthNumbers {
			frame.Labels = append(frame.Labels, Label{
				X:    int(boxX+boxW) + 4,
				Y:    int(headY),
				Text: fmt.Sprintf("%d", ent.Health),
			})
		}
	}

	return frame
}

func projectSkeleton(m memory.Matrix, bones []memory.Vec3, width, height float32, clr color.RGBA) []Line {
	lines := make([]Line, 0, len(snapshot.SkeletonPairs))
	for _, pair := range snapshot.SkeletonPairs {
		a, b := pair[0], pair[1]
		if a >= len(bones) || b >= len(bones) {
			continue
		}
		if bones[a] == (memory.Vec3{}) || bones[b] == (memory.Vec3{}) {
			continue
		}
		x1, y1, ok := WorldToScreen(m, bones[a], width, height)
		if !ok {
			continue
		}
		x2, y2, ok := WorldToScreen(m, bones[b], width, height)
		if !ok {
			continue
		}
		lines = append(lines, Line{X1: x1, Y1: y1, X2: x2, Y2: y2, Color: clr})
	}
	return lines
}

// healthColor shades from red at 0 to green at 100.
func healthColor(health int32) color.RGBA {
	h := float64(health) / 100
	return color.RGBA{
		R: uint8(255 * (1 - h)),
		G: uint8(255 * h),
		A: 255,
	}
}

// ParseHexColor decodes "#RRGGBB" or "#RRGGBBAA"; malformed input returns the
// fallback.
func ParseHexColor(s string, fallback color.RGBA) color.RGBA {
	if len(s) == 0 || s[0] != '#' {
		return fallback
	}
	hex := s[1:]
	if len(hex) != 6 && len(hex) != 8 {
		return fallback
	}
	var vals [4]uint8
	vals[3] = 255
	for i := 0; i < len(hex)/2; i++ {
		hi, ok1 := hexNibble(hex[2*i])
		lo, ok2 := hexNibble(hex[2*i+1])
		if !ok1 || !ok2 {
			return fallback
		}
		vals[i] = hi<<4 | lo
	}
	return color.RGBA{R: vals[0], G: vals[1], B: vals[2], A: vals[3]}
}

func hexNibble(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
