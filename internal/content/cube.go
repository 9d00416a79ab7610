package content

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gogpu/gg/render"

	"github.com/bft-labs/holoship/internal/domain"
	"github.com/bft-labs/holoship/internal/ports"
)

const (
	// CubeSize is the edge length in meters.
	CubeSize = 0.2
	// PlaceDistance is how far in front of the input pose the cube lands.
	PlaceDistance = 2.0
	// spinRate is the rotation speed in radians per second.
	spinRate = math.Pi / 4
	// maxStep caps the rotation applied by a single update.
	maxStep   = 100 * time.Millisecond
	nearPlane = 0.05
)

var background = color.RGBA{A: 255}

// faceColors is the default colourful look, one colour per face.
var faceColors = [6]color.RGBA{
	{R: 230, G: 60, B: 60, A: 255},
	{R: 60, G: 200, B: 80, A: 255},
	{R: 60, G: 90, B: 230, A: 255},
	{R: 240, G: 220, B: 60, A: 255},
	{R: 80, G: 220, B: 220, A: 255},
	{R: 220, G: 80, B: 220, A: 255},
}

var namedColors = map[string]color.RGBA{
	"red":        {R: 255, A: 255},
	"green":      {G: 255, A: 255},
	"blue":       {B: 255, A: 255},
	"yellow":     {R: 255, G: 255, A: 255},
	"aquamarine": {R: 127, G: 255, B: 212, A: 255},
	"white":      {R: 255, G: 255, B: 255, A: 255},
}

// cubeCorners are the unit cube corners centred on the origin.
var cubeCorners = [8][3]float64{
	{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
	{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
}

// cubeFaces index cubeCorners counter-clockwise when seen from outside.
var cubeFaces = [6][4]int{
	{4, 5, 6, 7}, // front +z
	{1, 0, 3, 2}, // back -z
	{5, 1, 2, 6}, // right +x
	{0, 4, 7, 3}, // left -x
	{7, 6, 2, 3}, // top +y
	{0, 1, 5, 4}, // bottom -y
}

// Cube is a spinning cube. Update runs on the session goroutine while
// Render and PlaceAt may run elsewhere, so all state is guarded.
type Cube struct {
	mu       sync.Mutex
	position [3]float64
	angle    float64
	last     time.Time
	solid    *color.RGBA
	frames   uint64

	rmu      sync.Mutex
	scene    *render.Scene
	renderer *render.SoftwareRenderer
}

var (
	_ ports.ContentRenderer = (*Cube)(nil)
	_ ports.Positionable    = (*Cube)(nil)
	_ ports.Placeable       = (*Cube)(nil)
	_ ports.Colorable       = (*Cube)(nil)
)

// NewCube returns a cube placed PlaceDistance in front of the origin.
func NewCube() *Cube {
	return &Cube{
		position: [3]float64{0, 0, -PlaceDistance},
		scene:    render.NewScene(),
		renderer: render.NewSoftwareRenderer(),
	}
}

// Update advances the rotation to the frame's target time.
func (c *Cube) Update(timing domain.FrameTiming) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames++
	if timing.TargetTime.IsZero() {
		return
	}
	if !c.last.IsZero() {
		step := timing.TargetTime.Sub(c.last)
		if step > maxStep {
			step = maxStep
		}
		if step > 0 {
			c.angle = math.Mod(c.angle+spinRate*step.Seconds(), 2*math.Pi)
		}
	}
	c.last = timing.TargetTime
}

// Angle returns the current rotation in radians.
func (c *Cube) Angle() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.angle
}

// Position returns the cube centre in meters.
func (c *Cube) Position() [3]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

// PlaceAt moves the cube PlaceDistance along the gaze of p.
func (c *Cube) PlaceAt(p domain.Pose) {
	fwd := rotate(p.Orientation, [3]float64{0, 0, -1})
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.position {
		c.position[i] = float64(p.Position[i]) + fwd[i]*PlaceDistance
	}
}

// SetColor paints every face name. "default" restores per-face colours.
func (c *Cube) SetColor(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name == "default" {
		c.solid = nil
		return true
	}
	rgba, ok := namedColors[name]
	if !ok {
		return false
	}
	c.solid = &rgba
	return true
}

type savedPosition struct {
	Position [3]float64 `cbor:"1,keyasint"`
}

var errBadPosition = errors.New("content: bad saved position")

// MarshalPosition encodes the cube centre.
func (c *Cube) MarshalPosition() ([]byte, error) {
	return cbor.Marshal(savedPosition{Position: c.Position()})
}

// UnmarshalPosition restores a centre saved by MarshalPosition.
func (c *Cube) UnmarshalPosition(blob []byte) error {
	var sp savedPosition
	if err := cbor.Unmarshal(blob, &sp); err != nil {
		return fmt.Errorf("%w: %v", errBadPosition, err)
	}
	for _, v := range sp.Position {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errBadPosition
		}
	}
	c.mu.Lock()
	c.position = sp.Position
	c.mu.Unlock()
	return nil
}

type face struct {
	points [4][2]float64
	depth  float64
	color  color.RGBA
}

// Render draws the cube as seen from the frame pose.
func (c *Cube) Render(b ports.Binding) error {
	if b.Target == nil {
		return errors.New("content: nil render target")
	}
	c.mu.Lock()
	center, angle, solid := c.position, c.angle, c.solid
	c.mu.Unlock()

	faces := project(center, angle, solid, b.Timing.Pose, b.Target.Width(), b.Target.Height())

	c.rmu.Lock()
	defer c.rmu.Unlock()
	c.scene.Reset()
	c.scene.Clear(background)
	for _, f := range faces {
		c.scene.SetFillColor(f.color)
		c.scene.MoveTo(f.points[0][0], f.points[0][1])
		for _, pt := range f.points[1:] {
			c.scene.LineTo(pt[0], pt[1])
		}
		c.scene.ClosePath()
		c.scene.Fill()
	}
	return c.renderer.Render(b.Target, c.scene)
}

// project returns the visible faces in back-to-front order.
func project(center [3]float64, angle float64, solid *color.RGBA, head domain.Pose, width, height int) []face {
	inv := conjugate(head.Orientation)
	sin, cos := math.Sincos(angle)
	focal := float64(height)
	half := CubeSize / 2

	var view [8][3]float64
	for i, k := range cubeCorners {
		// Spin about y, then tilt about x so three faces show.
		x := k[0]*cos + k[2]*sin
		z := -k[0]*sin + k[2]*cos
		y := k[1]*math.Cos(angle/2) - z*math.Sin(angle/2)
		z = k[1]*math.Sin(angle/2) + z*math.Cos(angle/2)
		world := [3]float64{
			center[0] + x*half - float64(head.Position[0]),
			center[1] + y*half - float64(head.Position[1]),
			center[2] + z*half - float64(head.Position[2]),
		}
		view[i] = rotate(inv, world)
	}

	faces := make([]face, 0, 3)
	for fi, idx := range cubeFaces {
		var f face
		visible := true
		for j, ci := range idx {
			v := view[ci]
			d := -v[2]
			if d < nearPlane {
				visible = false
				break
			}
			f.points[j] = [2]float64{
				float64(width)/2 + focal*v[0]/d,
				float64(height)/2 - focal*v[1]/d,
			}
			f.depth += d
		}
		if !visible || !frontFacing(f.points) {
			continue
		}
		f.color = faceColors[fi]
		if solid != nil {
			f.color = shade(*solid, fi)
		}
		faces = append(faces, f)
	}
	sort.Slice(faces, func(i, j int) bool { return faces[i].depth > faces[j].depth })
	return faces
}

// frontFacing reports whether the projected quad winds counter-clockwise
// on screen. Screen y points down, so the sign flips.
func frontFacing(p [4][2]float64) bool {
	var area float64
	for i := range p {
		j := (i + 1) % len(p)
		area += p[i][0]*p[j][1] - p[j][0]*p[i][1]
	}
	return area < 0
}

// shade darkens side faces of a solid colour.
func shade(c color.RGBA, faceIndex int) color.RGBA {
	factor := [6]float64{1, 0.55, 0.8, 0.8, 0.95, 0.6}[faceIndex]
	return color.RGBA{
		R: uint8(float64(c.R) * factor),
		G: uint8(float64(c.G) * factor),
		B: uint8(float64(c.B) * factor),
		A: c.A,
	}
}

// rotate applies the unit quaternion q (x, y, z, w) to v. A zero
// quaternion is treated as identity.
func rotate(q [4]float32, v [3]float64) [3]float64 {
	x, y, z, w := float64(q[0]), float64(q[1]), float64(q[2]), float64(q[3])
	n := math.Sqrt(x*x + y*y + z*z + w*w)
	if n == 0 {
		return v
	}
	x, y, z, w = x/n, y/n, z/n, w/n

	// t = 2 * cross(q.xyz, v)
	tx := 2 * (y*v[2] - z*v[1])
	ty := 2 * (z*v[0] - x*v[2])
	tz := 2 * (x*v[1] - y*v[0])
	return [3]float64{
		v[0] + w*tx + (y*tz - z*ty),
		v[1] + w*ty + (z*tx - x*tz),
		v[2] + w*tz + (x*ty - y*tx),
	}
}

func conjugate(q [4]float32) [4]float32 {
	return [4]float32{-q[0], -q[1], -q[2], q[3]}
}
