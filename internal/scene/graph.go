// Package scene is the Go-side scene graph the browser renderer mirrors.
//
// Each body owns up to three nodes: the body sphere, its curiosity marker
// and, for Saturn, a ring. The session writes transforms once per frame with
// Sync; picking casts a camera ray against the same nodes.
package scene

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/star/orrery/internal/body"
	"github.com/star/orrery/internal/camera"
)

// Handle identifies a node in the graph.
type Handle int

// NodeKind classifies nodes for interaction.
type NodeKind int

const (
	NodeBody NodeKind = iota
	NodeMarker
	NodeRing
)

func (k NodeKind) String() string {
	switch k {
	case NodeBody:
		return "body"
	case NodeMarker:
		return "marker"
	case NodeRing:
		return "ring"
	default:
		return fmt.Sprintf("node(%d)", int(k))
	}
}

// Shape is what CreateBody needs to know to build a node.
type Shape struct {
	Kind   NodeKind
	Owner  body.ID
	Radius float64 // sphere radius, or ring outer radius
	Inner  float64 // ring inner radius
	Tilt   float64
}

// Node is one renderable object.
type Node struct {
	Handle     Handle
	Shape      Shape
	Position   mgl64.Vec3
	Rotation   float64 // about the local Y axis
	Scale      float64
	Appearance body.Appearance
}

type bodyNodes struct {
	body, marker, ring Handle
	hasMarker, hasRing bool
	attached           bool
}

// Graph holds the scene nodes. Not safe for concurrent use.
type Graph struct {
	nodes  []Node
	bodies [body.Count]bodyNodes
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// CreateBody adds a node for shape and returns its handle.
func (g *Graph) CreateBody(shape Shape) Handle {
	h := Handle(len(g.nodes))
	g.nodes = append(g.nodes, Node{Handle: h, Shape: shape, Scale: 1})
	return h
}

// Node returns a copy of the node for h.
func (g *Graph) Node(h Handle) (Node, bool) {
	if h < 0 || int(h) >= len(g.nodes) {
		return Node{}, false
	}
	return g.nodes[h], true
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

func (g *Graph) node(h Handle) *Node {
	if h < 0 || int(h) >= len(g.nodes) {
		return nil
	}
	return &g.nodes[h]
}

// SetPosition moves node h. Unknown handles are ignored.
func (g *Graph) SetPosition(h Handle, p mgl64.Vec3) {
	if n := g.node(h); n != nil {
		n.Position = p
	}
}

// SetRotation sets node h's rotation about Y.
func (g *Graph) SetRotation(h Handle, r float64) {
	if n := g.node(h); n != nil {
		n.Rotation = r
	}
}

// SetScale sets node h's uniform scale.
func (g *Graph) SetScale(h Handle, s float64) {
	if n := g.node(h); n != nil {
		n.Scale = s
	}
}

// SetAppearance replaces node h's shading.
func (g *Graph) SetAppearance(h Handle, a body.Appearance) {
	if n := g.node(h); n != nil {
		n.Appearance = a
	}
}

// Attach creates nodes for every registered body that has none yet.
func (g *Graph) Attach(reg *body.Registry) {
	reg.Each(func(b *body.Body) {
		bn := &g.bodies[b.ID]
		if bn.attached {
			return
		}
		bn.attached = true
		bn.body = g.CreateBody(Shape{Kind: NodeBody, Owner: b.ID, Radius: b.Radius})
		if b.Marker != nil {
			bn.marker = g.CreateBody(Shape{Kind: NodeMarker, Owner: b.ID, Radius: body.MarkerRadius})
			bn.hasMarker = true
		}
		if b.Ring != nil {
			bn.ring = g.CreateBody(Shape{Kind: NodeRing, Owner: b.ID, Radius: b.Ring.Outer, Inner: b.Ring.Inner, Tilt: b.Ring.Tilt})
			bn.hasRing = true
		}
	})
}

// BodyHandle returns the body node for id.
func (g *Graph) BodyHandle(id body.ID) (Handle, bool) {
	if !id.Valid() || !g.bodies[id].attached {
		return 0, false
	}
	return g.bodies[id].body, true
}

// MarkerHandle returns the marker node for id.
func (g *Graph) MarkerHandle(id body.ID) (Handle, bool) {
	if !id.Valid() || !g.bodies[id].hasMarker {
		return 0, false
	}
	return g.bodies[id].marker, true
}

// Sync copies the registry's current state onto the nodes.
func (g *Graph) Sync(reg *body.Registry) {
	reg.Each(func(b *body.Body) {
		bn := g.bodies[b.ID]
		if !bn.attached {
			return
		}
		g.SetPosition(bn.body, b.Position)
		g.SetRotation(bn.body, b.RotationAngle)
		g.SetAppearance(bn.body, b.Appearance)

		if bn.hasMarker && b.Marker != nil {
			g.SetPosition(bn.marker, b.MarkerPosition())
			g.SetRotation(bn.marker, b.Marker.SpinAngle)
			g.SetScale(bn.marker, b.Marker.PulseScale)
			g.SetAppearance(bn.marker, body.Appearance{
				Color:             b.Marker.Color(),
				Emissive:          b.Marker.Color(),
				EmissiveIntensity: 0.3,
				Opacity:           1,
			})
		}
		if bn.hasRing && b.Ring != nil {
			g.SetPosition(bn.ring, b.Position)
			g.SetRotation(bn.ring, b.RotationAngle)
			g.SetAppearance(bn.ring, b.Ring.Appearance)
		}
	})
}

// Hit is one intersection of a pick ray with a node.
type Hit struct {
	Handle   Handle
	Kind     NodeKind
	Owner    body.ID
	Distance float64
}

// PickAt casts a ray through ndc from rig and returns every node it strikes,
// nearest first.
func (g *Graph) PickAt(ndc mgl64.Vec2, rig *camera.Rig) ([]Hit, error) {
	ray, err := rig.Ray(ndc)
	if err != nil {
		return nil, fmt.Errorf("pick ray: %w", err)
	}

	var hits []Hit
	for i := range g.nodes {
		n := &g.nodes[i]
		var (
			t  float64
			ok bool
		)
		switch n.Shape.Kind {
		case NodeRing:
			t, ok = intersectAnnulus(ray, n.Position, n.Shape.Inner, n.Shape.Radius)
		default:
			t, ok = intersectSphere(ray, n.Position, n.Shape.Radius*n.Scale)
		}
		if ok {
			hits = append(hits, Hit{Handle: n.Handle, Kind: n.Shape.Kind, Owner: n.Shape.Owner, Distance: t})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	return hits, nil
}

// intersectSphere returns the nearest non-negative ray parameter at which the
// ray meets the sphere.
func intersectSphere(ray camera.Ray, center mgl64.Vec3, radius float64) (float64, bool) {
	oc := ray.Origin.Sub(center)
	b := oc.Dot(ray.Dir)
	c := oc.Dot(oc) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t := -b - sq
	if t < 0 {
		t = -b + sq
	}
	if t < 0 {
		return 0, false
	}
	return t, true
}

// intersectAnnulus tests a flat ring lying in the horizontal plane through
// center. A ring tilted by π/2 about X is horizontal; rotation about Y keeps
// it so.
func intersectAnnulus(ray camera.Ray, center mgl64.Vec3, inner, outer float64) (float64, bool) {
	if math.Abs(ray.Dir.Y()) < 1e-12 {
		return 0, false
	}
	t := (center.Y() - ray.Origin.Y()) / ray.Dir.Y()
	if t < 0 {
		return 0, false
	}
	p := ray.At(t).Sub(center)
	r := math.Hypot(p.X(), p.Z())
	if r < inner || r > outer {
		return 0, false
	}
	return t, true
}
