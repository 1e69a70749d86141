package scene

import (
	"github.com/star/orrery/internal/body"
)

// NodeFrame is the wire form of a node for one frame.
type NodeFrame struct {
	Handle     Handle          `json:"h"`
	Kind       string          `json:"kind"`
	Owner      body.ID         `json:"owner"`
	Radius     float64         `json:"r"`
	Inner      float64         `json:"inner,omitempty"`
	Tilt       float64         `json:"tilt,omitempty"`
	Position   [3]float64      `json:"p"`
	Rotation   float64         `json:"rot"`
	Scale      float64         `json:"s"`
	Appearance body.Appearance `json:"look"`
}

// Snapshot copies every node into a slice that is safe to hand to other
// goroutines.
func (g *Graph) Snapshot() []NodeFrame {
	out := make([]NodeFrame, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = NodeFrame{
			Handle:     n.Handle,
			Kind:       n.Shape.Kind.String(),
			Owner:      n.Shape.Owner,
			Radius:     n.Shape.Radius,
			Inner:      n.Shape.Inner,
			Tilt:       n.Shape.Tilt,
			Position:   [3]float64(n.Position),
			Rotation:   n.Rotation,
			Scale:      n.Scale,
			Appearance: n.Appearance,
		}
	}
	return out
}
