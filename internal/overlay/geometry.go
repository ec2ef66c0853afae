package overlay

import (
	"math"

	"github.com/park285/chess-analyzer/internal/board"
)

const (
	// HeadLength is the distance from the arrow tip to its base corners, in pixels.
	HeadLength = 20.0
	// headAngle is the half-angle between the shaft and each head edge.
	headAngle = math.Pi / 6
)

type Point struct {
	X, Y float64
}

// ArrowGeometry is the drawable form of an arrow. Head[0] is the tip.
type ArrowGeometry struct {
	ShaftStart Point
	ShaftEnd   Point
	Head       [3]Point
}

func (g ArrowGeometry) ShaftLength() float64 {
	return math.Hypot(g.ShaftEnd.X-g.ShaftStart.X, g.ShaftEnd.Y-g.ShaftStart.Y)
}

// ComputeArrow lays out an arrow between two square centres on a board of
// edge boardSize. The shaft stops HeadLength short of the target centre and
// the head is a triangle with its tip on that centre. from == to yields a
// degenerate arrow; callers reject that case.
func ComputeArrow(from, to board.Square, boardSize float64) ArrowGeometry {
	fx, fy := board.PixelCenter(from, boardSize)
	tx, ty := board.PixelCenter(to, boardSize)
	angle := math.Atan2(ty-fy, tx-fx)

	return ArrowGeometry{
		ShaftStart: Point{X: fx, Y: fy},
		ShaftEnd: Point{
			X: tx - HeadLength*math.Cos(angle),
			Y: ty - HeadLength*math.Sin(angle),
		},
		Head: [3]Point{
			{X: tx, Y: ty},
			{X: tx - HeadLength*math.Cos(angle-headAngle), Y: ty - HeadLength*math.Sin(angle-headAngle)},
			{X: tx - HeadLength*math.Cos(angle+headAngle), Y: ty - HeadLength*math.Sin(angle+headAngle)},
		},
	}
}
