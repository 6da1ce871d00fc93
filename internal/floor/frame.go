package floor

import (
	"math"
	"time"

	"github.com/fas-floormap/backend/internal/models"
)

// View-sync geometry, in world units.
const (
	CartMarkerSize = 70.0
	LoadDotOffset  = 22.0

	DotSize       = 26.0
	DotGap        = 8.0
	DotPadLeft    = 18.0
	DotPadTop     = 56.0 // leaves room for the station caption
	DotPadBottom  = 14.0
	MaxDotsPerBox = 30
)

// Rect is an axis-aligned world rectangle.
type Rect struct {
	X, Y, W, H float64
}

// StockAreas are the boxes product dots are stacked in, one per station.
var StockAreas = map[models.StationID]Rect{
	models.StationRackA:  {X: 90, Y: 90, W: 320, H: 130},
	models.StationRackB:  {X: 520, Y: 90, W: 320, H: 130},
	models.StationOutput: {X: 820, Y: 650, W: 380, H: 190},
}

// DotCapacity returns how many dots fit in area, never more than MaxDotsPerBox.
func DotCapacity(area Rect) (cols, rows, max int) {
	usableW := math.Max(0, area.W-DotPadLeft*2)
	usableH := math.Max(0, area.H-DotPadTop-DotPadBottom)

	cols = int(math.Max(1, math.Floor((usableW+DotGap)/(DotSize+DotGap))))
	rows = int(math.Max(1, math.Floor((usableH+DotGap)/(DotSize+DotGap))))
	max = cols * rows
	if max > MaxDotsPerBox {
		max = MaxDotsPerBox
	}
	return cols, rows, max
}

// LayoutDots places one dot per unit of stock, row by row, up to capacity.
func LayoutDots(station models.StationID, area Rect, stock int) []models.ProductDot {
	cols, _, max := DotCapacity(area)
	count := stock
	if count > max {
		count = max
	}
	if count <= 0 {
		return nil
	}

	startX := area.X + DotPadLeft
	startY := area.Y + DotPadTop
	dots := make([]models.ProductDot, 0, count)
	for i := 0; i < count; i++ {
		col := i % cols
		row := i / cols
		dots = append(dots, models.ProductDot{
			X:       startX + float64(col)*(DotSize+DotGap),
			Y:       startY + float64(row)*(DotSize+DotGap),
			Station: station,
		})
	}
	return dots
}

// BuildFrame derives the render state for a simulation snapshot: a centred
// marker per cart, stacked stock dots per station and a dot on each loaded cart.
func BuildFrame(st models.SimState, seq int64, ts time.Time) models.Frame {
	f := models.Frame{
		Seq:       seq,
		Timestamp: ts,
		Running:   st.Running,
		Carts:     make([]models.CartMarker, 0, len(st.Carts)),
		Stock:     make(map[models.StationID]int, len(st.Stations)),
	}

	for _, station := range st.Stations {
		f.Stock[station.ID] = station.Stock
	}
	for _, id := range []models.StationID{models.StationRackA, models.StationRackB, models.StationOutput} {
		area, ok := StockAreas[id]
		if !ok {
			continue
		}
		f.Dots = append(f.Dots, LayoutDots(id, area, f.Stock[id])...)
	}

	half := CartMarkerSize / 2
	for _, c := range st.Carts {
		m := models.CartMarker{
			Index:   c.Index,
			X:       c.Position.X - half,
			Y:       c.Position.Y - half,
			Size:    CartMarkerSize,
			HasLoad: c.HasLoad,
			State:   c.State,
			Center:  c.Position,
		}
		f.Carts = append(f.Carts, m)
		if c.HasLoad {
			f.Dots = append(f.Dots, models.ProductDot{X: m.X + LoadDotOffset, Y: m.Y + LoadDotOffset})
		}
	}
	if f.Dots == nil {
		f.Dots = []models.ProductDot{}
	}
	return f
}
