package sim

import (
	"testing"

	"github.com/fas-floormap/backend/internal/geom"
	"github.com/fas-floormap/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGraph(t *testing.T) {
	g := DefaultGraph()

	for _, key := range RequiredRoutes() {
		route, ok := g.Route(key.From, key.To)
		require.True(t, ok, key.String())
		from, _ := g.Anchor(key.From)
		to, _ := g.Anchor(key.To)
		assert.Equal(t, from, route[0], key.String())
		assert.Equal(t, to, route[len(route)-1], key.String())
	}
	assert.Len(t, g.Keys(), 4)
}

func TestGraph_ReturnLegsAreIndependent(t *testing.T) {
	g := DefaultGraph()
	out, _ := g.Route(models.StationOutput, models.StationRackA)
	back, _ := g.Route(models.StationRackA, models.StationOutput)
	require.Equal(t, len(out), len(back))

	for i := range out {
		out[i] = geom.Pt(-1, -1)
	}

	again, _ := g.Route(models.StationRackA, models.StationOutput)
	assert.Equal(t, back, again)
	assert.Equal(t, geom.Pt(250, 155), again[0])
	assert.Equal(t, geom.Pt(1010, 760), again[len(again)-1])
}

func TestGraph_RouteReturnsCopy(t *testing.T) {
	g := DefaultGraph()
	r, _ := g.Route(models.StationOutput, models.StationRackB)
	r[1] = geom.Pt(0, 0)

	again, _ := g.Route(models.StationOutput, models.StationRackB)
	assert.Equal(t, geom.Pt(1010, 570), again[1])

	_, ok := g.Route(models.StationRackA, models.StationRackB)
	assert.False(t, ok)
}

func TestNewGraph_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(a map[models.StationID]geom.Point, r map[RouteKey][]geom.Point)
		wantErr error
	}{
		{
			name: "missing anchor",
			mutate: func(a map[models.StationID]geom.Point, _ map[RouteKey][]geom.Point) {
				delete(a, models.StationRackB)
			},
			wantErr: ErrMissingAnchor,
		},
		{
			name: "missing return leg",
			mutate: func(_ map[models.StationID]geom.Point, r map[RouteKey][]geom.Point) {
				delete(r, RouteKey{From: models.StationRackA, To: models.StationOutput})
			},
			wantErr: ErrMissingRoute,
		},
		{
			name: "empty route",
			mutate: func(_ map[models.StationID]geom.Point, r map[RouteKey][]geom.Point) {
				r[RouteKey{From: models.StationOutput, To: models.StationRackA}] = nil
			},
			wantErr: ErrBadRoute,
		},
		{
			name: "route misses destination",
			mutate: func(_ map[models.StationID]geom.Point, r map[RouteKey][]geom.Point) {
				r[RouteKey{From: models.StationOutput, To: models.StationRackA}] = []geom.Point{geom.Pt(1010, 760), geom.Pt(0, 0)}
			},
			wantErr: ErrBadRoute,
		},
		{
			name: "unknown station",
			mutate: func(_ map[models.StationID]geom.Point, r map[RouteKey][]geom.Point) {
				r[RouteKey{From: models.StationOutput, To: "Dock"}] = []geom.Point{geom.Pt(0, 0)}
			},
			wantErr: ErrBadRoute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, r := DefaultAnchors(), DefaultRoutes()
			tt.mutate(a, r)
			_, err := NewGraph(a, r)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
