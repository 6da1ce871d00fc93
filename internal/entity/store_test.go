package entity

import (
	"math"
	"testing"
	"time"

	"github.com/fas-floormap/backend/internal/geom"
	"github.com/fas-floormap/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func device(id string, x, y float64) models.MapEntity {
	e := models.NewMapEntity(id, models.KindDevice, time.Time{})
	e.X, e.Y = x, y
	return e
}

func TestStore_AddIgnoresDuplicatesAndBlankIDs(t *testing.T) {
	s := NewStore()

	first := device("A", 1, 1)
	first.DisplayName = "first"
	second := device("A", 5, 5)
	second.DisplayName = "second"

	assert.True(t, s.Add(first))
	assert.False(t, s.Add(second))
	assert.False(t, s.Add(device("  ", 0, 0)))
	assert.Equal(t, 1, s.Len())

	got, ok := s.Get("A")
	require.True(t, ok)
	assert.Equal(t, "first", got.DisplayName)
	assert.Equal(t, 1.0, got.X)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := NewStore()
	p := models.NewMapEntity("P1", models.KindPath, time.Time{})
	p.Points = []geom.Point{geom.Pt(0, 0), geom.Pt(10, 0)}
	require.True(t, s.Add(p))

	got, _ := s.Get("P1")
	got.X = 999
	got.Points[0] = geom.Pt(-1, -1)

	again, _ := s.Get("P1")
	assert.Equal(t, 0.0, again.X)
	assert.Equal(t, geom.Pt(0, 0), again.Points[0])
}

func TestStore_ListSortedByZIndexThenInsertion(t *testing.T) {
	s := NewStore()
	zone := models.NewMapEntity("zone", models.KindLayoutZone, time.Time{})
	block := models.NewMapEntity("block", models.KindConveyorBlock, time.Time{})
	path := models.NewMapEntity("path", models.KindPath, time.Time{})

	s.Add(block)
	s.Add(device("d2", 0, 0))
	s.Add(path)
	s.Add(zone)
	s.Add(device("d1", 0, 0))

	var ids []string
	for _, e := range s.List() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"d2", "d1", "zone", "path", "block"}, ids)
}

func TestStore_MutationsStampLastUpdated(t *testing.T) {
	now, advance := fixedClock(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	s := NewStoreWithClock(now)
	s.Add(device("C1", 0, 0))

	created, _ := s.Get("C1")
	assert.Equal(t, now(), created.LastUpdated)

	tests := []struct {
		name   string
		mutate func() bool
		check  func(t *testing.T, e models.MapEntity)
	}{
		{
			name:   "move",
			mutate: func() bool { return s.Move("C1", 40, 60) },
			check: func(t *testing.T, e models.MapEntity) {
				assert.Equal(t, 40.0, e.X)
				assert.Equal(t, 60.0, e.Y)
			},
		},
		{
			name:   "status",
			mutate: func() bool { return s.SetStatus("C1", models.StatusFault) },
			check: func(t *testing.T, e models.MapEntity) {
				assert.Equal(t, models.StatusFault, e.Status)
			},
		},
		{
			name:   "has item",
			mutate: func() bool { return s.SetHasItem("C1", true) },
			check: func(t *testing.T, e models.MapEntity) {
				assert.True(t, e.HasItem)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			advance(time.Second)
			require.True(t, tt.mutate())
			e, _ := s.Get("C1")
			tt.check(t, e)
			assert.Equal(t, now(), e.LastUpdated)
		})
	}
}

func TestStore_RejectsInvalidMutations(t *testing.T) {
	s := NewStore()
	s.Add(device("C1", 3, 4))

	assert.False(t, s.Move("missing", 1, 1))
	assert.False(t, s.SetStatus("missing", models.StatusIdle))
	assert.False(t, s.SetHasItem("missing", true))
	assert.False(t, s.SetStatus("C1", models.EntityStatus("Exploded")))

	assert.False(t, s.Move("C1", math.NaN(), 1))

	e, _ := s.Get("C1")
	assert.Equal(t, 3.0, e.X)
	assert.Equal(t, 4.0, e.Y)
}

func TestStore_Replace(t *testing.T) {
	s := NewStore()
	s.Add(device("old", 0, 0))

	n := s.Replace([]models.MapEntity{device("a", 0, 0), device("b", 0, 0), device("a", 1, 1)})
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("old")
	assert.False(t, ok)
}

func TestStore_HitTest(t *testing.T) {
	s := NewStore()
	zone := models.NewMapEntity("zone", models.KindLayoutZone, time.Time{})
	s.Add(zone)
	s.Add(device("low", 10, 10))
	top := device("top", 15, 15)
	top.ZIndex = 10
	s.Add(top)

	got, ok := s.HitTest(geom.Pt(18, 18), false)
	require.True(t, ok)
	assert.Equal(t, "top", got.ID)

	got, ok = s.HitTest(geom.Pt(12, 12), true)
	require.True(t, ok)
	assert.Equal(t, "low", got.ID)

	got, ok = s.HitTest(geom.Pt(200, 100), false)
	require.True(t, ok)
	assert.Equal(t, "zone", got.ID)

	_, ok = s.HitTest(geom.Pt(200, 100), true)
	assert.False(t, ok)
}

func TestStore_Extent(t *testing.T) {
	s := NewStore()
	_, _, ok := s.Extent()
	assert.False(t, ok)

	s.Add(device("a", 10, 20))
	p := models.NewMapEntity("p", models.KindPath, time.Time{})
	p.Points = []geom.Point{geom.Pt(500, 5), geom.Pt(100, 300)}
	s.Add(p)

	min, max, ok := s.Extent()
	require.True(t, ok)
	assert.Equal(t, geom.Pt(0, 0), min)
	assert.Equal(t, geom.Pt(500, 300), max)
}
