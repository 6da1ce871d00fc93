package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fas-floormap/backend/internal/geom"
	"github.com/fas-floormap/backend/internal/models"
	"github.com/fas-floormap/backend/internal/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const routesYAML = `
anchors:
  Output: "1000,800"
routes:
  - from: Output
    to: RackA
    points: "1000,800 1000,500 250,500 250,155"
  - from: output
    to: rackb
    points: "1000,800 650,800 650,155"
  - from: RackA
    to: Output
    points: "250,155 250,300 1000,300 1000,800"
  - from: RackB
    to: Output
    points: "650,155 900,155 1000,800"
`

func TestParseRoutesFromReader(t *testing.T) {
	g, err := ParseRoutesFromReader(strings.NewReader(routesYAML))
	require.NoError(t, err)

	out, _ := g.Anchor(models.StationOutput)
	assert.Equal(t, geom.Pt(1000, 800), out)
	rackA, _ := g.Anchor(models.StationRackA)
	assert.Equal(t, geom.Pt(250, 155), rackA, "unlisted anchors keep built-in positions")

	r, ok := g.Route(models.StationOutput, models.StationRackB)
	require.True(t, ok)
	assert.Equal(t, []geom.Point{geom.Pt(1000, 800), geom.Pt(650, 800), geom.Pt(650, 155)}, r)
}

func TestParseRoutesFromReader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "anchors: [unclosed"},
		{"unknown anchor", "anchors:\n  Dock: \"1,1\"\n"},
		{"bad anchor point", "anchors:\n  Output: \"nope\"\n"},
		{"unknown origin", "routes:\n  - from: Dock\n    to: RackA\n    points: \"0,0\"\n"},
		{"missing routes", "routes: []\n"},
		{"duplicate", routesYAML + "  - from: RackB\n    to: Output\n    points: \"650,155 1000,800\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRoutesFromReader(strings.NewReader(tt.content))
			assert.Error(t, err)
		})
	}
}

func TestMarshalRoutes_RoundTrip(t *testing.T) {
	data, err := MarshalRoutes(sim.DefaultGraph())
	require.NoError(t, err)

	g, err := ParseRoutesFromReader(strings.NewReader(string(data)))
	require.NoError(t, err)

	def := sim.DefaultGraph()
	for _, k := range sim.RequiredRoutes() {
		want, _ := def.Route(k.From, k.To)
		got, _ := g.Route(k.From, k.To)
		assert.Equal(t, want, got, k.String())
	}
}

func TestLoadRoutes(t *testing.T) {
	dir := t.TempDir()

	g := LoadRoutes("")
	assert.Len(t, g.Keys(), 4)

	g = LoadRoutes(filepath.Join(dir, "missing.yaml"))
	assert.Len(t, g.Keys(), 4)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("routes: []\n"), 0644))
	g = LoadRoutes(bad)
	r, _ := g.Route(models.StationOutput, models.StationRackA)
	assert.Equal(t, geom.Pt(1010, 760), r[0])

	good := filepath.Join(dir, "routes.yaml")
	require.NoError(t, os.WriteFile(good, []byte(routesYAML), 0644))
	g = LoadRoutes(good)
	anchor, _ := g.Anchor(models.StationOutput)
	assert.Equal(t, geom.Pt(1000, 800), anchor)
}
