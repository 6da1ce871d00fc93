package parser

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fas-floormap/backend/internal/geom"
	"github.com/fas-floormap/backend/internal/models"
	"github.com/fas-floormap/backend/internal/sim"
	"gopkg.in/yaml.v3"
)

// RoutesFile is the YAML layout of a station/route definition:
//
//	anchors:
//	  Output: "1010,760"
//	routes:
//	  - from: Output
//	    to: RackA
//	    points: "1010,760 1010,570 470,570"
type RoutesFile struct {
	Anchors map[string]string `yaml:"anchors"`
	Routes  []RouteEntry      `yaml:"routes"`
}

// RouteEntry is one directional route in a RoutesFile.
type RouteEntry struct {
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	Points string `yaml:"points"`
}

// ParseRoutes parses a YAML routes file into a validated graph.
func ParseRoutes(filePath string) (*sim.Graph, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseRoutesFromReader(file)
}

// ParseRoutesFromReader parses routes from an io.Reader. Anchors missing from
// the file keep their built-in positions; every route must be listed.
func ParseRoutesFromReader(r io.Reader) (*sim.Graph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var doc RoutesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse routes yaml: %w", err)
	}

	anchors := sim.DefaultAnchors()
	for name, raw := range doc.Anchors {
		id, ok := models.ParseStationID(name)
		if !ok {
			return nil, fmt.Errorf("unknown station %q", name)
		}
		pts := ParsePoints(raw)
		if len(pts) != 1 {
			return nil, fmt.Errorf("anchor %s: expected one \"x,y\" point, got %q", name, raw)
		}
		anchors[id] = pts[0]
	}

	routes := make(map[sim.RouteKey][]geom.Point, len(doc.Routes))
	for i, entry := range doc.Routes {
		from, ok := models.ParseStationID(entry.From)
		if !ok {
			return nil, fmt.Errorf("route %d: unknown origin %q", i, entry.From)
		}
		to, ok := models.ParseStationID(entry.To)
		if !ok {
			return nil, fmt.Errorf("route %d: unknown destination %q", i, entry.To)
		}
		key := sim.RouteKey{From: from, To: to}
		if _, dup := routes[key]; dup {
			return nil, fmt.Errorf("route %d: duplicate route %s", i, key)
		}
		routes[key] = ParsePoints(entry.Points)
	}

	return sim.NewGraph(anchors, routes)
}

// LoadRoutes reads the routes file, falling back to the built-in graph when
// the path is empty or the file is missing or invalid.
func LoadRoutes(filePath string) *sim.Graph {
	if filePath == "" {
		return sim.DefaultGraph()
	}
	g, err := ParseRoutes(filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Printf("[Routes] Invalid routes file %s: %v, using built-in routes\n", filePath, err)
		}
		return sim.DefaultGraph()
	}
	fmt.Printf("[Routes] Loaded %d routes from %s\n", len(g.Keys()), filePath)
	return g
}

// MarshalRoutes encodes a graph in the RoutesFile format.
func MarshalRoutes(g *sim.Graph) ([]byte, error) {
	doc := RoutesFile{Anchors: make(map[string]string)}
	ids := []models.StationID{models.StationOutput, models.StationRackA, models.StationRackB}
	for _, id := range ids {
		if p, ok := g.Anchor(id); ok {
			doc.Anchors[string(id)] = FormatPoints([]geom.Point{p})
		}
	}
	keys := g.Keys()
	sort.SliceStable(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	for _, k := range keys {
		pts, _ := g.Route(k.From, k.To)
		doc.Routes = append(doc.Routes, RouteEntry{From: string(k.From), To: string(k.To), Points: FormatPoints(pts)})
	}
	return yaml.Marshal(doc)
}
