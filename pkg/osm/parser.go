// Package osm is the ambient OSM PBF ingestion collaborator: it decodes a
// .osm.pbf file into way/node/relation data the core pipeline consumes. It
// is a thin generalization of the teacher's pkg/osm/parser.go — the same
// two-pass scan (ways, then referenced node coordinates), now parametrized
// over a profile.Profile instead of hardcoding car accessibility, with the
// first pass also collecting turn-restriction relations for pkg/turn.
package osm

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"

	"github.com/nbgroute/nbgroute/pkg/geo"
	"github.com/nbgroute/nbgroute/pkg/profile"
)

// RawEdge represents a directed edge parsed from OSM data, weighted and
// classified per the active profile.
type RawEdge struct {
	FromNodeID   osm.NodeID
	ToNodeID     osm.NodeID
	WayID        osm.WayID
	Weight       uint32 // travel-time in milliseconds, per the active profile's speed
	LengthMM     uint32 // physical length in millimeters
	HighwayClass uint8
	ShapeLats    []float64
	ShapeLons    []float64
}

// RestrictionMember identifies one member (way or node) of a restriction
// relation by OSM ID and role, left unresolved until pkg/turn maps it onto
// compiled edge indices.
type RestrictionMember struct {
	Role   string // "from", "via", "to"
	WayID  osm.WayID
	NodeID osm.NodeID
	IsWay  bool
}

// Restriction is a raw, unresolved turn-restriction relation.
type Restriction struct {
	RelationID int64
	Tags       osm.Tags
	Members    []RestrictionMember
}

// ParseResult holds the output of parsing an OSM PBF file.
type ParseResult struct {
	Edges        []RawEdge
	NodeLat      map[osm.NodeID]float64
	NodeLon      map[osm.NodeID]float64
	Restrictions []Restriction
}

// BBox defines a geographic bounding box for filtering. If non-zero, only
// edges with both endpoints inside the box are kept.
type BBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

func (b BBox) IsZero() bool {
	return b.MinLat == 0 && b.MaxLat == 0 && b.MinLng == 0 && b.MaxLng == 0
}

func (b BBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// ParseOptions configures the OSM parser.
type ParseOptions struct {
	BBox BBox
	// Profile selects which ways are routable and in which direction(s).
	// Required; callers should pass the same profile used for the rest of
	// the build.
	Profile profile.Profile
}

type wayInfo struct {
	WayID    osm.WayID
	NodeIDs  []osm.NodeID
	Forward  bool
	Backward bool
	SpeedMMS uint32
	Class    uint8
}

// Parse reads an OSM PBF file and returns directed edges plus unresolved
// turn-restriction relations, classified by opts.Profile. rs is read twice
// (ways, then node coordinates) so it must support seeking.
func Parse(ctx context.Context, rs io.ReadSeeker, opts ParseOptions) (*ParseResult, error) {
	if opts.Profile == nil {
		return nil, fmt.Errorf("osm.Parse: Profile is required")
	}
	useBBox := !opts.BBox.IsZero()

	referencedNodes := make(map[osm.NodeID]struct{})
	var ways []wayInfo
	var restrictions []Restriction

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true

	for scanner.Scan() {
		switch obj := scanner.Object().(type) {
		case *osm.Way:
			wc := opts.Profile.ProcessWay(obj.Tags)
			if !wc.Routable || len(obj.Nodes) < 2 {
				continue
			}
			nodeIDs := make([]osm.NodeID, len(obj.Nodes))
			for i, wn := range obj.Nodes {
				nodeIDs[i] = wn.ID
				referencedNodes[wn.ID] = struct{}{}
			}
			ways = append(ways, wayInfo{
				WayID: obj.ID, NodeIDs: nodeIDs,
				Forward: wc.Forward, Backward: wc.Backward,
				SpeedMMS: wc.SpeedMMPerSec, Class: wc.HighwayClass,
			})

		case *osm.Relation:
			if obj.Tags.Find("type") != "restriction" {
				continue
			}
			restrictionTag := obj.Tags.Find("restriction")
			hasModal := false
			for _, t := range obj.Tags {
				if len(t.Key) > len("restriction:") && t.Key[:len("restriction:")] == "restriction:" {
					hasModal = true
				}
			}
			if restrictionTag == "" && !hasModal {
				continue
			}
			r := Restriction{RelationID: int64(obj.ID), Tags: obj.Tags}
			for _, m := range obj.Members {
				switch m.Type {
				case osm.TypeWay:
					r.Members = append(r.Members, RestrictionMember{Role: m.Role, WayID: osm.WayID(m.Ref), IsWay: true})
				case osm.TypeNode:
					r.Members = append(r.Members, RestrictionMember{Role: m.Role, NodeID: osm.NodeID(m.Ref), IsWay: false})
				}
			}
			restrictions = append(restrictions, r)
		}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 1 (ways/relations): %w", err)
	}
	scanner.Close()

	log.Printf("Pass 1 complete: %d routable ways, %d referenced nodes, %d restriction relations",
		len(ways), len(referencedNodes), len(restrictions))

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek for pass 2: %w", err)
	}

	nodeLat := make(map[osm.NodeID]float64, len(referencedNodes))
	nodeLon := make(map[osm.NodeID]float64, len(referencedNodes))

	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := referencedNodes[n.ID]; !needed {
			continue
		}
		nodeLat[n.ID] = n.Lat
		nodeLon[n.ID] = n.Lon
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 2 (nodes): %w", err)
	}
	scanner.Close()

	log.Printf("Pass 2 complete: %d node coordinates collected", len(nodeLat))

	var edges []RawEdge
	var skippedEdges, bboxFiltered int

	for _, w := range ways {
		for i := 0; i < len(w.NodeIDs)-1; i++ {
			fromID, toID := w.NodeIDs[i], w.NodeIDs[i+1]

			fromLat, fromOk := nodeLat[fromID]
			fromLon := nodeLon[fromID]
			toLat, toOk := nodeLat[toID]
			toLon := nodeLon[toID]

			if !fromOk || !toOk {
				skippedEdges++
				continue
			}
			if useBBox && (!opts.BBox.Contains(fromLat, fromLon) || !opts.BBox.Contains(toLat, toLon)) {
				bboxFiltered++
				continue
			}

			distM := geo.Haversine(fromLat, fromLon, toLat, toLon)
			lengthMM := uint32(math.Round(distM * 1000))
			if lengthMM == 0 {
				lengthMM = 1
			}
			speed := w.SpeedMMS
			if speed == 0 {
				speed = 1
			}
			weight := uint32(math.Round(float64(lengthMM) / float64(speed)))
			if weight == 0 {
				weight = 1
			}

			if w.Forward {
				edges = append(edges, RawEdge{FromNodeID: fromID, ToNodeID: toID, WayID: w.WayID, Weight: weight, LengthMM: lengthMM, HighwayClass: w.Class})
			}
			if w.Backward {
				edges = append(edges, RawEdge{FromNodeID: toID, ToNodeID: fromID, WayID: w.WayID, Weight: weight, LengthMM: lengthMM, HighwayClass: w.Class})
			}
		}
	}

	if skippedEdges > 0 {
		log.Printf("Warning: skipped %d edges due to missing node coordinates", skippedEdges)
	}
	if bboxFiltered > 0 {
		log.Printf("Filtered %d edges outside bounding box", bboxFiltered)
	}
	log.Printf("Built %d directed edges", len(edges))

	return &ParseResult{
		Edges:        edges,
		NodeLat:      nodeLat,
		NodeLon:      nodeLon,
		Restrictions: restrictions,
	}, nil
}
