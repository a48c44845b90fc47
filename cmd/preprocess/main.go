package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/nbgroute/nbgroute/pkg/ch"
	"github.com/nbgroute/nbgroute/pkg/format"
	"github.com/nbgroute/nbgroute/pkg/hybrid"
	"github.com/nbgroute/nbgroute/pkg/nbg"
	osmparser "github.com/nbgroute/nbgroute/pkg/osm"
	"github.com/nbgroute/nbgroute/pkg/ordering"
	"github.com/nbgroute/nbgroute/pkg/profile"
	"github.com/nbgroute/nbgroute/pkg/turn"
)

func main() {
	input := flag.String("input", "", "Path to .osm.pbf file")
	outDir := flag.String("out", ".", "Output directory for the compiled graph artifacts")
	profileName := flag.String("profile", "car", "Travel mode profile: car, bike, or foot")
	bbox := flag.String("bbox", "", "Bounding box filter: minLat,minLng,maxLat,maxLng (e.g. 1.15,103.6,1.48,104.1)")
	singapore := flag.Bool("singapore", false, "Shortcut for --bbox 1.15,103.6,1.48,104.1 (Singapore bounding box)")
	kl := flag.Bool("kl", false, "Shortcut for --bbox 2.75,101.2,3.5,102.0 (Selangor + Kuala Lumpur bounding box)")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Usage: preprocess --input <file.osm.pbf> [--out dir] [--profile car|bike|foot] [--singapore | --kl | --bbox minLat,minLng,maxLat,maxLng]")
		os.Exit(1)
	}

	prof, err := profile.ByName(*profileName)
	if err != nil {
		log.Fatalf("%v", err)
	}

	var bboxFilter osmparser.BBox
	switch {
	case *kl:
		bboxFilter = osmparser.BBox{MinLat: 2.75, MaxLat: 3.5, MinLng: 101.2, MaxLng: 102.0}
		log.Println("Using Selangor + KL bounding box filter: lat [2.75, 3.50], lng [101.20, 102.00]")
	case *singapore:
		bboxFilter = osmparser.BBox{MinLat: 1.15, MaxLat: 1.48, MinLng: 103.6, MaxLng: 104.1}
		log.Println("Using Singapore bounding box filter: lat [1.15, 1.48], lng [103.6, 104.1]")
	case *bbox != "":
		var minLat, minLng, maxLat, maxLng float64
		if _, err := fmt.Sscanf(*bbox, "%f,%f,%f,%f", &minLat, &minLng, &maxLat, &maxLng); err != nil {
			log.Fatalf("Invalid bbox format (expected minLat,minLng,maxLat,maxLng): %v", err)
		}
		bboxFilter = osmparser.BBox{MinLat: minLat, MaxLat: maxLat, MinLng: minLng, MaxLng: maxLng}
		log.Printf("Using bounding box filter: lat [%.4f, %.4f], lng [%.4f, %.4f]", minLat, maxLat, minLng, maxLng)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	overallStart := time.Now()
	now := uint64(overallStart.Unix())

	// Parse the OSM PBF input.
	log.Println("Opening OSM file...")
	f, err := os.Open(*input)
	if err != nil {
		log.Fatalf("Failed to open input file: %v", err)
	}
	defer f.Close()

	log.Println("Parsing OSM data...")
	parseResult, err := osmparser.Parse(context.Background(), f, osmparser.ParseOptions{BBox: bboxFilter, Profile: prof})
	if err != nil {
		log.Fatalf("Failed to parse OSM data: %v", err)
	}
	log.Printf("Parsed %d directed edges, %d nodes, %d turn-restriction relations",
		len(parseResult.Edges), len(parseResult.NodeLat), len(parseResult.Restrictions))

	inputsSHA, err := format.SHA256File(*input)
	if err != nil {
		log.Fatalf("Failed to hash input file: %v", err)
	}

	// Stage 3: build the Node-Based Graph, then restrict to its largest
	// connected component (an unreachable sliver only wastes ordering and
	// contraction work and can never serve a query).
	log.Println("Stage 3: building Node-Based Graph...")
	c := nbg.Build(parseResult)
	log.Printf("NBG: %d nodes, %d logical edges", c.NumNodes, len(c.Attrs))

	componentNodes := nbg.LargestComponent(c)
	if len(componentNodes) < int(c.NumNodes) {
		log.Printf("Largest connected component: %d/%d nodes (%.1f%%)",
			len(componentNodes), c.NumNodes, float64(len(componentNodes))/float64(c.NumNodes)*100)
		c = nbg.FilterToComponent(c, componentNodes)
		log.Printf("Filtered NBG: %d nodes, %d logical edges", c.NumNodes, len(c.Attrs))
	}
	if err := nbg.ValidateSymmetry(c); err != nil {
		log.Fatalf("NBG symmetry check failed: %v", err)
	}
	mustWrite("nbg.csr", nbg.WriteCSR(filepath.Join(*outDir, "nbg.csr"), c, now, inputsSHA))
	mustWrite("nbg.node_map", nbg.WriteNodeMap(filepath.Join(*outDir, "nbg.node_map"), c, now))
	mustWrite("nbg.geo", nbg.WriteGeo(filepath.Join(*outDir, "nbg.geo"), c, now))

	// Stage 4: compile turn restrictions.
	log.Println("Stage 4: compiling turn restrictions...")
	rules, unresolved := turn.Compile(c, parseResult.Restrictions, prof)
	log.Printf("Turn rules: %d resolved, %d unresolved", len(rules), len(unresolved))
	for _, u := range unresolved {
		log.Printf("  skipped: %v", u)
	}
	mustWrite("turn_rules.bin", turn.WriteRules(filepath.Join(*outDir, "turn_rules.bin"), rules, now))

	// Stage 5: lift to the hybrid (node+edge) state graph.
	log.Println("Stage 5: building hybrid state graph...")
	table := turn.NewTable(rules)
	g := hybrid.Build(c, table, prof.Mode().Mask())
	log.Printf("Hybrid graph: %d states, %d arcs", g.NumStates, len(g.Targets))
	mustWrite("ebg.csr", hybrid.WriteCSR(filepath.Join(*outDir, "ebg.csr"), g, c.NumNodes, now))

	// Stages 6/7: nested-dissection node ordering, lifted to state ordering.
	log.Println("Stage 6: computing elimination order...")
	nbgOrder := ordering.OrderNBG(c)
	mustWrite("order.nbg", ordering.WriteNBGOrder(filepath.Join(*outDir, "order.nbg"), nbgOrder, now))
	ebgOrder := ordering.LiftToEBG(g, nbgOrder)
	mustWrite("order.ebg", ordering.WriteEBGOrder(filepath.Join(*outDir, "order.ebg"), ebgOrder, now))

	// Stage 8: contraction.
	log.Println("Stage 8: running Contraction Hierarchies...")
	chg := ch.Contract(g, ebgOrder, ch.DefaultOptions())
	log.Printf("CH complete: %d up arcs, %d down arcs", len(chg.FwdTargets), len(chg.BwdTargets))
	mustWrite("ch.topo", ch.WriteTopo(filepath.Join(*outDir, "ch.topo"), chg, now))
	mustWrite("ch.wts", ch.WriteWeights(filepath.Join(*outDir, "ch.wts"), chg, now))

	elapsed := time.Since(overallStart)
	log.Printf("Done in %s. Artifacts written to %s", elapsed.Round(time.Second), *outDir)
}

func mustWrite(name string, err error) {
	if err != nil {
		log.Fatalf("Failed to write %s: %v", name, err)
	}
}
