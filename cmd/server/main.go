package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/nbgroute/nbgroute/pkg/api"
	"github.com/nbgroute/nbgroute/pkg/ch"
	"github.com/nbgroute/nbgroute/pkg/hybrid"
	"github.com/nbgroute/nbgroute/pkg/nbg"
	"github.com/nbgroute/nbgroute/pkg/query"
)

func main() {
	dataDir := flag.String("data", ".", "Directory holding the preprocessed graph artifacts (nbg.csr, ebg.csr, ch.topo, ch.wts)")
	port := flag.Int("port", 8080, "HTTP port")
	corsOrigin := flag.String("cors-origin", "", "CORS allowed origin (empty = same-origin)")
	flag.Parse()

	start := time.Now()

	log.Printf("Loading graph artifacts from %s...", *dataDir)
	c, err := nbg.ReadCSR(filepath.Join(*dataDir, "nbg.csr"))
	if err != nil {
		log.Fatalf("Failed to load nbg.csr: %v", err)
	}
	g, numNBGNodes, err := hybrid.ReadCSR(filepath.Join(*dataDir, "ebg.csr"))
	if err != nil {
		log.Fatalf("Failed to load ebg.csr: %v", err)
	}
	if numNBGNodes != c.NumNodes {
		log.Fatalf("ebg.csr/nbg.csr mismatch: %d NBG nodes vs %d", numNBGNodes, c.NumNodes)
	}
	chg, err := ch.ReadCH(filepath.Join(*dataDir, "ch.topo"), filepath.Join(*dataDir, "ch.wts"))
	if err != nil {
		log.Fatalf("Failed to load CH overlay: %v", err)
	}
	log.Printf("Loaded: %d NBG nodes, %d hybrid states, %d CH up-arcs, %d CH down-arcs",
		c.NumNodes, chg.NumStates, len(chg.FwdTargets), len(chg.BwdTargets))

	// Build the query engine (R-tree snap index + many-to-many runtime).
	log.Println("Building spatial index...")
	engine := query.NewEngine(chg, g, c)
	matrix := query.NewMatrix(chg)

	// Reclaim memory from init-time temporaries. Without this, Go's heap
	// retains peak RSS from index construction (GC doubles heap each cycle:
	// 120→240→480→960→1920 MB). This returns unused pages to the OS.
	runtime.GC()
	debug.FreeOSMemory()

	loadTime := time.Since(start)
	log.Printf("Ready in %s", loadTime.Round(time.Millisecond))

	// Setup HTTP server.
	addr := fmt.Sprintf(":%d", *port)
	cfg := api.DefaultConfig(addr)
	cfg.CORSOrigin = *corsOrigin

	stats := api.StatsResponse{
		NumStates:  chg.NumStates,
		NumFwdArcs: len(chg.FwdTargets),
		NumBwdArcs: len(chg.BwdTargets),
	}

	handlers := api.NewHandlers(engine, matrix, stats)
	srv := api.NewServer(cfg, handlers)

	if err := api.ListenAndServe(srv); err != nil {
		log.Printf("Server stopped: %v", err)
		os.Exit(1)
	}
}
