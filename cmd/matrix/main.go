package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nbgroute/nbgroute/pkg/ch"
	"github.com/nbgroute/nbgroute/pkg/hybrid"
	"github.com/nbgroute/nbgroute/pkg/nbg"
	"github.com/nbgroute/nbgroute/pkg/query"
)

func main() {
	dataDir := flag.String("data", ".", "Directory holding the preprocessed graph artifacts (nbg.csr, ebg.csr, ch.topo, ch.wts)")
	sourcesPath := flag.String("sources", "", "CSV file of source points, one 'lat,lng' per line")
	targetsPath := flag.String("targets", "", "CSV file of target points, one 'lat,lng' per line")
	maxWorkers := flag.Int("max-workers", 8, "Worker pool size for the forward/backward bucket phases")
	flag.Parse()

	if *sourcesPath == "" || *targetsPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: matrix --data <dir> --sources sources.csv --targets targets.csv")
		os.Exit(1)
	}

	log.Printf("Loading graph artifacts from %s...", *dataDir)
	c, err := nbg.ReadCSR(filepath.Join(*dataDir, "nbg.csr"))
	if err != nil {
		log.Fatalf("Failed to load nbg.csr: %v", err)
	}
	g, _, err := hybrid.ReadCSR(filepath.Join(*dataDir, "ebg.csr"))
	if err != nil {
		log.Fatalf("Failed to load ebg.csr: %v", err)
	}
	chg, err := ch.ReadCH(filepath.Join(*dataDir, "ch.topo"), filepath.Join(*dataDir, "ch.wts"))
	if err != nil {
		log.Fatalf("Failed to load CH overlay: %v", err)
	}

	engine := query.NewEngine(chg, g, c)
	m := query.NewMatrix(chg)

	sources, err := readPoints(*sourcesPath)
	if err != nil {
		log.Fatalf("Failed to read sources: %v", err)
	}
	targets, err := readPoints(*targetsPath)
	if err != nil {
		log.Fatalf("Failed to read targets: %v", err)
	}

	sourceStates := make([]uint32, len(sources))
	for i, ll := range sources {
		s, err := engine.SnapToState(ll)
		if err != nil {
			log.Fatalf("Failed to snap source %d (%.6f,%.6f): %v", i, ll.Lat, ll.Lon, err)
		}
		sourceStates[i] = s
	}
	targetStates := make([]uint32, len(targets))
	for i, ll := range targets {
		s, err := engine.SnapToState(ll)
		if err != nil {
			log.Fatalf("Failed to snap target %d (%.6f,%.6f): %v", i, ll.Lat, ll.Lon, err)
		}
		targetStates[i] = s
	}

	log.Printf("Computing %d x %d matrix with %d workers...", len(sourceStates), len(targetStates), *maxWorkers)
	rows, err := m.Compute(context.Background(), sourceStates, targetStates, *maxWorkers)
	if err != nil {
		log.Fatalf("Matrix compute failed: %v", err)
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()
	for _, row := range rows {
		rec := make([]string, len(row))
		for j, d := range row {
			if d == math.MaxUint32 {
				rec[j] = ""
			} else {
				rec[j] = strconv.FormatUint(uint64(d), 10)
			}
		}
		if err := w.Write(rec); err != nil {
			log.Fatalf("Failed to write output: %v", err)
		}
	}
}

// readPoints parses a CSV file of "lat,lng" rows, skipping blank lines.
func readPoints(path string) ([]query.LatLng, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2
	var points []query.LatLng
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude %q: %w", rec[0], err)
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude %q: %w", rec[1], err)
		}
		points = append(points, query.LatLng{Lat: lat, Lon: lng})
	}
	return points, nil
}
