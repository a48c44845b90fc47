package api

import (
	"context"
	"errors"
	"math"
	"mime"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/nbgroute/nbgroute/pkg/query"
)

// maxMatrixPoints bounds the size of a single matrix request: an M×N
// response with both dimensions uncapped could otherwise be driven
// arbitrarily large by a single caller.
const maxMatrixPoints = 1000

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	engine *query.Engine
	matrix *query.Matrix
	stats  StatsResponse
}

// NewHandlers creates handlers with the given query engine and matrix
// runtime, both built from the same contracted overlay.
func NewHandlers(engine *query.Engine, matrix *query.Matrix, stats StatsResponse) *Handlers {
	return &Handlers{
		engine: engine,
		matrix: matrix,
		stats:  stats,
	}
}

// HandleRoute handles POST /api/v1/route.
func (h *Handlers) HandleRoute(w http.ResponseWriter, r *http.Request) {
	// Enforce Content-Type.
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	// Parse request.
	var req RouteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	// Validate coordinates.
	if err := validateCoord(req.Start); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "start")
		return
	}
	if err := validateCoord(req.End); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "end")
		return
	}

	// Route.
	result, err := h.engine.Route(r.Context(),
		query.LatLng{Lat: req.Start.Lat, Lon: req.Start.Lng},
		query.LatLng{Lat: req.End.Lat, Lon: req.End.Lng})
	if err != nil {
		writeRouteError(w, err)
		return
	}

	// Build response.
	resp := RouteResponse{TotalDistanceMillis: result.TotalDistanceMillis}
	for _, seg := range result.Segments {
		geom := make([]LatLngJSON, len(seg.Geometry))
		for i, ll := range seg.Geometry {
			geom[i] = LatLngJSON{Lat: ll.Lat, Lng: ll.Lon}
		}
		resp.Segments = append(resp.Segments, SegmentJSON{
			DistanceMeters: seg.DistanceMeters,
			Geometry:       geom,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleMatrix handles POST /api/v1/matrix.
func (h *Handlers) HandleMatrix(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	var req MatrixRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	if len(req.Sources) == 0 || len(req.Targets) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "sources/targets must be non-empty")
		return
	}
	if len(req.Sources) > maxMatrixPoints || len(req.Targets) > maxMatrixPoints {
		writeError(w, http.StatusBadRequest, "too_many_points", "")
		return
	}

	sourceStates := make([]uint32, len(req.Sources))
	for i, ll := range req.Sources {
		if err := validateCoord(ll); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_coordinates", "sources")
			return
		}
		s, err := h.engine.SnapToState(query.LatLng{Lat: ll.Lat, Lon: ll.Lng})
		if err != nil {
			writeRouteError(w, err)
			return
		}
		sourceStates[i] = s
	}
	targetStates := make([]uint32, len(req.Targets))
	for i, ll := range req.Targets {
		if err := validateCoord(ll); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_coordinates", "targets")
			return
		}
		s, err := h.engine.SnapToState(query.LatLng{Lat: ll.Lat, Lon: ll.Lng})
		if err != nil {
			writeRouteError(w, err)
			return
		}
		targetStates[i] = s
	}

	maxWorkers := req.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 8
	}

	rows, err := h.matrix.Compute(r.Context(), sourceStates, targetStates, maxWorkers)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusServiceUnavailable, "request_timeout", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	resp := MatrixResponse{DurationsMillis: make([][]*uint32, len(rows))}
	for i, row := range rows {
		out := make([]*uint32, len(row))
		for j, d := range row {
			if d != math.MaxUint32 {
				v := d
				out[j] = &v
			}
		}
		resp.DurationsMillis[i] = out
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.stats)
}

func writeRouteError(w http.ResponseWriter, err error) {
	if errors.Is(err, query.ErrPointTooFar) {
		writeError(w, http.StatusUnprocessableEntity, "point_too_far_from_road", "")
		return
	}
	if errors.Is(err, query.ErrNoRoute) {
		writeError(w, http.StatusNotFound, "no_route_found", "")
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusServiceUnavailable, "request_timeout", "")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", "")
}

func validateCoord(ll LatLngJSON) error {
	if math.IsNaN(ll.Lat) || math.IsNaN(ll.Lng) || math.IsInf(ll.Lat, 0) || math.IsInf(ll.Lng, 0) {
		return errors.New("coordinates must be finite numbers")
	}
	if ll.Lat < -90 || ll.Lat > 90 || ll.Lng < -180 || ll.Lng > 180 {
		return errors.New("coordinates out of range")
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, code, field string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: code, Field: field})
}
