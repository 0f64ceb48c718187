// Package api exposes the location service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/kass/go-geo-cellindex/pkg/bench"
	"github.com/kass/go-geo-cellindex/pkg/cell"
	"github.com/kass/go-geo-cellindex/pkg/cover"
	"github.com/kass/go-geo-cellindex/pkg/errs"
	"github.com/kass/go-geo-cellindex/pkg/locations"
	"github.com/kass/go-geo-cellindex/pkg/logging"
	"github.com/kass/go-geo-cellindex/pkg/metrics"
	"github.com/kass/go-geo-cellindex/pkg/models"
)

type createLocationRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

type locationResponse struct {
	ID      int64   `json:"id"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	CellKey string  `json:"cellKey"`
	Token   string  `json:"token"`
}

type queryResponse struct {
	Points []locationResponse `json:"points"`
	Count  int                `json:"count"`
	Ranges []string           `json:"ranges,omitempty"`
}

type cellResponse struct {
	Key       string             `json:"key"`
	Token     string             `json:"token"`
	Face      int                `json:"face"`
	Level     int                `json:"level"`
	Prev      string             `json:"prev"`
	Next      string             `json:"next"`
	Neighbors []locationResponse `json:"neighbors"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func RegisterHandlers(ctx context.Context, router *chi.Mux, svc *locations.Service) *chi.Mux {
	log := logging.GetLoggerFromContext(ctx)
	harness := bench.NewHarness(svc)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	router.Handle("/metrics", metrics.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/locations", func(r chi.Router) {
			r.Post("/", createLocationHandler(log, svc))
			r.Get("/", queryLocationsHandler(log, svc))
		})
		r.Get("/benchmark", benchmarkHandler(log, harness))
		r.Get("/cells", cellHandler(log, svc))
	})

	return router
}

func createLocationHandler(log zerolog.Logger, svc *locations.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		var req createLocationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unable to decode body"})
			return
		}
		if req.Lat == nil {
			writeError(w, log, errs.InvalidArgument("lat", "required"))
			return
		}
		if req.Lon == nil {
			writeError(w, log, errs.InvalidArgument("lon", "required"))
			return
		}

		stored, err := svc.InsertPoint(r.Context(), *req.Lat, *req.Lon)
		if err != nil {
			writeError(w, log, err)
			return
		}

		writeJSON(w, http.StatusCreated, toResponse(stored))
	}
}

func queryLocationsHandler(log zerolog.Logger, svc *locations.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		strategy, err := locations.ParseStrategy(q.Get("strategy"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		page, err := pageFrom(r)
		if err != nil {
			writeError(w, log, err)
			return
		}
		opts, err := optionsFrom(r)
		if err != nil {
			writeError(w, log, err)
			return
		}

		var res locations.QueryResult
		if q.Has("radius") {
			var center models.Location
			var radius float64
			center.Lat, err = floatParam(r, "lat")
			if err == nil {
				center.Lon, err = floatParam(r, "lon")
			}
			if err == nil {
				radius, err = floatParam(r, "radius")
			}
			if err == nil {
				res, err = svc.QueryByRadius(r.Context(), center, radius, strategy, page, opts...)
			}
		} else {
			var box models.BoundingBox
			box, err = boxFrom(r)
			if err == nil {
				res, err = svc.QueryByRegion(r.Context(), box, strategy, page, opts...)
			}
		}
		if err != nil {
			writeError(w, log, err)
			return
		}

		resp := queryResponse{
			Points: make([]locationResponse, 0, len(res.Points)),
			Count:  res.Count,
		}
		for _, p := range res.Points {
			resp.Points = append(resp.Points, toResponse(p))
		}
		for _, rg := range res.Ranges {
			resp.Ranges = append(resp.Ranges, rg.String())
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func benchmarkHandler(log zerolog.Logger, harness *bench.Harness) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var box models.BoundingBox
		var err error

		if name := r.URL.Query().Get("preset"); name != "" {
			var preset bench.Preset
			preset, err = bench.PresetByName(name)
			box = preset.Box
		} else {
			box, err = boxFrom(r)
		}
		if err != nil {
			writeError(w, log, err)
			return
		}

		cmp, err := harness.CompareAll(r.Context(), box)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, cmp)
	}
}

func cellHandler(log zerolog.Logger, svc *locations.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lat, err := floatParam(r, "lat")
		if err != nil {
			writeError(w, log, err)
			return
		}
		lon, err := floatParam(r, "lon")
		if err != nil {
			writeError(w, log, err)
			return
		}
		page, err := pageFrom(r)
		if err != nil {
			writeError(w, log, err)
			return
		}

		key, err := cell.FromDegrees(lat, lon)
		if err != nil {
			writeError(w, log, err)
			return
		}
		neighbors, err := svc.QueryNeighbors(r.Context(), lat, lon, page)
		if err != nil {
			writeError(w, log, err)
			return
		}

		resp := cellResponse{
			Key:       strconv.FormatUint(uint64(key), 10),
			Token:     key.String(),
			Face:      key.Face(),
			Level:     key.Level(),
			Prev:      strconv.FormatUint(uint64(key.Prev()), 10),
			Next:      strconv.FormatUint(uint64(key.Next()), 10),
			Neighbors: make([]locationResponse, 0, len(neighbors)),
		}
		for _, n := range neighbors {
			resp.Neighbors = append(resp.Neighbors, toResponse(n))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// Keys are rendered as decimal strings; JSON numbers lose precision above
// 2^53.
func toResponse(loc models.StoredLocation) locationResponse {
	return locationResponse{
		ID:      loc.ID,
		Lat:     loc.Location.Lat,
		Lon:     loc.Location.Lon,
		CellKey: strconv.FormatUint(uint64(loc.CellID), 10),
		Token:   loc.CellID.String(),
	}
}

func floatParam(r *http.Request, name string) (float64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, errs.InvalidArgument(name, "required")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errs.InvalidArgument(name, "%q is not a number", s)
	}
	return v, nil
}

func intParam(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errs.InvalidArgument(name, "%q is not an integer", s)
	}
	return v, nil
}

func boxFrom(r *http.Request) (models.BoundingBox, error) {
	var v [4]float64
	for i, name := range []string{"minLat", "minLon", "maxLat", "maxLon"} {
		f, err := floatParam(r, name)
		if err != nil {
			return models.BoundingBox{}, err
		}
		v[i] = f
	}
	return models.NewBoundingBox(v[0], v[1], v[2], v[3]), nil
}

func pageFrom(r *http.Request) (models.Page, error) {
	limit, err := intParam(r, "limit")
	if err != nil {
		return models.Page{}, err
	}
	if limit < 0 {
		return models.Page{}, errs.InvalidArgument("limit", "%d is negative", limit)
	}
	offset, err := intParam(r, "offset")
	if err != nil {
		return models.Page{}, err
	}
	page := models.Page{Limit: limit, Offset: offset}
	return page, page.Validate()
}

func optionsFrom(r *http.Request) ([]locations.QueryOption, error) {
	var opts []locations.QueryOption
	q := r.URL.Query()

	if s := q.Get("policy"); s != "" {
		p, err := cover.ParsePolicy(s)
		if err != nil {
			return nil, err
		}
		opts = append(opts, locations.WithPolicy(p))
	}
	if q.Has("maxRanges") {
		n, err := intParam(r, "maxRanges")
		if err != nil {
			return nil, err
		}
		opts = append(opts, locations.WithMaxRanges(n))
	}
	if s := q.Get("refine"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, errs.InvalidArgument("refine", "%q is not a boolean", s)
		}
		opts = append(opts, locations.WithRefine(b))
	}
	return opts, nil
}

func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, errs.ErrInvalidArgument):
		field, _ := errs.Field(err)
		log.Debug().Err(err).Msg("rejected request")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Field: field})
	case errors.Is(err, errs.ErrStorageUnavailable):
		log.Error().Err(err).Msg("storage unavailable")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "storage unavailable"})
	default:
		log.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
