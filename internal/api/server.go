package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/helios-data/yield.report/internal/analysis"
	"github.com/helios-data/yield.report/internal/config"
	"github.com/helios-data/yield.report/internal/plant"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	svc    *analysis.Service
	data   *plant.Data
	tuning *config.TuningConfig
}

func NewServer(data *plant.Data, tuning *config.TuningConfig) *Server {
	if tuning == nil {
		tuning = config.EmptyTuningConfig()
	}
	return &Server{
		svc:    analysis.NewService(data),
		data:   data,
		tuning: tuning,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// MetricsMiddleware records request counts and latency per endpoint.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := prometheus.NewTimer(RequestDuration.WithLabelValues(r.URL.Path, r.Method))
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		timer.ObserveDuration()
		RequestsTotal.WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(lrw.statusCode)).Inc()
	})
}

// Router builds the HTTP routing table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(MetricsMiddleware)
	r.HandleFunc("/api/plant", s.showPlant).Methods(http.MethodGet)
	r.HandleFunc("/api/variables", s.listVariables).Methods(http.MethodGet)
	r.HandleFunc("/api/analysis", s.runAnalysis).Methods(http.MethodPost)
	r.HandleFunc("/api/analysis/kdistance", s.kDistances).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// analysisRequest is the body of POST /api/analysis. Tuning fields left
// out fall back to the server's tuning config, then to the built-in
// defaults.
type analysisRequest struct {
	Mode          string `json:"mode"`
	Timestamp     string `json:"timestamp"`
	IntervalStart string `json:"interval_start"`
	IntervalEnd   string `json:"interval_end"`

	config.TuningConfig
}

// analysisConfig merges a request over the server tuning config.
func (s *Server) analysisConfig(req *analysisRequest) (analysis.Config, error) {
	mode, err := analysis.ParseMode(req.Mode)
	if err != nil {
		return analysis.Config{}, err
	}
	if err := req.TuningConfig.Validate(); err != nil {
		return analysis.Config{}, &analysis.ConfigError{Field: "tuning", Reason: err.Error()}
	}

	cfg := analysis.Config{
		Mode:          mode,
		Timestamp:     req.Timestamp,
		IntervalStart: req.IntervalStart,
		IntervalEnd:   req.IntervalEnd,
		XVariable:     s.tuning.GetXVariable(),
		YVariable:     s.tuning.GetYVariable(),
		OPTICSEpsilon: s.tuning.GetOPTICSEpsilon(),
		OPTICSMinPts:  s.tuning.GetOPTICSMinPts(),
		DBSCANEpsilon: s.tuning.GetDBSCANEpsilon(),
		DBSCANMinPts:  s.tuning.GetDBSCANMinPts(),
	}
	opticsScaling, err := analysis.ParseScalingType(s.tuning.GetOPTICSScaling())
	if err != nil {
		return analysis.Config{}, err
	}
	dbscanScaling, err := analysis.ParseScalingType(s.tuning.GetDBSCANScaling())
	if err != nil {
		return analysis.Config{}, err
	}
	cfg.OPTICSScaling = opticsScaling
	cfg.DBSCANScaling = dbscanScaling

	// Per-request overrides.
	if req.XVariable != nil {
		cfg.XVariable = *req.XVariable
	}
	if req.YVariable != nil {
		cfg.YVariable = *req.YVariable
	}
	if req.OPTICSEpsilon != nil {
		cfg.OPTICSEpsilon = *req.OPTICSEpsilon
	}
	if req.OPTICSMinPts != nil {
		cfg.OPTICSMinPts = *req.OPTICSMinPts
	}
	if req.OPTICSScaling != nil {
		if cfg.OPTICSScaling, err = analysis.ParseScalingType(*req.OPTICSScaling); err != nil {
			return analysis.Config{}, err
		}
	}
	if req.DBSCANEpsilon != nil {
		cfg.DBSCANEpsilon = *req.DBSCANEpsilon
	}
	if req.DBSCANMinPts != nil {
		cfg.DBSCANMinPts = *req.DBSCANMinPts
	}
	if req.DBSCANScaling != nil {
		if cfg.DBSCANScaling, err = analysis.ParseScalingType(*req.DBSCANScaling); err != nil {
			return analysis.Config{}, err
		}
	}
	return cfg, nil
}

// mapAnalysisError translates pipeline errors into HTTP status codes.
func (s *Server) mapAnalysisError(w http.ResponseWriter, err error) {
	var cfgErr *analysis.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		s.writeJSONError(w, http.StatusBadRequest, cfgErr.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.writeJSONError(w, http.StatusServiceUnavailable, "analysis cancelled")
	default:
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("analysis failed: %v", err))
	}
}

type analysisResponse struct {
	RunID         string            `json:"run_id"`
	Mode          string            `json:"mode"`
	ClusterCount  int               `json:"cluster_count"`
	OutliersFound bool              `json:"outliers_found"`
	Orientations  []string          `json:"orientations"`
	Points        []*analysis.Point `json:"points"`
}

func (s *Server) runAnalysis(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	cfg, err := s.analysisConfig(&req)
	if err != nil {
		s.mapAnalysisError(w, err)
		return
	}

	timer := prometheus.NewTimer(AnalysisLatency)
	result, err := s.svc.Run(r.Context(), cfg)
	timer.ObserveDuration()
	if err != nil {
		AnalysisRunsTotal.WithLabelValues(cfg.Mode.String(), "error").Inc()
		s.mapAnalysisError(w, err)
		return
	}
	AnalysisRunsTotal.WithLabelValues(cfg.Mode.String(), "ok").Inc()
	ClustersFound.Set(float64(result.ClusterCount))
	OutliersDetected.Add(float64(len(result.Outliers())))

	resp := analysisResponse{
		RunID:         result.RunID,
		Mode:          result.Mode.String(),
		ClusterCount:  result.ClusterCount,
		OutliersFound: result.OutliersFound,
		Orientations:  result.Orientations(),
		Points:        result.Points,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "failed to write analysis result")
	}
}

// kDistanceRequest selects which algorithm's minPts drives the curve.
type kDistanceRequest struct {
	analysisRequest
	Algorithm string `json:"algorithm"` // "optics" or "dbscan"
}

type kDistanceResponse struct {
	Algorithm    string    `json:"algorithm"`
	K            int       `json:"k"`
	Distances    []float64 `json:"distances"`
	KneeEstimate float64   `json:"knee_estimate"`
}

func (s *Server) kDistances(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req kDistanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	cfg, err := s.analysisConfig(&req.analysisRequest)
	if err != nil {
		s.mapAnalysisError(w, err)
		return
	}

	var k int
	var scaling analysis.ScalingType
	switch req.Algorithm {
	case "", "dbscan":
		req.Algorithm = "dbscan"
		k = cfg.DBSCANMinPts - 1
		scaling = cfg.DBSCANScaling
	case "optics":
		k = cfg.OPTICSMinPts - 1
		scaling = cfg.OPTICSScaling
	default:
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("unknown algorithm %q", req.Algorithm))
		return
	}
	if k < 1 {
		k = 1
	}

	curve, knee, err := s.svc.KDistanceCurve(r.Context(), cfg, k, scaling)
	if err != nil {
		s.mapAnalysisError(w, err)
		return
	}
	resp := kDistanceResponse{
		Algorithm:    req.Algorithm,
		K:            k,
		Distances:    curve,
		KneeEstimate: knee,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "failed to write k-distance result")
	}
}

type plantResponse struct {
	TrackerCount int                 `json:"tracker_count"`
	Trackers     []plant.TrackerInfo `json:"trackers"`
	Module       *plant.ModuleInfo   `json:"module,omitempty"`
	Timestamps   []string            `json:"timestamps"`
}

func (s *Server) showPlant(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	trackers := make([]plant.TrackerInfo, 0, s.data.TrackerCount())
	for _, name := range s.data.TrackerNames() {
		t, _ := s.data.Tracker(name)
		trackers = append(trackers, t)
	}
	resp := plantResponse{
		TrackerCount: len(trackers),
		Trackers:     trackers,
		Module:       s.data.Module(),
		Timestamps:   s.data.Timestamps(),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "failed to write plant info")
	}
}

func (s *Server) listVariables(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(map[string][]string{"variables": analysis.Variables()}); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "failed to write variables")
	}
}
