package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/hive-corporation/fraudshield/internal/adapter/exporter"
	"github.com/hive-corporation/fraudshield/internal/adapter/vendor"
	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

const (
	// ClientIDHeader identifies the browser profile or caller whose history
	// an analysis belongs to.
	ClientIDHeader = "X-Client-ID"

	maxBodyBytes    = 16 << 20
	analysisTimeout = 45 * time.Second
)

type RestHandler struct {
	detector    Detector
	cefExporter *exporter.CEFExporter
	validate    *validator.Validate
}

func NewRestHandler(detector Detector) *RestHandler {
	return &RestHandler{
		detector:    detector,
		cefExporter: exporter.NewCEFExporter(detector),
		validate:    newValidator(),
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type TextDetectRequest struct {
	Text string `json:"text" validate:"required"`
}

type URLDetectRequest struct {
	URL string `json:"url" validate:"required"`
}

type ImageDetectRequest struct {
	ImageData string `json:"imageData" validate:"required"`
	FileName  string `json:"fileName" validate:"required"`
}

type ScoreRequest struct {
	Content string `json:"content" validate:"required"`
	Type    string `json:"type" validate:"omitempty,oneof=text url"`
}

// NewRouter builds the REST API. authToken may be empty to disable auth.
func NewRouter(h *RestHandler, authToken string) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/api/health", h.Health).Methods(http.MethodGet)

	router.HandleFunc("/api/text-detect", h.TextDetect).Methods(http.MethodPost)
	router.HandleFunc("/api/url-detect", h.URLDetect).Methods(http.MethodPost)
	router.HandleFunc("/api/image-detect", h.ImageDetect).Methods(http.MethodPost)
	router.HandleFunc("/api/score", h.Score).Methods(http.MethodPost)

	router.HandleFunc("/api/history", h.History).Methods(http.MethodGet)
	router.HandleFunc("/api/rules", h.Rules).Methods(http.MethodGet)
	router.HandleFunc("/api/feed", h.Feed).Methods(http.MethodGet)

	// Metrics endpoint (requires authentication)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.Use(LoggingMiddleware)
	router.Use(AuthMiddleware(authToken))

	return CORSMiddleware(router)
}

func (h *RestHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":         "healthy",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"service":        "fraudshield-api",
		"ruleSetVersion": h.detector.Rules().Version,
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *RestHandler) TextDetect(w http.ResponseWriter, r *http.Request) {
	var req TextDetectRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), analysisTimeout)
	defer cancel()

	rec, err := h.detector.AnalyzeText(ctx, clientID(r), req.Text)
	h.respond(w, r, rec, err)
}

func (h *RestHandler) URLDetect(w http.ResponseWriter, r *http.Request) {
	var req URLDetectRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), analysisTimeout)
	defer cancel()

	rec, err := h.detector.AnalyzeURL(ctx, clientID(r), req.URL)
	h.respond(w, r, rec, err)
}

func (h *RestHandler) ImageDetect(w http.ResponseWriter, r *http.Request) {
	var req ImageDetectRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), analysisTimeout)
	defer cancel()

	rec, err := h.detector.AnalyzeImage(ctx, clientID(r), req.ImageData, req.FileName)
	h.respond(w, r, rec, err)
}

// Score runs the rule-based scorer only; it never calls a vendor.
func (h *RestHandler) Score(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if !h.decode(w, r, &req) {
		return
	}

	result := h.detector.Score(domain.AnalysisInput{
		Content: req.Content,
		Kind:    domain.InputKind(req.Type),
	})
	writeJSON(w, http.StatusOK, result)
}

func (h *RestHandler) History(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.detector.History(clientID(r)))
}

func (h *RestHandler) Rules(w http.ResponseWriter, r *http.Request) {
	rs := h.detector.Rules()
	text, url := rs.Specs()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": rs.Version,
		"text":    text,
		"url":     url,
	})
}

// Feed exports recent fraudulent analyses for SIEM ingestion.
func (h *RestHandler) Feed(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	since := r.URL.Query().Get("since") // e.g., "24h", "7d"

	var sinceTime time.Time
	if since != "" {
		duration, err := parseWindow(since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'since' parameter (use format like '24h', '7d')")
			return
		}
		sinceTime = time.Now().Add(-duration)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	switch format {
	case "cef", "":
		data, err := h.cefExporter.Export(ctx, sinceTime)
		if err != nil {
			log.WithError(err).Error("Failed to export CEF feed")
			writeError(w, http.StatusInternalServerError, "failed to export CEF feed")
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(data)); err != nil {
			log.WithError(err).Warn("Error writing CEF feed response")
		}

	case "json":
		if sinceTime.IsZero() {
			sinceTime = time.Now().Add(-24 * time.Hour)
		}
		records, err := h.detector.FraudSince(ctx, sinceTime, exporter.MaxExportEntries)
		if err != nil {
			log.WithError(err).Error("Failed to load fraud feed")
			writeError(w, http.StatusInternalServerError, "failed to load feed")
			return
		}
		responses := make([]DetectionResponse, len(records))
		for i, rec := range records {
			responses[i] = NewDetectionResponse(rec)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"count":    len(responses),
			"analyses": responses,
		})

	default:
		writeError(w, http.StatusBadRequest, "unsupported format (use 'cef' or 'json')")
	}
}

func (h *RestHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func (h *RestHandler) respond(w http.ResponseWriter, r *http.Request, rec domain.AnalysisRecord, err error) {
	if err != nil {
		status, message := errorStatus(err)
		entry := log.WithFields(log.Fields{
			"path":   r.URL.Path,
			"status": status,
			"error":  err,
		})
		if status >= http.StatusInternalServerError {
			entry.Error("Analysis failed")
		} else {
			entry.Info("Analysis rejected")
		}
		writeJSON(w, status, map[string]string{"error": message})
		return
	}

	vendor.RecordAnalysis(rec)
	writeJSON(w, http.StatusOK, NewDetectionResponse(rec))
}

func clientID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ClientIDHeader))
}

// parseWindow accepts Go durations plus a "d" suffix for days.
func parseWindow(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || days < 0 {
			return 0, strconv.ErrSyntax
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, strconv.ErrSyntax
	}
	return d, nil
}

func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return "missing '" + field + "' field"
	case "oneof":
		return "invalid '" + field + "' (use one of: " + fe.Param() + ")"
	default:
		return "invalid '" + field + "' field"
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Warn("Error encoding JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
