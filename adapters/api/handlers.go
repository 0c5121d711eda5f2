package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"govariant/domain/core"
	"govariant/domain/features"
	"govariant/domain/model"
	"govariant/domain/variant"
	apperrors "govariant/internal/errors"
	"govariant/internal/extraction"
	"govariant/internal/predictor"
)

const maxBodyBytes = 1 << 20

// VariantInput is the raw variant form of a prediction request.
type VariantInput struct {
	Chromosome    string      `json:"chromosome"`
	Position      json.Number `json:"position"`
	Ref           string      `json:"ref"`
	Alt           string      `json:"alt"`
	ProteinChange string      `json:"hgvs_p,omitempty"`
	GeneSymbol    string      `json:"gene_symbol,omitempty"`
}

func (v VariantInput) raw() variant.RawRecord {
	return variant.RawRecord{
		Chromosome:    v.Chromosome,
		Position:      v.Position.String(),
		Ref:           v.Ref,
		Alt:           v.Alt,
		ProteinChange: v.ProteinChange,
		GeneSymbol:    v.GeneSymbol,
	}
}

// PredictRequest carries exactly one of Variant or Features.
type PredictRequest struct {
	Variant  *VariantInput      `json:"variant,omitempty"`
	Features map[string]float64 `json:"features,omitempty"`
}

// BatchPredictRequest scores many variants against one model snapshot.
type BatchPredictRequest struct {
	Variants []VariantInput `json:"variants"`
}

// BatchPredictResponse pairs each accepted input index with its prediction.
type BatchPredictResponse struct {
	Predictions []IndexedPrediction     `json:"predictions"`
	Summary     extraction.BatchSummary `json:"summary"`
}

// IndexedPrediction is one row of a batch response.
type IndexedPrediction struct {
	Index   int    `json:"index"`
	Variant string `json:"variant"`
	predictor.Prediction
}

// ModelInfo describes the loaded model.
type ModelInfo struct {
	Kind          model.Kind          `json:"kind"`
	SchemaVersion string              `json:"schema_version"`
	Handle        core.ModelHandle    `json:"handle,omitempty"`
	FeatureOrder  []string            `json:"feature_order"`
	Importance    features.Importance `json:"importance"`
}

// ReloadRequest names the handle to load; empty means the latest published
// model for the predictor's schema.
type ReloadRequest struct {
	Handle string `json:"handle"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{"status": "ok", "model_loaded": s.predictor.Current() != nil}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	loaded := s.predictor.Current()
	if loaded == nil {
		s.writeError(w, core.ErrNoModelLoaded)
		return
	}
	writeJSON(w, http.StatusOK, s.modelInfo(loaded))
}

func (s *Server) modelInfo(loaded *predictor.Loaded) ModelInfo {
	clf := loaded.Classifier
	info := ModelInfo{
		Kind:          clf.Kind(),
		SchemaVersion: clf.SchemaVersion(),
		Handle:        loaded.Handle,
		Importance:    clf.FeatureImportance(),
	}
	if schema, ok := features.Lookup(clf.SchemaVersion()); ok {
		info.FeatureOrder = schema.Names()
	}
	return info
}

func (s *Server) handleReloadModel(w http.ResponseWriter, r *http.Request) {
	var req ReloadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	var handle core.ModelHandle
	if req.Handle == "" {
		if s.registry == nil {
			s.writeError(w, apperrors.InvalidInput("handle is required when no registry is configured"))
			return
		}
		latest, err := s.registry.LatestHandle(r.Context(), s.predictor.SchemaVersion())
		if err != nil {
			s.writeError(w, err)
			return
		}
		handle = latest
	} else {
		parsed, err := core.ParseModelHandle(req.Handle)
		if err != nil {
			s.writeError(w, err)
			return
		}
		handle = parsed
	}

	if err := s.predictor.LoadFromStore(r.Context(), s.store, handle); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.modelInfo(s.predictor.Current()))
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if (req.Variant == nil) == (req.Features == nil) {
		s.writeError(w, apperrors.InvalidInput(`exactly one of "variant" or "features" is required`))
		return
	}

	var (
		pred predictor.Prediction
		err  error
	)
	if req.Variant != nil {
		pred, err = s.predictor.PredictRaw(r.Context(), req.Variant.raw())
	} else {
		pred, err = s.predictor.PredictFeatures(r.Context(), req.Features)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pred)
}

func (s *Server) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchPredictRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	raws := make([]variant.RawRecord, len(req.Variants))
	for i, v := range req.Variants {
		raws[i] = v.raw()
	}

	res, err := s.predictor.PredictBatch(r.Context(), raws)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := BatchPredictResponse{Summary: res.Summary, Predictions: make([]IndexedPrediction, len(res.Predictions))}
	for i, p := range res.Predictions {
		resp.Predictions[i] = IndexedPrediction{Index: res.Indices[i], Variant: res.Records[i].Key().String(), Prediction: p}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		s.writeError(w, apperrors.NotFound("run registry"))
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, apperrors.InvalidInput("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	runs, err := s.registry.ListRuns(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		s.writeError(w, apperrors.NotFound("run registry"))
		return
	}
	id, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, apperrors.InvalidInput(err.Error()))
		return
	}
	rec, err := s.registry.GetRun(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"manifest": rec.Manifest, "reports": rec.Reports})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.InvalidInput("malformed request body: " + err.Error())
	}
	return nil
}

// statusFor maps application error codes onto HTTP statuses.
func statusFor(code string) int {
	switch code {
	case apperrors.CodeValidationError, apperrors.CodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.CodeSchemaMismatch:
		return http.StatusConflict
	case apperrors.CodeNoModel:
		return http.StatusServiceUnavailable
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.logger.Error("[API] %v", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
