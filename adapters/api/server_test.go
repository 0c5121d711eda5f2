package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"govariant/adapters/annotation"
	"govariant/adapters/classifier/logistic"
	"govariant/adapters/store"
	"govariant/domain/core"
	"govariant/domain/features"
	"govariant/domain/model"
	"govariant/domain/run"
	"govariant/domain/variant"
	"govariant/internal"
	apperrors "govariant/internal/errors"
	"govariant/internal/extraction"
	"govariant/internal/predictor"
	"govariant/ports"
)

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) RecordRun(ctx context.Context, rec ports.RunRecord) error {
	return m.Called(rec).Error(0)
}

func (m *mockRegistry) GetRun(ctx context.Context, id core.RunID) (*ports.RunRecord, error) {
	args := m.Called(id)
	rec, _ := args.Get(0).(*ports.RunRecord)
	return rec, args.Error(1)
}

func (m *mockRegistry) ListRuns(ctx context.Context, limit int) ([]run.Manifest, error) {
	args := m.Called(limit)
	runs, _ := args.Get(0).([]run.Manifest)
	return runs, args.Error(1)
}

func (m *mockRegistry) LatestHandle(ctx context.Context, schemaVersion string) (core.ModelHandle, error) {
	args := m.Called(schemaVersion)
	return args.Get(0).(core.ModelHandle), args.Error(1)
}

func flag(b bool) *bool { return &b }

var tp53Key = variant.Key{Chromosome: "17", Position: 7675088, Ref: "C", Alt: "T"}

const tp53Variant = `{"chromosome":"chr17","position":7675088,"ref":"C","alt":"T","hgvs_p":"p.Arg175His"}`

type testEnv struct {
	server    *Server
	store     *store.FileStore
	predictor *predictor.Predictor
	handle    core.ModelHandle
}

func newTestEnv(t *testing.T, registry ports.ModelRegistry) *testEnv {
	t.Helper()
	table := annotation.NewTable(map[variant.Key]ports.SiteAnnotation{
		tp53Key: {Conserved: flag(true), InDomain: flag(true)},
	})
	p, err := predictor.New(extraction.NewExtractor(features.Current(), table), predictor.Options{CacheSize: 16}, nil)
	require.NoError(t, err)

	fs, err := store.NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	m, err := logistic.NewModel(features.Current(), []float64{0.05, 1, 1, 0.1, -0.2}, -2, nil)
	require.NoError(t, err)
	handle, err := fs.Save(context.Background(), m, features.SchemaV1)
	require.NoError(t, err)

	srv := NewServer(Config{Port: "0", ShutdownTimeout: time.Second}, p, fs, registry, internal.NewNopLogger())
	return &testEnv{server: srv, store: fs, predictor: p, handle: handle}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func (e *testEnv) reload(t *testing.T) {
	t.Helper()
	rec, body := e.do(t, http.MethodPost, "/v1/model/reload", `{"handle":"`+e.handle.String()+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, body)
}

func TestHealthAndNoModel(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["model_loaded"])

	rec, body = env.do(t, http.MethodGet, "/v1/model", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, apperrors.CodeNoModel, body["code"])

	rec, _ = env.do(t, http.MethodPost, "/v1/predict", `{"variant":`+tp53Variant+`}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReloadAndPredict(t *testing.T) {
	env := newTestEnv(t, nil)
	env.reload(t)

	rec, body := env.do(t, http.MethodGet, "/v1/model", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(model.LogisticRegression), body["kind"])
	assert.Equal(t, env.handle.String(), body["handle"])
	assert.Len(t, body["feature_order"], 5)

	rec, byVariant := env.do(t, http.MethodPost, "/v1/predict", `{"variant":`+tp53Variant+`}`)
	require.Equal(t, http.StatusOK, rec.Code, byVariant)
	assert.Equal(t, features.SchemaV1, byVariant["schema_version"])
	prob := byVariant["probability"].(float64)
	assert.True(t, prob > 0 && prob < 1)

	rec, byFeatures := env.do(t, http.MethodPost, "/v1/predict",
		`{"features":{"grantham_score":29,"is_conserved":1,"in_domain":1,"hydrophobicity_delta":1.3,"charge_delta":-1}}`)
	require.Equal(t, http.StatusOK, rec.Code, byFeatures)
	assert.InDelta(t, prob, byFeatures["probability"].(float64), 1e-12)
}

func TestPredictErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	env.reload(t)

	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"empty", `{}`, http.StatusBadRequest, apperrors.CodeInvalidInput},
		{"both", `{"variant":` + tp53Variant + `,"features":{}}`, http.StatusBadRequest, apperrors.CodeInvalidInput},
		{"unknown field", `{"sequence":"ACGT"}`, http.StatusBadRequest, apperrors.CodeInvalidInput},
		{"malformed", `{"variant":`, http.StatusBadRequest, apperrors.CodeInvalidInput},
		{"bad allele", `{"variant":{"chromosome":"17","position":7675088,"ref":"C","alt":"Z","hgvs_p":"p.Arg175His"}}`, http.StatusBadRequest, apperrors.CodeValidationError},
		{"stop codon", `{"variant":{"chromosome":"17","position":7675088,"ref":"C","alt":"T","hgvs_p":"p.Arg175Ter"}}`, http.StatusBadRequest, apperrors.CodeValidationError},
		{"unannotated", `{"variant":{"chromosome":"17","position":1,"ref":"C","alt":"T","hgvs_p":"p.Arg175His"}}`, http.StatusBadRequest, apperrors.CodeValidationError},
		{"unknown feature", `{"features":{"sift":0.2}}`, http.StatusBadRequest, apperrors.CodeValidationError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := env.do(t, http.MethodPost, "/v1/predict", tc.body)
			assert.Equal(t, tc.status, rec.Code, body)
			assert.Equal(t, tc.code, body["code"])
		})
	}
}

func TestReloadErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodPost, "/v1/model/reload", `{"handle":"../../etc/passwd"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, body)

	rec, body = env.do(t, http.MethodPost, "/v1/model/reload", `{"handle":"`+core.NewModelHandle().String()+`"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code, body)

	rec, body = env.do(t, http.MethodPost, "/v1/model/reload", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	assert.Nil(t, env.predictor.Current())
}

func TestReloadSchemaMismatchIsConflict(t *testing.T) {
	env := newTestEnv(t, nil)

	handle := core.NewModelHandle()
	artifact := &model.Artifact{
		Handle:        handle,
		Kind:          model.LogisticRegression,
		SchemaVersion: "v0",
		FeatureOrder:  []string{"grantham_score"},
		Parameters:    json.RawMessage(`{"weights":[1],"bias":0}`),
		CreatedAt:     time.Now().UTC(),
	}
	artifact.Seal()
	data, err := json.Marshal(artifact)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(env.store.Dir(), handle.String()+".json"), data, 0o644))

	rec, body := env.do(t, http.MethodPost, "/v1/model/reload", `{"handle":"`+handle.String()+`"}`)
	assert.Equal(t, http.StatusConflict, rec.Code, body)
	assert.Equal(t, apperrors.CodeSchemaMismatch, body["code"])
	assert.Nil(t, env.predictor.Current())
}

func TestReloadLatestFromRegistry(t *testing.T) {
	reg := &mockRegistry{}
	env := newTestEnv(t, reg)
	reg.On("LatestHandle", features.SchemaV1).Return(env.handle, nil)

	rec, body := env.do(t, http.MethodPost, "/v1/model/reload", `{}`)
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.Equal(t, env.handle.String(), body["handle"])
	reg.AssertExpectations(t)
}

func TestPredictBatch(t *testing.T) {
	env := newTestEnv(t, nil)
	env.reload(t)

	rec, body := env.do(t, http.MethodPost, "/v1/predict/batch",
		`{"variants":[{"chromosome":"1","position":"x","ref":"A","alt":"G"},`+tp53Variant+`]}`)
	require.Equal(t, http.StatusOK, rec.Code, body)

	preds := body["predictions"].([]interface{})
	require.Len(t, preds, 1)
	first := preds[0].(map[string]interface{})
	assert.Equal(t, float64(1), first["index"])
	assert.Equal(t, tp53Key.String(), first["variant"])

	summary := body["summary"].(map[string]interface{})
	assert.Equal(t, float64(1), summary["excluded"])
}

func TestRunEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	rec, _ := env.do(t, http.MethodGet, "/v1/runs", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	reg := &mockRegistry{}
	env = newTestEnv(t, reg)
	fp := run.NewFingerprint(core.NewHash([]byte("d")), features.SchemaV1, 42, 0.2, core.NewHash([]byte("o")), run.CodeVersion)
	m := run.NewManifest(core.NewRunID(), fp, 0.5)
	reg.On("ListRuns", 5).Return([]run.Manifest{*m}, nil)
	reg.On("GetRun", m.RunID).Return(&ports.RunRecord{Manifest: *m}, nil)
	missing := core.NewRunID()
	reg.On("GetRun", missing).Return(nil, core.ErrRunNotFound)

	rec, body := env.do(t, http.MethodGet, "/v1/runs?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.Len(t, body["runs"], 1)

	rec, _ = env.do(t, http.MethodGet, "/v1/runs?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = env.do(t, http.MethodGet, "/v1/runs/"+m.RunID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.Equal(t, m.RunID.String(), body["manifest"].(map[string]interface{})["run_id"])

	rec, _ = env.do(t, http.MethodGet, "/v1/runs/"+missing.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
