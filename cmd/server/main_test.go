package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/Skufu/HeartRisk/internal/model"
	"github.com/Skufu/HeartRisk/internal/patient"
)

type fakeDB struct {
	err error
}

func (f fakeDB) Ping(ctx context.Context) error {
	return f.err
}

const validPatient = `{
	"age": 40,
	"sex": 1,
	"restingBp": 120,
	"cholesterol": 200,
	"fastingBloodSugar": 0,
	"maxHeartRate": 150,
	"exerciseAngina": 0,
	"oldpeak": 0.0,
	"chestPainType": 1,
	"restingEcg": 0,
	"stSlope": 1
}`

// flakyClassifier fails the first failures calls to Predict and then defers to the real model.
type flakyClassifier struct {
	model.Classifier
	failures int
}

func (f *flakyClassifier) Predict(x []float64) (int, error) {
	if f.failures > 0 {
		f.failures--
		return 0, errors.New("tree 3: corrupt node table")
	}
	return f.Classifier.Predict(x)
}

type truncatedImportances struct {
	model.Classifier
}

func (truncatedImportances) FeatureImportances() []float64 { return []float64{0.5} }

func testArtifacts(t *testing.T) *model.Artifacts {
	t.Helper()
	artifacts, err := model.LoadArtifacts(
		"../../internal/model/testdata/heart_disease_model.json",
		"../../internal/model/testdata/scaler.json",
	)
	if err != nil {
		t.Fatalf("load artifacts: %v", err)
	}
	return artifacts
}

func testPredictor(t *testing.T) *predictor {
	t.Helper()
	return predictorFor(t, testArtifacts(t))
}

func predictorFor(t *testing.T, artifacts *model.Artifacts) *predictor {
	t.Helper()
	svc, err := newPredictor(artifacts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new predictor: %v", err)
	}
	return svc
}

func testRouter(t *testing.T, db HealthChecker) (*gin.Engine, *predictor) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := testPredictor(t)
	return setupRouter(svc, db, "."), svc
}

func postPredict(router *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/predict", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("ENABLE_DB", "true")
	t.Setenv("DATABASE_URL", "")
	if _, err := loadConfig(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoadConfigUsesDefaults(t *testing.T) {
	t.Setenv("ENABLE_DB", "false")
	t.Setenv("PORT", "")
	t.Setenv("MODEL_PATH", "")
	t.Setenv("SCALER_PATH", "")
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.ModelPath != "heart_disease_model.json" || cfg.ScalerPath != "scaler.json" {
		t.Fatalf("unexpected artifact paths %q %q", cfg.ModelPath, cfg.ScalerPath)
	}
}

func TestLoadConfigArtifactPaths(t *testing.T) {
	t.Setenv("MODEL_PATH", "/models/rf.json")
	t.Setenv("SCALER_PATH", "/models/std.json")
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ModelPath != "/models/rf.json" || cfg.ScalerPath != "/models/std.json" {
		t.Fatalf("unexpected artifact paths %q %q", cfg.ModelPath, cfg.ScalerPath)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRouterHealthz(t *testing.T) {
	router, _ := testRouter(t, fakeDB{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/healthz", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestRouterReadyzDegradedDB(t *testing.T) {
	router, _ := testRouter(t, fakeDB{err: errors.New("connection refused")})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/readyz", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "connection refused") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestRouterReadyzWithoutDB(t *testing.T) {
	router, _ := testRouter(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/readyz", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"db":"disabled"`) {
		t.Fatalf("unexpected readyz response %d: %s", w.Code, w.Body.String())
	}
}

// Ensure limitBodySize middleware allows small payloads and blocks large ones.
func TestLimitBodySize(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(limitBodySize(10))
	router.POST("/echo", func(c *gin.Context) {
		_, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too large"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	t.Run("within limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/echo", strings.NewReader("12345"))
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	})

	t.Run("over limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/echo", strings.NewReader("01234567890"))
		router.ServeHTTP(w, req)
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("expected 413, got %d", w.Code)
		}
	})
}

func TestPredictLowRisk(t *testing.T) {
	router, _ := testRouter(t, nil)

	w := postPredict(router, validPatient)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp PredictionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Label != "low-risk" || resp.Prediction != 0 {
		t.Fatalf("expected low risk, got %+v", resp)
	}
	if resp.Message != "Low risk of heart disease (Probability: 15.00%)" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
	if resp.RequestID == "" || w.Header().Get("X-Request-ID") != resp.RequestID {
		t.Fatalf("expected request id echoed in header, got %q / %q", resp.RequestID, w.Header().Get("X-Request-ID"))
	}
	if len(resp.Recommendations) != 3 {
		t.Fatalf("expected 3 recommendation sections, got %d", len(resp.Recommendations))
	}
	for _, s := range resp.Recommendations {
		if s.Elevated {
			t.Fatalf("expected standard advice for a healthy record, got %+v", s)
		}
	}
}

func TestPredictHighRiskWithLabels(t *testing.T) {
	router, _ := testRouter(t, nil)

	body := strings.NewReplacer(
		`"cholesterol": 200`, `"cholesterol": 300`,
		`"stSlope": 1`, `"stSlope": "Flat"`,
		`"sex": 1`, `"sex": {"label": "Male", "code": 1}`,
		`"exerciseAngina": 0`, `"exerciseAngina": ["No", 0]`,
	).Replace(validPatient)

	w := postPredict(router, body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp PredictionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Label != "high-risk" || resp.Prediction != 1 {
		t.Fatalf("expected high risk, got %+v", resp)
	}
	if !strings.HasPrefix(resp.Message, "High risk of heart disease") {
		t.Fatalf("unexpected message %q", resp.Message)
	}
	for _, s := range resp.Recommendations {
		if !s.Elevated {
			t.Fatalf("expected elevated advice above 50%% probability, got %+v", s)
		}
	}
}

func TestPredictValidation(t *testing.T) {
	router, svc := testRouter(t, nil)

	w := postPredict(router, strings.Replace(validPatient, `"cholesterol": 200`, `"cholesterol": 0`, 1))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for validation failure, got %d", w.Code)
	}
	body := strings.ToLower(w.Body.String())
	if !strings.Contains(body, "validation_failed") || !strings.Contains(body, "cholesterol") {
		t.Fatalf("expected validation error response, got %s", w.Body.String())
	}
	if got := countOutcome(t, svc, "invalid_input"); got != 1 {
		t.Fatalf("expected 1 invalid outcome, got %v", got)
	}
	if got := countOutcome(t, svc, "low_risk") + countOutcome(t, svc, "high_risk"); got != 0 {
		t.Fatalf("expected no prediction, got %v", got)
	}
}

func TestPredictMissingAndUnknownFields(t *testing.T) {
	router, _ := testRouter(t, nil)

	w := postPredict(router, strings.Replace(validPatient, `"age": 40,`, ``, 1))
	if w.Code != http.StatusUnprocessableEntity || !strings.Contains(w.Body.String(), "age is required") {
		t.Fatalf("expected missing age to be rejected, got %d: %s", w.Code, w.Body.String())
	}

	w = postPredict(router, strings.Replace(validPatient, `"restingEcg": 0`, `"restingEcg": 5`, 1))
	if w.Code != http.StatusUnprocessableEntity || !strings.Contains(w.Body.String(), "restingEcg is not a valid option") {
		t.Fatalf("expected unknown ecg code to be rejected, got %d: %s", w.Code, w.Body.String())
	}

	w = postPredict(router, strings.Replace(validPatient, `"stSlope": 1`, `"stSlope": "Sideways"`, 1))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown label, got %d", w.Code)
	}

	w = postPredict(router, `{"age": `)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "invalid payload") {
		t.Fatalf("expected 400 for malformed json, got %d: %s", w.Code, w.Body.String())
	}
}

func TestFeatureInsights(t *testing.T) {
	router, _ := testRouter(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/insights/features", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Features []struct {
			Feature    string  `json:"feature"`
			Importance float64 `json:"importance"`
		} `json:"features"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Features) != 16 || resp.Features[0].Feature != "cholesterol" {
		t.Fatalf("unexpected insights %+v", resp.Features)
	}
}

func TestFormOptions(t *testing.T) {
	router, _ := testRouter(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/form/options", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Left Ventricular Hypertrophy") || !strings.Contains(w.Body.String(), `"field":"oldpeak"`) {
		t.Fatalf("unexpected options body: %s", w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := testRouter(t, nil)
	postPredict(router, validPatient)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/metrics", nil)
	router.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), `heartrisk_predictions_total{outcome="low_risk"} 1`) {
		t.Fatalf("expected prediction counter, got %s", w.Body.String())
	}
}

func countOutcome(t *testing.T, svc *predictor, outcome string) float64 {
	t.Helper()
	w := httptest.NewRecorder()
	svc.metrics.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	prefix := `heartrisk_predictions_total{outcome="` + outcome + `"} `
	for _, line := range strings.Split(w.Body.String(), "\n") {
		if strings.HasPrefix(line, prefix) {
			var v float64
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, prefix)), &v); err != nil {
				t.Fatalf("parse %q: %v", line, err)
			}
			return v
		}
	}
	return 0
}

func TestPredictFailureKeepsServing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	artifacts := testArtifacts(t)
	artifacts.Classifier = &flakyClassifier{Classifier: artifacts.Classifier, failures: 1}
	svc := predictorFor(t, artifacts)
	router := setupRouter(svc, nil, ".")

	w := postPredict(router, validPatient)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["error"] != "prediction_failed" || body["message"] != "Prediction failed" {
		t.Fatalf("unexpected failure body %v", body)
	}
	if strings.Contains(w.Body.String(), "corrupt node table") {
		t.Fatalf("failure cause leaked to the client: %s", w.Body.String())
	}
	if got := countOutcome(t, svc, "failed"); got != 1 {
		t.Fatalf("expected 1 failed outcome, got %v", got)
	}

	w = postPredict(router, validPatient)
	if w.Code != http.StatusOK {
		t.Fatalf("expected the next request to succeed, got %d: %s", w.Code, w.Body.String())
	}
}

func TestFeatureInsightsFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	artifacts := testArtifacts(t)
	artifacts.Classifier = truncatedImportances{Classifier: artifacts.Classifier}
	router := setupRouter(predictorFor(t, artifacts), nil, ".")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/insights/features", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "insights_unavailable") || strings.Contains(w.Body.String(), "differ in length") {
		t.Fatalf("unexpected insights failure body: %s", w.Body.String())
	}

	// predictions do not depend on importances
	if w := postPredict(router, validPatient); w.Code != http.StatusOK {
		t.Fatalf("expected predict to keep working, got %d", w.Code)
	}
}

func TestPredictRecordRejectsNonPositive(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := testPredictor(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	svc.predictRecord(c, patient.RawInput{
		Age: 40, Sex: patient.Male, RestingBP: 0, Cholesterol: 0,
		FastingBloodSugar: patient.No, MaxHeartRate: 150, ExerciseAngina: patient.No,
		ChestPainType: patient.TypicalAngina, RestingECG: patient.ECGNormal, STSlope: patient.SlopeUpward,
	}, time.Now())

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["message"] != "Invalid input: Cholesterol and Blood Pressure must be > 0." {
		t.Fatalf("unexpected message %q", body["message"])
	}
	if got := countOutcome(t, svc, "invalid_input"); got != 1 {
		t.Fatalf("expected 1 invalid outcome, got %v", got)
	}
}

func TestMalformedPayloadCountsAsInvalid(t *testing.T) {
	router, svc := testRouter(t, nil)

	if w := postPredict(router, `{"age": `); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if got := countOutcome(t, svc, "invalid_input"); got != 1 {
		t.Fatalf("expected 1 invalid outcome, got %v", got)
	}
}

func TestRegisterValidators(t *testing.T) {
	if err := registerValidators(); err != nil {
		t.Fatalf("register validators: %v", err)
	}
	if err := registerValidators(); err != nil {
		t.Fatalf("second registration: %v", err)
	}

	bad, good := patient.STSlope(7), patient.SlopeFlat
	type slopeOnly struct {
		STSlope *patient.STSlope `json:"stSlope" binding:"required,choice"`
	}
	if err := binding.Validator.ValidateStruct(slopeOnly{STSlope: &bad}); err == nil {
		t.Fatal("expected unknown slope code to fail the choice tag")
	}
	if err := binding.Validator.ValidateStruct(slopeOnly{STSlope: &good}); err != nil {
		t.Fatalf("expected valid slope to pass, got %v", err)
	}
}
