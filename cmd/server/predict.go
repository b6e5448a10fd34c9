package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/Skufu/HeartRisk/internal/advice"
	"github.com/Skufu/HeartRisk/internal/features"
	"github.com/Skufu/HeartRisk/internal/inference"
	"github.com/Skufu/HeartRisk/internal/metrics"
	"github.com/Skufu/HeartRisk/internal/model"
	"github.com/Skufu/HeartRisk/internal/patient"
)

// PredictRequest mirrors the intake form. Ranges are the form's widget limits.
type PredictRequest struct {
	Age               *int                   `json:"age" binding:"required,min=1,max=120"`
	Sex               *patient.Sex           `json:"sex" binding:"required,choice"`
	RestingBP         *int                   `json:"restingBp" binding:"required,min=50,max=250"`
	Cholesterol       *int                   `json:"cholesterol" binding:"required,min=50,max=600"`
	FastingBloodSugar *patient.YesNo         `json:"fastingBloodSugar" binding:"required,choice"`
	MaxHeartRate      *int                   `json:"maxHeartRate" binding:"required,min=50,max=250"`
	ExerciseAngina    *patient.YesNo         `json:"exerciseAngina" binding:"required,choice"`
	Oldpeak           *float64               `json:"oldpeak" binding:"required,min=-3,max=10"`
	ChestPainType     *patient.ChestPainType `json:"chestPainType" binding:"required,choice"`
	RestingECG        *patient.RestingECG    `json:"restingEcg" binding:"required,choice"`
	STSlope           *patient.STSlope       `json:"stSlope" binding:"required,choice"`
}

func (r PredictRequest) rawInput() patient.RawInput {
	return patient.RawInput{
		Age:               *r.Age,
		Sex:               *r.Sex,
		RestingBP:         *r.RestingBP,
		Cholesterol:       *r.Cholesterol,
		FastingBloodSugar: *r.FastingBloodSugar,
		MaxHeartRate:      *r.MaxHeartRate,
		ExerciseAngina:    *r.ExerciseAngina,
		Oldpeak:           *r.Oldpeak,
		ChestPainType:     *r.ChestPainType,
		RestingECG:        *r.RestingECG,
		STSlope:           *r.STSlope,
	}
}

type PredictionResponse struct {
	RequestID       string           `json:"requestId"`
	Label           string           `json:"label"`
	Prediction      int              `json:"prediction"`
	Probability     float64          `json:"probability"`
	Message         string           `json:"message"`
	Consult         string           `json:"consult"`
	Recommendations []advice.Section `json:"recommendations"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type predictor struct {
	pipeline *inference.Pipeline
	advice   *advice.Selector
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func newPredictor(artifacts *model.Artifacts, logger *slog.Logger) (*predictor, error) {
	pipeline, err := inference.New(artifacts)
	if err != nil {
		return nil, err
	}
	selector, err := advice.NewSelector(advice.DefaultRules)
	if err != nil {
		return nil, fmt.Errorf("recommendation rules: %w", err)
	}
	return &predictor{
		pipeline: pipeline,
		advice:   selector,
		metrics:  metrics.New(),
		logger:   logger,
	}, nil
}

func (p *predictor) handlePredict(c *gin.Context) {
	start := time.Now()

	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			p.metrics.Observe(metrics.OutcomeInvalid, 0)
			fields := describeValidation(verrs)
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "validation_failed",
				"message": "Invalid input: " + joinMessages(fields),
				"fields":  fields,
			})
			return
		}
		p.metrics.Observe(metrics.OutcomeInvalid, 0)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	p.predictRecord(c, req.rawInput(), start)
}

// predictRecord runs one decoded record through encoding, inference and advice and writes the
// response. The encoder's own checks still apply to records that skipped request binding.
func (p *predictor) predictRecord(c *gin.Context, in patient.RawInput, start time.Time) {
	vec, err := features.Encode(in)
	if err != nil {
		var verr *features.ValidationError
		if errors.As(err, &verr) {
			p.metrics.Observe(metrics.OutcomeInvalid, 0)
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "validation_failed",
				"message": verr.Reason,
			})
			return
		}
		p.fail(c, "encode", err)
		return
	}

	result, err := p.pipeline.Predict(vec)
	if err != nil {
		p.fail(c, "inference", err)
		return
	}

	sections, err := p.advice.Select(advice.Measurements{
		Cholesterol:  in.Cholesterol,
		MaxHeartRate: in.MaxHeartRate,
		RestingBP:    in.RestingBP,
		Probability:  result.Probability,
	})
	if err != nil {
		p.fail(c, "recommendations", err)
		return
	}

	outcome := metrics.OutcomeLowRisk
	if result.Label == inference.HighRisk {
		outcome = metrics.OutcomeHighRisk
	}
	p.metrics.Observe(outcome, time.Since(start))

	c.JSON(http.StatusOK, PredictionResponse{
		RequestID:       c.GetString(requestIDKey),
		Label:           result.Label.String(),
		Prediction:      int(result.Label),
		Probability:     result.Probability,
		Message:         result.Message(),
		Consult:         inference.ConsultNote,
		Recommendations: sections,
	})
}

// fail logs the cause and answers with a generic message; the details stay server side.
func (p *predictor) fail(c *gin.Context, stage string, err error) {
	p.metrics.Observe(metrics.OutcomeFailed, 0)
	p.logger.Error("prediction failed",
		"request_id", c.GetString(requestIDKey),
		"stage", stage,
		"error", err,
	)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "prediction_failed",
		"message": "Prediction failed",
	})
}

func (p *predictor) handleFeatureInsights(c *gin.Context) {
	insights, err := p.pipeline.FeatureInsights()
	if err != nil {
		p.logger.Error("feature insights unavailable", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "insights_unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"features": insights,
		"note":     "This chart highlights factors influencing predictions. Higher importance means greater impact.",
	})
}

type numericField struct {
	Field   string  `json:"field"`
	Label   string  `json:"label"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
	Step    float64 `json:"step"`
}

var numericFields = []numericField{
	{Field: "age", Label: "Age (years)", Min: 1, Max: 120, Default: 40, Step: 1},
	{Field: "restingBp", Label: "Resting Blood Pressure (mm Hg)", Min: 50, Max: 250, Default: 120, Step: 1},
	{Field: "cholesterol", Label: "Serum Cholesterol (mg/dl)", Min: 50, Max: 600, Default: 200, Step: 1},
	{Field: "maxHeartRate", Label: "Maximum Heart Rate", Min: 50, Max: 250, Default: 150, Step: 1},
	{Field: "oldpeak", Label: "Oldpeak (ST depression)", Min: -3, Max: 10, Default: 0, Step: 0.1},
}

func handleFormOptions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"numeric":     numericFields,
		"categorical": patient.Options(),
	})
}

func describeValidation(verrs validator.ValidationErrors) []FieldError {
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		var msg string
		switch fe.Tag() {
		case "required":
			msg = fe.Field() + " is required"
		case "min":
			msg = fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
		case "max":
			msg = fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
		case "choice":
			msg = fe.Field() + " is not a valid option"
		default:
			msg = fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
		}
		out = append(out, FieldError{Field: fe.Field(), Message: msg})
	}
	return out
}

func joinMessages(fields []FieldError) string {
	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}
