// Package features turns a patient record into the positional feature vector the exported model
// and scaler were fitted against.
package features

import (
	"fmt"
	"math"

	"github.com/Skufu/HeartRisk/internal/patient"
)

const (
	ColAge               = "age"
	ColSex               = "sex"
	ColRestingBP         = "resting bp s"
	ColCholesterol       = "cholesterol"
	ColFastingBloodSugar = "fasting blood sugar"
	ColMaxHeartRate      = "max heart rate"
	ColExerciseAngina    = "exercise angina"
	ColOldpeak           = "oldpeak"
)

// Columns is the training schema. Both artifacts index features by position, so the order here
// must never change without re-exporting them.
var Columns = []string{
	ColAge,
	ColSex,
	ColRestingBP,
	ColCholesterol,
	ColFastingBloodSugar,
	ColMaxHeartRate,
	ColExerciseAngina,
	ColOldpeak,
	"chest pain type_2",
	"chest pain type_3",
	"chest pain type_4",
	"resting ecg_1",
	"resting ecg_2",
	"ST slope_1",
	"ST slope_2",
	"ST slope_3",
}

// ContinuousColumns are standardised by the scaler; every other column passes through.
var ContinuousColumns = []string{ColAge, ColRestingBP, ColCholesterol, ColMaxHeartRate, ColOldpeak}

// Encode maps a record onto Columns. Continuous values are left unscaled.
//
// Chest pain type and resting ECG drop their first category. ST slope keeps a dummy for all three
// slopes because the exported model was trained that way.
func Encode(in patient.RawInput) (Vector, error) {
	if in.Cholesterol <= 0 || in.RestingBP <= 0 {
		return Vector{}, &ValidationError{
			Fields: []string{"cholesterol", "restingBp"},
			Reason: "Invalid input: Cholesterol and Blood Pressure must be > 0.",
		}
	}

	if err := checkCategoricals(in); err != nil {
		return Vector{}, err
	}
	if math.IsNaN(in.Oldpeak) || math.IsInf(in.Oldpeak, 0) {
		return Vector{}, &EncodingError{Field: "oldpeak", Reason: fmt.Sprintf("not a finite number: %v", in.Oldpeak)}
	}

	values := []float64{
		float64(in.Age),
		float64(in.Sex.Code()),
		float64(in.RestingBP),
		float64(in.Cholesterol),
		float64(in.FastingBloodSugar.Code()),
		float64(in.MaxHeartRate),
		float64(in.ExerciseAngina.Code()),
		in.Oldpeak,
		indicator(in.ChestPainType == patient.AtypicalAngina),
		indicator(in.ChestPainType == patient.NonAnginalPain),
		indicator(in.ChestPainType == patient.Asymptomatic),
		indicator(in.RestingECG == patient.ECGSTTAbnormality),
		indicator(in.RestingECG == patient.ECGLeftVentricularHypertrophy),
		indicator(in.STSlope == patient.SlopeUpward),
		indicator(in.STSlope == patient.SlopeFlat),
		indicator(in.STSlope == patient.SlopeDownward),
	}

	return NewVector(Columns, values)
}

func checkCategoricals(in patient.RawInput) error {
	checks := []struct {
		field string
		valid bool
		code  int
	}{
		{"sex", in.Sex.Valid(), in.Sex.Code()},
		{"fastingBloodSugar", in.FastingBloodSugar.Valid(), in.FastingBloodSugar.Code()},
		{"exerciseAngina", in.ExerciseAngina.Valid(), in.ExerciseAngina.Code()},
		{"chestPainType", in.ChestPainType.Valid(), in.ChestPainType.Code()},
		{"restingEcg", in.RestingECG.Valid(), in.RestingECG.Code()},
		{"stSlope", in.STSlope.Valid(), in.STSlope.Code()},
	}
	for _, c := range checks {
		if !c.valid {
			return &EncodingError{Field: c.field, Reason: fmt.Sprintf("unknown code %d", c.code)}
		}
	}
	return nil
}

func indicator(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}
