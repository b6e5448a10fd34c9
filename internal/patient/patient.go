// Package patient holds the raw clinical measurements collected for one prediction and the
// categorical fields of the intake form.
package patient

import "bytes"

// RawInput is one patient record as entered on the form. It is built per request and discarded
// once the prediction has been made.
type RawInput struct {
	Age               int
	Sex               Sex
	RestingBP         int // mm Hg
	Cholesterol       int // mg/dl
	FastingBloodSugar YesNo
	MaxHeartRate      int
	ExerciseAngina    YesNo
	Oldpeak           float64 // ST depression
	ChestPainType     ChestPainType
	RestingECG        RestingECG
	STSlope           STSlope
}

type Sex int

const (
	Female Sex = 0
	Male   Sex = 1
)

var sexChoices = []Choice{{"Male", 1}, {"Female", 0}}

func (s Sex) Code() int { return int(s) }

func (s Sex) Valid() bool {
	_, ok := labelFor(sexChoices, int(s))
	return ok
}

func (s Sex) Label() string {
	l, _ := labelFor(sexChoices, int(s))
	return l
}

func (s *Sex) UnmarshalJSON(data []byte) error {
	code, err := decodeChoice(data, sexChoices, "sex")
	if err != nil {
		return err
	}
	*s = Sex(code)
	return nil
}

// YesNo is used for fasting blood sugar > 120 mg/dL and exercise-induced angina.
type YesNo int

const (
	No  YesNo = 0
	Yes YesNo = 1
)

var yesNoChoices = []Choice{{"No", 0}, {"Yes", 1}}

func (y YesNo) Code() int { return int(y) }

func (y YesNo) Valid() bool {
	_, ok := labelFor(yesNoChoices, int(y))
	return ok
}

func (y YesNo) Label() string {
	l, _ := labelFor(yesNoChoices, int(y))
	return l
}

func (y *YesNo) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true":
		*y = Yes
		return nil
	case "false":
		*y = No
		return nil
	}
	code, err := decodeChoice(data, yesNoChoices, "yes/no")
	if err != nil {
		return err
	}
	*y = YesNo(code)
	return nil
}

type ChestPainType int

const (
	TypicalAngina  ChestPainType = 1
	AtypicalAngina ChestPainType = 2
	NonAnginalPain ChestPainType = 3
	Asymptomatic   ChestPainType = 4
)

var chestPainChoices = []Choice{
	{"Typical Angina", 1},
	{"Atypical Angina", 2},
	{"Non-anginal Pain", 3},
	{"Asymptomatic", 4},
}

func (c ChestPainType) Code() int { return int(c) }

func (c ChestPainType) Valid() bool {
	_, ok := labelFor(chestPainChoices, int(c))
	return ok
}

func (c ChestPainType) Label() string {
	l, _ := labelFor(chestPainChoices, int(c))
	return l
}

func (c *ChestPainType) UnmarshalJSON(data []byte) error {
	code, err := decodeChoice(data, chestPainChoices, "chest pain type")
	if err != nil {
		return err
	}
	*c = ChestPainType(code)
	return nil
}

type RestingECG int

const (
	ECGNormal                     RestingECG = 0
	ECGSTTAbnormality             RestingECG = 1
	ECGLeftVentricularHypertrophy RestingECG = 2
)

var restingECGChoices = []Choice{
	{"Normal", 0},
	{"ST-T Wave Abnormality", 1},
	{"Left Ventricular Hypertrophy", 2},
}

func (r RestingECG) Code() int { return int(r) }

func (r RestingECG) Valid() bool {
	_, ok := labelFor(restingECGChoices, int(r))
	return ok
}

func (r RestingECG) Label() string {
	l, _ := labelFor(restingECGChoices, int(r))
	return l
}

func (r *RestingECG) UnmarshalJSON(data []byte) error {
	code, err := decodeChoice(data, restingECGChoices, "resting ecg")
	if err != nil {
		return err
	}
	*r = RestingECG(code)
	return nil
}

type STSlope int

const (
	SlopeUpward   STSlope = 1
	SlopeFlat     STSlope = 2
	SlopeDownward STSlope = 3
)

var stSlopeChoices = []Choice{{"Upward", 1}, {"Flat", 2}, {"Downward", 3}}

func (s STSlope) Code() int { return int(s) }

func (s STSlope) Valid() bool {
	_, ok := labelFor(stSlopeChoices, int(s))
	return ok
}

func (s STSlope) Label() string {
	l, _ := labelFor(stSlopeChoices, int(s))
	return l
}

func (s *STSlope) UnmarshalJSON(data []byte) error {
	code, err := decodeChoice(data, stSlopeChoices, "st slope")
	if err != nil {
		return err
	}
	*s = STSlope(code)
	return nil
}

// FieldOptions describes the choices of one categorical field.
type FieldOptions struct {
	Field   string   `json:"field"`
	Label   string   `json:"label"`
	Choices []Choice `json:"choices"`
}

// Options returns every categorical field with its choices in form order.
func Options() []FieldOptions {
	return []FieldOptions{
		{Field: "sex", Label: "Sex", Choices: clone(sexChoices)},
		{Field: "fastingBloodSugar", Label: "Fasting Blood Sugar > 120 mg/dL", Choices: clone(yesNoChoices)},
		{Field: "exerciseAngina", Label: "Exercise-Induced Angina", Choices: clone(yesNoChoices)},
		{Field: "chestPainType", Label: "Chest Pain Type", Choices: clone(chestPainChoices)},
		{Field: "restingEcg", Label: "Resting ECG", Choices: clone(restingECGChoices)},
		{Field: "stSlope", Label: "ST Slope", Choices: clone(stSlopeChoices)},
	}
}

func clone(in []Choice) []Choice {
	out := make([]Choice, len(in))
	copy(out, in)
	return out
}
