package patient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Choice is one selectable (label, code) pair of a categorical field.
type Choice struct {
	Label string `json:"label"`
	Code  int    `json:"code"`
}

func labelFor(choices []Choice, code int) (string, bool) {
	for _, c := range choices {
		if c.Code == code {
			return c.Label, true
		}
	}
	return "", false
}

// decodeChoice accepts a bare code (7), a label ("Flat"), a {"label","code"} object or a
// ["label", code] pair and returns the code. Only the code is kept; an unknown label is an error,
// an unknown code is left for the caller to reject.
func decodeChoice(data []byte, choices []Choice, field string) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}

	switch v := raw.(type) {
	case json.Number:
		return numberCode(v, field)
	case string:
		label := strings.TrimSpace(v)
		for _, c := range choices {
			if strings.EqualFold(c.Label, label) {
				return c.Code, nil
			}
		}
		return 0, fmt.Errorf("%s: unknown option %q", field, v)
	case map[string]any:
		code, ok := v["code"].(json.Number)
		if !ok {
			return 0, fmt.Errorf("%s: option object needs a numeric code", field)
		}
		return numberCode(code, field)
	case []any:
		if len(v) != 2 {
			return 0, fmt.Errorf("%s: option pair must have 2 elements, got %d", field, len(v))
		}
		code, ok := v[1].(json.Number)
		if !ok {
			return 0, fmt.Errorf("%s: option pair needs a numeric code", field)
		}
		return numberCode(code, field)
	default:
		return 0, fmt.Errorf("%s: unsupported option value %s", field, string(data))
	}
}

func numberCode(n json.Number, field string) (int, error) {
	code, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("%s: code must be an integer: %w", field, err)
	}
	return int(code), nil
}
