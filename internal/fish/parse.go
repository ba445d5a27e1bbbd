package fish

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/hpungsan/fishscroll/internal/errors"
)

// StripCodeFences removes leading/trailing Markdown code fences (``` or
// ```json) and surrounding whitespace. Text without fences is only trimmed.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "```"); ok {
		// Drop the info string ("json", "JSON", ...) on the opening fence line.
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			if info := strings.TrimSpace(rest[:nl]); !strings.ContainsAny(info, "{[") {
				rest = rest[nl+1:]
			}
		} else {
			rest = strings.TrimPrefix(strings.TrimPrefix(rest, "json"), "JSON")
		}
		s = rest
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Parse strips code fences from raw model/backend output, parses it as a
// JSON object and validates it against the Analysis shape. Any failure is a
// MALFORMED_RESPONSE carrying raw for diagnostics; there is no partial
// extraction or repair.
func Parse(raw string) (*Analysis, error) {
	text := StripCodeFences(raw)
	if text == "" {
		return nil, errors.NewMalformedResponse("empty response", raw)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, errors.NewMalformedResponse(fmt.Sprintf("not a JSON object: %v", err), raw)
	}
	if fields == nil {
		return nil, errors.NewMalformedResponse("not a JSON object: null", raw)
	}

	a, err := decodeAnalysis(fields)
	if err != nil {
		return nil, errors.NewMalformedResponse(err.Error(), raw)
	}
	return a, nil
}

// Validate checks an already-typed Analysis against the same rules Parse
// enforces on the wire. Used for records built in code or loaded from storage.
func Validate(a *Analysis) error {
	if a == nil {
		return fmt.Errorf("analysis is nil")
	}
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	_, err = decodeAnalysis(fields)
	return err
}

func decodeAnalysis(fields map[string]json.RawMessage) (*Analysis, error) {
	v := &validator{fields: fields}
	a := &Analysis{
		FishName:        v.requiredString("fishName", true),
		FishNameEn:      v.requiredString("fishNameEn", false),
		FishNameJp:      v.requiredString("fishNameJp", false),
		Confidence:      v.percent("confidence"),
		Characteristics: v.stringList("characteristics"),
		Taste:           v.requiredString("taste", false),
		Texture:         v.requiredString("texture", false),
		Season:          v.requiredString("season", false),
		Price:           v.price("price"),
		Recommendations: v.stringList("recommendations"),
		Nutrition:       v.requiredString("nutrition", false),
		Warning:         v.optionalString("warning"),
		Alternatives:    v.alternatives("alternatives"),
	}
	if v.err != nil {
		return nil, v.err
	}
	return a, nil
}

// validator decodes fields one at a time and keeps the first failure.
type validator struct {
	fields map[string]json.RawMessage
	err    error
}

func (v *validator) fail(format string, args ...any) {
	if v.err == nil {
		v.err = fmt.Errorf(format, args...)
	}
}

// lookup returns the raw value for key, treating JSON null as absent.
func (v *validator) lookup(key string) (json.RawMessage, bool) {
	raw, ok := v.fields[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

func (v *validator) requiredString(key string, nonBlank bool) string {
	raw, ok := v.lookup(key)
	if !ok {
		v.fail("missing field %q", key)
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		v.fail("field %q must be a string", key)
		return ""
	}
	if nonBlank && strings.TrimSpace(s) == "" {
		v.fail("field %q must not be empty", key)
	}
	return s
}

func (v *validator) optionalString(key string) string {
	raw, ok := v.lookup(key)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		v.fail("field %q must be a string", key)
	}
	return s
}

// percent decodes an integer in [0,100]. Whole floats such as 82.0 are
// accepted; fractional values and numeric strings are not.
func (v *validator) percent(key string) int {
	raw, ok := v.lookup(key)
	if !ok {
		v.fail("missing field %q", key)
		return 0
	}
	return v.percentValue(key, raw)
}

func (v *validator) percentValue(key string, raw json.RawMessage) int {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		v.fail("field %q must be a number", key)
		return 0
	}
	if f != math.Trunc(f) {
		v.fail("field %q must be an integer, got %v", key, f)
		return 0
	}
	if f < 0 || f > 100 {
		v.fail("field %q must be between 0 and 100, got %v", key, f)
		return 0
	}
	return int(f)
}

func (v *validator) stringList(key string) []string {
	raw, ok := v.lookup(key)
	if !ok {
		v.fail("missing field %q", key)
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		v.fail("field %q must be an array of strings", key)
		return nil
	}
	if len(list) == 0 {
		v.fail("field %q must not be empty", key)
	}
	return list
}

func (v *validator) price(key string) PriceTier {
	label := v.requiredString(key, false)
	if v.err != nil {
		return ""
	}
	tier, ok := ParsePriceTier(label)
	if !ok {
		v.fail("field %q must be one of 저렴, 보통, 고급, 최고급, got %q", key, label)
	}
	return tier
}

func (v *validator) alternatives(key string) []Alternative {
	raw, ok := v.lookup(key)
	if !ok {
		return nil
	}
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		v.fail("field %q must be an array of objects", key)
		return nil
	}
	out := make([]Alternative, 0, len(items))
	for i, item := range items {
		iv := &validator{fields: item}
		name := iv.requiredString("name", true)
		var prob int
		if p, ok := iv.lookup("probability"); ok {
			prob = iv.percentValue("probability", p)
		} else {
			iv.fail("missing field %q", "probability")
		}
		if iv.err != nil {
			v.fail("%s[%d]: %v", key, i, iv.err)
			return nil
		}
		out = append(out, Alternative{Name: name, Probability: prob})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
