// Package guardrail validates stage outputs against their required shape.
// Every check is a pure function over the raw text: it parses, inspects, and
// returns a verdict. Rejection reasons name the offending field and the
// expected type or closed set, so they can be re-fed to the next attempt as
// corrective instruction.
package guardrail

import (
	"encoding/json"
	"fmt"
	"strings"
)

const notJSONReason = "Output is not valid JSON. Please return a properly formatted JSON string."

// Verdict is the outcome of validating one stage output.
type Verdict struct {
	OK      bool
	Payload string // the accepted raw output
	Reason  string // human-readable rejection reason
}

// Func validates a stage's raw textual output.
type Func func(raw string) Verdict

func accept(raw string) Verdict {
	return Verdict{OK: true, Payload: raw}
}

func reject(format string, args ...any) Verdict {
	return Verdict{Reason: fmt.Sprintf(format, args...)}
}

// wrap adds panic recovery around a validator body. A guardrail never raises;
// any panic during validation becomes a rejection carrying the message.
func wrap(fn Func) Func {
	return func(raw string) (v Verdict) {
		defer func() {
			if r := recover(); r != nil {
				v = reject("Validation error: %v. Please check the output format.", r)
			}
		}()
		return fn(raw)
	}
}

// parseObject decodes raw as a JSON object. A decode failure is the
// JSON-specific rejection, never a field-specific one.
func parseObject(raw string) (map[string]any, *Verdict) {
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		v := reject("%s", notJSONReason)
		return nil, &v
	}
	return data, nil
}

// section extracts a required top-level object key.
func section(data map[string]any, key string) (map[string]any, *Verdict) {
	v, ok := data[key]
	if !ok {
		r := reject("Missing required fields: %s. Please ensure all fields are included.", key)
		return nil, &r
	}
	obj, ok := v.(map[string]any)
	if !ok {
		r := reject("The '%s' field must be an object.", key)
		return nil, &r
	}
	return obj, nil
}

// missingFields returns the required fields absent from obj.
func missingFields(obj map[string]any, fields ...string) []string {
	var missing []string
	for _, f := range fields {
		if _, ok := obj[f]; !ok {
			missing = append(missing, f)
		}
	}
	return missing
}

func requireFields(obj map[string]any, name string, fields ...string) *Verdict {
	if missing := missingFields(obj, fields...); len(missing) > 0 {
		v := reject("%s is missing fields: %s. Please ensure all fields are included.", name, strings.Join(missing, ", "))
		return &v
	}
	return nil
}

// requireList checks that a field is an array; when nonEmpty is set, an empty
// array is also rejected.
func requireList(obj map[string]any, field string, nonEmpty bool) ([]any, *Verdict) {
	raw, ok := obj[field].([]any)
	if !ok {
		v := reject("The '%s' field must be an array.", field)
		return nil, &v
	}
	if nonEmpty && len(raw) == 0 {
		v := reject("%s must contain at least one entry.", field)
		return nil, &v
	}
	return raw, nil
}

// requireEnum checks that a string field takes a value from its closed set.
func requireEnum(obj map[string]any, field string, allowed ...string) *Verdict {
	val, _ := obj[field].(string)
	for _, a := range allowed {
		if val == a {
			return nil
		}
	}
	v := reject("%s must be one of: %s.", field, strings.Join(allowed, ", "))
	return &v
}

// requireObjectField checks that a nested field is an object and returns it.
func requireObjectField(obj map[string]any, field string) (map[string]any, *Verdict) {
	nested, ok := obj[field].(map[string]any)
	if !ok {
		v := reject("The '%s' field must be an object.", field)
		return nil, &v
	}
	return nested, nil
}

// combinedSections builds a composite-aggregation guardrail: each named
// section must independently be present and be an object. Section internals
// are not re-validated; that was the sub-stage's own guardrail's job.
func combinedSections(sections ...string) Func {
	return wrap(func(raw string) Verdict {
		data, bad := parseObject(raw)
		if bad != nil {
			return *bad
		}
		for _, s := range sections {
			if _, bad := section(data, s); bad != nil {
				return *bad
			}
		}
		return accept(raw)
	})
}

var registry = map[string]Func{
	"vision":              VisionAnalysis,
	"weather":             WeatherReport,
	"sensor":              SensorAnalysis,
	"finance":             FinancialAnalysis,
	"compliance":          ComplianceAnalysis,
	"eu_ai_act":           EUAIActAssessment,
	"compliance_combined": CombinedCompliance,
	"master":              MasterReport,
}

// Validate applies the guardrail registered for the stage. Unknown stages are
// rejected outright: a stage without a contract cannot be accepted.
func Validate(stage, raw string) Verdict {
	fn, ok := registry[stage]
	if !ok {
		return reject("no guardrail registered for stage %q", stage)
	}
	return fn(raw)
}
