package assertions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/hitcontract/packages/contract"
	"github.com/abdul-hamid-achik/hitcontract/packages/http"
	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

// ErrDecode is returned when a body that must be JSON is not.
var ErrDecode = errors.New("response body is not valid JSON")

type Result struct {
	Passed   bool
	Message  string
	Expected any
	Actual   any
	Subject  string
	Operator string
}

type Evaluator struct {
	response *http.Response
	body     any
	bodyJSON gjson.Result
	decoded  bool
	baseDir  string // Base directory for resolving schema file paths
}

// EvaluatorOption is a functional option for configuring an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithBaseDir sets the directory schema paths are resolved against.
func WithBaseDir(dir string) EvaluatorOption {
	return func(e *Evaluator) {
		e.baseDir = dir
	}
}

func NewEvaluator(resp *http.Response, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		response: resp,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Decode parses the response body as JSON. A blank body decodes to null so
// that rules report it as a mismatch rather than a decode failure.
func (e *Evaluator) Decode() error {
	if e.decoded {
		return nil
	}
	if !e.response.HasBody() {
		e.decoded = true
		return nil
	}
	if !gjson.ValidBytes(e.response.Body) {
		return fmt.Errorf("%w (content type %q): %s", ErrDecode, e.response.ContentType(), truncate(e.response.BodyString(), 120))
	}
	body, err := decodeJSON(e.response.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	e.body = body
	e.bodyJSON = gjson.ParseBytes(e.response.Body)
	e.decoded = true
	return nil
}

func (e *Evaluator) Status(expected int) *Result {
	result := &Result{
		Subject:  "status",
		Operator: "==",
		Expected: expected,
		Actual:   e.response.StatusCode,
	}
	if e.response.StatusCode == expected {
		result.Passed = true
		return result
	}
	result.Message = fmt.Sprintf("expected status %d, got %d", expected, e.response.StatusCode)
	return result
}

// Evaluate checks one rule. Decode must have succeeded first.
func (e *Evaluator) Evaluate(rule contract.Rule) *Result {
	result := &Result{
		Subject:  "body",
		Operator: rule.Kind.String(),
		Expected: rule.Expected(),
	}

	if !e.decoded {
		result.Message = "response body was not decoded"
		return result
	}

	var passed bool
	var msg string
	switch rule.Kind {
	case contract.RuleNonEmpty:
		result.Actual = describe(e.body)
		passed, msg = nonEmpty(e.body)
	case contract.RuleIsArray:
		result.Actual = jsonType(e.body)
		passed, msg = isArray(e.body)
	case contract.RuleHasKeys:
		result.Actual = objectKeys(e.body)
		passed, msg = hasKeys(e.body, rule.Keys)
	case contract.RuleFieldEquals:
		result.Subject = "body." + rule.Key
		actual, exists := e.field(rule.Key)
		result.Actual = actual
		if !exists {
			passed, msg = false, fmt.Sprintf("field %q is missing", rule.Key)
		} else {
			passed, msg = equals(actual, rule.Value)
		}
	case contract.RuleDeepIncludes:
		result.Actual = e.body
		passed, msg = deepIncludes(e.body, rule.Subset)
	case contract.RuleMatchesSchema:
		passed, msg = e.schema(rule.SchemaPath)
	default:
		passed, msg = false, fmt.Sprintf("unknown rule: %v", rule.Kind)
	}

	result.Passed = passed
	result.Message = msg
	return result
}

// convertBracketNotation converts array bracket notation to gjson dot notation
// e.g., "[0].id" -> "0.id", "items[0].tags[1]" -> "items.0.tags.1"
func convertBracketNotation(path string) string {
	result := bracketPattern.ReplaceAllString(path, ".$1")
	return strings.TrimPrefix(result, ".")
}

var bracketPattern = regexp.MustCompile(`\[(\d+)\]`)

func (e *Evaluator) field(path string) (any, bool) {
	if !e.bodyJSON.Exists() {
		return nil, false
	}
	result := e.bodyJSON.Get(convertBracketNotation(path))
	if !result.Exists() {
		return nil, false
	}
	v, err := decodeJSON([]byte(result.Raw))
	if err != nil {
		return result.Value(), true
	}
	return v, true
}

// decodeJSON keeps numbers as json.Number so integers beyond 2^53 compare
// exactly.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func nonEmpty(body any) (bool, string) {
	switch v := body.(type) {
	case nil:
		return false, "expected non-empty body, got null"
	case map[string]any:
		if len(v) == 0 {
			return false, "expected non-empty object, got {}"
		}
	case []any:
		if len(v) == 0 {
			return false, "expected non-empty array, got []"
		}
	case string:
		if v == "" {
			return false, `expected non-empty string, got ""`
		}
	default:
		return false, fmt.Sprintf("expected an object, array or string, got %s", jsonType(body))
	}
	return true, ""
}

func isArray(body any) (bool, string) {
	if _, ok := body.([]any); ok {
		return true, ""
	}
	return false, fmt.Sprintf("expected array, got %s", jsonType(body))
}

func hasKeys(body any, keys []string) (bool, string) {
	obj, ok := body.(map[string]any)
	if !ok {
		return false, fmt.Sprintf("expected object, got %s", jsonType(body))
	}
	var missing []string
	for _, k := range keys {
		if _, ok := obj[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return false, fmt.Sprintf("missing keys: %s", strings.Join(missing, ", "))
	}
	return true, ""
}

func deepIncludes(body any, subset map[string]any) (bool, string) {
	obj, ok := body.(map[string]any)
	if !ok {
		return false, fmt.Sprintf("expected object, got %s", jsonType(body))
	}
	keys := make([]string, 0, len(subset))
	for k := range subset {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var problems []string
	for _, k := range keys {
		actual, exists := obj[k]
		if !exists {
			problems = append(problems, fmt.Sprintf("%s: missing", k))
			continue
		}
		if !valuesEqual(actual, subset[k]) {
			problems = append(problems, fmt.Sprintf("%s: expected %v, got %v", k, subset[k], actual))
		}
	}
	if len(problems) > 0 {
		return false, strings.Join(problems, "; ")
	}
	return true, ""
}

func equals(actual, expected any) (bool, string) {
	if valuesEqual(actual, expected) {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v (%s), got %v (%s)", expected, jsonType(expected), actual, jsonType(actual))
}

// valuesEqual compares decoded JSON against configured values. Numbers
// compare exactly by value regardless of Go type; maps and slices compare
// deeply.
func valuesEqual(actual, expected any) bool {
	if an, ok := toNumber(actual); ok {
		en, ok := toNumber(expected)
		return ok && an.Cmp(en) == 0
	}

	switch a := actual.(type) {
	case map[string]any:
		e, ok := expected.(map[string]any)
		if !ok || len(a) != len(e) {
			return false
		}
		for k, av := range a {
			ev, ok := e[k]
			if !ok || !valuesEqual(av, ev) {
				return false
			}
		}
		return true
	case []any:
		e, ok := expected.([]any)
		if !ok || len(a) != len(e) {
			return false
		}
		for i := range a {
			if !valuesEqual(a[i], e[i]) {
				return false
			}
		}
		return true
	}

	return reflect.DeepEqual(actual, expected)
}

func toNumber(v any) (*big.Rat, bool) {
	switch n := v.(type) {
	case json.Number:
		return new(big.Rat).SetString(n.String())
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, false
		}
		return new(big.Rat).SetFloat64(n), true
	case float32:
		return toNumber(float64(n))
	case int:
		return new(big.Rat).SetInt64(int64(n)), true
	case int8:
		return new(big.Rat).SetInt64(int64(n)), true
	case int16:
		return new(big.Rat).SetInt64(int64(n)), true
	case int32:
		return new(big.Rat).SetInt64(int64(n)), true
	case int64:
		return new(big.Rat).SetInt64(n), true
	case uint:
		return new(big.Rat).SetUint64(uint64(n)), true
	case uint8:
		return new(big.Rat).SetUint64(uint64(n)), true
	case uint16:
		return new(big.Rat).SetUint64(uint64(n)), true
	case uint32:
		return new(big.Rat).SetUint64(uint64(n)), true
	case uint64:
		return new(big.Rat).SetUint64(n), true
	}
	return nil, false
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return reflect.TypeOf(v).String()
	}
}

func describe(v any) string {
	switch val := v.(type) {
	case []any:
		return fmt.Sprintf("array with %d items", len(val))
	case map[string]any:
		return fmt.Sprintf("object with %d keys", len(val))
	case string:
		return fmt.Sprintf("string of length %d", len(val))
	default:
		return jsonType(v)
	}
}

func objectKeys(v any) any {
	obj, ok := v.(map[string]any)
	if !ok {
		return jsonType(v)
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// validatePathWithinBase checks that the resolved path stays within the base directory
// to prevent path traversal attacks
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %v", err)
	}

	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %v", err)
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}

	return nil
}

func (e *Evaluator) schema(schemaPath string) (bool, string) {
	if !filepath.IsAbs(schemaPath) && e.baseDir != "" {
		schemaPath = filepath.Join(e.baseDir, schemaPath)
	}

	if err := validatePathWithinBase(schemaPath, e.baseDir); err != nil {
		return false, err.Error()
	}

	schemaData, err := os.ReadFile(schemaPath)
	if err != nil {
		return false, fmt.Sprintf("failed to read schema file: %v", err)
	}

	document := e.response.Body
	if !e.response.HasBody() {
		document = []byte("null")
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaData),
		gojsonschema.NewBytesLoader(document),
	)
	if err != nil {
		return false, fmt.Sprintf("schema validation error: %v", err)
	}

	if result.Valid() {
		return true, ""
	}

	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return false, fmt.Sprintf("schema validation failed: %s", strings.Join(errs, "; "))
}

// EvaluateAll checks the expected status and then every rule in order. If
// rules are present and the body cannot be decoded, only the status result
// is returned together with an error wrapping ErrDecode.
func EvaluateAll(resp *http.Response, expectStatus int, rules []contract.Rule, opts ...EvaluatorOption) ([]*Result, error) {
	evaluator := NewEvaluator(resp, opts...)
	results := make([]*Result, 0, len(rules)+1)
	results = append(results, evaluator.Status(expectStatus))

	if len(rules) == 0 {
		return results, nil
	}

	if err := evaluator.Decode(); err != nil {
		return results, err
	}

	for _, r := range rules {
		results = append(results, evaluator.Evaluate(r))
	}
	return results, nil
}

// AllPassed reports whether every result passed.
func AllPassed(results []*Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
