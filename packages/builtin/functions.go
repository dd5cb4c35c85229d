package builtin

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Func is a built-in function. Arguments arrive unquoted.
type Func func(args []string) (any, error)

type Registry struct {
	funcs map[string]Func

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Registry)

// WithSeed makes random functions deterministic.
func WithSeed(seed int64) Option {
	return func(r *Registry) {
		r.rng = rand.New(rand.NewSource(seed))
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["now"] = funcNow
	r.funcs["timestamp"] = funcTimestamp
	r.funcs["timestampMs"] = funcTimestampMs
	r.funcs["date"] = funcDate
	r.funcs["uuid"] = funcUUID
	r.funcs["random"] = r.funcRandom
	r.funcs["randomString"] = r.funcRandomString
	r.funcs["randomEmail"] = r.funcRandomEmail
}

func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// IsCall reports whether expr looks like a function call.
func IsCall(expr string) bool {
	return funcCallPattern.MatchString(expr)
}

// Call evaluates expressions such as random(1, 100). ok is false when expr
// is not a call to a registered function.
func (r *Registry) Call(expr string) (value any, ok bool, err error) {
	matches := funcCallPattern.FindStringSubmatch(expr)
	if matches == nil {
		return nil, false, nil
	}

	fn, exists := r.funcs[matches[1]]
	if !exists {
		return nil, false, nil
	}

	var args []string
	if matches[2] != "" {
		args = parseArgs(matches[2])
	}

	value, err = fn(args)
	if err != nil {
		return nil, true, fmt.Errorf("%s(): %w", matches[1], err)
	}
	return value, true, nil
}

func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if !inQuote && (ch == '"' || ch == '\'') {
			inQuote = true
			quoteChar = ch
		} else if inQuote && ch == quoteChar {
			inQuote = false
			quoteChar = 0
		} else if !inQuote && ch == ',' {
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		} else {
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}

	return args
}

func funcNow(_ []string) (any, error) {
	return time.Now().UTC().Format(time.RFC3339), nil
}

func funcTimestamp(_ []string) (any, error) {
	return time.Now().Unix(), nil
}

func funcTimestampMs(_ []string) (any, error) {
	return time.Now().UnixMilli(), nil
}

func funcDate(args []string) (any, error) {
	format := "2006-01-02"
	if len(args) >= 1 {
		format = args[0]
	}
	return time.Now().UTC().Format(format), nil
}

func funcUUID(_ []string) (any, error) {
	return uuid.New().String(), nil
}

// funcRandom returns an integer in [min, max], default [1, 100].
func (r *Registry) funcRandom(args []string) (any, error) {
	min, max := 1, 100
	if len(args) >= 2 {
		var err error
		if min, err = strconv.Atoi(args[0]); err != nil {
			return nil, fmt.Errorf("min argument %q is not a valid integer", args[0])
		}
		if max, err = strconv.Atoi(args[1]); err != nil {
			return nil, fmt.Errorf("max argument %q is not a valid integer", args[1])
		}
	}
	if max < min {
		return nil, fmt.Errorf("max %d is less than min %d", max, min)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(max-min+1) + min, nil
}

func (r *Registry) funcRandomString(args []string) (any, error) {
	length := 16
	if len(args) >= 1 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 {
			return nil, fmt.Errorf("length argument %q is not a valid integer", args[0])
		}
		length = v
	}
	return r.randomString(length, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"), nil
}

func (r *Registry) funcRandomEmail(_ []string) (any, error) {
	user := r.randomString(8, "abcdefghijklmnopqrstuvwxyz")
	domain := r.randomString(6, "abcdefghijklmnopqrstuvwxyz")
	return fmt.Sprintf("%s@%s.com", user, domain), nil
}

func (r *Registry) randomString(length int, charset string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]byte, length)
	for i := range result {
		result[i] = charset[r.rng.Intn(len(charset))]
	}
	return string(result)
}
