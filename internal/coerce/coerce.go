// Package coerce pulls a JSON payload out of free-form model output.
package coerce

import (
	"encoding/json"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
)

// Status tags the outcome of Parse.
type Status int

const (
	// Unparseable means no structured payload could be located.
	Unparseable Status = iota
	// Parsed means a bracketed substring parsed as strict JSON.
	Parsed
	// Repaired means the payload only parsed after JSON repair.
	Repaired
)

func (s Status) String() string {
	switch s {
	case Parsed:
		return "parsed"
	case Repaired:
		return "repaired"
	default:
		return "unparseable"
	}
}

// Result is the tagged outcome of Parse. Value holds decoded JSON
// (map[string]any, []any, ...) when Status is not Unparseable.
type Result struct {
	Status   Status
	Value    any
	Fragment string
}

// OK reports whether a payload was recovered.
func (r Result) OK() bool { return r.Status != Unparseable }

// AsArray returns the payload when it is a JSON array.
func (r Result) AsArray() ([]any, bool) {
	if !r.OK() {
		return nil, false
	}
	arr, ok := r.Value.([]any)
	return arr, ok
}

// AsObject returns the payload when it is a JSON object.
func (r Result) AsObject() (map[string]any, bool) {
	if !r.OK() {
		return nil, false
	}
	obj, ok := r.Value.(map[string]any)
	return obj, ok
}

// Kind restricts which JSON value ParseWith accepts.
type Kind int

const (
	// AnyKind accepts an object or an array.
	AnyKind Kind = iota
	// ObjectKind accepts only a JSON object.
	ObjectKind
	// ArrayKind accepts only a JSON array.
	ArrayKind
)

func (k Kind) accepts(open byte) bool {
	switch k {
	case ObjectKind:
		return open == '{'
	case ArrayKind:
		return open == '['
	default:
		return true
	}
}

func (k Kind) matches(v any) bool {
	switch k {
	case ObjectKind:
		_, ok := v.(map[string]any)
		return ok
	case ArrayKind:
		_, ok := v.([]any)
		return ok
	default:
		return true
	}
}

// Options controls Parse. Want skips candidates of the wrong kind, so a
// bracketed citation such as "[1]" never shadows a later object.
type Options struct {
	Repair bool
	Want   Kind
}

// DefaultOptions enables repair of almost-JSON output.
var DefaultOptions = Options{Repair: true}

// Parse runs ParseWith using DefaultOptions.
func Parse(raw string) Result {
	return ParseWith(raw, DefaultOptions)
}

// ParseWith scans raw for bracketed candidates starting at each '{' or '['
// (only those of opts.Want) in order and returns the first that parses as
// strict JSON. With repair
// enabled, a candidate that starts like JSON but fails strict decoding (or
// is cut off before its closing bracket) is repaired in place, and as a
// last resort the first balanced candidate is repaired. It never panics.
func ParseWith(raw string, opts Options) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			res = Result{Status: Unparseable}
		}
	}()

	text := stripFences(raw)
	firstBalanced := ""
	for i := 0; i < len(text); i++ {
		if text[i] != '{' && text[i] != '[' {
			continue
		}
		if !opts.Want.accepts(text[i]) {
			continue
		}
		end := matchBracket(text, i)
		if end < 0 {
			if opts.Repair && looksLikeJSONStart(text, i) {
				if v, ok := repair(text[i:]); ok && opts.Want.matches(v) {
					return Result{Status: Repaired, Value: v, Fragment: text[i:]}
				}
			}
			continue
		}
		candidate := text[i : end+1]
		if v, ok := decodeStrict(candidate); ok {
			return Result{Status: Parsed, Value: v, Fragment: candidate}
		}
		// Repair here so a nested fragment never wins over its broken parent.
		if opts.Repair && looksLikeJSONStart(text, i) {
			if v, ok := repair(candidate); ok && opts.Want.matches(v) {
				return Result{Status: Repaired, Value: v, Fragment: candidate}
			}
		}
		if firstBalanced == "" {
			firstBalanced = candidate
		}
	}

	if opts.Repair && firstBalanced != "" {
		if v, ok := repair(firstBalanced); ok && opts.Want.matches(v) {
			return Result{Status: Repaired, Value: v, Fragment: firstBalanced}
		}
	}
	return Result{Status: Unparseable}
}

// looksLikeJSONStart reports whether the bracket at i is followed by
// something a JSON value could contain, so stray prose brackets are not
// sent to the repairer.
func looksLikeJSONStart(text string, i int) bool {
	open := text[i]
	rest := strings.TrimLeft(text[i+1:], " \t\r\n")
	if rest == "" {
		return false
	}
	next := rest[0]
	if open == '{' {
		return next == '"' || next == '}'
	}
	switch {
	case next == '{', next == '[', next == '"', next == ']', next == '-':
		return true
	case next >= '0' && next <= '9':
		return true
	}
	return strings.HasPrefix(rest, "true") || strings.HasPrefix(rest, "false") || strings.HasPrefix(rest, "null")
}

func decodeStrict(s string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}

func repair(fragment string) (any, bool) {
	fixed, err := jsonrepair.RepairJSON(fragment)
	if err != nil {
		return nil, false
	}
	fixed = strings.TrimSpace(fixed)
	if fixed == "" || (fixed[0] != '{' && fixed[0] != '[') {
		return nil, false
	}
	v, ok := decodeStrict(fixed)
	if !ok {
		return nil, false
	}
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 0 && !isEmptyContainer(fragment) {
			return nil, false
		}
	case []any:
		if len(t) == 0 && !isEmptyContainer(fragment) {
			return nil, false
		}
	default:
		return nil, false
	}
	return v, true
}

// isEmptyContainer reports whether the fragment itself is an empty object or
// array, so an empty repair result is not mistaken for a recovered payload.
func isEmptyContainer(fragment string) bool {
	compact := strings.Join(strings.Fields(fragment), "")
	return compact == "{}" || compact == "[]"
}

// matchBracket returns the index of the bracket closing text[start], or -1.
// Brackets inside JSON strings are ignored and mismatched closers abort.
func matchBracket(text string, start int) int {
	stack := make([]byte, 0, 8)
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != ch {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}

func stripFences(raw string) string {
	if !strings.Contains(raw, "```") {
		return raw
	}
	var b strings.Builder
	for _, line := range strings.Split(raw, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
