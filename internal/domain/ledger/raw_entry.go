package ledger

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// RawEntry is one record as returned by the external ledger. The upstream
// service nests fields inconsistently (a field may appear top-level or under
// a "transaction" sub-object) and mixes numbers with numeric strings, so
// every read goes through an ordered list of candidate paths with explicit
// coercion.
type RawEntry map[string]any

// Lookup walks a single path of map keys and returns the value found there.
func (e RawEntry) Lookup(path ...string) (any, bool) {
	var current any = map[string]any(e)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// FirstString returns the first non-empty string found among the candidate
// paths, tried in order.
func (e RawEntry) FirstString(paths ...[]string) (string, bool) {
	for _, path := range paths {
		v, ok := e.Lookup(path...)
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

// FirstAmount returns the first value among the candidate paths that coerces
// to a finite decimal. Negative source amounts clamp to zero, matching the
// non-negative invariant on monetary fields.
func (e RawEntry) FirstAmount(paths ...[]string) (decimal.Decimal, bool) {
	for _, path := range paths {
		v, ok := e.Lookup(path...)
		if !ok {
			continue
		}
		d, ok := coerceDecimal(v)
		if !ok {
			continue
		}
		if d.IsNegative() {
			return decimal.Zero, true
		}
		return d, true
	}
	return decimal.Zero, false
}

// FirstID returns the first value among the candidate paths that coerces to
// a finite, positive integer id.
func (e RawEntry) FirstID(paths ...[]string) (int64, bool) {
	for _, path := range paths {
		v, ok := e.Lookup(path...)
		if !ok {
			continue
		}
		id, ok := coerceID(v)
		if ok && id > 0 {
			return id, true
		}
	}
	return 0, false
}

// coerceDecimal converts the JSON-shaped values the ledger emits into a
// decimal. Anything unparseable or non-finite is rejected.
func coerceDecimal(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(val), true
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	default:
		return decimal.Zero, false
	}
}

func coerceID(v any) (int64, bool) {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) || val != math.Trunc(val) {
			return 0, false
		}
		return int64(val), true
	case json.Number:
		id, err := val.Int64()
		if err != nil {
			return 0, false
		}
		return id, true
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, false
		}
		return id, true
	case int:
		return int64(val), true
	case int64:
		return val, true
	default:
		return 0, false
	}
}
