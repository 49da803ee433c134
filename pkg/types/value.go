// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Pattern values are heterogeneous. A value is one of: nil, bool, int64,
// float64, string, time.Time, Reference, Path, []any, map[string]any.
// Normalize coerces Go integer/float widths into that set.

// Reference points at an instance of another entity by id.
type Reference struct {
	FQName string
	ID     any
}

// Path encodes an instance's position in the contains-hierarchy.
type Path string

// Normalize collapses numeric widths to int64/float64 so comparison and
// arithmetic only see canonical representations.
func Normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}

func isNumber(v any) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}

func asFloat(v any) float64 {
	f, _ := cast.ToFloat64E(v)
	return f
}

// Equal compares two values after normalization, with Int→Number promotion.
func Equal(a, b any) bool {
	a, b = Normalize(a), Normalize(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isNumber(a) && isNumber(b) {
		return asFloat(a) == asFloat(b)
	}
	if ra, ok := a.(Reference); ok {
		if rb, ok2 := b.(Reference); ok2 {
			return ra.FQName == rb.FQName && Equal(ra.ID, rb.ID)
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok2 := b.(time.Time); ok2 {
			return ta.Equal(tb)
		}
	}
	switch xa := a.(type) {
	case []any:
		xb, ok := b.([]any)
		if !ok || len(xa) != len(xb) {
			return false
		}
		for i := range xa {
			if !Equal(xa[i], xb[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		xb, ok := b.(map[string]any)
		if !ok || len(xa) != len(xb) {
			return false
		}
		for k, v := range xa {
			if !Equal(v, xb[k]) {
				return false
			}
		}
		return true
	}
	return a == b
}

// Compare orders two scalar values. Numbers compare after promotion, strings
// lexicographically, booleans false<true, times chronologically.
func Compare(a, b any) (int, error) {
	a, b = Normalize(a), Normalize(b)
	if isNumber(a) && isNumber(b) {
		fa, fb := asFloat(a), asFloat(b)
		switch {
		case fa < fb:
			return -1, nil
		case fa > fb:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if sa, ok := a.(string); ok {
		if sb, ok2 := b.(string); ok2 {
			return strings.Compare(sa, sb), nil
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok2 := b.(bool); ok2 {
			switch {
			case ba == bb:
				return 0, nil
			case bb:
				return -1, nil
			default:
				return 1, nil
			}
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok2 := b.(time.Time); ok2 {
			return ta.Compare(tb), nil
		}
	}
	return 0, NewError(KindTypeMismatch, "cannot compare %T with %T", a, b)
}

// Arith applies a binary arithmetic operator. Int op Int stays Int except
// division, which always promotes to Number. String + String concatenates.
func Arith(op string, a, b any) (any, error) {
	a, b = Normalize(a), Normalize(b)
	if op == "+" {
		if sa, ok := a.(string); ok {
			if sb, ok2 := b.(string); ok2 {
				return sa + sb, nil
			}
		}
	}
	if !isNumber(a) || !isNumber(b) {
		return nil, NewError(KindTypeMismatch, "operator %q needs numeric operands, got %T and %T", op, a, b)
	}
	ia, aInt := a.(int64)
	ib, bInt := b.(int64)
	if aInt && bInt && op != "/" {
		switch op {
		case "+":
			return ia + ib, nil
		case "-":
			return ia - ib, nil
		case "*":
			return ia * ib, nil
		case "%":
			if ib == 0 {
				return nil, NewError(KindTypeMismatch, "modulo by zero")
			}
			return ia % ib, nil
		}
	}
	fa, fb := asFloat(a), asFloat(b)
	switch op {
	case "+":
		return fa + fb, nil
	case "-":
		return fa - fb, nil
	case "*":
		return fa * fb, nil
	case "/":
		if fb == 0 {
			return nil, NewError(KindTypeMismatch, "division by zero")
		}
		return fa / fb, nil
	case "%":
		return nil, NewError(KindTypeMismatch, "modulo needs integer operands")
	}
	return nil, NewError(KindInternal, "unknown arithmetic operator %q", op)
}

// Truthy reports the boolean interpretation of a value: nil, false, zero,
// empty string/array/map are false; everything else is true.
func Truthy(v any) bool {
	switch x := Normalize(v).(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}

// String renders a value for path segments and log fields.
func String(v any) string {
	switch x := Normalize(v).(type) {
	case nil:
		return ""
	case string:
		return x
	case Path:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", x)
	}
}
