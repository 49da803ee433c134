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
	"net/mail"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
)

// AttrType is a declared attribute type.
type AttrType string

const (
	TString   AttrType = "String"
	TInt      AttrType = "Int"
	TNumber   AttrType = "Number"
	TDecimal  AttrType = "Decimal"
	TFloat    AttrType = "Float"
	TBoolean  AttrType = "Boolean"
	TUUID     AttrType = "UUID"
	TEmail    AttrType = "Email"
	TURL      AttrType = "URL"
	TPassword AttrType = "Password"
	TDate     AttrType = "Date"
	TTime     AttrType = "Time"
	TDateTime AttrType = "DateTime"
	TMap      AttrType = "Map"
	TAny      AttrType = "Any"
	TPath     AttrType = "Path"
	TArray    AttrType = "Array"
	TRef      AttrType = "Ref"
)

var attrTypes = map[string]AttrType{}

func init() {
	for _, t := range []AttrType{
		TString, TInt, TNumber, TDecimal, TFloat, TBoolean, TUUID, TEmail,
		TURL, TPassword, TDate, TTime, TDateTime, TMap, TAny, TPath, TArray, TRef,
	} {
		attrTypes[string(t)] = t
	}
}

// ParseAttrType resolves a type name from source text.
func ParseAttrType(name string) (AttrType, error) {
	if t, ok := attrTypes[name]; ok {
		return t, nil
	}
	return "", NewError(KindValidation, "unknown attribute type %q", name)
}

// Numeric reports whether values of the type participate in promotion.
func (t AttrType) Numeric() bool {
	switch t {
	case TInt, TNumber, TDecimal, TFloat:
		return true
	}
	return false
}

// Coerce converts v into the canonical representation for the type,
// returning TypeMismatch when the value cannot represent the type.
func (t AttrType) Coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	v = Normalize(v)
	switch t {
	case TString, TPassword:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch(t, v)
		}
		return s, nil
	case TInt:
		switch x := v.(type) {
		case int64:
			return x, nil
		case float64:
			if x == float64(int64(x)) {
				return int64(x), nil
			}
		}
		return nil, mismatch(t, v)
	case TNumber, TDecimal, TFloat:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, mismatch(t, v)
		}
		return f, nil
	case TBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, mismatch(t, v)
		}
		return b, nil
	case TUUID:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch(t, v)
		}
		if _, err := uuid.Parse(s); err != nil {
			return nil, mismatch(t, v)
		}
		return s, nil
	case TEmail:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch(t, v)
		}
		if _, err := mail.ParseAddress(s); err != nil {
			return nil, mismatch(t, v)
		}
		return s, nil
	case TURL:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch(t, v)
		}
		if _, err := url.ParseRequestURI(s); err != nil {
			return nil, mismatch(t, v)
		}
		return s, nil
	case TDate, TTime, TDateTime:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case string:
			return x, nil
		}
		return nil, mismatch(t, v)
	case TMap:
		m, ok := v.(map[string]any)
		if !ok {
			return nil, mismatch(t, v)
		}
		return m, nil
	case TArray:
		a, ok := v.([]any)
		if !ok {
			return nil, mismatch(t, v)
		}
		return a, nil
	case TPath:
		switch x := v.(type) {
		case Path:
			return x, nil
		case string:
			return Path(x), nil
		}
		return nil, mismatch(t, v)
	case TRef:
		if r, ok := v.(Reference); ok {
			return r, nil
		}
		// A bare id is acceptable; the schema's ref target supplies the entity.
		return v, nil
	case TAny:
		return v, nil
	}
	return nil, NewError(KindValidation, "unhandled attribute type %q", t)
}

func mismatch(t AttrType, v any) error {
	return NewError(KindTypeMismatch, "value %v (%T) does not match type %s", Scrub(String(v)), v, t)
}

// CheckEnum validates v against an enum value set.
func CheckEnum(allowed []any, v any) error {
	for _, a := range allowed {
		if Equal(a, v) {
			return nil
		}
	}
	return NewError(KindEnum, "value %v is not in the enum set", Scrub(String(v)))
}
