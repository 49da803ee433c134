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

// Package types defines the runtime value model and the error taxonomy
// shared by the registry, evaluator, and resolvers.
package types

import (
	"errors"
	"fmt"
)

// Kind classifies a runtime error. Kinds are stable identifiers that @catch
// clauses match against; the set mirrors the failure modes of the resolver
// contract plus evaluator-level failures.
type Kind string

const (
	KindParse               Kind = "ParseError"
	KindValidation          Kind = "ValidationError"
	KindTypeMismatch        Kind = "TypeMismatch"
	KindUnique              Kind = "UniqueViolation"
	KindConstraint          Kind = "ConstraintViolation"
	KindEnum                Kind = "EnumViolation"
	KindForeignKey          Kind = "ForeignKeyViolation"
	KindNotFound            Kind = "NotFound"
	KindUnauthorised        Kind = "Unauthorised"
	KindResolverUnavailable Kind = "ResolverUnavailable"
	KindSuspension          Kind = "SuspensionRequested"
	KindConfig              Kind = "ConfigError"
	KindJoinPlanning        Kind = "JoinPlanningError"
	KindSearchUnavailable   Kind = "SearchUnavailable"
	KindInternal            Kind = "InternalError"
)

// CatchName returns the name a @catch clause uses for this kind.
// NotFound maps to "not_found"; every other kind is caught by "error"
// or by its exact kind string.
func (k Kind) CatchName() string {
	if k == KindNotFound {
		return "not_found"
	}
	return string(k)
}

// Error is the runtime error type. Message text is scrubbed of PII before it
// reaches log output; the kind tag is what callers should branch on.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewError creates an error of the given kind.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind and message to an underlying cause.
func WrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
