package errors

import (
	"fmt"
	"net/http"
)

// default error is internal service error at handler level
// if error has different status code use ErrorWithStatusCode
type ErrorWithStatusCode struct {
	Message    string
	StatusCode int
}

func (e *ErrorWithStatusCode) Error() string {
	return e.Message
}

// Kind classifies a validation or authorization failure of the board engine.
type Kind int

const (
	KindUnknown Kind = iota
	KindPermissionDenied
	KindNotFound
	KindNameConflict
	KindOrderConflict
	KindInvalidName
	KindInvalidPrefix
	KindMalformedName
	KindInvalidArgument
	KindEmptySelector
	KindNoMatches
	KindMandatoryBoard
	KindAmbiguous
)

var kindNames = map[Kind]string{
	KindUnknown:          "Unknown",
	KindPermissionDenied: "PermissionDenied",
	KindNotFound:         "NotFound",
	KindNameConflict:     "NameConflict",
	KindOrderConflict:    "OrderConflict",
	KindInvalidName:      "InvalidName",
	KindInvalidPrefix:    "InvalidPrefix",
	KindMalformedName:    "MalformedName",
	KindInvalidArgument:  "InvalidArgument",
	KindEmptySelector:    "EmptySelector",
	KindNoMatches:        "NoMatches",
	KindMandatoryBoard:   "MandatoryBoard",
	KindAmbiguous:        "Ambiguous",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String, used by API clients.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return KindUnknown, false
}

// StatusCode maps the kind to the HTTP status the handlers answer with.
func (k Kind) StatusCode() int {
	switch k {
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindNotFound, KindNoMatches:
		return http.StatusNotFound
	case KindNameConflict, KindOrderConflict, KindMandatoryBoard, KindAmbiguous:
		return http.StatusConflict
	case KindInvalidName, KindInvalidPrefix, KindMalformedName, KindInvalidArgument, KindEmptySelector:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a tagged failure. Resource names the entity involved ("board",
// "category", "post", ...) and Value the offending input, so callers can render
// a message without parsing strings.
type Error struct {
	Kind     Kind
	Resource string
	Value    string
	Message  string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	switch {
	case e.Resource != "" && e.Value != "":
		return fmt.Sprintf("%s: %s '%s'", e.Kind, e.Resource, e.Value)
	case e.Resource != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Resource)
	default:
		return e.Kind.String()
	}
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of resource and value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Resource == "" && t.Value == "" && t.Message == ""
}

func (e *Error) StatusCode() int {
	return e.Kind.StatusCode()
}

var (
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrNameConflict     = &Error{Kind: KindNameConflict}
	ErrOrderConflict    = &Error{Kind: KindOrderConflict}
	ErrInvalidName      = &Error{Kind: KindInvalidName}
	ErrInvalidPrefix    = &Error{Kind: KindInvalidPrefix}
	ErrMalformedName    = &Error{Kind: KindMalformedName}
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument}
	ErrEmptySelector    = &Error{Kind: KindEmptySelector}
	ErrNoMatches        = &Error{Kind: KindNoMatches}
	ErrMandatoryBoard   = &Error{Kind: KindMandatoryBoard}
	ErrAmbiguous        = &Error{Kind: KindAmbiguous}
)

func New(kind Kind, resource, value, message string) *Error {
	return &Error{Kind: kind, Resource: resource, Value: value, Message: message}
}

func PermissionDenied(resource, value string) *Error {
	return &Error{Kind: KindPermissionDenied, Resource: resource, Value: value,
		Message: fmt.Sprintf("Permission denied on %s '%s'", resource, value)}
}

func NotFound(resource, value string) *Error {
	return &Error{Kind: KindNotFound, Resource: resource, Value: value,
		Message: fmt.Sprintf("%s '%s' not found", capitalize(resource), value)}
}

func NameConflict(resource, value string) *Error {
	return &Error{Kind: KindNameConflict, Resource: resource, Value: value,
		Message: fmt.Sprintf("%s '%s' conflicts with an existing %s", capitalize(resource), value, resource)}
}

func OrderConflict(resource, value string) *Error {
	return &Error{Kind: KindOrderConflict, Resource: resource, Value: value,
		Message: fmt.Sprintf("Order %s is already taken by another %s", value, resource)}
}

func InvalidArgument(resource, value, message string) *Error {
	return &Error{Kind: KindInvalidArgument, Resource: resource, Value: value, Message: message}
}

// KindOf returns the kind of err, or KindUnknown for errors outside the taxonomy.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return KindUnknown
		}
		err = u.Unwrap()
	}
	return KindUnknown
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
