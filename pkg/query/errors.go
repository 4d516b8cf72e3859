package query

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds, reported in the "error" field
const (
	KindNotRecognized = "not_recognized"
	KindTokenizing    = "tokenizing_error"
	KindParsing       = "parsing_error"
	KindSelect        = "select_error"
	KindPivot         = "pivot_error"
)

// Error is the single error shape produced by the query engine
type Error struct {
	Status int    `json:"status"`
	Kind   string `json:"error"`
	Reason string `json:"reason"`
	Pos    int    `json:"-"` // byte offset for tokenizing errors, -1 otherwise
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Is matches on kind, and on reason when the target carries one
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// ErrUnrecognizedQuery is returned for input that is not a query object
var ErrUnrecognizedQuery = &Error{
	Status: http.StatusBadRequest,
	Kind:   KindNotRecognized,
	Reason: "Format of input query is not valid",
	Pos:    -1,
}

// Sentinels for errors.Is checks by kind
var (
	ErrTokenizing = &Error{Kind: KindTokenizing}
	ErrParsing    = &Error{Kind: KindParsing}
	ErrSelect     = &Error{Kind: KindSelect}
	ErrPivot      = &Error{Kind: KindPivot}
)

func lexerError(msg string, pos int) *Error {
	return &Error{
		Status: http.StatusBadRequest,
		Kind:   KindTokenizing,
		Reason: fmt.Sprintf("%s on character %d.", msg, pos),
		Pos:    pos,
	}
}

func parsingError(reason string) *Error {
	return &Error{Status: http.StatusBadRequest, Kind: KindParsing, Reason: reason, Pos: -1}
}

func selectError(reason string) *Error {
	return &Error{Status: http.StatusBadRequest, Kind: KindSelect, Reason: reason, Pos: -1}
}

func pivotError(reason string) *Error {
	return &Error{Status: http.StatusBadRequest, Kind: KindPivot, Reason: reason, Pos: -1}
}
