package inventory

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind string

const (
	InvalidRequest      ErrorKind = "InvalidRequest"
	LocationInactive    ErrorKind = "LocationInactive"
	InsufficientStock   ErrorKind = "InsufficientStock"
	ConcurrencyConflict ErrorKind = "ConcurrencyConflict"
	PersistenceFailure  ErrorKind = "PersistenceFailure"
)

// Retryable reports whether the whole request can safely be submitted again.
func (k ErrorKind) Retryable() bool {
	return k == ConcurrencyConflict
}

// LineError explains why a single line item of a request was rejected.
type LineError struct {
	Index     int    `json:"index"`
	ProductID string `json:"productId"`
	Requested int64  `json:"requested"`
	Available int64  `json:"available"`
	Reason    string `json:"reason"`
}

// TransferError is returned by every orchestrator operation that rejects a request. Lines lists every offending
// line item, not just the first.
type TransferError struct {
	Kind    ErrorKind
	Message string
	Lines   []LineError
	Err     error
}

func (e *TransferError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	for _, l := range e.Lines {
		fmt.Fprintf(&sb, "; line %d (%s): %s", l.Index, l.ProductID, l.Reason)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, msg string, lines ...LineError) *TransferError {
	return &TransferError{Kind: kind, Message: msg, Lines: lines}
}

// KindOf returns the kind of the first TransferError in the chain, or "" when there is none.
func KindOf(err error) ErrorKind {
	var te *TransferError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
