package fomoerr

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Kind groups program errors by how a caller should react to them.
type Kind int

const (
	KindUnknown Kind = iota
	KindPreconditionViolation
	KindStaleReference
	KindInsufficientFunds
	KindOverflow
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindPreconditionViolation:
		return "precondition_violation"
	case KindStaleReference:
		return "stale_reference"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindOverflow:
		return "overflow"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Code is a custom program error code as it appears in a failed transaction.
type Code uint32

const (
	CodeInvalidKeyAccount Code = 6000 + iota
	CodeRoundOver
	CodeRoundNotOver
	CodeInvalidAsset
	CodeRoundStarted
	CodeInvalidOwner
	CodeCalculationError
	CodeDivisionError
	CodeAlreadyInitialized
	CodeNotInitialized
	CodeStaleKeyReference
	CodeInsufficientFunds
	CodeUnauthorized
	CodeRoundNotStarted
	CodeAlreadySettled
	CodeAssetFrozen
	CodeInvalidAccount
	CodeMissingSignature
	CodePriceAboveMax
)

type definition struct {
	name string
	kind Kind
	msg  string
}

var definitions = map[Code]definition{
	CodeInvalidKeyAccount:  {"InvalidKeyAccount", KindPreconditionViolation, "invalid key account"},
	CodeRoundOver:          {"RoundOver", KindPreconditionViolation, "round over"},
	CodeRoundNotOver:       {"RoundNotOver", KindPreconditionViolation, "round not over"},
	CodeInvalidAsset:       {"InvalidAsset", KindPreconditionViolation, "invalid asset"},
	CodeRoundStarted:       {"RoundStarted", KindPreconditionViolation, "round already started"},
	CodeInvalidOwner:       {"InvalidOwner", KindUnauthorized, "signer does not own the asset"},
	CodeCalculationError:   {"CalculationError", KindOverflow, "arithmetic overflow"},
	CodeDivisionError:      {"DivisionError", KindOverflow, "division by zero"},
	CodeAlreadyInitialized: {"AlreadyInitialized", KindPreconditionViolation, "account already initialized"},
	CodeNotInitialized:     {"NotInitialized", KindPreconditionViolation, "account not initialized"},
	CodeStaleKeyReference:  {"StaleKeyReference", KindStaleReference, "previous key reference does not match mint counter"},
	CodeInsufficientFunds:  {"InsufficientFunds", KindInsufficientFunds, "insufficient funds"},
	CodeUnauthorized:       {"Unauthorized", KindUnauthorized, "signer is not the round authority"},
	CodeRoundNotStarted:    {"RoundNotStarted", KindPreconditionViolation, "round not started"},
	CodeAlreadySettled:     {"AlreadySettled", KindPreconditionViolation, "round already settled"},
	CodeAssetFrozen:        {"AssetFrozen", KindPreconditionViolation, "asset is frozen"},
	CodeInvalidAccount:     {"InvalidAccount", KindPreconditionViolation, "invalid account"},
	CodeMissingSignature:   {"MissingSignature", KindUnauthorized, "missing required signature"},
	CodePriceAboveMax:      {"PriceAboveMax", KindInsufficientFunds, "key price exceeds max price"},
}

func (c Code) String() string {
	if d, ok := definitions[c]; ok {
		return d.name
	}
	return fmt.Sprintf("Code(%d)", uint32(c))
}

// Error is a terminal, per-instruction program failure.
type Error struct {
	Code Code
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, uint32(e.Code), e.Msg)
}

// Is matches any *Error with the same code, so errors.Is(err, fomoerr.New(c))
// works across wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New returns the error for code with its default message.
func New(code Code) *Error {
	d, ok := definitions[code]
	if !ok {
		return &Error{Code: code, Kind: KindUnknown, Msg: "unknown program error"}
	}
	return &Error{Code: code, Kind: d.kind, Msg: d.msg}
}

// Newf returns the error for code with a detailed message.
func Newf(code Code, format string, args ...any) *Error {
	e := New(code)
	e.Msg = fmt.Sprintf(format, args...)
	return e
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}

var customErrorRe = regexp.MustCompile(`custom program error: 0x([0-9a-fA-F]+)`)

// FromMessage extracts a program error from an RPC or simulation message such
// as "Transaction simulation failed: ... custom program error: 0x177a".
func FromMessage(msg string) (*Error, bool) {
	m := customErrorRe.FindStringSubmatch(msg)
	if m == nil {
		return nil, false
	}
	n, err := strconv.ParseUint(m[1], 16, 32)
	if err != nil {
		return nil, false
	}
	return New(Code(n)), true
}

// FromTransactionError maps the err field of a transaction status, e.g.
// {"InstructionError":[0,{"Custom":6010}]}, to a program error.
func FromTransactionError(v any) (*Error, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	ixErr, ok := obj["InstructionError"].([]any)
	if !ok || len(ixErr) != 2 {
		return nil, false
	}
	detail, ok := ixErr[1].(map[string]any)
	if !ok {
		return nil, false
	}
	switch n := detail["Custom"].(type) {
	case float64:
		return New(Code(n)), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return nil, false
		}
		return New(Code(i)), true
	case int:
		return New(Code(n)), true
	case uint32:
		return New(Code(n)), true
	}
	return nil, false
}
