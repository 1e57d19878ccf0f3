package stakepool

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Kind groups failures so callers can decide how to react without matching every sentinel.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindState
	KindCodec
	KindList
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindState:
		return "StateError"
	case KindCodec:
		return "CodecError"
	case KindList:
		return "ListError"
	case KindExternal:
		return "ExternalError"
	}
	return "UnknownError"
}

var (
	// Validation
	ErrDivisionByZero     = errors.New("fee denominator is zero")
	ErrFeeTooHigh         = errors.New("fee numerator exceeds denominator")
	ErrInvalidReferralFee = errors.New("referral fee must be between 0 and 100")
	ErrInvalidCapacity    = errors.New("validator list capacity must be greater than zero")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrFieldTooLong       = errors.New("field exceeds its fixed width")
	ErrFieldHasNul        = errors.New("field contains a NUL byte")
	ErrWrongAuthority     = errors.New("signer is not the required pool authority")
	ErrMissingAddress     = errors.New("required address not set")
	ErrInvalidFeeType     = errors.New("unknown fee type")

	// State
	ErrPoolNotActive         = errors.New("stake pool is not active")
	ErrPoolExists            = errors.New("stake pool account already exists")
	ErrValidatorsStillActive = errors.New("validators have not all reached ReadyForRemoval")
	ErrInvalidState          = errors.New("validator entry is in the wrong state for this transition")

	// Codec
	ErrTruncatedBuffer      = errors.New("buffer shorter than the fixed layout")
	ErrUnknownDiscriminant  = errors.New("unknown account discriminant")
	ErrUninitializedAccount = errors.New("account is allocated but uninitialized")

	// List
	ErrDuplicateValidator    = errors.New("validator already in list")
	ErrListFull              = errors.New("validator list is at capacity")
	ErrNotFound              = errors.New("validator not found in list")
	ErrTransientStakeNonZero = errors.New("transient stake has not drained")

	// External
	ErrAccountNotFound   = errors.New("account not found")
	ErrLedgerRejected    = errors.New("ledger rejected the transaction")
	ErrLedgerUnavailable = errors.New("ledger unavailable")
)

var kinds = map[error]Kind{
	ErrDivisionByZero:        KindValidation,
	ErrFeeTooHigh:            KindValidation,
	ErrInvalidReferralFee:    KindValidation,
	ErrInvalidCapacity:       KindValidation,
	ErrInvalidAmount:         KindValidation,
	ErrFieldTooLong:          KindValidation,
	ErrFieldHasNul:           KindValidation,
	ErrWrongAuthority:        KindValidation,
	ErrMissingAddress:        KindValidation,
	ErrInvalidFeeType:        KindValidation,
	ErrPoolNotActive:         KindState,
	ErrPoolExists:            KindState,
	ErrValidatorsStillActive: KindState,
	ErrInvalidState:          KindState,
	ErrTruncatedBuffer:       KindCodec,
	ErrUnknownDiscriminant:   KindCodec,
	ErrUninitializedAccount:  KindCodec,
	ErrDuplicateValidator:    KindList,
	ErrListFull:              KindList,
	ErrNotFound:              KindList,
	ErrTransientStakeNonZero: KindList,
	ErrAccountNotFound:       KindExternal,
	ErrLedgerRejected:        KindExternal,
	ErrLedgerUnavailable:     KindExternal,
}

// Error is the single failure type returned by the engine. Err is always one of the
// package sentinels so errors.Is works against them.
type Error struct {
	Kind    Kind
	Err     error
	Field   string
	Address solana.PublicKey
	Reason  string
}

func newError(sentinel error) *Error {
	return &Error{Kind: kinds[sentinel], Err: sentinel}
}

func (e *Error) withField(field string) *Error {
	e.Field = field
	return e
}

func (e *Error) at(address solana.PublicKey) *Error {
	e.Address = address
	return e
}

func (e *Error) because(format string, args ...any) *Error {
	e.Reason = fmt.Sprintf(format, args...)
	return e
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Err.Error())
	if e.Field != "" {
		fmt.Fprintf(&sb, " [field:%s]", e.Field)
	}
	if !e.Address.IsZero() {
		fmt.Fprintf(&sb, " [address:%s]", e.Address)
	}
	if e.Reason != "" {
		fmt.Fprintf(&sb, ": %s", e.Reason)
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// LogValue lets slog render the structured detail directly.
func (e *Error) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("kind", e.Kind.String()),
		slog.String("code", e.Err.Error()),
	}
	if e.Field != "" {
		attrs = append(attrs, slog.String("field", e.Field))
	}
	if !e.Address.IsZero() {
		attrs = append(attrs, slog.String("address", e.Address.String()))
	}
	if e.Reason != "" {
		attrs = append(attrs, slog.String("reason", e.Reason))
	}
	return slog.GroupValue(attrs...)
}

// KindOf returns the Kind of err, or KindUnknown if err didn't come from this package.
func KindOf(err error) Kind {
	var spErr *Error
	if errors.As(err, &spErr) {
		return spErr.Kind
	}
	for sentinel, kind := range kinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}

// Rejected builds the error a Ledger returns when it refuses a mutation.
func Rejected(format string, args ...any) error {
	return newError(ErrLedgerRejected).because(format, args...)
}

// Unavailable builds the error a Ledger returns when it couldn't be reached.
func Unavailable(err error) error {
	return newError(ErrLedgerUnavailable).because("%v", err)
}

// NotFound builds the error a Ledger returns for a missing account.
func NotFound(address solana.PublicKey) error {
	return newError(ErrAccountNotFound).at(address)
}
