package booking

import "errors"

// Error kinds. Every rule error below unwraps to exactly one of these.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrConflict       = errors.New("conflict")
	ErrNotFound       = errors.New("not found")
	ErrStorage        = errors.New("storage failure")
)

var (
	ErrNoTables            = ruleError(ErrInvalidRequest, "no tables selected")
	ErrPartySize           = ruleError(ErrInvalidRequest, "people must be between 1 and 24")
	ErrNameRequired        = ruleError(ErrInvalidRequest, "name is required")
	ErrInvalidTime         = ruleError(ErrInvalidRequest, "invalid time, expected HH:MM")
	ErrOutsideServiceHours = ruleError(ErrInvalidRequest, "time must be between 11:00 and 22:30")
	ErrEndBeforeStart      = ruleError(ErrInvalidRequest, "end must be after start")
	ErrUnknownTable        = ruleError(ErrInvalidRequest, "invalid table id")

	ErrTablesBooked = ruleError(ErrConflict, "one or more tables already booked")

	ErrBookingNotFound = ruleError(ErrNotFound, "booking not found")
	ErrTableNotFound   = ruleError(ErrNotFound, "table not found")

	ErrCorruptState = ruleError(ErrStorage, "persisted state is inconsistent")
)

type kindError struct {
	kind error
	msg  string
}

func ruleError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}

func IsConflictError(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsStorageError(err error) bool {
	return errors.Is(err, ErrStorage)
}
