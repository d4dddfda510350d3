package model

import "errors"

var (
	ValidationError            = errors.New("validation error")
	DuplicateInstrumentError   = errors.New("instrument already exists")
	InstrumentNotFoundError    = errors.New("instrument not found")
	PositionNotFoundError      = errors.New("position not found")
	InsufficientPositionError  = errors.New("insufficient position")
	SnapshotAlreadyExistsError = errors.New("snapshot already exists")
	DataUnavailableError       = errors.New("data unavailable")
)

var kinds = []struct {
	err  error
	kind string
}{
	{ValidationError, "validation"},
	{DuplicateInstrumentError, "duplicate_instrument"},
	{InstrumentNotFoundError, "instrument_not_found"},
	{PositionNotFoundError, "position_not_found"},
	{InsufficientPositionError, "insufficient_position"},
	{SnapshotAlreadyExistsError, "snapshot_already_exists"},
	{DataUnavailableError, "data_unavailable"},
}

// KindOf returns the stable kind string of err, or "internal" for unclassified errors.
func KindOf(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}

// ErrorOfKind is the inverse of KindOf. It returns nil for "internal" and unknown kinds.
func ErrorOfKind(kind string) error {
	for _, k := range kinds {
		if k.kind == kind {
			return k.err
		}
	}
	return nil
}
