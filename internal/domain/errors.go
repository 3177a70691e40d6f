package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingColumn means none of a field's aliases is present in a table.
	ErrMissingColumn = errors.New("missing column")

	// ErrUnparseableDate means every value of a date column failed both the
	// ISO and the day-first parse. It is logged, never returned to callers of
	// Normalize: the affected rows simply carry no date.
	ErrUnparseableDate = errors.New("unparseable date column")

	// ErrNoValidBaseline marks a threshold estimated from zero finite values.
	ErrNoValidBaseline = errors.New("no valid baseline")

	// ErrInsufficientTailData marks a baseline bucket with too few excesses
	// for an extreme-value fit.
	ErrInsufficientTailData = errors.New("insufficient tail data")

	// ErrRasterUnavailable means a scene raster is missing, unreadable, or
	// has no valid pixels.
	ErrRasterUnavailable = errors.New("raster unavailable")

	// ErrDuplicateDate means a source has more than one row for a date and
	// the merge policy does not allow aggregation.
	ErrDuplicateDate = errors.New("duplicate date in source")

	// ErrNoInput means a run was started without any input table.
	ErrNoInput = errors.New("no input tables")
)

// MissingColumnError reports which field could not be resolved.
type MissingColumnError struct {
	Table     string
	Field     string
	Aliases   []string
	Available []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: field %q: none of [%s] in columns [%s]",
		e.Table, e.Field, strings.Join(e.Aliases, ", "), strings.Join(e.Available, ", "))
}

// Is lets errors.Is match ErrMissingColumn.
func (e *MissingColumnError) Is(target error) bool {
	return target == ErrMissingColumn
}
