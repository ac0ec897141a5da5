package domain

import (
	"errors"
	"fmt"
)

// MissingColumnError reports an absent required input column. Stages that
// cannot degrade without the column abort with this error; callers can
// distinguish it from entity-local failures via IsMissingColumn.
type MissingColumnError struct {
	Stage  string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: required column %q absent from input", e.Stage, e.Column)
}

// IsMissingColumn reports whether err is a MissingColumnError.
func IsMissingColumn(err error) bool {
	var mce *MissingColumnError
	return errors.As(err, &mce)
}
