package dashboard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrNothingSelected is returned by triggers that need a selection
	ErrNothingSelected = errors.New("no rows selected")
	// ErrNotFound covers missing files and missing blobs
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput wraps request validation failures
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnknownTable is returned for a table name other than uploaded or queue
	ErrUnknownTable = errors.New("unknown table")
)

// invalid wraps a validator error into ErrInvalidInput with a readable message
func invalid(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, ", "))
}
