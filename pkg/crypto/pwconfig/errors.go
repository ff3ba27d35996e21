package pwconfig

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("config not found")
	// ErrConfigParse is matched by every *ParseError.
	ErrConfigParse = errors.New("config parse error")
)

// ParseError locates a structural problem in a configuration document.
type ParseError struct {
	File  string
	Line  int // 0 when unknown
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	loc := e.File
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, e.Line)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s: %v", ErrConfigParse, loc, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrConfigParse, loc, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrConfigParse }

// located attaches the document position of field to a resolution error
// without changing what it matches.
func located(err error, doc *Document, path ...string) error {
	return errors.WithMessagef(err, "%s:%d: %s", doc.Name, doc.Line(path...), fieldName(path))
}
