// Provide error wrapper with created location.
//
// Usage:
//
// ```
// wrapped := xe.Wrap(err)
// ```
//
// returns new error object wraps `err`.
//
// `wrapped` knows filename, line, and the name of function where itself is created.
// Trace(wrapped) renders these locations one per line, innermost last.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/google/uuid"
)

type ErrWithCaller struct {
	file     string
	line     int
	funcname string
	note     string
	err      error
}

func (e *ErrWithCaller) File() string {
	return e.file
}

func (e *ErrWithCaller) Line() int {
	return e.line
}

func (e *ErrWithCaller) Error() string {
	if e.note == "" {
		return fmt.Sprintf(`@ %s "%s" l%d <- %s`, e.funcname, e.file, e.line, e.err.Error())
	}
	return fmt.Sprintf(`@ %s "%s" l%d (%s) <- %s`, e.funcname, e.file, e.line, e.note, e.err.Error())
}

func (e *ErrWithCaller) Unwrap() error {
	return e.err
}

func New(text string) error {
	return wrap("", errors.New(text), 1)
}

func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return wrap("", err, 1)
}

func WrapWithNote(note string, err error) error {
	if err == nil {
		return nil
	}
	return wrap(note, err, 1)
}

func wrap(note string, err error, depth int) error {
	pc, file, line, ok := runtime.Caller(depth + 1)
	funcname := "(unknown func)"
	if !ok {
		file = "?"
		line = -1
	}
	fn := runtime.FuncForPC(pc)
	if fn != nil {
		funcname = fn.Name()
	}

	return &ErrWithCaller{
		funcname: funcname,
		file:     file,
		line:     line,
		note:     note,
		err:      err,
	}
}

// Trace renders the chain of locations err passed through.
//
// Each location marked by Wrap becomes one line. The last line is the root cause.
func Trace(err error) string {
	if err == nil {
		return ""
	}
	parts := strings.Split(err.Error(), " <- ")
	for i := range parts {
		parts[i] = strings.Repeat("  ", i) + parts[i]
	}
	return strings.Join(parts, "\n")
}

// Diagnostic is an unexpected error tagged with an identifier.
//
// The identifier is what a client sees; the trace stays in the server log.
type Diagnostic struct {
	Id  string
	Err error
}

func NewDiagnostic(err error) Diagnostic {
	return Diagnostic{Id: uuid.NewString(), Err: err}
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("[diagnostic %s] %s", d.Id, d.Err)
}

func (d Diagnostic) Unwrap() error {
	return d.Err
}

func (d Diagnostic) Trace() string {
	return fmt.Sprintf("diagnostic id: %s\n%s", d.Id, Trace(d.Err))
}
