package db

import (
	"fmt"
	"strconv"
)

// Token is a path segment addressing a run or a task.
//
// It is either the surrogate key assigned by the store, or an alias given by the client.
type Token struct {
	raw   string
	key   int64
	isKey bool
}

// ParseToken disambiguates a token.
//
// A token consisting of decimal digits only is a surrogate key. Otherwise, it is an alias.
// Digits too large for a key make a key matching nothing.
func ParseToken(s string) Token {
	if !isDigits(s) {
		return Token{raw: s}
	}
	k, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		k = -1
	}
	return Token{raw: s, key: k, isKey: true}
}

func (t Token) String() string {
	return t.raw
}

// Key returns the surrogate key, when the token is a key.
func (t Token) Key() (int64, bool) {
	return t.key, t.isKey
}

// Alias returns the alias, when the token is not a key.
func (t Token) Alias() (string, bool) {
	return t.raw, !t.isKey
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || '9' < r {
			return false
		}
	}
	return true
}

// ValidateAlias checks an alias going to be stored.
//
// Aliases must not be read as a surrogate key later.
func ValidateAlias(field string, alias *string) error {
	if alias == nil {
		return nil
	}
	if *alias == "" {
		return Invalid("%s should not be empty", field)
	}
	if len(*alias) > 255 {
		return Invalid("%s is too long (%d > 255)", field, len(*alias))
	}
	if isDigits(*alias) {
		return fmt.Errorf("%w: %s = %s", ErrNumericAlias, field, *alias)
	}
	return nil
}

// RunKey is a resolved address of a run.
type RunKey struct {
	FlowId    string
	RunNumber int64
	RunId     *string
}

// TaskKey is a resolved address of a task.
type TaskKey struct {
	RunKey
	StepName string
	TaskId   int64
	TaskName *string
}

// addresses as requested, before resolution.

type RunRef struct {
	FlowId string
	Run    string
}

type StepRef struct {
	RunRef
	StepName string
}

type TaskRef struct {
	StepRef
	Task string
}

// Unresolved tells that a token does not point any record.
type Unresolved struct {
	// "run" or "task"
	Kind  string
	Token string

	// true when the record which should own the addressed one is missing.
	ParentMissing bool
}

func (u Unresolved) Error() string {
	if u.ParentMissing {
		return fmt.Sprintf("%s %q is not resolved: its parent is missing", u.Kind, u.Token)
	}
	return fmt.Sprintf("%s %q is not resolved", u.Kind, u.Token)
}

func (u Unresolved) Unwrap() error {
	return ErrMissing
}
