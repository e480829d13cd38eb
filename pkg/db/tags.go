package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
)

// TagSet is a set of tags, in the order they were added.
//
// It is stored as a JSON array.
type TagSet []string

// NewTagSet makes TagSet from tags, dropping duplicates.
func NewTagSet(tags []string) TagSet {
	ts := make(TagSet, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		ts = append(ts, t)
	}
	return ts
}

func (ts TagSet) Has(tag string) bool {
	return slices.Contains(ts, tag)
}

// Clone returns a copy. nil becomes an empty set.
func (ts TagSet) Clone() TagSet {
	c := make(TagSet, len(ts))
	copy(c, ts)
	return c
}

// Equal tells two sets have same members, ignoring order and duplicates.
func (ts TagSet) Equal(other TagSet) bool {
	a, b := NewTagSet(ts), NewTagSet(other)
	if len(a) != len(b) {
		return false
	}
	for _, t := range a {
		if !b.Has(t) {
			return false
		}
	}
	return true
}

// Value encodes tags as JSON array. nil is encoded as [].
func (ts TagSet) Value() (driver.Value, error) {
	b, err := json.Marshal(ts.Clone())
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan decodes JSON array of strings. SQL NULL becomes an empty set.
func (ts *TagSet) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*ts = TagSet{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into TagSet", src)
	}
	tags := []string{}
	if err := json.Unmarshal(b, &tags); err != nil {
		return err
	}
	*ts = TagSet(tags)
	return nil
}

// TagMutation is a request to change user tags of a run.
type TagMutation struct {
	Add    []string
	Remove []string
}

// Apply computes the next user tags.
//
//	next = (current - Remove) + (Add - systemTags)
//
// Removals are applied before additions. Additions already in systemTags are dropped silently.
//
// # Returns
//
// - TagSet: next user tags.
//
// - bool: true when next differs from current as a set.
//
// - error: ErrSystemTagRemoval when Remove has any of systemTags.
// The mutation is not applied at all then.
func (m TagMutation) Apply(current, systemTags TagSet) (TagSet, bool, error) {
	for _, r := range m.Remove {
		if systemTags.Has(r) {
			return current, false, ErrSystemTagRemoval
		}
	}

	next := make(TagSet, 0, len(current)+len(m.Add))
	for _, t := range NewTagSet(current) {
		if slices.Contains(m.Remove, t) {
			continue
		}
		next = append(next, t)
	}
	for _, t := range NewTagSet(m.Add) {
		if systemTags.Has(t) || next.Has(t) {
			continue
		}
		next = append(next, t)
	}

	return next, !next.Equal(current), nil
}
