// Package tags defines the request body of tag mutations.
package tags

import (
	"encoding/json"
	"errors"
	"fmt"

	kdb "github.com/opst/knitmeta/pkg/db"
)

var ErrMalformed = errors.New("malformed tag mutation")

// Mutation is a request body to add and remove user tags of a run.
//
//	{"tags_to_add": ["a", "b"], "tags_to_remove": ["c"]}
//
// Both are optional, but should be arrays of strings when given.
type Mutation struct {
	Add    []string
	Remove []string
}

// UnmarshalJSON decodes the request body.
//
// Errors wrap ErrMalformed when the body is JSON but the fields are not arrays of strings.
func (m *Mutation) UnmarshalJSON(b []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: body should be an object: %w", ErrMalformed, err)
	}

	add, err := stringList(raw, "tags_to_add")
	if err != nil {
		return err
	}
	remove, err := stringList(raw, "tags_to_remove")
	if err != nil {
		return err
	}
	m.Add, m.Remove = add, remove
	return nil
}

func stringList(raw map[string]json.RawMessage, key string) ([]string, error) {
	v, ok := raw[key]
	if !ok || string(v) == "null" {
		return []string{}, nil
	}

	items := []json.RawMessage{}
	if err := json.Unmarshal(v, &items); err != nil {
		return nil, fmt.Errorf("%w: %s should be a list", ErrMalformed, key)
	}
	ret := make([]string, 0, len(items))
	for nth, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			return nil, fmt.Errorf("%w: %s[%d] should be a string: %s", ErrMalformed, key, nth, item)
		}
		ret = append(ret, s)
	}
	return ret, nil
}

func (m Mutation) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Add    []string `json:"tags_to_add"`
		Remove []string `json:"tags_to_remove"`
	}{Add: m.Add, Remove: m.Remove})
}

func (m Mutation) ToDB() kdb.TagMutation {
	return kdb.TagMutation{Add: m.Add, Remove: m.Remove}
}

// Result is a response body of tag mutations.
type Result struct {
	Tags kdb.TagSet `json:"tags"`
}
