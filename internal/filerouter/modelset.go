package filerouter

import (
	"encoding/json"
	"fmt"
)

// ModelSet is either the literal "all" or a finite list of model ids, never
// both. The JSON form mirrors that: the string "all" or an array.
type ModelSet struct {
	All    bool
	Models []string
}

// AllModels is the universal set.
func AllModels() ModelSet {
	return ModelSet{All: true}
}

// SomeModels builds a finite set.
func SomeModels(ids ...string) ModelSet {
	return ModelSet{Models: ids}
}

// NoModels is the empty finite set.
func NoModels() ModelSet {
	return ModelSet{}
}

func (s ModelSet) MarshalJSON() ([]byte, error) {
	if s.All {
		return json.Marshal("all")
	}
	if s.Models == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.Models)
}

func (s *ModelSet) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		if str != "all" {
			return fmt.Errorf("invalid model set %q", str)
		}
		*s = ModelSet{All: true}
		return nil
	}
	var models []string
	if err := json.Unmarshal(data, &models); err != nil {
		return fmt.Errorf("invalid model set: %w", err)
	}
	*s = ModelSet{Models: models}
	return nil
}
