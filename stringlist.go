package servicegraph

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// StringList accepts either a single string or a list of strings on the
// wire. Field bind_id uses it: one tag id or a set of tag ids.
type StringList []string

// Contains reports whether the list holds the given value.
func (l StringList) Contains(value string) bool {
	for _, item := range l {
		if item == value {
			return true
		}
	}
	return false
}

// UnmarshalJSON decodes either a bare string or an array of strings.
func (l *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = StringList{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("bind_id must be a string or a list of strings: %w", err)
	}
	*l = StringList(many)
	return nil
}

// MarshalJSON emits a bare string for single-element lists.
func (l StringList) MarshalJSON() ([]byte, error) {
	if len(l) == 1 {
		return json.Marshal(l[0])
	}
	return json.Marshal([]string(l))
}

// UnmarshalYAML decodes either a bare string or a sequence of strings.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var single string
		if err := node.Decode(&single); err != nil {
			return err
		}
		*l = StringList{single}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := node.Decode(&many); err != nil {
			return err
		}
		*l = StringList(many)
		return nil
	default:
		return fmt.Errorf("bind_id must be a string or a list of strings")
	}
}
