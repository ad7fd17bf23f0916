package servicegraph

// ServiceFlag is a single capability flag on a service record.
type ServiceFlag struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Service is one entry of the host-supplied capability map.
type Service struct {
	ID        string                 `json:"id" yaml:"id"`
	Name      string                 `json:"name" yaml:"name"`
	Rate      float64                `json:"rate" yaml:"rate"`
	Min       int                    `json:"min,omitempty" yaml:"min,omitempty"`
	Max       int                    `json:"max,omitempty" yaml:"max,omitempty"`
	Category  string                 `json:"category,omitempty" yaml:"category,omitempty"`
	Flags     map[string]ServiceFlag `json:"flags,omitempty" yaml:"flags,omitempty"`
	Estimates map[string]interface{} `json:"estimates,omitempty" yaml:"estimates,omitempty"`
	Meta      map[string]interface{} `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// FlagEnabled reports whether the service exposes a capability flag.
// The nested flags map is authoritative; a boolean top-level meta property
// of the same name is honored as a legacy fallback.
func (s *Service) FlagEnabled(flag string) bool {
	if s == nil {
		return false
	}
	if entry, ok := s.Flags[flag]; ok {
		return entry.Enabled
	}
	if raw, ok := s.Meta[flag]; ok {
		if enabled, ok := raw.(bool); ok {
			return enabled
		}
	}
	return false
}

// Snapshot flattens the service record with its meta bag into a plain map
// for path-based projection. Explicit record fields win over meta keys of
// the same name.
func (s *Service) Snapshot() map[string]interface{} {
	if s == nil {
		return nil
	}

	snap := make(map[string]interface{}, len(s.Meta)+8)
	for key, value := range s.Meta {
		snap[key] = value
	}
	snap["id"] = s.ID
	snap["name"] = s.Name
	snap["rate"] = s.Rate
	if s.Min != 0 {
		snap["min"] = s.Min
	}
	if s.Max != 0 {
		snap["max"] = s.Max
	}
	if s.Category != "" {
		snap["category"] = s.Category
	}
	if len(s.Flags) > 0 {
		flags := make(map[string]interface{}, len(s.Flags))
		for name, entry := range s.Flags {
			flags[name] = map[string]interface{}{
				"enabled":     entry.Enabled,
				"description": entry.Description,
			}
		}
		snap["flags"] = flags
	}
	if len(s.Estimates) > 0 {
		snap["estimates"] = s.Estimates
	}
	return snap
}

// ServiceMap is the capability map, keyed by service id.
type ServiceMap map[string]*Service
