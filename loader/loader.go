// Package loader is the normalization boundary: it decodes raw catalog
// payloads (JSON or YAML) into documents, injects the well-known root tag
// when absent, and propagates constraints as a side effect of loading.
// A payload that is not an object violates the caller contract and fails
// fast; everything after that point is the validator's business.
package loader

import (
	"fmt"

	"gopkg.in/yaml.v3"

	servicegraph "github.com/servicegraph/servicegraph-go"
	"github.com/servicegraph/servicegraph-go/constraint"
)

// LoadDocument decodes a raw payload into a propagated document. JSON and
// YAML are both accepted.
func LoadDocument(data []byte) (*servicegraph.Document, error) {
	var probe interface{}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parsing catalog payload: %w", err)
	}
	if _, ok := probe.(map[string]interface{}); !ok {
		return nil, fmt.Errorf("catalog payload must be an object, got %T", probe)
	}

	var doc servicegraph.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding catalog payload: %w", err)
	}

	if doc.RootTag() == nil {
		doc.Filters = append(doc.Filters, &servicegraph.Tag{
			ID:    servicegraph.RootTagID,
			Label: "Root",
		})
	}

	constraint.Propagate(&doc)
	return &doc, nil
}

// LoadServices decodes a capability map keyed by service id. Entries
// without an explicit id inherit their key.
func LoadServices(data []byte) (servicegraph.ServiceMap, error) {
	var probe interface{}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parsing capability map: %w", err)
	}
	if _, ok := probe.(map[string]interface{}); !ok {
		return nil, fmt.Errorf("capability map must be an object, got %T", probe)
	}

	var services servicegraph.ServiceMap
	if err := yaml.Unmarshal(data, &services); err != nil {
		return nil, fmt.Errorf("decoding capability map: %w", err)
	}
	for id, svc := range services {
		if svc != nil && svc.ID == "" {
			svc.ID = id
		}
	}
	return services, nil
}
