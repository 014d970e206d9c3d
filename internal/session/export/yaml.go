package export

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"labagent/internal/session"
	jsonx "labagent/internal/shared/json"
)

// YAMLExporter writes the record as YAML, keeping the on-disk key order.
type YAMLExporter struct{}

func (e *YAMLExporter) Export(rec session.Record, w io.Writer) error {
	data, err := jsonx.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	// JSON is valid YAML; decoding into a node preserves key order.
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("convert record: %w", err)
	}
	resetStyle(&doc)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()
	return enc.Encode(&doc)
}

func (e *YAMLExporter) Extension() string {
	return "yaml"
}

// resetStyle drops the flow/quoted styles inherited from JSON so the encoder
// picks block style and literal blocks for multi-line text.
func resetStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		resetStyle(c)
	}
}
