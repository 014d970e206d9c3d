package export

import (
	"io"

	"labagent/internal/session"
	jsonx "labagent/internal/shared/json"
)

// JSONExporter writes the record exactly as the session log stores it.
type JSONExporter struct{}

func (e *JSONExporter) Export(rec session.Record, w io.Writer) error {
	enc := jsonx.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

func (e *JSONExporter) Extension() string {
	return "json"
}
