package instrumentation

import (
	"fmt"
	"io"

	"gofi/event"
	"gofi/sequence"

	"gopkg.in/yaml.v3"
)

// The instrumentation definitions of the internal events owned by node. All nodes if node is empty.
func Definitions(graph *sequence.Graph, node string) []event.Definition {
	return graph.Definitions(node)
}

type definitionFile struct {
	Definitions []event.Definition `yaml:"definitions"`
}

// Write the definitions as YAML for an external instrumentation engine
func WriteDefinitions(w io.Writer, defs []event.Definition) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(definitionFile{Definitions: defs}); err != nil {
		return fmt.Errorf("instrumentation: write definitions: %w", err)
	}
	return enc.Close()
}

// Read definitions written by WriteDefinitions
func ReadDefinitions(r io.Reader) ([]event.Definition, error) {
	var file definitionFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("instrumentation: read definitions: %w", err)
	}
	return file.Definitions, nil
}
