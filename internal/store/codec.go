package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Codec converts documents to and from their on-disk syntax.
type Codec interface {
	// Ext is the file extension without the leading dot.
	Ext() string
	Marshal(doc Document) ([]byte, error)

	// Unmarshal decodes data into a document. A document whose top level is
	// not a mapping is an error; an explicit null decodes to an empty document.
	Unmarshal(data []byte) (Document, error)
}

// CodecFor returns the codec for a configured format name ("yaml" or "json").
func CodecFor(format string) (Codec, error) {
	switch format {
	case "", "yaml", "yml":
		return YAML{}, nil
	case "json":
		return JSON{}, nil
	default:
		return nil, fmt.Errorf("unknown document format %q", format)
	}
}

var errNotMapping = errors.New("top level is not a mapping")

// YAML is the default codec.
type YAML struct{}

func (YAML) Ext() string { return "yaml" }

func (YAML) Marshal(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

func (YAML) Unmarshal(data []byte) (Document, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if len(node.Content) == 0 {
		return Document{}, nil
	}
	root := node.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return Document{}, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("decode yaml: %w", errNotMapping)
	}
	doc := Document{}
	if err := root.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return doc, nil
}

// JSON stores documents as indented JSON.
type JSON struct{}

func (JSON) Ext() string { return "json" }

func (JSON) Marshal(doc Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return append(data, '\n'), nil
}

func (JSON) Unmarshal(data []byte) (Document, error) {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return Document{}, nil
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("decode json: %w", errNotMapping)
	}
	doc := Document{}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return doc, nil
}
