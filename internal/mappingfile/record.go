// Package mappingfile reads and writes smartchr mapping documents and
// serves them to the cycle engine.
package mappingfile

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/smartchr/internal/model"
)

// Document is the persisted form of a mapping set.
type Document struct {
	Mappings []Record `json:"mappings" toml:"mappings" yaml:"mappings"`
}

// Record is the persisted form of one mapping.
type Record struct {
	Key        string   `json:"key" toml:"key" yaml:"key"`
	Candidates []string `json:"candidates" toml:"candidates" yaml:"candidates"`
	Mode       string   `json:"mode,omitempty" toml:"mode,omitempty" yaml:"mode,omitempty"`
	FileTypes  []string `json:"fileTypes,omitempty" toml:"fileTypes,omitempty" yaml:"fileTypes,omitempty"`
	Enabled    *bool    `json:"enabled,omitempty" toml:"enabled" yaml:"enabled,omitempty"`
}

// Mapping converts the record, applying the persisted defaults: unknown mode
// is LOOP, missing file types match everything, missing enabled is true.
func (r Record) Mapping() (model.Mapping, error) {
	runes := []rune(r.Key)
	if len(runes) != 1 {
		return model.Mapping{}, &model.ValidationError{Field: "key", Reason: "key must be a single character"}
	}
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return model.NewMapping(runes[0], r.Candidates, model.ParseCycleMode(r.Mode), r.FileTypes, enabled)
}

// MarshalYAML double-quotes every string so whitespace-only keys and
// candidates survive a round trip.
func (r Record) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	add := func(name string, value *yaml.Node) {
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name}, value)
	}
	add("key", quotedNode(r.Key))
	add("candidates", quotedSeq(r.Candidates))
	if r.Mode != "" {
		add("mode", quotedNode(r.Mode))
	}
	if len(r.FileTypes) > 0 {
		add("fileTypes", quotedSeq(r.FileTypes))
	}
	if r.Enabled != nil {
		add("enabled", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(*r.Enabled)})
	}
	return node, nil
}

func quotedNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s, Style: yaml.DoubleQuotedStyle}
}

func quotedSeq(values []string) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, v := range values {
		seq.Content = append(seq.Content, quotedNode(v))
	}
	return seq
}

// FromMapping builds the persisted record of m.
func FromMapping(m model.Mapping) Record {
	enabled := m.Enabled()
	return Record{
		Key:        string(m.Trigger()),
		Candidates: m.Candidates(),
		Mode:       m.Mode().String(),
		FileTypes:  m.Contexts(),
		Enabled:    &enabled,
	}
}

// ToMappings converts every record of the document.
func (d Document) ToMappings() ([]model.Mapping, error) {
	out := make([]model.Mapping, 0, len(d.Mappings))
	for i, rec := range d.Mappings {
		m, err := rec.Mapping()
		if err != nil {
			return nil, fmt.Errorf("mapping %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// NewDocument builds a document from mappings.
func NewDocument(mappings []model.Mapping) Document {
	doc := Document{Mappings: make([]Record, 0, len(mappings))}
	for _, m := range mappings {
		doc.Mappings = append(doc.Mappings, FromMapping(m))
	}
	return doc
}
