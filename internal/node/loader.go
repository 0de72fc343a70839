package node

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileSpec is the YAML shape of a document fixture.
type FileSpec struct {
	Nodes []NodeSpec `yaml:"nodes"`
}

// NodeSpec declares one node and its subtree.
type NodeSpec struct {
	ID       string            `yaml:"id,omitempty"`
	Name     string            `yaml:"name"`
	Attrs    map[string]string `yaml:"attrs,omitempty"`
	Children []NodeSpec        `yaml:"children,omitempty"`
}

// LoadFile reads a document fixture from a YAML file.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document file %q: %w", path, err)
	}
	doc, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("parse document file %q: %w", path, err)
	}
	return doc, nil
}

// Load builds a Document from YAML bytes.
func Load(data []byte) (*Document, error) {
	var spec FileSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}

	doc := NewDocument()
	seen := make(map[string]bool)
	for _, ns := range spec.Nodes {
		built, err := buildNode(ns, seen)
		if err != nil {
			return nil, err
		}
		doc.Root().AppendChild(built)
	}
	return doc, nil
}

func buildNode(spec NodeSpec, seen map[string]bool) (*Node, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("node %q has no name", spec.ID)
	}
	if spec.ID != "" {
		if seen[spec.ID] {
			return nil, fmt.Errorf("duplicate node id %q", spec.ID)
		}
		seen[spec.ID] = true
	}

	n := New(spec.Name, spec.ID, spec.Attrs)
	for _, cs := range spec.Children {
		child, err := buildNode(cs, seen)
		if err != nil {
			return nil, err
		}
		n.AppendChild(child)
	}
	return n, nil
}
