// Package loader reads tree documents from disk and keeps the local state
// directory out of version control.
//
// A tree document is either a list of nodes or an object with a "nodes" list:
//
//	[{"text": "a", "nodes": [{"text": "a.1"}]}, {"text": "b", "lazyLoad": true}]
//
// JSON and YAML are accepted; the format is picked by file extension. In both,
// an absent or null "nodes" field means a leaf (or an unfetched lazy node) and
// an empty list means a node with zero children.
package loader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/checktree/pkg/model"
)

// Format is a tree document encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatOf picks the format from the file extension; unknown extensions are
// read as JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// LoadFile reads and validates the tree document at path.
func LoadFile(path string) (model.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tree %s: %w", path, err)
	}
	t, err := Parse(data, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("parse tree %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes a tree document and validates every node.
func Parse(data []byte, f Format) (model.Tree, error) {
	if f == FormatYAML {
		var err error
		if data, err = yamlToJSON(data); err != nil {
			return nil, err
		}
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return model.Tree{}, nil
	}

	var t model.Tree
	if data[0] == '{' {
		var doc struct {
			Nodes model.Tree `json:"nodes"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		t = doc.Nodes
	} else if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	if t == nil {
		t = model.Tree{}
	}
	if err := validate(t, ""); err != nil {
		return nil, err
	}
	return t, nil
}

func validate(nodes []*model.Node, path string) error {
	for i, n := range nodes {
		p := fmt.Sprint(i)
		if path != "" {
			p = path + "." + p
		}
		if n == nil {
			return fmt.Errorf("node %s: null node", p)
		}
		if err := n.Validate(); err != nil {
			return fmt.Errorf("node %s: %w", p, err)
		}
		if err := validate(n.Nodes, p); err != nil {
			return err
		}
	}
	return nil
}

// yamlToJSON re-encodes a YAML document as JSON so both formats share the
// node codec. yaml.v3 decodes mappings as map[string]any, which JSON accepts.
func yamlToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Write encodes t in the format implied by path. Runtime-only fields are not
// written.
func Write(path string, t model.Tree) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tree: %w", err)
	}
	if FormatOf(path) == FormatYAML {
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("encode tree: %w", err)
		}
		if data, err = yaml.Marshal(v); err != nil {
			return fmt.Errorf("encode tree: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write tree %s: %w", path, err)
	}
	return nil
}
