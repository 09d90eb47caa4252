// Package state persists the user-visible parts of a tree (checked, expanded and
// selected flags) between runs.
//
// File format (JSON):
//
//	{
//	  "version": 1,
//	  "checked":  {"0.1": true, "0": null},
//	  "expanded": {"0": true},
//	  "selected": ["0.1"]
//	}
//
// A snapshot stores only values that differ from the node defaults; values set
// by the user are stored as set, so an explicit uncheck survives a reload of a
// document that ships the node checked. Ids that no longer resolve when the
// state is applied are ignored. A missing or corrupted file means defaults.
package state

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/checktree/pkg/model"
	"github.com/vanderheijden86/checktree/pkg/session"
	"github.com/vanderheijden86/checktree/pkg/tree"
)

// Version is the current schema version.
const Version = 1

// FileName is the name of the state file inside the state directory.
const FileName = "tree-state.json"

// DefaultDir is used when no state directory is configured.
const DefaultDir = ".checktree"

// File is the persisted tree state.
type File struct {
	Version  int              `json:"version"`
	Checked  map[string]*bool `json:"checked"` // nil = partial
	Expanded map[string]bool  `json:"expanded"`
	Selected []string         `json:"selected"`
}

// New returns an empty state at the current version.
func New() *File {
	return &File{
		Version:  Version,
		Checked:  make(map[string]*bool),
		Expanded: make(map[string]bool),
	}
}

func checkOf(b *bool) model.Check {
	if b == nil {
		return model.Partial
	}
	return model.CheckOf(*b)
}

// Path returns the state file path for dir.
func Path(dir string) string {
	if dir == "" {
		dir = DefaultDir
	}
	return filepath.Join(dir, FileName)
}

// Capture records the non-default flags of every node in t.
func Capture(t model.Tree) *File {
	f := New()
	tree.Walk(t, func(n *model.Node) bool {
		st := n.St()
		if st.Checked != model.Unchecked {
			f.Checked[n.ID] = st.Checked.Bool()
		}
		if st.Expanded {
			f.Expanded[n.ID] = true
		}
		if st.Selected {
			f.Selected = append(f.Selected, n.ID)
		}
		return true
	})
	return f
}

// Record folds a change notification into f.
func (f *File) Record(c tree.Change) {
	switch c.Kind {
	case tree.ChangeChecked:
		f.Checked[c.NodeID] = c.Checked.Bool()
	case tree.ChangeExpanded:
		f.Expanded[c.NodeID] = c.Flag
	case tree.ChangeSelected:
		i := slices.Index(f.Selected, c.NodeID)
		switch {
		case c.Flag && i < 0:
			f.Selected = append(f.Selected, c.NodeID)
		case !c.Flag && i >= 0:
			f.Selected = slices.Delete(f.Selected, i, i+1)
		}
	}
}

// Apply replays f onto the controller. Checked values are applied as stored,
// without propagation. Lazy nodes whose children are not loaded yet stay
// collapsed. Selection goes through the controller so single-select holds.
func (f *File) Apply(c *session.Controller) {
	if f == nil {
		return
	}
	for _, id := range sortedKeys(f.Checked) {
		want := checkOf(f.Checked[id])
		if n := c.Node(id); n == nil || n.St().Checked == want {
			continue
		}
		c.Apply(tree.CheckedChange(id, want))
	}
	for _, id := range sortedKeys(f.Expanded) {
		want := f.Expanded[id]
		n := c.Node(id)
		if n == nil || n.St().Expanded == want || (want && n.NeedsFetch()) {
			continue
		}
		c.Apply(tree.ExpandedChange(id, want))
	}
	for _, id := range slices.Clone(f.Selected) {
		c.Select(id)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Save writes f to dir atomically.
func Save(dir string, f *File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tree state: %w", err)
	}
	path := Path(dir)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write tree state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace tree state: %w", err)
	}
	return nil
}

// Load reads the state in dir. A missing file yields an empty state and no
// error; a corrupted or unknown-version file is logged and yields an empty
// state.
func Load(dir string) *File {
	path := Path(dir)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("warning: failed to read tree state %s: %v", path, err)
		}
		return New()
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		log.Printf("warning: invalid tree state file, using defaults: %v", err)
		return New()
	}
	if f.Version != Version {
		log.Printf("warning: unsupported tree state version %d, using defaults", f.Version)
		return New()
	}
	if f.Checked == nil {
		f.Checked = make(map[string]*bool)
	}
	if f.Expanded == nil {
		f.Expanded = make(map[string]bool)
	}
	return &f
}

var _ session.Sink = (*Recorder)(nil)

// Recorder is a session.Sink that keeps a File current from change
// notifications and writes it out on Flush.
type Recorder struct {
	Dir  string
	File *File

	dirty bool
}

// NewRecorder returns a recorder for dir seeded with f.
func NewRecorder(dir string, f *File) *Recorder {
	if f == nil {
		f = New()
	}
	return &Recorder{Dir: dir, File: f}
}

// Notify records c.
func (r *Recorder) Notify(c tree.Change) {
	switch c.Kind {
	case tree.ChangeChecked, tree.ChangeExpanded, tree.ChangeSelected:
		r.File.Record(c)
		r.dirty = true
	}
}

// Dirty reports whether changes were recorded since the last Flush.
func (r *Recorder) Dirty() bool {
	return r.dirty
}

// Flush saves the state if anything changed. Errors are logged and returned.
func (r *Recorder) Flush() error {
	if !r.dirty {
		return nil
	}
	if err := Save(r.Dir, r.File); err != nil {
		log.Printf("warning: %v", err)
		return err
	}
	r.dirty = false
	return nil
}

// Reset replaces the recorded state with a snapshot of t, e.g. after the tree
// was replaced and old ids became meaningless.
func (r *Recorder) Reset(t model.Tree) {
	r.File = Capture(t)
	r.dirty = true
}
