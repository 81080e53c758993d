package relation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/canonical/hpct-slurm-client-operator/pkg/types"
)

// Bag is one side of a relation's shared key/value data. The inbound bag is
// written by the peer and read here; the outbound bag is written here for the
// peer to observe. The transport that synchronizes bags between units is an
// external collaborator; this package only reads and writes the local copies.
type Bag interface {
	Read(key string) (value string, ok bool)
	Write(key, value string) error
	Keys() []string
}

// Bags provides access to the data bags of a relation instance.
type Bags interface {
	Inbound(scope types.Scope) (Bag, error)
	Outbound(scope types.Scope) (Bag, error)
}

// DirBags implements Bags over a directory tree:
//
//	<dir>/<relation>-<id>/inbound.json
//	<dir>/<relation>-<id>/outbound.json
//
// Each file is a flat JSON object of string keys and values. The transport
// shim replaces inbound.json whole; outbound.json is rewritten whole on every
// Write, which gives the replace-whole-value semantics the peers expect.
type DirBags struct {
	dir string
}

// NewDirBags returns a Bags provider rooted at dir.
func NewDirBags(dir string) *DirBags {
	return &DirBags{dir: dir}
}

func (b *DirBags) scopeDir(scope types.Scope) string {
	return filepath.Join(b.dir, fmt.Sprintf("%s-%d", scope.Relation, scope.ID))
}

func (b *DirBags) Inbound(scope types.Scope) (Bag, error) {
	return loadFileBag(filepath.Join(b.scopeDir(scope), "inbound.json"), true)
}

func (b *DirBags) Outbound(scope types.Scope) (Bag, error) {
	if err := os.MkdirAll(b.scopeDir(scope), 0755); err != nil {
		return nil, fmt.Errorf("create relation dir for %s: %w", scope, err)
	}
	return loadFileBag(filepath.Join(b.scopeDir(scope), "outbound.json"), false)
}

type fileBag struct {
	path     string
	readOnly bool
	data     map[string]string
}

func loadFileBag(path string, readOnly bool) (*fileBag, error) {
	bag := &fileBag{path: path, readOnly: readOnly, data: map[string]string{}}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return bag, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read bag %s: %w", path, err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &bag.data); err != nil {
			return nil, fmt.Errorf("parse bag %s: %w", path, err)
		}
	}
	return bag, nil
}

func (b *fileBag) Read(key string) (string, bool) {
	v, ok := b.data[key]
	return v, ok
}

func (b *fileBag) Write(key, value string) error {
	if b.readOnly {
		return fmt.Errorf("bag %s is peer-owned", b.path)
	}
	b.data[key] = value
	raw, err := json.MarshalIndent(b.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode bag %s: %w", b.path, err)
	}
	if err := os.WriteFile(b.path, raw, 0644); err != nil {
		return fmt.Errorf("write bag %s: %w", b.path, err)
	}
	return nil
}

func (b *fileBag) Keys() []string {
	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
