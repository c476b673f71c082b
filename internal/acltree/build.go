package acltree

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/opensync/syftsync/internal/permspec"
)

// Build walks root looking for permission files and assembles them into a
// Tree, grounded on the teacher's manifest generator's directory walk
// (scanACLFiles in acl_manifest.go), minus the server-side manifest/hash
// bookkeeping that walk also did — this module only needs the merged rule
// tree, not a broadcastable manifest.
func Build(root string) (*Tree, error) {
	tree := NewTree()

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() || !permspec.IsFileName(path) {
			return nil
		}

		dir := filepath.Dir(path)
		file, err := permspec.LoadFromFile(dir)
		if err != nil {
			return fmt.Errorf("load permission file %s: %w", path, err)
		}

		rel, err := filepath.Rel(root, dir)
		if err != nil {
			return fmt.Errorf("relativize %s under %s: %w", dir, root, err)
		}
		file.Dir = filepath.ToSlash(rel)
		if file.Dir == "." {
			file.Dir = ""
		}

		tree.AddFile(file)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("build permission tree from %s: %w", root, err)
	}

	return tree, nil
}
