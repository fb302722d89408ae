package corpusstorage

import (
	"os"
	"path/filepath"

	goerrors "github.com/graphannis-go/graphannis-core/pkg/errors"
)

// recoverFromBackup implements spec §4.3/§6: "If a backup sibling
// directory exists at open time it is used as source of truth; the main
// directory is rebuilt from it. This yields crash-safety across a
// compaction that otherwise rewrites files in place."
//
// Nothing in this module writes backup/ (the disk annotation store's
// C0->C1 compaction runs inside its own bbolt file). When a backup/
// directory is present at open, each of its entries replaces the
// same-named entry of corpusDir, and backup/ itself is then removed.
func recoverFromBackup(corpusDir string) error {
	backupDir := filepath.Join(corpusDir, "backup")
	info, err := os.Stat(backupDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return goerrors.NewStorageIO("stat backup dir", err)
	}
	if !info.IsDir() {
		return nil
	}

	entries, err := os.ReadDir(backupDir)
	if err != nil {
		return goerrors.NewStorageIO("reading backup dir", err)
	}
	for _, e := range entries {
		src := filepath.Join(backupDir, e.Name())
		dst := filepath.Join(corpusDir, e.Name())
		if err := os.RemoveAll(dst); err != nil {
			return goerrors.NewStorageIO("clearing stale file before backup restore", err)
		}
		if err := os.Rename(src, dst); err != nil {
			return goerrors.NewStorageIO("promoting backup file", err)
		}
	}
	return goerrors.Wrap(os.RemoveAll(backupDir), "removing consumed backup dir")
}
