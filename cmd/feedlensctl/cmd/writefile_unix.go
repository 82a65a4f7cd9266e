//go:build !windows

package cmd

import (
	"os"

	"github.com/google/renameio/v2"
)

// writeFileAtomic replaces path in one rename so readers never see a partial document.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	return renameio.WriteFile(path, data, perm)
}
