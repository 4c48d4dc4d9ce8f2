//go:build !windows

package update

import (
	"os"
	"syscall"
)

// replaceProcess swaps this process image for bin. Never returns on success:
// no file handles from the old image survive into the new one.
func replaceProcess(bin string, argv []string) error {
	return syscall.Exec(bin, argv, os.Environ())
}
