//go:build windows

package update

import (
	"os"
	"os/exec"
)

// replaceProcess approximates image replacement on Windows, where a running
// executable cannot overwrite itself and there is no exec: spawn the new
// process detached, then exit so no handle from this process outlives the
// hand-off.
func replaceProcess(bin string, argv []string) error {
	cmd := exec.Command(bin, argv[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return err
	}
	os.Exit(0)
	return nil
}
