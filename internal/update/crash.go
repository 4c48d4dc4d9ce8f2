package update

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/upgradekit/upgradekit/internal/utils"
	"github.com/upgradekit/upgradekit/internal/version"
)

// WriteCrashRecord leaves a durable, timestamped record of a failed apply in
// dir. The process that would normally report the error is being replaced,
// so this file is the only diagnostic a human or monitor gets afterwards.
func WriteCrashRecord(dir string, applyErr error) (string, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("update: crash record dir: %w", err)
	}

	now := time.Now()
	path := filepath.Join(dir, fmt.Sprintf("crash_%s.log", now.Format("2006-01-02-15_04_05")))
	content := fmt.Sprintf("time: %s\nupgradekit: %s\nerror: %v\n",
		now.Format(time.RFC3339), version.Short(), applyErr)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("update: write crash record: %w", err)
	}
	return path, nil
}
