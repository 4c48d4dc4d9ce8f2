package update

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/upgradekit/upgradekit/internal/utils"
)

// ActionSchemaVersion guards the descriptor wire format. The writer and the
// consumer are different process images of possibly different binaries.
const ActionSchemaVersion = 1

// ActionFileName is the descriptor's filename inside the staging settings dir.
const ActionFileName = "actions.json"

// Action is the one-shot serialized plan handed from the orchestrator
// process to the apply process. Written once, read once, then dead: a
// message, not shared state.
type Action struct {
	SchemaVersion      int      `json:"schema_version"`
	Merge              []string `json:"merge"`
	Delete             []string `json:"delete"`
	ProjectRoot        string   `json:"project_root"`
	StagingDir         string   `json:"staging_dir"`
	StartupPath        string   `json:"startup_path"`
	RemoteConfigPath   string   `json:"remote_config_path"`
	RemoteManifestPath string   `json:"remote_manifest_path"`
	Cleanup            bool     `json:"cleanup"`
}

// WriteAction serializes the descriptor to path.
func WriteAction(path string, action *Action) error {
	if err := utils.EnsureParent(path); err != nil {
		return fmt.Errorf("update: write action: %w", err)
	}

	action.SchemaVersion = ActionSchemaVersion
	data, err := json.MarshalIndent(action, "", "  ")
	if err != nil {
		return fmt.Errorf("update: encode action: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// LoadAction reads a descriptor back. Any failure is a LoadActionError.
func LoadAction(path string) (*Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadActionError{Path: path, Err: err}
	}

	var action Action
	if err := json.Unmarshal(data, &action); err != nil {
		return nil, &LoadActionError{Path: path, Err: err}
	}
	if action.SchemaVersion != ActionSchemaVersion {
		return nil, &LoadActionError{
			Path: path,
			Err:  fmt.Errorf("unsupported schema version %d", action.SchemaVersion),
		}
	}

	return &action, nil
}
