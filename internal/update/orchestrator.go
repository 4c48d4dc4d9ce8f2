package update

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/upgradekit/upgradekit/internal/manifest"
	"github.com/upgradekit/upgradekit/internal/release"
	"github.com/upgradekit/upgradekit/internal/remote"
)

// SettingsDirName is the staging subdirectory holding the new descriptor,
// manifest and action file. The contents become the local release dir's
// files verbatim after a successful apply.
const SettingsDirName = ".settings"

// Orchestrator drives one check/plan/stage/dispatch cycle against a single
// project. Its lifecycle is scoped to that one invocation.
type Orchestrator struct {
	project *Project
	client  *remote.Client
}

func NewOrchestrator(project *Project, client *remote.Client) *Orchestrator {
	return &Orchestrator{project: project, client: client}
}

// CheckResult reports whether the remote release supersedes the local one.
type CheckResult struct {
	HasUpdate     bool
	Description   string
	RemoteVersion string
	LocalVersion  string
}

// Check compares remote and local versions under semantic-version ordering.
// An update exists iff the remote version is strictly greater. Mutates
// nothing, safe to call repeatedly.
func (o *Orchestrator) Check(ctx context.Context) (*CheckResult, error) {
	localCfg, err := o.project.Config()
	if err != nil {
		return nil, err
	}
	remoteCfg, err := o.client.ReleaseConfig(ctx)
	if err != nil {
		return nil, err
	}

	localVer, err := localCfg.Semver()
	if err != nil {
		return nil, err
	}
	remoteVer, err := remoteCfg.Semver()
	if err != nil {
		return nil, err
	}

	result := &CheckResult{
		HasUpdate:     remoteVer.GreaterThan(localVer),
		Description:   localCfg.Description,
		RemoteVersion: remoteVer.String(),
		LocalVersion:  localVer.String(),
	}
	if result.HasUpdate {
		result.Description = remoteCfg.Description
	}
	return result, nil
}

// Plan is the computed file set for one update, plus the staging area the
// downloads will land in.
type Plan struct {
	Merge        []string
	Delete       []string
	RemoteConfig *release.Config
	StagingDir   string
	SettingsDir  string
}

// BuildPlan diffs the local manifest against a freshly fetched remote
// manifest and derives the merge and delete sets. Takes the cross-process
// update lock, which is held until dispatch or until the plan is aborted.
func (o *Orchestrator) BuildPlan(ctx context.Context) (*Plan, error) {
	if err := o.project.TryLock(); err != nil {
		return nil, err
	}

	plan, err := o.buildPlan(ctx)
	if err != nil {
		o.project.Unlock()
		return nil, err
	}
	return plan, nil
}

func (o *Orchestrator) buildPlan(ctx context.Context) (*Plan, error) {
	localCfg, err := o.project.Config()
	if err != nil {
		return nil, err
	}
	remoteCfg, err := o.client.ReleaseConfig(ctx)
	if err != nil {
		return nil, err
	}

	diff, err := o.diffManifests(ctx, localCfg, remoteCfg)
	if err != nil {
		return nil, err
	}

	deleteSet := diff.LocalOnly.ToSlice()
	sort.Strings(deleteSet)

	var mergeSet []string
	if remoteCfg.RequiredOnly {
		// Added or changed files only.
		mergeSet = append(diff.RemoteOnly.ToSlice(), diff.MismatchedPaths()...)
	} else {
		// Forced full resync of every remote file, for publishers that
		// cannot trust partial-diff correctness.
		mergeSet, err = o.remotePaths(ctx, remoteCfg)
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(mergeSet)

	if remoteCfg.RequiredOnly && len(mergeSet) == 0 && len(deleteSet) == 0 {
		return nil, ErrNoUpdate
	}

	stagingDir, err := os.MkdirTemp("", "upgradekit-stage-")
	if err != nil {
		return nil, fmt.Errorf("update: staging dir: %w", err)
	}

	slog.Info("update planned", "merge", len(mergeSet), "delete", len(deleteSet), "required_only", remoteCfg.RequiredOnly)
	return &Plan{
		Merge:        mergeSet,
		Delete:       deleteSet,
		RemoteConfig: remoteCfg,
		StagingDir:   stagingDir,
		SettingsDir:  filepath.Join(stagingDir, SettingsDirName),
	}, nil
}

// diffManifests fetches the remote manifest into a scratch dir and compares
// it with the local one. The scratch copy is gone by the time this returns;
// staging downloads its own verbatim copy later.
func (o *Orchestrator) diffManifests(ctx context.Context, localCfg, remoteCfg *release.Config) (*manifest.DiffResult, error) {
	scratch, err := os.MkdirTemp("", "upgradekit-diff-")
	if err != nil {
		return nil, fmt.Errorf("update: scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	remoteStore, err := o.client.FetchManifest(ctx, remoteCfg, filepath.Join(scratch, remoteCfg.HashDB))
	if err != nil {
		return nil, err
	}
	defer remoteStore.Close()

	localStore, err := manifest.OpenStore(o.project.ManifestPath(localCfg))
	if err != nil {
		return nil, err
	}
	defer localStore.Close()

	return manifest.Compare(localStore, remoteStore)
}

func (o *Orchestrator) remotePaths(ctx context.Context, remoteCfg *release.Config) ([]string, error) {
	scratch, err := os.MkdirTemp("", "upgradekit-diff-")
	if err != nil {
		return nil, fmt.Errorf("update: scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	remoteStore, err := o.client.FetchManifest(ctx, remoteCfg, filepath.Join(scratch, remoteCfg.HashDB))
	if err != nil {
		return nil, err
	}
	defer remoteStore.Close()

	return remoteStore.Paths()
}

// Stage downloads every merge-set file into the staging dir, mirroring
// relative paths, plus the remote descriptor and manifest into the settings
// subdir. Nothing in the live install is touched; a failure here leaves the
// install exactly as it was.
func (o *Orchestrator) Stage(ctx context.Context, plan *Plan) error {
	if err := o.stage(ctx, plan); err != nil {
		o.Abort(plan)
		return err
	}
	return nil
}

func (o *Orchestrator) stage(ctx context.Context, plan *Plan) error {
	jobs := make([]*remote.DownloadJob, 0, len(plan.Merge))
	for _, rel := range plan.Merge {
		jobs = append(jobs, &remote.DownloadJob{
			URL:      o.client.FileURL(rel),
			DestPath: filepath.Join(plan.StagingDir, filepath.FromSlash(rel)),
		})
	}
	if err := o.client.FetchMany(ctx, jobs, 0); err != nil {
		return err
	}

	// The staged descriptor and manifest become the new local copies after
	// apply. They are downloaded verbatim, never reconstructed from the diff.
	if _, err := o.client.Fetch(ctx, o.client.ConfigURL(), filepath.Join(plan.SettingsDir, release.ConfigFileName)); err != nil {
		return err
	}
	if _, err := o.client.Fetch(ctx, o.client.ManifestURL(plan.RemoteConfig), filepath.Join(plan.SettingsDir, plan.RemoteConfig.HashDB)); err != nil {
		return err
	}

	slog.Info("update staged", "dir", plan.StagingDir, "files", len(plan.Merge))
	return nil
}

// Abort discards a plan's staging area and releases the update lock.
func (o *Orchestrator) Abort(plan *Plan) {
	if plan != nil && plan.StagingDir != "" {
		os.RemoveAll(plan.StagingDir)
	}
	o.project.Unlock()
}

// Dispatch writes the action descriptor and transfers control to a fresh
// process image running the apply step. On success this never returns: the
// running application may hold open handles to files about to be
// overwritten, so control must leave this process entirely first.
func (o *Orchestrator) Dispatch(plan *Plan) error {
	actionPath := filepath.Join(plan.SettingsDir, ActionFileName)
	action := &Action{
		Merge:              plan.Merge,
		Delete:             plan.Delete,
		ProjectRoot:        o.project.Root,
		StagingDir:         plan.StagingDir,
		StartupPath:        filepath.Join(o.project.Root, filepath.FromSlash(plan.RemoteConfig.StartupPath)),
		RemoteConfigPath:   filepath.Join(plan.SettingsDir, release.ConfigFileName),
		RemoteManifestPath: filepath.Join(plan.SettingsDir, plan.RemoteConfig.HashDB),
		Cleanup:            plan.RemoteConfig.Cleanup,
	}
	if err := WriteAction(actionPath, action); err != nil {
		o.Abort(plan)
		return err
	}

	self, err := os.Executable()
	if err != nil {
		o.Abort(plan)
		return fmt.Errorf("update: resolve own binary: %w", err)
	}

	// The lock fd would not survive the exec anyway; release it explicitly
	// so the hand-off point is deterministic.
	o.project.Unlock()

	slog.Info("dispatching update", "action", actionPath)
	return replaceProcess(self, []string{self, "apply", actionPath})
}
