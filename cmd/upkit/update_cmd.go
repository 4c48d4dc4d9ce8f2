package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/upgradekit/upgradekit/internal/remote"
	"github.com/upgradekit/upgradekit/internal/update"
)

func init() {
	rootCmd.AddCommand(newUpdateCmd())
}

func newUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Check, stage and apply the remote release, then restart the application",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindTargetFlags(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			out := cmd.OutOrStdout()

			project, err := update.OpenProject(viper.GetString("project"))
			if err != nil {
				return err
			}
			orch := update.NewOrchestrator(project, remote.NewClient(viper.GetString("url")))

			result, err := orch.Check(cmd.Context())
			if err != nil {
				return err
			}
			if !result.HasUpdate {
				fmt.Fprintf(out, "up to date (%s)\n", result.LocalVersion)
				return nil
			}
			fmt.Fprintf(out, "%s %s -> %s\n", green("updating:"), result.LocalVersion, cyan(result.RemoteVersion))

			plan, err := orch.BuildPlan(cmd.Context())
			if errors.Is(err, update.ErrNoUpdate) {
				fmt.Fprintln(out, "version bump with no file changes, nothing to do")
				return nil
			}
			if err != nil {
				return err
			}

			if err := orch.Stage(cmd.Context(), plan); err != nil {
				return err
			}

			// Control does not come back from a successful dispatch.
			if err := orch.Dispatch(plan); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), red("dispatch failed"))
				return err
			}
			return nil
		},
	}

	addTargetFlags(cmd)
	return cmd
}
