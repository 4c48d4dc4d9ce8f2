package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/upgradekit/upgradekit/internal/remote"
	"github.com/upgradekit/upgradekit/internal/update"
)

func init() {
	rootCmd.AddCommand(newCheckCmd())
}

// bindTargetFlags wires the --project/--url flags through viper so they can
// also come from UPGRADEKIT_PROJECT / UPGRADEKIT_URL.
func bindTargetFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlag("project", cmd.Flags().Lookup("project")); err != nil {
		return err
	}
	if err := viper.BindPFlag("url", cmd.Flags().Lookup("url")); err != nil {
		return err
	}
	viper.SetEnvPrefix("UPGRADEKIT")
	viper.AutomaticEnv()

	if viper.GetString("url") == "" {
		return fmt.Errorf("remote url is required (--url or UPGRADEKIT_URL)")
	}
	return nil
}

func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().SortFlags = false
	cmd.Flags().StringP("project", "d", ".", "Project root directory")
	cmd.Flags().StringP("url", "u", "", "Remote project root URL")
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether the remote release supersedes the local install",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindTargetFlags(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			project, err := update.OpenProject(viper.GetString("project"))
			if err != nil {
				return err
			}
			orch := update.NewOrchestrator(project, remote.NewClient(viper.GetString("url")))

			result, err := orch.Check(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.HasUpdate {
				fmt.Fprintf(out, "%s %s -> %s\n", green("update available:"), result.LocalVersion, cyan(result.RemoteVersion))
				fmt.Fprintln(out, result.Description)
			} else {
				fmt.Fprintf(out, "up to date (%s)\n", result.LocalVersion)
			}
			return nil
		},
	}

	addTargetFlags(cmd)
	return cmd
}
