package main

import (
	"github.com/spf13/cobra"

	"github.com/upgradekit/upgradekit/internal/build"
)

func init() {
	rootCmd.AddCommand(newBuildCmd())
}

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <project-dir>",
		Short: "Create the release dir with a default config and a fresh manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			excludePaths, _ := cmd.Flags().GetStringArray("exclude")
			excludePatterns, _ := cmd.Flags().GetStringArray("exclude-pattern")
			excludeHidden, _ := cmd.Flags().GetBool("exclude-hidden")

			if err := build.ValidatePatterns(excludePatterns); err != nil {
				return err
			}

			cmd.SilenceUsage = true
			builder := &build.Builder{
				ProjectPath:     args[0],
				ExcludeHidden:   excludeHidden,
				ExcludePaths:    excludePaths,
				ExcludePatterns: excludePatterns,
			}
			return builder.Build(cmd.Context())
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringArrayP("exclude", "e", nil, "Paths to exclude from the manifest")
	cmd.Flags().StringArrayP("exclude-pattern", "p", nil, "Regex patterns to exclude from the manifest")
	cmd.Flags().Bool("exclude-hidden", false, "Exclude hidden files and directories")
	return cmd
}
