// Package cli implements the featureplus command-line interface.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	verbose     bool
	quiet       bool
	jsonOut     bool
	metricsOut  bool
	projectFlag string
)

// newRootCmd builds the command tree. Flag variables are reset to their
// defaults each time.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "featureplus",
		Short: "Plan features, sub-features and tasks from the terminal",
		Long: `featureplus manages a project's feature hierarchy: feature groups,
sub-features, their tags and their tasks.

Every command works on a local cache of one project. Changes show up in the
cache immediately and are confirmed by the backend before the command exits;
a change the backend refuses is rolled back and reported.

Quick start:
  featureplus project create "Storefront"      Create a project
  featureplus --project 1 feature add Checkout  Add a feature group
  featureplus --project 1 feature tree          Show the hierarchy
  featureplus --project 1 tag suggest pay       Suggest existing tags`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .featureplus/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only print warnings and errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&projectFlag, "project", "", "project id (default is session.project_id)")
	rootCmd.PersistentFlags().BoolVar(&metricsOut, "metrics", false, "print sync metrics to stderr when the command finishes")

	rootCmd.AddCommand(newProjectCmd())
	rootCmd.AddCommand(newFeatureCmd())
	rootCmd.AddCommand(newTagCmd())
	rootCmd.AddCommand(newTaskCmd())
	rootCmd.AddCommand(newCountsCmd())
	rootCmd.AddCommand(newMigrateCmd())
	return rootCmd
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	err := newRootCmd().Execute()
	if err != nil {
		PrintError(err)
	}
	return err
}
