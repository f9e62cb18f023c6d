package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deixis/falconctl/internal/config"
)

var buildProjectRoot string

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Locate the extractor, building it when it is missing",
	Long: `Build makes sure the extractor exists. An existing artifact is left as is;
a missing binary is built with the project's build command (cargo build
--release by default). Script artifacts are never built.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := loadProject(buildProjectRoot)
		if err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		// Only the project fields are needed, so an incomplete run
		// configuration is fine here.
		cfg := config.Merge(config.Params{}, os.LookupEnv, project.Defaults())
		loc, err := project.Locator(cfg, log)
		if err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		desc, err := loc.LocateOrBuild(cmd.Context(), true)
		if err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", desc.Path, desc.Kind)
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVar(&buildProjectRoot, "project-root", "", "extraction project directory")
	rootCmd.AddCommand(buildCmd)
}
