package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cmmoran/jvmobf/pkg/action/release"
)

func init() {
	rootCmd.AddCommand(NewReleaseCommand(), NewDiffCommand())
}

func NewReleaseCommand() *cobra.Command {
	var manifestPath, name, ver, mappingFile, output string

	// releaseCmd represents the jvmobf release command
	var releaseCmd = &cobra.Command{
		Use:   "release",
		Short: "record a release",
		Long:  "Record the mapping file of a released build in the release manifest",
		RunE: func(c *cobra.Command, args []string) error {
			if err := release.Record(manifestPath, name, ver, mappingFile, output); err != nil {
				return err
			}
			slog.Default().With("manifest", manifestPath, "name", name, "version", ver).Info("release recorded")
			return nil
		},
	}
	releaseCmd.Flags().StringVar(&manifestPath, "manifest", "releases.yaml", "release manifest")
	releaseCmd.Flags().StringVarP(&name, "name", "n", "", "release name")
	releaseCmd.Flags().StringVarP(&ver, "version", "v", "", "release version")
	releaseCmd.Flags().StringVarP(&mappingFile, "mapping", "m", "", "mapping file of the release")
	releaseCmd.Flags().StringVarP(&output, "output", "o", "", "obfuscated jar of the release")
	_ = releaseCmd.MarkFlagRequired("version")
	_ = releaseCmd.MarkFlagRequired("mapping")

	return releaseCmd
}

func NewDiffCommand() *cobra.Command {
	var manifestPath string

	// diffCmd represents the jvmobf diff command
	var diffCmd = &cobra.Command{
		Use:   "diff",
		Short: "diff release mappings",
		Long:  "Show how rename decisions changed between the current and the previous release",
		RunE: func(c *cobra.Command, args []string) error {
			diff, err := release.DiffCurrentWithPrevious(manifestPath)
			if err != nil {
				return err
			}
			if diff == "" {
				slog.Default().With("manifest", manifestPath).Info("mappings are identical")
				return nil
			}
			_, err = fmt.Fprint(c.OutOrStdout(), diff)
			return err
		},
	}
	diffCmd.Flags().StringVar(&manifestPath, "manifest", "releases.yaml", "release manifest")

	return diffCmd
}
