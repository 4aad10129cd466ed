package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/provide-io/mpqpack/pkg"
	"github.com/provide-io/mpqpack/pkg/mpq/format"
	"github.com/provide-io/mpqpack/pkg/mpq/storm"
)

func newBuildCmd(c *cli) *cobra.Command {
	var manifestPath, outputPath string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build an archive from a manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			header, err := pkg.BuildArchive(manifestPath, outputPath, c.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d files, %d hash slots, %d bytes\n",
				outputPath, header.BlockTableEntries, header.HashTableEntries, header.ArchiveSize)
			return nil
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "Path to manifest.json (required)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output archive path (required)")
	mustMarkRequired(cmd, "manifest", "output")
	return cmd
}

func newListCmd(c *cli) *cobra.Command {
	var listfile string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list ARCHIVE",
		Short: "List the files of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := pkg.ListArchive(args[0], listfile, c.logger)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), infos)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INDEX\tSIZE\tSTORED\tFLAGS\tNAME")
			for _, info := range infos {
				fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\n", info.Index, info.FileSize, info.CompressedSize, info.Flags, info.Name)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&listfile, "listfile", "l", "", "External listfile with additional names")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newExtractCmd(c *cli) *cobra.Command {
	var opts pkg.ExtractOptions
	var outputDir string

	cmd := &cobra.Command{
		Use:   "extract ARCHIVE",
		Short: "Extract every file of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Logger = c.logger
			result, err := pkg.ExtractArchive(cmd.Context(), args[0], outputDir, opts)
			if err != nil {
				return err
			}
			if result.Skipped {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: already extracted\n", result.Dir)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d files\n", result.Dir, result.Extracted)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Destination directory (defaults to the cache directory)")
	cmd.Flags().StringVarP(&opts.Listfile, "listfile", "l", "", "External listfile with additional names")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 0, "Concurrent file writes (defaults to GOMAXPROCS)")
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "Extract even if the destination is marked complete")
	return cmd
}

func newVerifyCmd(c *cli) *cobra.Command {
	var listfile string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "verify ARCHIVE",
		Short: "Decode every file of an archive and report checksums",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := pkg.VerifyArchive(args[0], listfile, c.logger)
			if report != nil {
				if asJSON {
					if jsonErr := writeJSON(cmd.OutOrStdout(), report); jsonErr != nil {
						return jsonErr
					}
				} else {
					printReport(cmd.OutOrStdout(), report)
				}
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&listfile, "listfile", "l", "", "External listfile with additional names")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func printReport(w io.Writer, report *pkg.VerifyReport) {
	fmt.Fprintf(w, "archive  %s\n", report.Archive)
	fmt.Fprintf(w, "checksum %s\n", report.Checksum)
	for _, file := range report.Files {
		switch {
		case file.Skipped:
			fmt.Fprintf(w, "SKIP %s (%s)\n", file.Name, file.Error)
		case file.Error != "":
			fmt.Fprintf(w, "FAIL %s (%s)\n", file.Name, file.Error)
		default:
			fmt.Fprintf(w, "OK   %s %s\n", file.Name, file.Checksum)
		}
	}
}

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash NAME...",
		Short: "Print the table hashes and file key of names",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tOFFSET\tNAME_A\tNAME_B\tFILE_KEY")
			for _, name := range args {
				fmt.Fprintf(tw, "%s\t%08X\t%08X\t%08X\t%08X\n",
					name,
					storm.HashString(name, storm.HashTableOffset),
					storm.HashString(name, storm.HashNameA),
					storm.HashString(name, storm.HashNameB),
					format.FileSeed(name, 0, 0, 0),
				)
			}
			return tw.Flush()
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func mustMarkRequired(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}
