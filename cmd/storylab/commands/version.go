package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Hua914255/media/cmd/storylab/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return output(cmd.OutOrStdout(), build.Get(), func(w io.Writer) error {
			_, err := fmt.Fprintln(w, build.String())
			if err == nil && verbose {
				_, err = fmt.Fprintf(w, "  go:     %s\n", build.Get().Go)
			}
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
