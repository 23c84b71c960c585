package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var storyCmd = &cobra.Command{
	Use:   "story",
	Short: "Create and show stories",
}

var storyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an empty story and print its id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.stories.Create(cmd.Context())
		if err != nil {
			return err
		}
		return output(cmd.OutOrStdout(), map[string]string{"story_id": id}, func(w io.Writer) error {
			_, err := fmt.Fprintln(w, id)
			return err
		})
	},
}

var storyShowCmd = &cobra.Command{
	Use:   "show <story-id>",
	Short: "Print the turns of a story",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		turns, err := a.stories.Turns(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("story %s: %w", args[0], err)
		}
		return output(cmd.OutOrStdout(), map[string]any{"story_id": args[0], "turns": turns}, printTurns(turns))
	},
}

func init() {
	storyCmd.AddCommand(storyCreateCmd, storyShowCmd)
	rootCmd.AddCommand(storyCmd)
}
