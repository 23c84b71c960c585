package commands

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Hua914255/media/pkg/continuation"
	"github.com/Hua914255/media/pkg/story"
)

var (
	continueRounds int
	continueMode   string
	continueStream bool
)

var continueCmd = &cobra.Command{
	Use:   "continue <story-id> <text>...",
	Short: "Append a sentence and its AI continuation to a story",
	Long: `Append a sentence and its AI continuation to a story.

With --stream each AI sentence is printed as soon as it is complete;
with --format json streamed turns are printed one JSON object per line.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		req := continuation.Request{
			StoryID:  args[0],
			UserText: strings.Join(args[1:], " "),
			Rounds:   continueRounds,
			Mode:     continuation.Mode(continueMode),
		}
		w := cmd.OutOrStdout()

		if !continueStream {
			turns, state, err := a.srv.Continue(ctx, req)
			if err != nil {
				return err
			}
			res := map[string]any{"story_id": req.StoryID, "new_turns": turns, "state": state}
			return output(w, res, printTurns(turns))
		}

		enc := json.NewEncoder(w)
		_, err = a.srv.Stream(ctx, req, func(t story.Turn) error {
			if formatOutput == "json" {
				return enc.Encode(t)
			}
			return printTurn(w, t)
		})
		return err
	},
}

func init() {
	f := continueCmd.Flags()
	f.IntVarP(&continueRounds, "rounds", "n", 1, "number of AI sentences (1-10)")
	f.StringVar(&continueMode, "mode", string(continuation.ModeHumanAI), "human_ai, ai_only or human_only")
	f.BoolVar(&continueStream, "stream", false, "print AI sentences as they complete")
	rootCmd.AddCommand(continueCmd)
}
