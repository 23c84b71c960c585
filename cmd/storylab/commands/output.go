package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-yaml"

	"github.com/Hua914255/media/pkg/story"
)

// output writes v in the --format chosen by the user. text falls back to
// YAML for values without a text rendering.
func output(w io.Writer, v any, text func(io.Writer) error) error {
	switch formatOutput {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "text", "":
		if text != nil {
			return text(w)
		}
		fallthrough
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unsupported output format: %s", formatOutput)
	}
}

var (
	turnNumberStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
	humanStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f"))
	aiStyle         = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#58a6ff"))
)

// printTurn renders one turn as "#n author text".
func printTurn(w io.Writer, t story.Turn) error {
	author := humanStyle.Render(fmt.Sprintf("%-5s", t.Author))
	if t.Author == story.AuthorAI {
		author = aiStyle.Render(fmt.Sprintf("%-5s", t.Author))
	}
	_, err := fmt.Fprintf(w, "%s %s %s\n", turnNumberStyle.Render(fmt.Sprintf("#%-3d", t.Turn)), author, t.Text)
	return err
}

func printTurns(turns []story.Turn) func(io.Writer) error {
	return func(w io.Writer) error {
		for _, t := range turns {
			if err := printTurn(w, t); err != nil {
				return err
			}
		}
		return nil
	}
}
