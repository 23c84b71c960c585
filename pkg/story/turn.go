// Package story persists interactive stories as ordered turns and builds the
// model context used to continue them.
package story

const (
	AuthorHuman = "human"
	AuthorAI    = "ai"
)

// Turn is one numbered contribution to a story. Scores and coordinates are
// filled by a Scorer; the store carries them without interpretation.
type Turn struct {
	StoryID string `json:"story_id" msgpack:"story_id"`
	Turn    int    `json:"turn" msgpack:"turn"`
	Author  string `json:"author" msgpack:"author"`
	Text    string `json:"text" msgpack:"text"`

	FlowScore    float64 `json:"flow_score" msgpack:"flow_score"`
	EntropyScore float64 `json:"entropy_score" msgpack:"entropy_score"`
	X            float64 `json:"x" msgpack:"x"`
	Y            float64 `json:"y" msgpack:"y"`
}
