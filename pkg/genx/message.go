package genx

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

type Role string

func (r Role) String() string {
	return string(r)
}

// Message is one entry of the conversation sent upstream.
type Message struct {
	Role    Role
	Name    string
	Content string
}

// MessageChunk is one text delta of a generation.
type MessageChunk struct {
	Role Role
	Name string
	Text string
}

func (c *MessageChunk) Clone() *MessageChunk {
	chk := *c
	return &chk
}
