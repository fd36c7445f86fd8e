package domain

// Tool represents a callable function exposed over the Model Context Protocol.
// Dynamic tools map 1:1 to an Operation; administrative tools are hand-defined.
type Tool struct {
	// Name is unique within the server.
	Name string `json:"name"`

	// Description tells the calling model when to use the tool.
	Description string `json:"description"`

	// InputSchema is a JSON Schema object with type "object".
	InputSchema map[string]any `json:"inputSchema"`
}
