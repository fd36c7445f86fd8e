package domain

import "strings"

// Parameter locations understood by the dispatcher.
const (
	LocationPath   = "path"
	LocationQuery  = "query"
	LocationHeader = "header"
	LocationCookie = "cookie"
)

// CoreExtension labels operations that do not belong to any extension.
const CoreExtension = "core"

// Parameter is one declared operation parameter with its schema fully resolved.
type Parameter struct {
	Name        string
	In          string
	Required    bool
	Description string
	Schema      map[string]any
}

// Operation is a single HTTP method and path pair discovered from the API description.
// Operations are created fresh on every parse and never mutated afterwards.
type Operation struct {
	ToolName    string
	Method      string
	Path        string
	Summary     string
	Description string
	Tag         string
	Parameters  []Parameter
	// RequestBodySchema is nil when the operation takes no JSON body.
	RequestBodySchema map[string]any
	SecuritySchemes   []string
	IsPublic          bool
	// ExtensionName is empty for core operations.
	ExtensionName string
}

// Extension returns the owning extension, or CoreExtension.
func (o Operation) Extension() string {
	if o.ExtensionName == "" {
		return CoreExtension
	}
	return o.ExtensionName
}

// HasParameter reports whether the operation declares a parameter with the given name.
func (o Operation) HasParameter(name string) bool {
	for _, p := range o.Parameters {
		if p.Name == name {
			return true
		}
	}
	return false
}

// ParameterNames returns the names of parameters declared in the given location.
func (o Operation) ParameterNames(in string) map[string]struct{} {
	names := make(map[string]struct{})
	for _, p := range o.Parameters {
		if strings.EqualFold(p.In, in) {
			names[p.Name] = struct{}{}
		}
	}
	return names
}

// ExtensionCount is the number of loaded operations owned by one extension.
type ExtensionCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
