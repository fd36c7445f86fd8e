package domain

// SchemaType defines the format of a fetched API description.
type SchemaType string

const (
	SchemaTypeOpenAPI SchemaType = "openapi"
)

// APISchema represents a fetched API description before parsing.
type APISchema struct {
	// Source is the URL the document was fetched from.
	Source string
	// Type specifies the kind of description.
	Type SchemaType
	// RawData holds the unprocessed JSON document.
	RawData []byte
	// Title and Version are taken from the document's info block when present.
	Title   string
	Version string
}
