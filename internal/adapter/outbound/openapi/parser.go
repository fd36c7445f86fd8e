package openapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/i2y/lnbits-mcp/internal/domain"
)

// Parser turns a fetched OpenAPI document into normalized operations.
type Parser struct {
	rules  NamingRules
	logger *slog.Logger
}

// NewParser creates a Parser using the given naming rules.
func NewParser(rules NamingRules, logger *slog.Logger) *Parser {
	return &Parser{
		rules:  rules,
		logger: logger.With("component", "openapi_parser"),
	}
}

// rawDocument keeps paths and verbs in document order so collision suffixes are stable.
type rawDocument struct {
	Paths      *orderedmap.OrderedMap[string, json.RawMessage] `json:"paths"`
	Components struct {
		Schemas map[string]any `json:"schemas"`
	} `json:"components"`
}

// Parse decodes schema.RawData and returns one Operation per supported (path, verb) pair.
// Missing paths or components are treated as empty. Only an undecodable document is an error.
func (p *Parser) Parse(schema domain.APISchema) ([]domain.Operation, error) {
	doc := rawDocument{Paths: orderedmap.New[string, json.RawMessage]()}
	if err := json.Unmarshal(schema.RawData, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode OpenAPI document: %w", err)
	}
	if doc.Paths == nil {
		doc.Paths = orderedmap.New[string, json.RawMessage]()
	}

	resolver := refResolver{schemas: doc.Components.Schemas}
	names := newNameAllocator()
	var ops []domain.Operation

	for pair := doc.Paths.Oldest(); pair != nil; pair = pair.Next() {
		path := pair.Key
		item := orderedmap.New[string, json.RawMessage]()
		if err := json.Unmarshal(pair.Value, item); err != nil {
			p.logger.Warn("Skipping malformed path item", slog.String("path", path), slog.Any("error", err))
			continue
		}

		for verb := item.Oldest(); verb != nil; verb = verb.Next() {
			method := verb.Key
			if _, ok := methodActions[method]; !ok {
				continue
			}
			var raw map[string]any
			if err := json.Unmarshal(verb.Value, &raw); err != nil || raw == nil {
				p.logger.Warn("Skipping malformed operation",
					slog.String("path", path), slog.String("method", method), slog.Any("error", err))
				continue
			}
			op := p.buildOperation(path, method, raw, resolver)
			op.ToolName = names.allocate(p.rules.BaseName(op.Tag, method, path))
			ops = append(ops, op)
		}
	}

	p.logger.Info("Parsed OpenAPI spec", slog.Int("operation_count", len(ops)))
	return ops, nil
}

func (p *Parser) buildOperation(path, method string, raw map[string]any, resolver refResolver) domain.Operation {
	tag := "other"
	if tags, ok := raw["tags"].([]any); ok && len(tags) > 0 {
		if s, ok := tags[0].(string); ok {
			tag = s
		}
	}

	summary, _ := raw["summary"].(string)
	description := summary
	if d, ok := raw["description"]; ok {
		description, _ = d.(string)
	}

	security := extractSecurity(raw["security"])

	return domain.Operation{
		Method:            strings.ToUpper(method),
		Path:              path,
		Summary:           summary,
		Description:       description,
		Tag:               tag,
		Parameters:        resolveParameters(raw["parameters"], resolver),
		RequestBodySchema: resolveRequestBody(raw["requestBody"], resolver),
		SecuritySchemes:   security,
		IsPublic:          len(security) == 0,
		ExtensionName:     detectExtension(path),
	}
}

func resolveParameters(raw any, resolver refResolver) []domain.Parameter {
	list, _ := raw.([]any)
	params := make([]domain.Parameter, 0, len(list))
	for _, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		obj = resolver.resolveObject(obj)

		param := domain.Parameter{}
		param.Name, _ = obj["name"].(string)
		param.In, _ = obj["in"].(string)
		param.Required, _ = obj["required"].(bool)
		param.Description, _ = obj["description"].(string)
		if s, ok := obj["schema"].(map[string]any); ok {
			param.Schema = resolver.resolve(s, 0)
		}
		params = append(params, param)
	}
	return params
}

func resolveRequestBody(raw any, resolver refResolver) map[string]any {
	body, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	content, _ := body["content"].(map[string]any)
	media, _ := content["application/json"].(map[string]any)
	schema, ok := media["schema"].(map[string]any)
	if !ok {
		return nil
	}
	return resolver.resolve(schema, 0)
}

// extractSecurity returns the union of scheme names across all requirement blocks.
func extractSecurity(raw any) []string {
	blocks, _ := raw.([]any)
	var schemes []string
	for _, b := range blocks {
		block, ok := b.(map[string]any)
		if !ok {
			continue
		}
		keys := make([]string, 0, len(block))
		for k := range block {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if !slices.Contains(schemes, k) {
				schemes = append(schemes, k)
			}
		}
	}
	return schemes
}

// detectExtension returns the first path segment for "/{ext}/api/..." paths.
func detectExtension(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 3 && parts[1] == "api" && parts[0] != "api" {
		return parts[0]
	}
	return ""
}
