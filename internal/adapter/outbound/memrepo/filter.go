package memrepo

import (
	"slices"
	"strings"

	"github.com/i2y/lnbits-mcp/internal/domain"
)

// apiMarker separates JSON API routes from HTML pages sharing the same document.
const apiMarker = "/api/"

func (r *Registry) skipReason(op domain.Operation) (string, bool) {
	if _, ok := domain.SkipTags[op.Tag]; ok {
		return "skipped tag", true
	}
	for _, m := range r.cfg.ExcludeMethods {
		if strings.EqualFold(m, op.Method) {
			return "excluded method", true
		}
	}
	for _, prefix := range r.cfg.ExcludePaths {
		if strings.HasPrefix(op.Path, prefix) {
			return "excluded path", true
		}
	}
	if !strings.Contains(op.Path, apiMarker) {
		return "not an API route", true
	}
	if op.ExtensionName != "" {
		if r.cfg.IncludeExtensions != nil && !slices.Contains(r.cfg.IncludeExtensions, op.ExtensionName) {
			return "extension not included", true
		}
		if r.cfg.ExcludeExtensions != nil && slices.Contains(r.cfg.ExcludeExtensions, op.ExtensionName) {
			return "extension excluded", true
		}
	}
	return "", false
}
