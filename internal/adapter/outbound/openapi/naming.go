package openapi

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

	methodActions = map[string]string{
		"get":    "get",
		"post":   "create",
		"put":    "update",
		"patch":  "update",
		"delete": "delete",
	}
)

// NamingRules tunes tool name derivation.
type NamingRules struct {
	// KeepGetResources lists resource slugs whose collection-style GET keeps
	// the "get" action instead of becoming "list".
	KeepGetResources []string
}

// DefaultNamingRules returns the rules used for LNbits instances.
func DefaultNamingRules() NamingRules {
	return NamingRules{KeepGetResources: []string{"wallet"}}
}

// BaseName builds "{tag}_{action}_{resource}" for one operation, without collision suffixes.
func (r NamingRules) BaseName(tag, method, path string) string {
	method = strings.ToLower(method)
	action, ok := methodActions[method]
	if !ok {
		action = method
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	resource := "resource"
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" && !isPathParam(segments[i]) {
			resource = segments[i]
			break
		}
	}
	resourceSlug := slugify(resource)

	if method == "get" && !isPathParam(segments[len(segments)-1]) &&
		!slices.Contains(r.KeepGetResources, resourceSlug) {
		action = "list"
	}

	return slugify(tag) + "_" + action + "_" + resourceSlug
}

func isPathParam(segment string) bool {
	return strings.HasPrefix(segment, "{")
}

func slugify(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	return strings.Trim(nonSlugChars.ReplaceAllString(text, "_"), "_")
}

// nameAllocator hands out unique names within one parse pass.
type nameAllocator struct {
	used map[string]struct{}
	next map[string]int
}

func newNameAllocator() *nameAllocator {
	return &nameAllocator{used: make(map[string]struct{}), next: make(map[string]int)}
}

func (a *nameAllocator) allocate(base string) string {
	name := base
	if _, taken := a.used[name]; taken {
		n := a.next[base]
		if n < 2 {
			n = 2
		}
		for {
			name = fmt.Sprintf("%s_%d", base, n)
			n++
			if _, taken := a.used[name]; !taken {
				break
			}
		}
		a.next[base] = n
	}
	a.used[name] = struct{}{}
	return name
}
