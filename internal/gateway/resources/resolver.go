// Package resources resolves the HTML documents bound to tool results.
// Resolution never fails: a missing document degrades to a diagnostic
// placeholder so a tool call is never blocked by a packaging mistake.
package resources

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Resolver loads resource documents from the resource root. Loads are
// cached for the lifetime of the process; the resource set is part of the
// deployed artifact and does not change underneath a running gateway.
type Resolver struct {
	root string

	mu    sync.Mutex
	cache map[string][]byte
}

// NewResolver creates a resolver over the given resource root.
func NewResolver(root string) *Resolver {
	return &Resolver{
		root:  root,
		cache: make(map[string][]byte),
	}
}

// Resolve returns the document for the resource id. Lookup order: an exact
// "<id>.html" in the root, then the lexicographically last versioned
// "<id>-*.html", then "dist/<id>.html". When nothing matches, a placeholder
// document naming the id is returned.
func (r *Resolver) Resolve(id string) []byte {
	r.mu.Lock()
	if doc, ok := r.cache[id]; ok {
		r.mu.Unlock()
		return doc
	}
	r.mu.Unlock()

	doc := r.load(id)

	r.mu.Lock()
	r.cache[id] = doc
	r.mu.Unlock()
	return doc
}

func (r *Resolver) load(id string) []byte {
	if doc, err := os.ReadFile(filepath.Join(r.root, id+".html")); err == nil {
		return doc
	}

	if name := lastVersioned(r.root, id); name != "" {
		if doc, err := os.ReadFile(filepath.Join(r.root, name)); err == nil {
			return doc
		}
	}

	if doc, err := os.ReadFile(filepath.Join(r.root, "dist", id+".html")); err == nil {
		return doc
	}

	log.Warn().Str("resource_id", id).Msg("resource document not found, serving placeholder")
	return []byte(fmt.Sprintf(
		"<!DOCTYPE html>\n<html><body><p>Resource %q is not available in this deployment.</p></body></html>\n", id))
}

// lastVersioned returns the lexicographically last "<id>-*.html" in root,
// or "" when none exists.
func lastVersioned(root, id string) string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return ""
	}
	prefix := id + "-"
	last := ""
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".html") {
			continue
		}
		if name > last {
			last = name
		}
	}
	return last
}
