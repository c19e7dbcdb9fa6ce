package resources

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestResolveDirectMatchWins(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "board-view.html", "direct")
	writeDoc(t, root, "board-view-v2.html", "versioned")
	writeDoc(t, root, "dist/board-view.html", "dist")

	r := NewResolver(root)
	assert.Equal(t, "direct", string(r.Resolve("board-view")))
}

func TestResolvePicksLexicographicallyLastVersion(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "board-view-v1.html", "v1")
	writeDoc(t, root, "board-view-v10.html", "v10")
	writeDoc(t, root, "board-view-v2.html", "v2")

	r := NewResolver(root)
	// plain string ordering: "v2" sorts after "v10"
	assert.Equal(t, "v2", string(r.Resolve("board-view")))
}

func TestResolveIgnoresOtherIDsVersions(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "item-form-v1.html", "form")
	writeDoc(t, root, "board-view-v1.html", "board")

	r := NewResolver(root)
	assert.Equal(t, "form", string(r.Resolve("item-form")))
}

func TestResolveDistFallback(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "dist/item-form.html", "dist-form")

	r := NewResolver(root)
	assert.Equal(t, "dist-form", string(r.Resolve("item-form")))
}

func TestResolvePlaceholderNeverFails(t *testing.T) {
	r := NewResolver(t.TempDir())
	doc := string(r.Resolve("missing-view"))
	assert.Contains(t, doc, "missing-view")
	assert.Contains(t, doc, "<html>")
}

func TestResolveCachesForProcessLifetime(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "board-view.html", "first")

	r := NewResolver(root)
	assert.Equal(t, "first", string(r.Resolve("board-view")))

	writeDoc(t, root, "board-view.html", "second")
	assert.Equal(t, "first", string(r.Resolve("board-view")))
}
