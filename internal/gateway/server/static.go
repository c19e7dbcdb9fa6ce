package server

import (
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"

	"github.com/latticehq/lattice/internal/common/httpx"
	"github.com/latticehq/lattice/internal/gateway/config"
)

// handleStatic serves files from the resource root. Requests that resolve
// outside the root are refused; the documents bound to catalog resources go
// through the resolver so their fallback chain applies.
func (s *GatewayServer) handleStatic(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(r.URL.Path, "/")
	if rel == "" {
		httpx.ErrNotFound().Send(w)
		return
	}

	clean := filepath.Clean(rel)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		httpx.ErrForbidden("path escapes resource root").Send(w)
		return
	}

	for _, meta := range s.engine.Resources() {
		if clean == meta.ID+".html" {
			doc := s.resolver.Resolve(meta.ID)
			w.Header().Set("Content-Type", meta.MimeType)
			w.WriteHeader(http.StatusOK)
			w.Write(doc)
			return
		}
	}

	path := filepath.Join(config.Config().ResourceRoot, clean)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		httpx.ErrNotFound().Send(w)
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		httpx.ErrNotFound().Send(w)
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(path, data))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// contentTypeFor determines the content type from the file extension,
// falling back to magic-number sniffing for unknown extensions.
func contentTypeFor(path string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	return "application/octet-stream"
}
