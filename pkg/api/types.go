// Package api defines the wire types exchanged between the gateway and its
// clients: the tool catalog listing and the uniform dispatch envelope.
package api

import "encoding/json"

// Effect classifies a tool's side effects. The gateway performs no
// deduplication or idempotency enforcement for mutating calls; the
// classification is advisory metadata for the caller.
type Effect string

const (
	EffectReadOnly    Effect = "read-only"
	EffectMutating    Effect = "mutating"
	EffectDestructive Effect = "destructive"
)

// ToolInfo is the wire form of one catalog entry, returned by tools/list.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
	Effect      Effect          `json:"effect"`
	ResourceID  string          `json:"resourceId,omitempty"`
}

// ListToolsResult is the result payload for tools/list.
type ListToolsResult struct {
	Tools []ToolInfo `json:"tools"`
}

// ResourceMeta describes the UI resource bound to a tool result, so the
// caller can render it.
type ResourceMeta struct {
	ID       string `json:"id"`
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
}

// Envelope is the uniform result shape for every tools/call dispatch.
type Envelope struct {
	Summary    string          `json:"summary"`
	Structured json.RawMessage `json:"structured,omitempty"`
	Resource   *ResourceMeta   `json:"resource,omitempty"`
}

// AuthGuidance is the structured payload of the envelope returned when no
// credential could be resolved. It is a successful result, not an error.
type AuthGuidance struct {
	AuthorizeURL string `json:"authorizeUrl"`
}
