package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/internal/gateway/config"
)

// testBackend is a fake Workboard API recording the bearers it sees.
type testBackend struct {
	srv *httptest.Server

	mu      sync.Mutex
	bearers []string
	hold    chan struct{}
}

func (b *testBackend) seenBearers() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.bearers...)
}

// holdBoards makes board listing block until releaseBoards is called.
func (b *testBackend) holdBoards() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hold = make(chan struct{})
}

func (b *testBackend) releaseBoards() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.hold != nil {
		close(b.hold)
		b.hold = nil
	}
}

func (b *testBackend) holdCh() chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hold
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()
	b := &testBackend{}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.bearers = append(b.bearers, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		b.mu.Unlock()
		switch {
		case r.URL.Path == "/v1/boards" && r.Method == http.MethodGet:
			if hold := b.holdCh(); hold != nil {
				<-hold
			}
			io.WriteString(w, `{"boards":[{"id":"b1","name":"Roadmap","item_count":1}]}`)
		case r.URL.Path == "/v1/boards/b1" && r.Method == http.MethodGet:
			io.WriteString(w, `{"id":"b1","name":"Roadmap","item_count":1}`)
		case r.URL.Path == "/v1/boards/b1/items" && r.Method == http.MethodGet:
			io.WriteString(w, `{"items":[{"id":"i1","board_id":"b1","title":"first"}]}`)
		case r.URL.Path == "/v1/boards/missing" && r.Method == http.MethodGet:
			http.Error(w, `{"error":"no such board"}`, http.StatusNotFound)
		default:
			http.Error(w, `{"error":"unexpected request"}`, http.StatusInternalServerError)
		}
	}))
	t.Cleanup(b.srv.Close)
	return b
}

// newTestAuthServer fakes the authorization server's token endpoint.
func newTestAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		code := r.PostForm.Get("code")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"token-for-%s","token_type":"Bearer","refresh_token":"refresh-1","expires_in":3600}`, code)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T) (*GatewayServer, *httptest.Server, *testBackend) {
	t.Helper()
	cfg := config.TestInit(t)
	backend := newTestBackend(t)
	auth := newTestAuthServer(t)
	cfg.Backend.BaseURL = backend.srv.URL
	cfg.OAuth.TokenURL = auth.URL + "/oauth/token"

	s, err := CreateNewServer()
	require.NoError(t, err)
	s.MountHandlers()

	srv := httptest.NewServer(s.Router)
	t.Cleanup(srv.Close)
	return s, srv, backend
}

// streamClient reads events from an open /events stream.
type streamClient struct {
	resp    *http.Response
	scanner *bufio.Scanner
	// MessagePath is the post target announced by the endpoint event.
	MessagePath string
}

func openStream(t *testing.T, baseURL, sessionID string) *streamClient {
	t.Helper()
	url := baseURL + "/events"
	if sessionID != "" {
		url += "?session=" + sessionID
	}
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	c := &streamClient{resp: resp, scanner: bufio.NewScanner(resp.Body)}
	event, data := c.next(t)
	require.Equal(t, "endpoint", event)
	require.True(t, strings.HasPrefix(data, "/messages?session="), "unexpected endpoint %q", data)
	c.MessagePath = data
	return c
}

// next reads the next event frame, skipping keepalive comments.
func (c *streamClient) next(t *testing.T) (event, data string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for c.scanner.Scan() {
			line := c.scanner.Text()
			switch {
			case strings.HasPrefix(line, ":"):
				continue
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && event != "":
				return
			}
		}
	}()
	select {
	case <-done:
	case <-deadline:
		t.Fatal("timed out waiting for event frame")
	}
	require.NotEmpty(t, event, "stream closed before a frame arrived")
	return event, data
}

func postMessage(t *testing.T, baseURL, messagePath string, bearer string, payload string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, baseURL+messagePath, bytes.NewReader([]byte(payload)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestGetVersion(t *testing.T) {
	_, srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/version")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rsp GetVersionRsp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rsp))
	assert.Contains(t, rsp.ServerVersion, "Lattice Gateway")
}

func TestGetReadiness(t *testing.T) {
	_, srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORSHeadersOnRoutes(t *testing.T) {
	_, srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/version", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	req, err = http.NewRequest(http.MethodOptions, srv.URL+"/messages", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://other.example.com")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
