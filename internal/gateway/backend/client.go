// Package backend is the client for the upstream Workboard data API. Every
// call carries the caller's bearer credential; the gateway holds no ambient
// backend identity of its own.
package backend

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/latticehq/lattice/internal/common/apperrors"
	"github.com/latticehq/lattice/internal/gateway/config"
)

// Client talks to the Workboard API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	attempts   uint
}

// NewClient builds a Workboard client from the gateway configuration.
func NewClient(c *config.ConfigParam) *Client {
	return &Client{
		baseURL:    c.Backend.BaseURL,
		httpClient: &http.Client{Timeout: c.GetBackendTimeout()},
		attempts:   uint(c.Backend.RetryAttempts),
	}
}

// requestOptions describes one upstream request.
type requestOptions struct {
	Method      string
	Path        string
	QueryParams map[string]string
	Body        []byte
}

// doRequest performs the request with retries. Transport errors and 5xx
// answers are retried with backoff; any 4xx is final. The returned error
// wraps a CallError when the upstream produced a status at all.
func (c *Client) doRequest(ctx context.Context, bearer string, opts requestOptions) ([]byte, apperrors.Error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, ErrBackendError.MsgErr("invalid backend URL", err)
	}
	u.Path = path.Join(u.Path, opts.Path)
	q := u.Query()
	for k, v := range opts.QueryParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	var result []byte
	rerr := retry.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, opts.Method, u.String(), bytes.NewReader(opts.Body))
		if err != nil {
			return retry.Unrecoverable(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+bearer)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return &CallError{Status: resp.StatusCode, Body: body}
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return retry.Unrecoverable(&CallError{Status: resp.StatusCode, Body: body})
		}
		result = body
		return nil
	},
		retry.Attempts(c.attempts),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if rerr != nil {
		log.Ctx(ctx).Error().Err(rerr).Str("method", opts.Method).Str("path", opts.Path).Msg("backend call failed")
		var ce *CallError
		if errors.As(rerr, &ce) {
			return nil, ErrUpstream.MsgErr(ce.Error(), ce)
		}
		return nil, ErrUpstream.MsgErr("upstream unreachable", rerr)
	}
	return result, nil
}

// ListBoards returns all boards visible to the credential.
func (c *Client) ListBoards(ctx context.Context, bearer string) ([]Board, apperrors.Error) {
	body, err := c.doRequest(ctx, bearer, requestOptions{
		Method: http.MethodGet,
		Path:   "/v1/boards",
	})
	if err != nil {
		return nil, err
	}
	return boardsFrom(gjson.GetBytes(body, "boards")), nil
}

// GetBoard returns one board by id.
func (c *Client) GetBoard(ctx context.Context, bearer, boardID string) (*Board, apperrors.Error) {
	body, err := c.doRequest(ctx, bearer, requestOptions{
		Method: http.MethodGet,
		Path:   "/v1/boards/" + boardID,
	})
	if err != nil {
		return nil, err
	}
	b := boardFrom(gjson.ParseBytes(body))
	return &b, nil
}

// ListItems returns the items on a board.
func (c *Client) ListItems(ctx context.Context, bearer, boardID string) ([]Item, apperrors.Error) {
	body, err := c.doRequest(ctx, bearer, requestOptions{
		Method: http.MethodGet,
		Path:   "/v1/boards/" + boardID + "/items",
	})
	if err != nil {
		return nil, err
	}
	return itemsFrom(gjson.GetBytes(body, "items")), nil
}

// CreateItem adds an item to a board.
func (c *Client) CreateItem(ctx context.Context, bearer, boardID, title, itemBody string) (*Item, apperrors.Error) {
	payload := []byte(`{}`)
	payload, _ = sjson.SetBytes(payload, "title", title)
	if itemBody != "" {
		payload, _ = sjson.SetBytes(payload, "body", itemBody)
	}
	body, err := c.doRequest(ctx, bearer, requestOptions{
		Method: http.MethodPost,
		Path:   "/v1/boards/" + boardID + "/items",
		Body:   payload,
	})
	if err != nil {
		return nil, err
	}
	it := itemFrom(gjson.ParseBytes(body))
	return &it, nil
}

// UpdateItem applies a partial update to an item. Only the provided fields
// are sent.
func (c *Client) UpdateItem(ctx context.Context, bearer, itemID string, fields map[string]any) (*Item, apperrors.Error) {
	payload := []byte(`{}`)
	for k, v := range fields {
		payload, _ = sjson.SetBytes(payload, k, v)
	}
	body, err := c.doRequest(ctx, bearer, requestOptions{
		Method: http.MethodPatch,
		Path:   "/v1/items/" + itemID,
		Body:   payload,
	})
	if err != nil {
		return nil, err
	}
	it := itemFrom(gjson.ParseBytes(body))
	return &it, nil
}

// DeleteItem removes an item.
func (c *Client) DeleteItem(ctx context.Context, bearer, itemID string) apperrors.Error {
	_, err := c.doRequest(ctx, bearer, requestOptions{
		Method: http.MethodDelete,
		Path:   "/v1/items/" + itemID,
	})
	return err
}

// SearchItems runs a full-text search across items.
func (c *Client) SearchItems(ctx context.Context, bearer, query string) ([]Item, apperrors.Error) {
	body, err := c.doRequest(ctx, bearer, requestOptions{
		Method:      http.MethodGet,
		Path:        "/v1/items/search",
		QueryParams: map[string]string{"q": query},
	})
	if err != nil {
		return nil, err
	}
	return itemsFrom(gjson.GetBytes(body, "items")), nil
}

func boardFrom(v gjson.Result) Board {
	return Board{
		ID:          v.Get("id").String(),
		Name:        v.Get("name").String(),
		Description: v.Get("description").String(),
		ItemCount:   int(v.Get("item_count").Int()),
	}
}

func boardsFrom(v gjson.Result) []Board {
	boards := []Board{}
	for _, e := range v.Array() {
		boards = append(boards, boardFrom(e))
	}
	return boards
}

func itemFrom(v gjson.Result) Item {
	return Item{
		ID:        v.Get("id").String(),
		BoardID:   v.Get("board_id").String(),
		Title:     v.Get("title").String(),
		Body:      v.Get("body").String(),
		Status:    v.Get("status").String(),
		UpdatedAt: v.Get("updated_at").String(),
	}
}

func itemsFrom(v gjson.Result) []Item {
	items := []Item{}
	for _, e := range v.Array() {
		items = append(items, itemFrom(e))
	}
	return items
}
