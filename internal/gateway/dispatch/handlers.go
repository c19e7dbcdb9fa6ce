package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/latticehq/lattice/internal/common/apperrors"
	"github.com/latticehq/lattice/pkg/api"
)

// decodeArgs maps validated call arguments onto a typed argument struct.
func decodeArgs(args map[string]any, out any) apperrors.Error {
	if err := mapstructure.Decode(args, out); err != nil {
		return ErrValidation.MsgErr("arguments have unexpected types", err)
	}
	return nil
}

func envelope(summary string, structured any) (*api.Envelope, apperrors.Error) {
	raw, err := json.Marshal(structured)
	if err != nil {
		return nil, ErrDispatchError.MsgErr("result encoding failed", err)
	}
	return &api.Envelope{Summary: summary, Structured: raw}, nil
}

func (e *Engine) handleListBoards(ctx context.Context, bearer string, args map[string]any) (*api.Envelope, apperrors.Error) {
	boards, err := e.board.ListBoards(ctx, bearer)
	if err != nil {
		return nil, err
	}
	return envelope(fmt.Sprintf("%d boards", len(boards)), map[string]any{"boards": boards})
}

func (e *Engine) handleGetBoard(ctx context.Context, bearer string, args map[string]any) (*api.Envelope, apperrors.Error) {
	var in struct {
		BoardID string `mapstructure:"board_id"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	board, err := e.board.GetBoard(ctx, bearer, in.BoardID)
	if err != nil {
		return nil, err
	}
	return envelope(fmt.Sprintf("board %q has %d items", board.Name, board.ItemCount), board)
}

func (e *Engine) handleListItems(ctx context.Context, bearer string, args map[string]any) (*api.Envelope, apperrors.Error) {
	var in struct {
		BoardID string `mapstructure:"board_id"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	items, err := e.board.ListItems(ctx, bearer, in.BoardID)
	if err != nil {
		return nil, err
	}
	return envelope(fmt.Sprintf("%d items on board %s", len(items), in.BoardID), map[string]any{"items": items})
}

func (e *Engine) handleCreateItem(ctx context.Context, bearer string, args map[string]any) (*api.Envelope, apperrors.Error) {
	var in struct {
		BoardID string `mapstructure:"board_id"`
		Title   string `mapstructure:"title"`
		Body    string `mapstructure:"body"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	item, err := e.board.CreateItem(ctx, bearer, in.BoardID, in.Title, in.Body)
	if err != nil {
		return nil, err
	}
	return envelope(fmt.Sprintf("created item %s", item.ID), item)
}

func (e *Engine) handleUpdateItem(ctx context.Context, bearer string, args map[string]any) (*api.Envelope, apperrors.Error) {
	var in struct {
		ItemID string `mapstructure:"item_id"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	fields := make(map[string]any)
	for _, k := range []string{"title", "body", "status"} {
		if v, ok := args[k]; ok {
			fields[k] = v
		}
	}
	item, err := e.board.UpdateItem(ctx, bearer, in.ItemID, fields)
	if err != nil {
		return nil, err
	}
	return envelope(fmt.Sprintf("updated item %s", item.ID), item)
}

func (e *Engine) handleDeleteItem(ctx context.Context, bearer string, args map[string]any) (*api.Envelope, apperrors.Error) {
	var in struct {
		ItemID string `mapstructure:"item_id"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if err := e.board.DeleteItem(ctx, bearer, in.ItemID); err != nil {
		return nil, err
	}
	return envelope(fmt.Sprintf("deleted item %s", in.ItemID), map[string]any{"deleted": in.ItemID})
}

func (e *Engine) handleSearchItems(ctx context.Context, bearer string, args map[string]any) (*api.Envelope, apperrors.Error) {
	var in struct {
		Query string `mapstructure:"query"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	items, err := e.board.SearchItems(ctx, bearer, in.Query)
	if err != nil {
		return nil, err
	}
	return envelope(fmt.Sprintf("%d items match %q", len(items), in.Query), map[string]any{"items": items})
}
