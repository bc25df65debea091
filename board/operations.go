package board

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zenibako/boardsync/queries"
	"github.com/zenibako/boardsync/reconcile"
)

// Group is a named section of a board.
type Group struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Column is a board column.
type Column struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Item is a board item with its column texts keyed by column id.
type Item struct {
	ID      string
	Name    string
	GroupID string
	Values  map[string]string
}

// Account is the user the API key belongs to.
type Account struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Workspace groups boards.
type Workspace struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Board is a board summary.
type Board struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	WorkspaceID string `json:"workspace_id"`
}

// flexID accepts ids encoded either as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// Me returns the account behind the API key. It is the cheapest way to
// validate a credential.
func (c *Client) Me(ctx context.Context) (Account, error) {
	var out struct {
		Me *struct {
			ID    flexID `json:"id"`
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"me"`
	}
	if err := c.do(ctx, queries.OpMe, "", nil, &out); err != nil {
		return Account{}, err
	}
	if out.Me == nil {
		return Account{}, newError(ErrUnexpectedShape, queries.OpMe, "no me object", nil)
	}
	return Account{ID: string(out.Me.ID), Name: out.Me.Name, Email: out.Me.Email}, nil
}

// ListWorkspaces returns the workspaces visible to the API key.
func (c *Client) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	var out struct {
		Workspaces []struct {
			ID   flexID `json:"id"`
			Name string `json:"name"`
		} `json:"workspaces"`
	}
	if err := c.do(ctx, queries.OpListWorkspaces, "", nil, &out); err != nil {
		return nil, err
	}
	workspaces := make([]Workspace, 0, len(out.Workspaces))
	for _, w := range out.Workspaces {
		workspaces = append(workspaces, Workspace{ID: string(w.ID), Name: w.Name})
	}
	return workspaces, nil
}

// ListBoards returns the boards of a workspace, or every visible board when
// workspaceID is empty.
func (c *Client) ListBoards(ctx context.Context, workspaceID string) ([]Board, error) {
	var params map[string]any
	if workspaceID != "" {
		params = map[string]any{"workspaceId": workspaceID}
	}
	var out struct {
		Boards []struct {
			ID          flexID `json:"id"`
			Name        string `json:"name"`
			WorkspaceID flexID `json:"workspace_id"`
		} `json:"boards"`
	}
	if err := c.do(ctx, queries.OpListBoards, "", params, &out); err != nil {
		return nil, err
	}
	boards := make([]Board, 0, len(out.Boards))
	for _, b := range out.Boards {
		boards = append(boards, Board{ID: string(b.ID), Name: b.Name, WorkspaceID: string(b.WorkspaceID)})
	}
	return boards, nil
}

// FindBoard returns the first board whose name matches name, ignoring case
// and surrounding spaces.
func (c *Client) FindBoard(ctx context.Context, name, workspaceID string) (Board, bool, error) {
	boards, err := c.ListBoards(ctx, workspaceID)
	if err != nil {
		return Board{}, false, err
	}
	for _, b := range boards {
		if reconcile.SameName(b.Name, name) {
			return b, true, nil
		}
	}
	return Board{}, false, nil
}

// CreateBoard creates a public board and returns its id.
func (c *Client) CreateBoard(ctx context.Context, name, workspaceID string) (string, error) {
	params := map[string]any{"name": name}
	if workspaceID != "" {
		params["workspaceId"] = workspaceID
	}
	return c.mutateID(ctx, queries.OpCreateBoard, "", "create_board", params)
}

// ListGroups returns the groups of a board.
func (c *Client) ListGroups(ctx context.Context, boardID string) ([]Group, error) {
	var out struct {
		Boards []struct {
			Groups []Group `json:"groups"`
		} `json:"boards"`
	}
	if err := c.do(ctx, queries.OpListGroups, boardID, nil, &out); err != nil {
		return nil, err
	}
	if len(out.Boards) == 0 {
		return nil, newError(ErrUnexpectedShape, queries.OpListGroups, fmt.Sprintf("board %s not found", boardID), nil)
	}
	return out.Boards[0].Groups, nil
}

// CreateGroup creates a group and returns its id.
func (c *Client) CreateGroup(ctx context.Context, boardID, title string) (string, error) {
	return c.mutateID(ctx, queries.OpCreateGroup, boardID, "create_group", map[string]any{"title": title})
}

// ArchiveGroup archives a group and returns its id.
func (c *Client) ArchiveGroup(ctx context.Context, boardID, groupID string) (string, error) {
	return c.mutateID(ctx, queries.OpArchiveGroup, boardID, "archive_group", map[string]any{"groupId": groupID})
}

// ListColumns returns the columns of a board, including the display column.
func (c *Client) ListColumns(ctx context.Context, boardID string) ([]Column, error) {
	var out struct {
		Boards []struct {
			Columns []Column `json:"columns"`
		} `json:"boards"`
	}
	if err := c.do(ctx, queries.OpListColumns, boardID, nil, &out); err != nil {
		return nil, err
	}
	if len(out.Boards) == 0 {
		return nil, newError(ErrUnexpectedShape, queries.OpListColumns, fmt.Sprintf("board %s not found", boardID), nil)
	}
	return out.Boards[0].Columns, nil
}

// CreateColumn creates a text column and returns its id.
func (c *Client) CreateColumn(ctx context.Context, boardID, title string) (string, error) {
	return c.mutateID(ctx, queries.OpCreateColumn, boardID, "create_column", map[string]any{"title": title})
}

// DeleteColumn deletes a column and returns its id.
func (c *Client) DeleteColumn(ctx context.Context, boardID, columnID string) (string, error) {
	return c.mutateID(ctx, queries.OpDeleteColumn, boardID, "delete_column", map[string]any{"columnId": columnID})
}

// CreateItem creates an item named name in a group and returns its id.
func (c *Client) CreateItem(ctx context.Context, boardID, groupID, name string) (string, error) {
	return c.mutateID(ctx, queries.OpCreateItem, boardID, "create_item", map[string]any{"groupId": groupID, "name": name})
}

// UpdateItemFields sets several text columns of an item in one call. The
// values travel as a JSON-encoded object of column id to text.
func (c *Client) UpdateItemFields(ctx context.Context, boardID, itemID string, values map[string]string) error {
	encoded, err := json.Marshal(values)
	if err != nil {
		return newError(ErrRemoteValidation, queries.OpUpdateItemColumns, "could not encode column values", err)
	}
	_, err = c.mutateID(ctx, queries.OpUpdateItemColumns, boardID, "change_multiple_column_values", map[string]any{
		"itemId": itemID,
		"values": string(encoded),
	})
	return err
}

type rawItem struct {
	ID    flexID `json:"id"`
	Name  string `json:"name"`
	Group *struct {
		ID string `json:"id"`
	} `json:"group"`
	ColumnValues []struct {
		ID   string  `json:"id"`
		Text *string `json:"text"`
	} `json:"column_values"`
}

type itemsPage struct {
	Cursor *string   `json:"cursor"`
	Items  []rawItem `json:"items"`
}

// ListItemsInGroup fetches every item of the board page by page and returns
// those in groupID. A failure on any page discards what was fetched.
func (c *Client) ListItemsInGroup(ctx context.Context, boardID, groupID string) ([]Item, error) {
	var first struct {
		Boards []struct {
			ItemsPage *itemsPage `json:"items_page"`
		} `json:"boards"`
	}
	if err := c.do(ctx, queries.OpItemsPage, boardID, map[string]any{"limit": c.pageSize}, &first); err != nil {
		return nil, err
	}
	if len(first.Boards) == 0 || first.Boards[0].ItemsPage == nil {
		return nil, newError(ErrUnexpectedShape, queries.OpItemsPage, "no items_page in response", nil)
	}

	page := first.Boards[0].ItemsPage
	all := append([]rawItem(nil), page.Items...)
	pages := 1

	for page.Cursor != nil && *page.Cursor != "" {
		var next struct {
			NextItemsPage *itemsPage `json:"next_items_page"`
		}
		params := map[string]any{"cursor": *page.Cursor, "limit": c.pageSize}
		if err := c.do(ctx, queries.OpNextItemsPage, boardID, params, &next); err != nil {
			return nil, fmt.Errorf("page %d: %w", pages+1, err)
		}
		if next.NextItemsPage == nil {
			return nil, newError(ErrUnexpectedShape, queries.OpNextItemsPage, "no next_items_page in response", nil)
		}
		page = next.NextItemsPage
		all = append(all, page.Items...)
		pages++
	}
	c.logger.Debugf("Fetched %d items in %d pages from board %s", len(all), pages, boardID)

	items := make([]Item, 0, len(all))
	for _, raw := range all {
		if raw.Group == nil || raw.Group.ID != groupID {
			continue
		}
		item := Item{
			ID:      string(raw.ID),
			Name:    raw.Name,
			GroupID: raw.Group.ID,
			Values:  make(map[string]string, len(raw.ColumnValues)),
		}
		for _, cv := range raw.ColumnValues {
			if cv.Text != nil {
				item.Values[cv.ID] = *cv.Text
			} else {
				item.Values[cv.ID] = ""
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// mutateID runs a mutation whose response is {field: {id}} and returns the id.
func (c *Client) mutateID(ctx context.Context, op queries.Operation, boardID, field string, params map[string]any) (string, error) {
	var out map[string]*struct {
		ID flexID `json:"id"`
	}
	if err := c.do(ctx, op, boardID, params, &out); err != nil {
		return "", err
	}
	res := out[field]
	if res == nil || res.ID == "" {
		return "", newError(ErrUnexpectedShape, op, fmt.Sprintf("no %s.id in response", field), nil)
	}
	return string(res.ID), nil
}
