package queries

import (
	"fmt"
	"strings"
)

// GraphQL operations against the board API.

// Operation types
type Operation string

const (
	// Account operations
	OpMe             Operation = "me"
	OpListWorkspaces Operation = "list_workspaces"
	OpListBoards     Operation = "list_boards"
	OpCreateBoard    Operation = "create_board"

	// Group operations
	OpListGroups   Operation = "list_groups"
	OpCreateGroup  Operation = "create_group"
	OpArchiveGroup Operation = "archive_group"

	// Column operations
	OpListColumns  Operation = "list_columns"
	OpCreateColumn Operation = "create_column"
	OpDeleteColumn Operation = "delete_column"

	// Item operations
	OpItemsPage         Operation = "items_page"
	OpNextItemsPage     Operation = "next_items_page"
	OpCreateItem        Operation = "create_item"
	OpUpdateItemColumns Operation = "update_item_columns"
)

// GraphQL documents
const (
	DocMe = `query { me { id name email } }`

	DocListWorkspaces = `query { workspaces { id name } }`

	DocListBoards = `query ($workspaceId: [ID!]) {
  boards(workspace_ids: $workspaceId, limit: 500) { id name workspace_id }
}`

	DocCreateBoard = `mutation ($name: String!, $workspaceId: ID) {
  create_board(board_name: $name, board_kind: public, workspace_id: $workspaceId) { id }
}`

	DocListGroups = `query ($boardId: [ID!]) {
  boards(ids: $boardId) { groups { id title } }
}`

	DocCreateGroup = `mutation ($boardId: ID!, $title: String!) {
  create_group(board_id: $boardId, group_name: $title) { id }
}`

	DocArchiveGroup = `mutation ($boardId: ID!, $groupId: String!) {
  archive_group(board_id: $boardId, group_id: $groupId) { id }
}`

	DocListColumns = `query ($boardId: [ID!]) {
  boards(ids: $boardId) { columns { id title } }
}`

	DocCreateColumn = `mutation ($boardId: ID!, $title: String!) {
  create_column(board_id: $boardId, title: $title, column_type: text) { id }
}`

	DocDeleteColumn = `mutation ($boardId: ID!, $columnId: String!) {
  delete_column(board_id: $boardId, column_id: $columnId) { id }
}`

	DocItemsPage = `query ($boardId: [ID!], $limit: Int!) {
  boards(ids: $boardId) {
    items_page(limit: $limit) {
      cursor
      items { id name group { id } column_values { id text } }
    }
  }
}`

	DocNextItemsPage = `query ($cursor: String!, $limit: Int!) {
  next_items_page(cursor: $cursor, limit: $limit) {
    cursor
    items { id name group { id } column_values { id text } }
  }
}`

	DocCreateItem = `mutation ($boardId: ID!, $groupId: String!, $name: String!) {
  create_item(board_id: $boardId, group_id: $groupId, item_name: $name) { id }
}`

	DocUpdateItemColumns = `mutation ($boardId: ID!, $itemId: ID!, $values: JSON!) {
  change_multiple_column_values(board_id: $boardId, item_id: $itemId, column_values: $values) { id }
}`
)

var documents = map[Operation]string{
	OpMe:                DocMe,
	OpListWorkspaces:    DocListWorkspaces,
	OpListBoards:        DocListBoards,
	OpCreateBoard:       DocCreateBoard,
	OpListGroups:        DocListGroups,
	OpCreateGroup:       DocCreateGroup,
	OpArchiveGroup:      DocArchiveGroup,
	OpListColumns:       DocListColumns,
	OpCreateColumn:      DocCreateColumn,
	OpDeleteColumn:      DocDeleteColumn,
	OpItemsPage:         DocItemsPage,
	OpNextItemsPage:     DocNextItemsPage,
	OpCreateItem:        DocCreateItem,
	OpUpdateItemColumns: DocUpdateItemColumns,
}

// Request is the JSON body of one GraphQL call.
type Request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Builder builds requests for one board.
type Builder struct {
	boardID string
}

// NewBuilder creates a builder bound to boardID. Board-less operations such
// as OpMe ignore it.
func NewBuilder(boardID string) *Builder {
	return &Builder{boardID: boardID}
}

// Build returns the request for op with the board id filled in and params
// added as variables.
func (b *Builder) Build(op Operation, params map[string]any) (Request, error) {
	doc, ok := documents[op]
	if !ok {
		return Request{}, fmt.Errorf("unknown operation %q", op)
	}

	vars := make(map[string]any, len(params)+1)
	if strings.Contains(doc, "$boardId") {
		if b.boardID == "" {
			return Request{}, fmt.Errorf("operation %q needs a board id", op)
		}
		vars["boardId"] = b.boardID
	}
	for key, value := range params {
		vars[key] = value
	}
	if len(vars) == 0 {
		vars = nil
	}

	return Request{Query: doc, Variables: vars}, nil
}

// IsMutation reports whether op changes the board.
func IsMutation(op Operation) bool {
	return strings.HasPrefix(strings.TrimSpace(documents[op]), "mutation")
}

// BoardID returns the board the builder is bound to.
func (b *Builder) BoardID() string {
	return b.boardID
}
