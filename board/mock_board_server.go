package board

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/zenibako/boardsync/queries"
)

// ReceivedRequest captures details about a request the mock answered.
type ReceivedRequest struct {
	Operation queries.Operation
	Variables map[string]any
	Timestamp time.Time
}

// MockServer simulates the board GraphQL API for testing.
type MockServer struct {
	mu               sync.Mutex
	server           *httptest.Server
	apiKey           string // required Authorization header; empty accepts anything
	boards           map[string]*mockBoard
	boardOrder       []string
	workspaces       []Workspace
	nextID           int
	cursors          map[string]mockCursor
	failures         map[queries.Operation]*mockFailure
	receivedRequests []ReceivedRequest
	account          Account
}

type mockBoard struct {
	ID          string
	Name        string
	WorkspaceID string
	Groups      []*mockGroup
	Columns     []Column
	Items       []*mockItem
}

type mockGroup struct {
	Group
	Archived bool
}

type mockItem struct {
	Item
}

type mockCursor struct {
	boardID string
	offset  int
}

type mockFailure struct {
	nth    int // 1-based call of the operation that fails
	seen   int
	status int
	body   string
}

// NewMockServer creates a mock that requires apiKey in the Authorization header.
func NewMockServer(apiKey string) *MockServer {
	return &MockServer{
		apiKey:   apiKey,
		boards:   make(map[string]*mockBoard),
		cursors:  make(map[string]mockCursor),
		failures: make(map[queries.Operation]*mockFailure),
		nextID:   1000,
		account:  Account{ID: "1", Name: "Mock User", Email: "mock@example.com"},
	}
}

// Start starts serving on a local port.
func (m *MockServer) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.server != nil {
		return
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	log.Debugf("Mock board server started on %s", m.server.URL)
}

// URL is the endpoint clients should use.
func (m *MockServer) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.server == nil {
		return ""
	}
	return m.server.URL
}

// Close stops the server.
func (m *MockServer) Close() {
	m.mu.Lock()
	server := m.server
	m.server = nil
	m.mu.Unlock()
	if server != nil {
		server.Close()
	}
}

func (m *MockServer) newID() string {
	m.nextID++
	return strconv.Itoa(m.nextID)
}

// AddWorkspace registers a workspace and returns its id.
func (m *MockServer) AddWorkspace(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.newID()
	m.workspaces = append(m.workspaces, Workspace{ID: id, Name: name})
	return id
}

// AddBoard creates a board with only the display column and returns its id.
func (m *MockServer) AddBoard(name, workspaceID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addBoardLocked(name, workspaceID)
}

func (m *MockServer) addBoardLocked(name, workspaceID string) string {
	id := m.newID()
	m.boards[id] = &mockBoard{
		ID:          id,
		Name:        name,
		WorkspaceID: workspaceID,
		Columns:     []Column{{ID: "name", Title: "Name"}},
	}
	m.boardOrder = append(m.boardOrder, id)
	return id
}

// AddGroup adds a group to a board and returns its id.
func (m *MockServer) AddGroup(boardID, title string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.boards[boardID]
	id := "group_" + m.newID()
	b.Groups = append(b.Groups, &mockGroup{Group: Group{ID: id, Title: title}})
	return id
}

// AddColumn adds a text column to a board and returns its id.
func (m *MockServer) AddColumn(boardID, title string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.boards[boardID]
	id := "text_" + m.newID()
	b.Columns = append(b.Columns, Column{ID: id, Title: title})
	return id
}

// AddItem adds an item with column values keyed by column id.
func (m *MockServer) AddItem(boardID, groupID, name string, values map[string]string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.boards[boardID]
	id := m.newID()
	item := &mockItem{Item: Item{ID: id, Name: name, GroupID: groupID, Values: make(map[string]string)}}
	for k, v := range values {
		item.Values[k] = v
	}
	b.Items = append(b.Items, item)
	return id
}

// Groups returns the board's groups. Archived groups are included when all is true.
func (m *MockServer) Groups(boardID string, all bool) []Group {
	m.mu.Lock()
	defer m.mu.Unlock()
	var groups []Group
	for _, g := range m.boards[boardID].Groups {
		if g.Archived && !all {
			continue
		}
		groups = append(groups, g.Group)
	}
	return groups
}

// Columns returns the board's columns.
func (m *MockServer) Columns(boardID string) []Column {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Column(nil), m.boards[boardID].Columns...)
}

// Items returns copies of the items in a group.
func (m *MockServer) Items(boardID, groupID string) []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []Item
	for _, it := range m.boards[boardID].Items {
		if it.GroupID != groupID {
			continue
		}
		c := it.Item
		c.Values = make(map[string]string, len(it.Values))
		for k, v := range it.Values {
			c.Values[k] = v
		}
		items = append(items, c)
	}
	return items
}

// FailOn makes the nth call (1-based) of op answer with status and body.
func (m *MockServer) FailOn(op queries.Operation, nth, status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = &mockFailure{nth: nth, status: status, body: body}
}

// GetReceivedRequests returns every request answered so far.
func (m *MockServer) GetReceivedRequests() []ReceivedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ReceivedRequest(nil), m.receivedRequests...)
}

// CountOperation returns how many requests of op were received.
func (m *MockServer) CountOperation(op queries.Operation) int {
	n := 0
	for _, r := range m.GetReceivedRequests() {
		if r.Operation == op {
			n++
		}
	}
	return n
}

// CountMutations returns how many requests changed the board.
func (m *MockServer) CountMutations() int {
	n := 0
	for _, r := range m.GetReceivedRequests() {
		if queries.IsMutation(r.Operation) {
			n++
		}
	}
	return n
}

// ClearReceivedRequests forgets recorded requests.
func (m *MockServer) ClearReceivedRequests() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receivedRequests = nil
}

// operationOf maps a document to its operation by the root field it selects.
func operationOf(query string) queries.Operation {
	checks := []struct {
		marker string
		op     queries.Operation
	}{
		{"change_multiple_column_values", queries.OpUpdateItemColumns},
		{"create_item", queries.OpCreateItem},
		{"next_items_page", queries.OpNextItemsPage},
		{"items_page", queries.OpItemsPage},
		{"delete_column", queries.OpDeleteColumn},
		{"create_column", queries.OpCreateColumn},
		{"archive_group", queries.OpArchiveGroup},
		{"create_group", queries.OpCreateGroup},
		{"create_board", queries.OpCreateBoard},
		{"groups {", queries.OpListGroups},
		{"columns {", queries.OpListColumns},
		{"workspaces {", queries.OpListWorkspaces},
		{"me {", queries.OpMe},
		{"boards(workspace_ids", queries.OpListBoards},
	}
	for _, c := range checks {
		if strings.Contains(query, c.marker) {
			return c.op
		}
	}
	return ""
}

func (m *MockServer) handle(w http.ResponseWriter, r *http.Request) {
	if m.apiKey != "" && r.Header.Get("Authorization") != m.apiKey {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"errors": []map[string]any{{"message": "Not Authenticated"}}})
		return
	}

	var req queries.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error_message": "invalid JSON body"})
		return
	}
	op := operationOf(req.Query)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.receivedRequests = append(m.receivedRequests, ReceivedRequest{
		Operation: op,
		Variables: req.Variables,
		Timestamp: time.Now(),
	})

	if f, ok := m.failures[op]; ok {
		f.seen++
		if f.seen == f.nth {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(f.body))
			return
		}
	}

	data, err := m.dispatch(op, req.Variables)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"errors": []map[string]any{{"message": err.Error(), "extensions": map[string]any{"code": "InvalidArgumentException"}}},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

func (m *MockServer) dispatch(op queries.Operation, vars map[string]any) (any, error) {
	str := func(key string) string {
		switch v := vars[key].(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case []any:
			if len(v) > 0 {
				return fmt.Sprint(v[0])
			}
		}
		return ""
	}
	idResult := func(field, id string) any {
		return map[string]any{field: map[string]any{"id": id}}
	}

	switch op {
	case queries.OpMe:
		return map[string]any{"me": m.account}, nil

	case queries.OpListWorkspaces:
		return map[string]any{"workspaces": m.workspaces}, nil

	case queries.OpListBoards:
		ws := str("workspaceId")
		boards := []Board{}
		for _, id := range m.boardOrder {
			b := m.boards[id]
			if ws == "" || b.WorkspaceID == ws {
				boards = append(boards, Board{ID: b.ID, Name: b.Name, WorkspaceID: b.WorkspaceID})
			}
		}
		return map[string]any{"boards": boards}, nil

	case queries.OpCreateBoard:
		return idResult("create_board", m.addBoardLocked(str("name"), str("workspaceId"))), nil
	}

	b, ok := m.boards[str("boardId")]
	if !ok && op != queries.OpNextItemsPage {
		return map[string]any{"boards": []any{}}, nil
	}

	switch op {
	case queries.OpListGroups:
		groups := []Group{}
		for _, g := range b.Groups {
			if !g.Archived {
				groups = append(groups, g.Group)
			}
		}
		return map[string]any{"boards": []any{map[string]any{"groups": groups}}}, nil

	case queries.OpCreateGroup:
		id := "group_" + m.newID()
		b.Groups = append(b.Groups, &mockGroup{Group: Group{ID: id, Title: str("title")}})
		return idResult("create_group", id), nil

	case queries.OpArchiveGroup:
		for _, g := range b.Groups {
			if g.ID == str("groupId") && !g.Archived {
				g.Archived = true
				return idResult("archive_group", g.ID), nil
			}
		}
		return nil, fmt.Errorf("group %s not found", str("groupId"))

	case queries.OpListColumns:
		return map[string]any{"boards": []any{map[string]any{"columns": b.Columns}}}, nil

	case queries.OpCreateColumn:
		id := "text_" + m.newID()
		b.Columns = append(b.Columns, Column{ID: id, Title: str("title")})
		return idResult("create_column", id), nil

	case queries.OpDeleteColumn:
		for i, c := range b.Columns {
			if c.ID == str("columnId") {
				b.Columns = append(b.Columns[:i], b.Columns[i+1:]...)
				return idResult("delete_column", c.ID), nil
			}
		}
		return nil, fmt.Errorf("column %s not found", str("columnId"))

	case queries.OpCreateItem:
		groupID := str("groupId")
		if !b.hasGroup(groupID) {
			return nil, fmt.Errorf("group %s not found", groupID)
		}
		id := m.newID()
		b.Items = append(b.Items, &mockItem{Item: Item{ID: id, Name: str("name"), GroupID: groupID, Values: map[string]string{}}})
		return idResult("create_item", id), nil

	case queries.OpUpdateItemColumns:
		var values map[string]string
		if err := json.Unmarshal([]byte(str("values")), &values); err != nil {
			return nil, fmt.Errorf("column_values is not a JSON object: %v", err)
		}
		item := b.item(str("itemId"))
		if item == nil {
			return nil, fmt.Errorf("item %s not found", str("itemId"))
		}
		for colID, v := range values {
			if !b.hasColumn(colID) {
				return nil, fmt.Errorf("column %s not found", colID)
			}
			item.Values[colID] = v
		}
		return idResult("change_multiple_column_values", item.ID), nil

	case queries.OpItemsPage:
		page := m.pageLocked(b, 0, intVar(vars, "limit"))
		return map[string]any{"boards": []any{map[string]any{"items_page": page}}}, nil

	case queries.OpNextItemsPage:
		cur, ok := m.cursors[str("cursor")]
		if !ok {
			return nil, fmt.Errorf("cursor expired")
		}
		return map[string]any{"next_items_page": m.pageLocked(m.boards[cur.boardID], cur.offset, intVar(vars, "limit"))}, nil
	}

	return nil, fmt.Errorf("unsupported operation")
}

// pageLocked returns one page of non-archived items starting at offset.
func (m *MockServer) pageLocked(b *mockBoard, offset, limit int) map[string]any {
	var visible []*mockItem
	for _, it := range b.Items {
		if !b.groupArchived(it.GroupID) {
			visible = append(visible, it)
		}
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	end := offset + limit
	if end > len(visible) {
		end = len(visible)
	}

	items := []map[string]any{}
	for _, it := range visible[offset:end] {
		values := []map[string]any{}
		for _, c := range b.Columns {
			if c.ID == "name" {
				continue
			}
			var text any
			if v, ok := it.Values[c.ID]; ok {
				text = v
			}
			values = append(values, map[string]any{"id": c.ID, "text": text})
		}
		items = append(items, map[string]any{
			"id":            it.ID,
			"name":          it.Name,
			"group":         map[string]any{"id": it.GroupID},
			"column_values": values,
		})
	}

	var cursor any
	if end < len(visible) {
		token := fmt.Sprintf("cursor-%s-%d", b.ID, end)
		m.cursors[token] = mockCursor{boardID: b.ID, offset: end}
		cursor = token
	}
	return map[string]any{"cursor": cursor, "items": items}
}

func (b *mockBoard) hasGroup(id string) bool {
	for _, g := range b.Groups {
		if g.ID == id && !g.Archived {
			return true
		}
	}
	return false
}

func (b *mockBoard) groupArchived(id string) bool {
	for _, g := range b.Groups {
		if g.ID == id {
			return g.Archived
		}
	}
	return false
}

func (b *mockBoard) hasColumn(id string) bool {
	for _, c := range b.Columns {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (b *mockBoard) item(id string) *mockItem {
	for _, it := range b.Items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

func intVar(vars map[string]any, key string) int {
	if f, ok := vars[key].(float64); ok {
		return int(f)
	}
	return 0
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
