package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/zenibako/boardsync/queries"
)

const testAPIKey = "test-key"

// setupClientWithCleanup starts a mock board server with one board and returns
// a client pointed at it.
func setupClientWithCleanup(t *testing.T) (*Client, *MockServer, string) {
	t.Helper()
	log.SetLevel(log.InfoLevel)

	mock := NewMockServer(testAPIKey)
	mock.Start()
	t.Cleanup(mock.Close)

	boardID := mock.AddBoard("Vehicles", "")
	return NewClient(mock.URL(), testAPIKey), mock, boardID
}

func TestGroups(t *testing.T) {
	client, mock, boardID := setupClientWithCleanup(t)
	ctx := context.Background()

	groupID, err := client.CreateGroup(ctx, boardID, "Acura")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	groups, err := client.ListGroups(ctx, boardID)
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}
	if len(groups) != 1 || groups[0].ID != groupID || groups[0].Title != "Acura" {
		t.Errorf("unexpected groups: %+v", groups)
	}

	archived, err := client.ArchiveGroup(ctx, boardID, groupID)
	if err != nil {
		t.Fatalf("ArchiveGroup failed: %v", err)
	}
	if archived != groupID {
		t.Errorf("ArchiveGroup returned %q, want %q", archived, groupID)
	}
	if got := mock.Groups(boardID, false); len(got) != 0 {
		t.Errorf("expected no active groups, got %+v", got)
	}
}

func TestColumns(t *testing.T) {
	client, mock, boardID := setupClientWithCleanup(t)
	ctx := context.Background()

	colID, err := client.CreateColumn(ctx, boardID, "Make")
	if err != nil {
		t.Fatalf("CreateColumn failed: %v", err)
	}

	columns, err := client.ListColumns(ctx, boardID)
	if err != nil {
		t.Fatalf("ListColumns failed: %v", err)
	}
	if len(columns) != 2 || columns[0].Title != "Name" || columns[1].ID != colID {
		t.Errorf("unexpected columns: %+v", columns)
	}

	if _, err := client.DeleteColumn(ctx, boardID, colID); err != nil {
		t.Fatalf("DeleteColumn failed: %v", err)
	}
	if got := mock.Columns(boardID); len(got) != 1 {
		t.Errorf("expected only the display column, got %+v", got)
	}
}

func TestCreateItemAndBatchedUpdate(t *testing.T) {
	client, mock, boardID := setupClientWithCleanup(t)
	ctx := context.Background()
	groupID := mock.AddGroup(boardID, "Acura")
	makeCol := mock.AddColumn(boardID, "Make")
	modelCol := mock.AddColumn(boardID, "Model")

	itemID, err := client.CreateItem(ctx, boardID, groupID, "2020")
	if err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}

	mock.ClearReceivedRequests()
	err = client.UpdateItemFields(ctx, boardID, itemID, map[string]string{makeCol: "Acura", modelCol: "TLX"})
	if err != nil {
		t.Fatalf("UpdateItemFields failed: %v", err)
	}

	requests := mock.GetReceivedRequests()
	if len(requests) != 1 {
		t.Fatalf("expected exactly one request for a batched update, got %d", len(requests))
	}
	raw, ok := requests[0].Variables["values"].(string)
	if !ok {
		t.Fatalf("column values should be sent as a JSON string, got %T", requests[0].Variables["values"])
	}
	var sent map[string]string
	if err := json.Unmarshal([]byte(raw), &sent); err != nil {
		t.Fatalf("column values are not a JSON object: %v", err)
	}
	if sent[makeCol] != "Acura" || sent[modelCol] != "TLX" {
		t.Errorf("unexpected payload: %v", sent)
	}

	items := mock.Items(boardID, groupID)
	if len(items) != 1 || items[0].Values[modelCol] != "TLX" {
		t.Errorf("item not updated: %+v", items)
	}
}

func TestListItemsInGroupPagination(t *testing.T) {
	client, mock, boardID := setupClientWithCleanup(t)
	ctx := context.Background()
	groupID := mock.AddGroup(boardID, "Acura")
	otherID := mock.AddGroup(boardID, "Honda")
	makeCol := mock.AddColumn(boardID, "Make")

	for i := 0; i < 1200; i++ {
		mock.AddItem(boardID, groupID, fmt.Sprintf("%d", 1000+i), map[string]string{makeCol: "Acura"})
	}
	for i := 0; i < 10; i++ {
		mock.AddItem(boardID, otherID, fmt.Sprintf("h%d", i), nil)
	}

	items, err := client.ListItemsInGroup(ctx, boardID, groupID)
	if err != nil {
		t.Fatalf("ListItemsInGroup failed: %v", err)
	}
	if len(items) != 1200 {
		t.Errorf("expected 1200 items, got %d", len(items))
	}
	if got := mock.CountOperation(queries.OpItemsPage) + mock.CountOperation(queries.OpNextItemsPage); got != 3 {
		t.Errorf("expected 3 page requests, got %d", got)
	}
	if items[1199].Name != "2199" || items[0].Values[makeCol] != "Acura" {
		t.Errorf("unexpected items: first=%+v last=%+v", items[0], items[1199])
	}
}

func TestListItemsInGroupPageFailureDiscardsAll(t *testing.T) {
	client, mock, boardID := setupClientWithCleanup(t)
	groupID := mock.AddGroup(boardID, "Acura")
	for i := 0; i < 1200; i++ {
		mock.AddItem(boardID, groupID, fmt.Sprintf("%d", i), nil)
	}
	mock.FailOn(queries.OpNextItemsPage, 2, http.StatusBadGateway, `{"error_message":"upstream"}`)

	items, err := client.ListItemsInGroup(context.Background(), boardID, groupID)
	if err == nil {
		t.Fatal("expected error from failing page")
	}
	if items != nil {
		t.Errorf("expected no partial result, got %d items", len(items))
	}
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("expected ErrUnreachable, got %v", err)
	}
	if !strings.Contains(err.Error(), "page 3") {
		t.Errorf("error should name the failing page: %v", err)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"errors":[{"message":"Not Authenticated"}]}`, ErrAuthRejected},
		{"forbidden", http.StatusForbidden, `{}`, ErrAuthRejected},
		{"rate limited", http.StatusTooManyRequests, `{"error_message":"slow down"}`, ErrUnreachable},
		{"server error", http.StatusInternalServerError, `oops`, ErrUnreachable},
		{"bad request", http.StatusBadRequest, `{"error_message":"bad"}`, ErrRemoteValidation},
		{"graphql errors", http.StatusOK, `{"errors":[{"message":"Field 'x' doesn't exist"}]}`, ErrRemoteValidation},
		{"error code", http.StatusOK, `{"error_code":"InvalidBoardIdException","error_message":"bad board"}`, ErrRemoteValidation},
		{"auth error code", http.StatusOK, `{"errors":[{"message":"no","extensions":{"code":"USER_UNAUTHORIZED"}}]}`, ErrAuthRejected},
		{"null data", http.StatusOK, `{"data":null}`, ErrUnexpectedShape},
		{"not json", http.StatusOK, `<html>`, ErrUnexpectedShape},
		{"no boards", http.StatusOK, `{"data":{"boards":[]}}`, ErrUnexpectedShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock, boardID := setupClientWithCleanup(t)
			mock.FailOn(queries.OpListGroups, 1, tt.status, tt.body)

			_, err := client.ListGroups(context.Background(), boardID)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			var be *Error
			if !errors.As(err, &be) || be.Op != queries.OpListGroups {
				t.Errorf("expected *Error for %s, got %T", queries.OpListGroups, err)
			}
		})
	}
}

func TestWrongKeyIsRejected(t *testing.T) {
	_, mock, _ := setupClientWithCleanup(t)
	client := NewClient(mock.URL(), "wrong")

	_, err := client.Me(context.Background())
	if !errors.Is(err, ErrAuthRejected) {
		t.Errorf("expected ErrAuthRejected, got %v", err)
	}
	if IsRetryable(err) {
		t.Error("auth errors must not be retryable")
	}
}

func TestUnknownColumnIsRemoteValidation(t *testing.T) {
	client, mock, boardID := setupClientWithCleanup(t)
	groupID := mock.AddGroup(boardID, "Acura")
	itemID := mock.AddItem(boardID, groupID, "2020", nil)

	err := client.UpdateItemFields(context.Background(), boardID, itemID, map[string]string{"missing": "x"})
	if !errors.Is(err, ErrRemoteValidation) {
		t.Errorf("expected ErrRemoteValidation, got %v", err)
	}
}

func TestUnreachable(t *testing.T) {
	mock := NewMockServer("")
	mock.Start()
	url := mock.URL()
	mock.Close()

	_, err := NewClient(url, "").ListGroups(context.Background(), "1")
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("expected ErrUnreachable, got %v", err)
	}
	if !IsRetryable(err) {
		t.Error("transport failures should be retryable")
	}
}

func TestDryRunSendsNoMutations(t *testing.T) {
	client, mock, boardID := setupClientWithCleanup(t)
	client.SetDryRun(true)
	ctx := context.Background()

	groupID, err := client.CreateGroup(ctx, boardID, "Acura")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if !strings.HasPrefix(groupID, "DRYRUN-") {
		t.Errorf("expected mock id, got %q", groupID)
	}
	itemID, err := client.CreateItem(ctx, boardID, groupID, "2020")
	if err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}
	if itemID == groupID {
		t.Errorf("mock ids should be unique, both %q", itemID)
	}
	if err := client.UpdateItemFields(ctx, boardID, itemID, map[string]string{"a": "b"}); err != nil {
		t.Fatalf("UpdateItemFields failed: %v", err)
	}
	if _, err := client.ListGroups(ctx, boardID); err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}

	if n := mock.CountMutations(); n != 0 {
		t.Errorf("expected no mutations sent in dry run, got %d", n)
	}
	if n := mock.CountOperation(queries.OpListGroups); n != 1 {
		t.Errorf("reads should still be sent, got %d", n)
	}
}

func TestAccountWorkspacesAndBoards(t *testing.T) {
	client, mock, _ := setupClientWithCleanup(t)
	ctx := context.Background()
	wsID := mock.AddWorkspace("Main")

	me, err := client.Me(ctx)
	if err != nil {
		t.Fatalf("Me failed: %v", err)
	}
	if me.Email != "mock@example.com" {
		t.Errorf("unexpected account: %+v", me)
	}

	workspaces, err := client.ListWorkspaces(ctx)
	if err != nil || len(workspaces) != 1 || workspaces[0].ID != wsID {
		t.Fatalf("ListWorkspaces = %+v, %v", workspaces, err)
	}

	newID, err := client.CreateBoard(ctx, "Honda", wsID)
	if err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}
	boards, err := client.ListBoards(ctx, wsID)
	if err != nil {
		t.Fatalf("ListBoards failed: %v", err)
	}
	if len(boards) != 1 || boards[0].ID != newID || boards[0].Name != "Honda" {
		t.Errorf("unexpected boards in workspace: %+v", boards)
	}

	all, err := client.ListBoards(ctx, "")
	if err != nil || len(all) != 2 {
		t.Errorf("expected 2 boards overall, got %+v, %v", all, err)
	}
}

func TestFindBoard(t *testing.T) {
	client, mock, _ := setupClientWithCleanup(t)
	ctx := context.Background()
	wsID := mock.AddWorkspace("Main")
	id := mock.AddBoard("Honda Fleet", wsID)

	b, found, err := client.FindBoard(ctx, " honda fleet ", wsID)
	if err != nil {
		t.Fatalf("FindBoard failed: %v", err)
	}
	if !found || b.ID != id {
		t.Errorf("expected board %s, got %+v (found=%v)", id, b, found)
	}

	_, found, err = client.FindBoard(ctx, "Missing", "")
	if err != nil {
		t.Fatalf("FindBoard failed: %v", err)
	}
	if found {
		t.Error("expected no board named Missing")
	}
}

func TestRequestHeaders(t *testing.T) {
	var gotAuth, gotVersion, gotType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotVersion = r.Header.Get("API-Version")
		gotType = r.Header.Get("Content-Type")
		_, _ = w.Write([]byte(`{"data":{"me":{"id":42,"name":"n","email":"e"}}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret")
	client.SetAPIVersion("2024-10")
	me, err := client.Me(context.Background())
	if err != nil {
		t.Fatalf("Me failed: %v", err)
	}
	if me.ID != "42" {
		t.Errorf("numeric id should decode as string, got %q", me.ID)
	}
	if gotAuth != "secret" || gotVersion != "2024-10" || gotType != "application/json" {
		t.Errorf("unexpected headers: auth=%q version=%q type=%q", gotAuth, gotVersion, gotType)
	}
}
