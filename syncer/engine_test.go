package syncer

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/zenibako/boardsync/audit"
	"github.com/zenibako/boardsync/board"
	"github.com/zenibako/boardsync/invocation"
	"github.com/zenibako/boardsync/queries"
	"github.com/zenibako/boardsync/reconcile"
)

const apiKey = "engine-test-key"

type fixture struct {
	mock     *board.MockServer
	client   *board.Client
	boardID  string
	recorder *audit.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mock := board.NewMockServer(apiKey)
	mock.Start()
	t.Cleanup(mock.Close)

	return &fixture{
		mock:     mock,
		client:   board.NewClient(mock.URL(), apiKey),
		boardID:  mock.AddBoard("Vehicles", ""),
		recorder: &audit.Recorder{},
	}
}

func (f *fixture) engine(mode reconcile.Mode) *Engine {
	opts := DefaultOptions()
	opts.Mode = mode
	opts.SettleDelay = 0
	return NewEngine(f.client, opts, audit.NewEmitter(f.recorder))
}

// writeSheet saves rows as the first sheet of an xlsx file named name.
func writeSheet(t *testing.T, dir, name string, rows [][]any) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	require.NoError(t, f.SaveAs(path))
	return path
}

func cellValue(t *testing.T, path, cell string) string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()
	v, err := f.GetCellValue("Sheet1", cell)
	require.NoError(t, err)
	return v
}

func columnID(t *testing.T, cols []board.Column, title string) string {
	t.Helper()
	for _, c := range cols {
		if reconcile.SameName(c.Title, title) {
			return c.ID
		}
	}
	t.Fatalf("column %q not found in %+v", title, cols)
	return ""
}

var acuraRows = [][]any{
	{"Year", "Make", "Model", "Comment"},
	{"2020", "Acura", "TLX", "great"},
	{"2021", "Acura", "", ""},
}

func TestReplacePushBuildsGroup(t *testing.T) {
	fx := newFixture(t)
	fx.mock.AddColumn(fx.boardID, "Foo")
	path := writeSheet(t, t.TempDir(), "Acura Models.xlsx", acuraRows)

	report, err := fx.engine(reconcile.ModeReplace).Push(context.Background(), fx.boardID, path)
	require.NoError(t, err)

	groups := fx.mock.Groups(fx.boardID, false)
	require.Len(t, groups, 1)
	assert.Equal(t, "Acura", groups[0].Title)

	cols := fx.mock.Columns(fx.boardID)
	titles := []string{}
	for _, c := range cols {
		titles = append(titles, c.Title)
	}
	assert.Equal(t, []string{"Name", "Make", "Model", "Comment"}, titles)
	assert.Equal(t, []string{"Foo"}, report.ColumnsDeleted)

	items := fx.mock.Items(fx.boardID, groups[0].ID)
	require.Len(t, items, 2)
	makeCol, modelCol, commentCol := columnID(t, cols, "Make"), columnID(t, cols, "Model"), columnID(t, cols, "Comment")
	assert.Equal(t, "2020", items[0].Name)
	assert.Equal(t, map[string]string{makeCol: "Acura", modelCol: "TLX"}, items[0].Values)
	assert.Equal(t, map[string]string{makeCol: "Acura"}, items[1].Values)
	assert.NotContains(t, items[0].Values, commentCol)

	assert.Equal(t, 2, fx.mock.CountOperation(queries.OpUpdateItemColumns))
	assert.Equal(t, 1, fx.recorder.Count(audit.KindBlankSkipped))
	assert.Equal(t, 2, report.Counts()[reconcile.ActionCreate])
}

func TestReplacePushArchivesExistingGroup(t *testing.T) {
	fx := newFixture(t)
	oldGroup := fx.mock.AddGroup(fx.boardID, " acura")
	fx.mock.AddItem(fx.boardID, oldGroup, "1999", nil)
	path := writeSheet(t, t.TempDir(), "Acura.xlsx", acuraRows)

	report, err := fx.engine(reconcile.ModeReplace).Push(context.Background(), fx.boardID, path)
	require.NoError(t, err)

	assert.Equal(t, oldGroup, report.ArchivedGroupID)
	active := fx.mock.Groups(fx.boardID, false)
	require.Len(t, active, 1)
	assert.NotEqual(t, oldGroup, active[0].ID)
	assert.Len(t, fx.mock.Items(fx.boardID, active[0].ID), 2)
	assert.Equal(t, 1, fx.recorder.Count(audit.KindGroupArchived))
}

func TestReplaceFailureAfterArchiveIsExplicit(t *testing.T) {
	fx := newFixture(t)
	fx.mock.AddGroup(fx.boardID, "Acura")
	fx.mock.FailOn(queries.OpCreateItem, 1, http.StatusInternalServerError, `{"error_message":"boom"}`)
	path := writeSheet(t, t.TempDir(), "Acura.xlsx", acuraRows)

	eng := fx.engine(reconcile.ModeReplace)
	_, err := eng.Push(context.Background(), fx.boardID, path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReplaceIncomplete)
	assert.ErrorIs(t, err, board.ErrUnreachable)

	fx.mock.FailOn(queries.OpCreateItem, 1, http.StatusInternalServerError, `{"error_message":"boom"}`)
	res := eng.Run(context.Background(), invocation.Request{
		Direction: invocation.DirectionPush, BoardID: fx.boardID, APIKey: apiKey, FilePath: path,
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "archived")
}

func TestIncrementalPushIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	path := writeSheet(t, t.TempDir(), "Acura.xlsx", acuraRows)
	eng := fx.engine(reconcile.ModeIncremental)

	_, err := eng.Push(context.Background(), fx.boardID, path)
	require.NoError(t, err)

	fx.mock.ClearReceivedRequests()
	report, err := eng.Push(context.Background(), fx.boardID, path)
	require.NoError(t, err)

	assert.Equal(t, 0, fx.mock.CountMutations())
	assert.Equal(t, 2, report.Counts()[reconcile.ActionSkip])
}

func TestIncrementalPushTrimmedDiff(t *testing.T) {
	fx := newFixture(t)
	groupID := fx.mock.AddGroup(fx.boardID, "Acura")
	makeCol := fx.mock.AddColumn(fx.boardID, "Make")
	fx.mock.AddItem(fx.boardID, groupID, "2020", map[string]string{makeCol: "Acura"})
	dir := t.TempDir()
	eng := fx.engine(reconcile.ModeIncremental)

	path := writeSheet(t, dir, "Acura.xlsx", [][]any{{"Year", "Make"}, {"2020", "Acura "}})
	fx.mock.ClearReceivedRequests()
	_, err := eng.Push(context.Background(), fx.boardID, path)
	require.NoError(t, err)
	assert.Equal(t, 0, fx.mock.CountOperation(queries.OpUpdateItemColumns))

	path = writeSheet(t, dir, "Acura.xlsx", [][]any{{"Year", "Make"}, {"2020", "Honda"}})
	fx.mock.ClearReceivedRequests()
	_, err = eng.Push(context.Background(), fx.boardID, path)
	require.NoError(t, err)
	assert.Equal(t, 1, fx.mock.CountOperation(queries.OpUpdateItemColumns))
	assert.Equal(t, "Honda", fx.mock.Items(fx.boardID, groupID)[0].Values[makeCol])
}

func TestProtectedFieldIsolation(t *testing.T) {
	fx := newFixture(t)
	groupID := fx.mock.AddGroup(fx.boardID, "Acura")
	makeCol := fx.mock.AddColumn(fx.boardID, "Make")
	commentCol := fx.mock.AddColumn(fx.boardID, "Comment")
	fx.mock.AddItem(fx.boardID, groupID, "2020", map[string]string{makeCol: "Acura", commentCol: "board note"})
	path := writeSheet(t, t.TempDir(), "Acura.xlsx", [][]any{
		{"Year", "Make", "Comment"},
		{"2020", "Honda", "sheet note"},
	})
	eng := fx.engine(reconcile.ModeIncremental)

	_, err := eng.Push(context.Background(), fx.boardID, path)
	require.NoError(t, err)
	for _, r := range fx.mock.GetReceivedRequests() {
		if r.Operation == queries.OpUpdateItemColumns {
			assert.NotContains(t, r.Variables["values"], commentCol)
		}
	}
	assert.Equal(t, "board note", fx.mock.Items(fx.boardID, groupID)[0].Values[commentCol])

	_, err = eng.Pull(context.Background(), fx.boardID, path)
	require.NoError(t, err)
	assert.Equal(t, "sheet note", cellValue(t, path, "C2"))
}

func TestDuplicateKeysRejectedBeforeRemoteCalls(t *testing.T) {
	fx := newFixture(t)
	path := writeSheet(t, t.TempDir(), "Acura.xlsx", [][]any{
		{"Year", "Make"},
		{"2020", "Acura"},
		{"2020 ", "Honda"},
	})

	_, err := fx.engine(reconcile.ModeReplace).Push(context.Background(), fx.boardID, path)
	assert.ErrorIs(t, err, reconcile.ErrDuplicateKey)
	assert.Empty(t, fx.mock.GetReceivedRequests())
}

func TestMissingKeyColumn(t *testing.T) {
	fx := newFixture(t)
	path := writeSheet(t, t.TempDir(), "Acura.xlsx", [][]any{{"Make"}, {"Acura"}})

	_, err := fx.engine(reconcile.ModeIncremental).Push(context.Background(), fx.boardID, path)
	assert.ErrorIs(t, err, reconcile.ErrKeyFieldMissing)
}

func TestPullUpdatesChangedCells(t *testing.T) {
	fx := newFixture(t)
	groupID := fx.mock.AddGroup(fx.boardID, "Acura")
	makeCol := fx.mock.AddColumn(fx.boardID, "Make")
	modelCol := fx.mock.AddColumn(fx.boardID, "Model")
	fx.mock.AddItem(fx.boardID, groupID, "2020", map[string]string{makeCol: "Acura", modelCol: "ILX"})
	fx.mock.AddItem(fx.boardID, groupID, "2030", map[string]string{makeCol: "Acura"})
	path := writeSheet(t, t.TempDir(), "Acura.xlsx", [][]any{
		{"Year", "Make", "Model"},
		{"2020", "Acura", "TLX"},
		{"2021", "Acura", "MDX"},
	})

	report, err := fx.engine(reconcile.ModeIncremental).Pull(context.Background(), fx.boardID, path)
	require.NoError(t, err)

	assert.Equal(t, "ILX", cellValue(t, path, "C2"))
	assert.Equal(t, "MDX", cellValue(t, path, "C3"))
	assert.Equal(t, []string{"2030"}, report.Unmatched)
	assert.Equal(t, 1, fx.recorder.Count(audit.KindCellUpdated))
	assert.Equal(t, 1, fx.recorder.Count(audit.KindItemNotMatched))
	assert.Equal(t, 0, fx.mock.CountMutations())
}

func TestPullGroupNotFound(t *testing.T) {
	fx := newFixture(t)
	path := writeSheet(t, t.TempDir(), "Kia.xlsx", acuraRows)

	_, err := fx.engine(reconcile.ModeIncremental).Pull(context.Background(), fx.boardID, path)
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestDryRunChangesNothing(t *testing.T) {
	fx := newFixture(t)
	fx.mock.AddColumn(fx.boardID, "Foo")
	path := writeSheet(t, t.TempDir(), "Acura.xlsx", acuraRows)
	fx.client.SetDryRun(true)

	opts := DefaultOptions()
	opts.Mode = reconcile.ModeReplace
	opts.DryRun = true
	eng := NewEngine(fx.client, opts, audit.NewEmitter(fx.recorder))
	eng.sleep = func(context.Context, time.Duration) error {
		t.Fatal("settle delay must not run in dry run")
		return nil
	}

	report, err := eng.Push(context.Background(), fx.boardID, path)
	require.NoError(t, err)
	assert.Equal(t, 0, fx.mock.CountMutations())
	assert.Len(t, fx.mock.Columns(fx.boardID), 2)
	assert.Contains(t, report.Message(), "[DRY RUN]")
	for _, e := range fx.recorder.Events() {
		assert.True(t, e.DryRun)
	}
}

func TestSettleDelayBetweenCreateAndUpdate(t *testing.T) {
	fx := newFixture(t)
	path := writeSheet(t, t.TempDir(), "Acura.xlsx", acuraRows)

	opts := DefaultOptions()
	opts.Mode = reconcile.ModeReplace
	opts.SettleDelay = 250 * time.Millisecond
	eng := NewEngine(fx.client, opts, nil)

	var waits []time.Duration
	eng.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	_, err := eng.Push(context.Background(), fx.boardID, path)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 250 * time.Millisecond}, waits)
}

func TestRun(t *testing.T) {
	fx := newFixture(t)
	path := writeSheet(t, t.TempDir(), "Acura.xlsx", acuraRows)
	eng := fx.engine(reconcile.ModeIncremental)

	res := eng.Run(context.Background(), invocation.Request{Direction: invocation.DirectionPush, BoardID: fx.boardID})
	assert.False(t, res.Success)

	res = eng.Run(context.Background(), invocation.Request{
		Direction: invocation.DirectionPush, BoardID: fx.boardID, APIKey: apiKey, FilePath: path,
	})
	require.True(t, res.Success, res.Message)
	assert.Contains(t, res.Message, "2 created")
	assert.NotEmpty(t, res.RunID)

	res = eng.Run(context.Background(), invocation.Request{
		Direction: invocation.DirectionPull, BoardID: fx.boardID, APIKey: apiKey, FilePath: path,
	})
	require.True(t, res.Success, res.Message)
	assert.Contains(t, res.Message, "0 cells updated")

	res = eng.Run(context.Background(), invocation.Request{
		Direction: invocation.DirectionPull, BoardID: fx.boardID, APIKey: apiKey, FilePath: filepath.Join(t.TempDir(), "missing.xlsx"),
	})
	assert.False(t, res.Success)
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sleepContext(ctx, time.Hour)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.NoError(t, sleepContext(context.Background(), 0))
}

func TestMain(m *testing.M) {
	log.SetLevel(log.WarnLevel)
	os.Exit(m.Run())
}
