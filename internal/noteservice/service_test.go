package noteservice

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/inflight"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/outline"
	"github.com/starford/dagaz/internal/sse"
	"github.com/starford/dagaz/internal/store"
	"github.com/starford/dagaz/internal/testutil"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Publish(e sse.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e.Type)
}

func (r *recorder) PublishNoteEvent(kind, _, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, kind+":"+id)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func setup(t *testing.T) (*Service, *store.DB, *recorder) {
	t.Helper()
	db := testutil.SampleTree(t, "ws")
	rec := &recorder{}
	return NewService(db, nil, rec), db, rec
}

func rowIDs(v *OutlineView) []string {
	ids := make([]string, len(v.Rows))
	for i, r := range v.Rows {
		ids[i] = r.ID
	}
	return ids
}

func childIDs(t *testing.T, db *store.DB, parent string) []string {
	t.Helper()
	notes, err := db.List(context.Background(), "ws")
	require.NoError(t, err)
	var out []string
	for _, n := range notes {
		if n.ParentKey() == parent {
			out = append(out, n.ID)
		}
	}
	return out
}

func TestOutline(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	collapsed, err := svc.Outline(ctx, "ws", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "5"}, rowIDs(collapsed))
	assert.Equal(t, 5, collapsed.Total)
	assert.True(t, collapsed.Rows[0].HasChildren)
	assert.False(t, collapsed.Rows[0].Expanded)

	open, err := svc.Outline(ctx, "ws", outline.NewExpandSet("1", "2"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, rowIDs(open))
	depths := []int{}
	for _, r := range open.Rows {
		depths = append(depths, r.Depth)
	}
	assert.Equal(t, []int{0, 1, 2, 1, 0}, depths)
	assert.Equal(t, collapsed.Revision, open.Revision)

	first := open.Rows[0]
	assert.False(t, first.CanMoveUp)
	assert.True(t, first.CanMoveDown)
	assert.False(t, first.CanPromote)
	assert.False(t, first.CanDemote)

	four := open.Rows[3]
	assert.True(t, four.CanMoveUp)
	assert.False(t, four.CanMoveDown)
	assert.True(t, four.CanPromote)
	assert.True(t, four.CanDemote)
}

func TestMove_Swap(t *testing.T) {
	svc, db, rec := setup(t)
	ctx := context.Background()

	before, err := svc.Outline(ctx, "ws", nil)
	require.NoError(t, err)

	res, err := svc.Move(ctx, "ws", "4", outline.OpMoveUp, before.Revision, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Plan)
	assert.Equal(t, []string{"4", "2"}, childIDs(t, db, "1"))
	assert.NotEqual(t, before.Revision, res.Revision)
	assert.Contains(t, rec.all(), sse.OutlineReorder)

	// Reversing the move restores the original order.
	_, err = svc.Move(ctx, "ws", "4", outline.OpMoveDown, res.Revision, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "4"}, childIDs(t, db, "1"))
}

func TestMove_DemoteExpandsTarget(t *testing.T) {
	svc, db, _ := setup(t)

	res, err := svc.Move(context.Background(), "ws", "5", outline.OpDemote, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "1", res.Plan.Expand)
	assert.Equal(t, []string{"1"}, res.Expanded)
	assert.Equal(t, []string{"5", "2", "4"}, childIDs(t, db, "1"))
}

func TestMove_Promote(t *testing.T) {
	svc, db, _ := setup(t)

	_, err := svc.Move(context.Background(), "ws", "3", outline.OpPromote, "", outline.NewExpandSet("1", "2"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3", "4"}, childIDs(t, db, "1"))
}

func TestMove_Illegal(t *testing.T) {
	svc, _, rec := setup(t)

	_, err := svc.Move(context.Background(), "ws", "1", outline.OpMoveUp, "", nil)
	require.ErrorIs(t, err, apperr.ErrIllegalOperation)
	assert.Empty(t, rec.all())

	_, err = svc.Move(context.Background(), "ws", "ghost", outline.OpMoveUp, "", nil)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMove_StaleSnapshot(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	v, err := svc.Outline(ctx, "ws", nil)
	require.NoError(t, err)
	_, err = svc.Move(ctx, "ws", "5", outline.OpMoveUp, v.Revision, nil)
	require.NoError(t, err)

	_, err = svc.Move(ctx, "ws", "5", outline.OpMoveDown, v.Revision, nil)
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestMove_BusyWhileInFlight(t *testing.T) {
	db := testutil.SampleTree(t, "ws")
	slot := inflight.NewLocal(time.Minute)
	svc := NewService(db, inflight.NewGate(slot, inflight.PolicyReject, 0), nil)
	ctx := context.Background()

	ok, err := slot.Acquire(ctx, "ws", "someone-else")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = svc.Move(ctx, "ws", "4", outline.OpMoveUp, "", nil)
	require.ErrorIs(t, err, apperr.ErrBusy)

	// Other trees are unaffected.
	testutil.Seed(t, db, "other", testutil.Note("a", "", 0), testutil.Note("b", "", 1))
	_, err = svc.Move(ctx, "other", "b", outline.OpMoveUp, "", nil)
	require.NoError(t, err)
}

func TestDrop(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()

	// Visible: 1, 2, 4, 5. Dropping 5 on the collapsed 2 moving upward
	// places it where 2 was.
	res, err := svc.Drop(ctx, "ws", "5", "2", "", outline.NewExpandSet("1"))
	require.NoError(t, err)
	require.NotNil(t, res.Plan)
	assert.Equal(t, []string{"5", "2", "4"}, childIDs(t, db, "1"))
	assert.Equal(t, []string{"1"}, childIDs(t, db, ""))
}

func TestDrop_NoOp(t *testing.T) {
	svc, _, rec := setup(t)
	ctx := context.Background()

	before, err := svc.Outline(ctx, "ws", nil)
	require.NoError(t, err)

	res, err := svc.Drop(ctx, "ws", "1", "1", "", nil)
	require.NoError(t, err)
	assert.Nil(t, res.Plan)
	assert.Equal(t, before.Revision, res.Revision)
	assert.Empty(t, rec.all())
}

func TestDrop_Hidden(t *testing.T) {
	svc, _, _ := setup(t)
	_, err := svc.Drop(context.Background(), "ws", "5", "3", "", nil)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateNote(t *testing.T) {
	svc, _, rec := setup(t)
	ctx := context.Background()

	n, err := svc.CreateNote(ctx, "ws", CreateInput{Content: "# Shopping\n- milk", ParentID: models.Ref("1")})
	require.NoError(t, err)
	assert.Equal(t, "Shopping", n.Title)
	assert.Equal(t, 2, n.Position)
	assert.Equal(t, "1", n.ParentKey())
	assert.NotEmpty(t, n.Checksum)
	assert.Contains(t, rec.all(), "created:"+n.ID)

	root, err := svc.CreateNote(ctx, "ws", CreateInput{ID: "r", Title: "Root"})
	require.NoError(t, err)
	assert.Equal(t, 2, root.Position)
	assert.True(t, root.IsRoot())

	_, err = svc.CreateNote(ctx, "ws", CreateInput{Title: "x", ParentID: models.Ref("missing")})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.CreateNote(ctx, "ws", CreateInput{ID: "r"})
	require.ErrorIs(t, err, apperr.ErrAlreadyExists)
}

func TestGetAndUpdateNote(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	got, err := svc.GetNote(ctx, "ws", "2")
	require.NoError(t, err)
	assert.Equal(t, 1, got.ChildCount)

	_, err = svc.UpdateNote(ctx, "ws", "2", "New", "text", "wrong")
	require.ErrorIs(t, err, apperr.ErrConflict)

	up, err := svc.UpdateNote(ctx, "ws", "2", "", "first line\nmore", got.Checksum)
	require.NoError(t, err)
	assert.Equal(t, "first line", up.Title)
	assert.NotEqual(t, got.Checksum, up.Checksum)

	_, err = svc.GetNote(ctx, "ws", "nope")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListNotes(t *testing.T) {
	svc, _, _ := setup(t)
	items, err := svc.ListNotes(context.Background(), "ws")
	require.NoError(t, err)
	assert.Len(t, items, 5)

	empty, err := svc.ListNotes(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDeleteFlow(t *testing.T) {
	svc, db, rec := setup(t)
	ctx := context.Background()

	p, err := svc.PreviewDelete(ctx, "ws", "1")
	require.NoError(t, err)
	assert.Equal(t, DeletePreview{ID: "1", Title: "Note 1", ChildCount: 3}, *p)

	removed, err := svc.DeleteNote(ctx, "ws", "1")
	require.NoError(t, err)
	assert.Equal(t, 4, removed)
	assert.Equal(t, []string{"5"}, childIDs(t, db, ""))
	assert.Contains(t, rec.all(), "deleted:1")

	_, err = svc.PreviewDelete(ctx, "ws", "1")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSearch(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Search(ctx, "ws", "  ", 10)
	require.ErrorIs(t, err, apperr.ErrInvalidInput)

	res, err := svc.Search(ctx, "ws", "Note", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, res)
	require.NoError(t, svc.Ready(ctx))
}

func TestCreateNote_ExplicitPositionShiftsSiblings(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()
	pos := 0

	_, err := svc.CreateNote(ctx, "fresh", CreateInput{ID: "a", Title: "A", Position: &pos})
	require.NoError(t, err)
	_, err = svc.CreateNote(ctx, "fresh", CreateInput{ID: "b", Title: "B", Position: &pos})
	require.NoError(t, err)

	before, err := svc.Outline(ctx, "fresh", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"b", "a"}, rowIDs(before))
	require.True(t, before.Rows[1].CanMoveUp)

	res, err := svc.Move(ctx, "fresh", "a", outline.OpMoveUp, before.Revision, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Plan)

	after, err := svc.Outline(ctx, "fresh", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, rowIDs(after))
	assert.NotEqual(t, before.Revision, after.Revision)
	assert.Equal(t, after.Revision, res.Revision)
}

func TestOutline_ExpandEverything(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	v, err := svc.Outline(ctx, "ws", outline.NewExpandSet(outline.ExpandEverything))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, rowIDs(v))
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, v.Expanded)

	// Drop resolves rows against the same fully expanded view.
	res, err := svc.Drop(ctx, "ws", "5", "3", "", outline.NewExpandSet(outline.ExpandEverything))
	require.NoError(t, err)
	require.NotNil(t, res.Plan)
	assert.Equal(t, "2", res.Plan.Mutation.ParentKey())
}

// racingStore lets another writer reorder the workspace between the
// service's snapshot and its Apply.
type racingStore struct {
	store.NoteStore
	once sync.Once
}

func (r *racingStore) Apply(ctx context.Context, ws string, m outline.Mutation, revision string) error {
	r.once.Do(func() {
		_ = r.NoteStore.Apply(ctx, ws, outline.Mutation{ID: "5", Position: 0}, "")
	})
	return r.NoteStore.Apply(ctx, ws, m, revision)
}

func TestMove_LogsStaleApply(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	db := testutil.SampleTree(t, "ws")
	svc := NewService(&racingStore{NoteStore: db}, nil, nil)

	_, err := svc.Move(context.Background(), "ws", "4", outline.OpMoveUp, "", nil)
	require.ErrorIs(t, err, apperr.ErrStaleSnapshot)

	out := buf.String()
	assert.Contains(t, out, `"msg":"reorder not applied"`)
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"workspace":"ws"`)
	assert.Contains(t, out, `"id":"4"`)
}
