package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clipvault/clipvault/internal/couch"
)

func TestStore_ParentLifecycle(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()

	_, found, err := s.GetParent(ctx, "clippings/a.md")
	require.NoError(t, err)
	require.False(t, found)

	rev, err := s.PutParent(ctx, couch.ParentDoc{ID: "clippings/a.md", Children: []string{"h:1-1"}})
	require.NoError(t, err)
	require.Equal(t, "1-mem", rev)

	doc, found, err := s.GetParent(ctx, "clippings/a.md")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "1-mem", doc.Rev)
	require.Equal(t, []string{"h:1-1"}, doc.Children)
}

func TestStore_StaleRevConflicts(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()

	_, err := s.PutParent(ctx, couch.ParentDoc{ID: "p"})
	require.NoError(t, err)

	// Writing without the current rev is a conflict, same as CouchDB.
	_, err = s.PutParent(ctx, couch.ParentDoc{ID: "p"})
	require.ErrorIs(t, err, couch.ErrConflict)

	_, err = s.PutParent(ctx, couch.ParentDoc{ID: "p", Rev: "1-mem"})
	require.NoError(t, err)
}

func TestStore_LeafIsolation(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()

	_, err := s.PutLeaf(ctx, couch.LeafDoc{ID: "h:1-1", Type: couch.TypeLeaf, Data: "x"})
	require.NoError(t, err)
	require.Equal(t, 1, s.LeafCount())

	leaf, ok := s.Leaf("h:1-1")
	require.True(t, ok)
	require.Equal(t, "x", leaf.Data)

	_, ok = s.Leaf("h:2-2")
	require.False(t, ok)
}

func TestStore_HooksCanAbortWrites(t *testing.T) {
	t.Parallel()

	s := NewStore()
	boom := errors.New("boom")
	s.OnPutLeaf = func(couch.LeafDoc) error { return boom }

	_, err := s.PutLeaf(context.Background(), couch.LeafDoc{ID: "h:1-1"})
	require.ErrorIs(t, err, boom)
	require.Zero(t, s.LeafCount())
}

func TestStore_GetParentReturnsCopy(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()
	_, err := s.PutParent(ctx, couch.ParentDoc{ID: "p", Children: []string{"h:1-1"}})
	require.NoError(t, err)

	doc, _, err := s.GetParent(ctx, "p")
	require.NoError(t, err)
	doc.Children[0] = "mutated"

	again, _, err := s.GetParent(ctx, "p")
	require.NoError(t, err)
	require.Equal(t, []string{"h:1-1"}, again.Children)
}
