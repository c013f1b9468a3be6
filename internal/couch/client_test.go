package couch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(Config{URL: srv.URL, Database: "obsidian"})
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Database: "db"})
	require.Error(t, err)
	_, err = NewClient(Config{URL: "http://localhost:5984"})
	require.Error(t, err)
}

func TestGetParent_HitAndMiss(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/obsidian/clippings%2Fnote.md", "/obsidian/clippings/note.md":
			json.NewEncoder(w).Encode(ParentDoc{
				ID:       "clippings/note.md",
				Rev:      "3-abc",
				Path:     "Clippings/note.md",
				Children: []string{"h:1-1", "h:2-2"},
				Type:     TypePlain,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	c := newClient(t, srv)

	doc, found, err := c.GetParent(context.Background(), "clippings/note.md")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "3-abc", doc.Rev)
	require.Equal(t, []string{"h:1-1", "h:2-2"}, doc.Children)

	_, found, err = c.GetParent(context.Background(), "clippings/other.md")
	require.NoError(t, err)
	require.False(t, found)
}

func TestPutParent_CreatedReturnsRev(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		var doc ParentDoc
		require.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
		require.Equal(t, "clippings/new.md", doc.ID)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "id": doc.ID, "rev": "1-xyz"})
	}))
	defer srv.Close()
	c := newClient(t, srv)

	rev, err := c.PutParent(context.Background(), ParentDoc{ID: "clippings/new.md", Path: "Clippings/new.md"})
	require.NoError(t, err)
	require.Equal(t, "1-xyz", rev)
}

func TestPutParent_ConflictMapped(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "conflict"})
	}))
	defer srv.Close()
	c := newClient(t, srv)

	_, err := c.PutParent(context.Background(), ParentDoc{ID: "clippings/x.md"})
	require.ErrorIs(t, err, ErrConflict)
}

func TestPutLeaf_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	c := newClient(t, srv)

	_, err := c.PutLeaf(context.Background(), LeafDoc{ID: "h:1-1", Type: TypeLeaf, Data: "x"})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrConflict)
}

func TestPing(t *testing.T) {
	t.Parallel()

	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/obsidian", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"db_name": "obsidian"})
	}))
	defer up.Close()
	require.NoError(t, newClient(t, up).Ping(context.Background()))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	require.Error(t, newClient(t, down).Ping(context.Background()))
}

func TestLeafDoc_WireShape(t *testing.T) {
	t.Parallel()

	body, err := json.Marshal(LeafDoc{ID: "h:100-1", Type: TypeLeaf, Data: "content"})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	require.Equal(t, "h:100-1", raw["_id"])
	require.Equal(t, "leaf", raw["type"])
	require.Equal(t, "content", raw["data"])
}

func TestParentDoc_WireShape(t *testing.T) {
	t.Parallel()

	body, err := json.Marshal(ParentDoc{
		ID:       "clippings/a.md",
		Path:     "Clippings/a.md",
		Children: []string{"h:1-1"},
		CTime:    100,
		MTime:    200,
		Size:     42,
		Type:     TypePlain,
	})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	require.Equal(t, "clippings/a.md", raw["_id"])
	require.Equal(t, "Clippings/a.md", raw["path"])
	require.Equal(t, "plain", raw["type"])
	require.Equal(t, float64(100), raw["ctime"])
	require.Equal(t, float64(200), raw["mtime"])
	require.Contains(t, raw, "eden")
	require.Equal(t, false, raw["deleted"])
}
