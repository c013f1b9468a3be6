// Package couch speaks the document store's HTTP protocol and defines
// the parent/leaf document shapes the folder-sync client expects.
package couch

import (
	"context"
	"errors"
)

// LeafDoc holds the serialized note content for one revision. The _id
// form "h:<unix-ms>-<seq>" matches the sync client's content-node naming.
type LeafDoc struct {
	ID   string `json:"_id"`
	Rev  string `json:"_rev,omitempty"`
	Type string `json:"type"`
	Data string `json:"data"`
	Hash string `json:"hash"`
	Seq  int64  `json:"seq"`
}

// ParentDoc is the per-path document a sync client enumerates to discover
// the folder tree. It references leaf documents and never embeds content.
// Field names are the wire contract; do not rename.
type ParentDoc struct {
	ID       string   `json:"_id"`
	Rev      string   `json:"_rev,omitempty"`
	Path     string   `json:"path"`
	Children []string `json:"children"`
	CTime    int64    `json:"ctime"`
	MTime    int64    `json:"mtime"`
	Size     int      `json:"size"`
	Type     string   `json:"type"`
	Deleted  bool     `json:"deleted"`
	Eden     struct{} `json:"eden"`
}

// Document type markers used by the sync client.
const (
	TypeLeaf  = "leaf"
	TypePlain = "plain"
)

// ErrConflict is returned when a PUT carries a stale revision token.
var ErrConflict = errors.New("document update conflict")

// Store is the port the vault writer persists through. GetParent reports
// a miss via found=false, not an error.
type Store interface {
	GetParent(ctx context.Context, id string) (doc ParentDoc, found bool, err error)
	PutLeaf(ctx context.Context, doc LeafDoc) (rev string, err error)
	PutParent(ctx context.Context, doc ParentDoc) (rev string, err error)
	Ping(ctx context.Context) error
}
