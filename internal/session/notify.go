package session

import (
	"github.com/DoyleJ11/whiteboard-sync/internal/geom"
	"github.com/DoyleJ11/whiteboard-sync/internal/syncproto"
)

type NotificationKind string

const (
	NoteConnection NotificationKind = "connection" // State changed
	NoteOffline    NotificationKind = "offline"    // reconnect attempts exhausted
	NoteJoined     NotificationKind = "joined"
	NoteLeft       NotificationKind = "left"
	NoteMaster     NotificationKind = "master" // UserID is the new master
	NoteStrokes    NotificationKind = "strokes"
	NoteCursor     NotificationKind = "cursor"
	NoteViewport   NotificationKind = "viewport"
)

type Notification struct {
	Kind     NotificationKind
	UserID   string
	State    syncproto.ConnState
	Added    []string
	Removed  []string
	Cursor   geom.Point
	Viewport geom.Rect
}
