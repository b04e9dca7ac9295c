package protocol

// Envelope fields on the wire:
//
//	type:      one of the MessageType values below
//	userId:    sender
//	roomId:    room the message belongs to
//	data:      type-specific payload
//	timestamp: sender clock, unix milliseconds
//
// Payloads:
//
//	join                {username, joinTime?, reply?}
//	leave               {}
//	request_state       {}
//	full_state          {state: StrokeData[]}
//	whiteboard_sync     {events: Op[], ts}
//	whiteboard_viewport {rect: {x, y, w, h}, ts}
//	cursor              {x, y}

type MessageType string

const (
	TypeJoin         MessageType = "join"
	TypeLeave        MessageType = "leave"
	TypeRequestState MessageType = "request_state"
	TypeFullState    MessageType = "full_state"
	TypeSync         MessageType = "whiteboard_sync"
	TypeViewport     MessageType = "whiteboard_viewport"
	TypeCursor       MessageType = "cursor"
)

// Message is implemented by every payload variant.
type Message interface {
	Type() MessageType
	isMessage()
}

// Join announces a participant. Reply is set when the join answers another
// participant's join so that newcomers learn who is already in the room;
// replies are never answered.
type Join struct {
	Username string `json:"username"`
	JoinTime int64  `json:"joinTime,omitempty"`
	Reply    bool   `json:"reply,omitempty"`
}

type Leave struct{}

type RequestState struct{}

// FullState is the authoritative scene snapshot sent by the master.
type FullState struct {
	State []StrokeData `json:"state"`
}

// Sync carries a batch of compact drawing ops.
type Sync struct {
	Events []Op  `json:"events"`
	TS     int64 `json:"ts"`
}

type Viewport struct {
	Rect ViewRect `json:"rect"`
	TS   int64    `json:"ts"`
}

type ViewRect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (Join) Type() MessageType         { return TypeJoin }
func (Leave) Type() MessageType        { return TypeLeave }
func (RequestState) Type() MessageType { return TypeRequestState }
func (FullState) Type() MessageType    { return TypeFullState }
func (Sync) Type() MessageType         { return TypeSync }
func (Viewport) Type() MessageType     { return TypeViewport }
func (Cursor) Type() MessageType       { return TypeCursor }

func (Join) isMessage()         {}
func (Leave) isMessage()        {}
func (RequestState) isMessage() {}
func (FullState) isMessage()    {}
func (Sync) isMessage()         {}
func (Viewport) isMessage()     {}
func (Cursor) isMessage()       {}

// IsPresence reports whether messages of type t are best-effort presence
// updates that are never queued while offline.
func IsPresence(t MessageType) bool {
	return t == TypeCursor || t == TypeViewport
}

// StrokeData is the serialized form of a closed stroke inside full_state.
// Points are flattened as [x1, y1, x2, y2, ...].
type StrokeData struct {
	ID      string    `json:"id"`
	OwnerID string    `json:"ownerId"`
	Color   Color     `json:"color"`
	Width   float64   `json:"width"`
	Opacity float64   `json:"opacity"`
	Effects []string  `json:"effects,omitempty"`
	Points  []float64 `json:"points"`
}
