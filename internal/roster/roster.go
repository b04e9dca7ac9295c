package roster

import (
	"cmp"
	"slices"

	"github.com/DoyleJ11/whiteboard-sync/internal/geom"
)

type Role string

const (
	RoleMaster   Role = "master"
	RoleFollower Role = "follower"
)

type Participant struct {
	UserID   string      `json:"userId"`
	Username string      `json:"username"`
	Role     Role        `json:"role"`
	JoinTime int64       `json:"joinTime"`
	Cursor   *geom.Point `json:"cursor,omitempty"`
}

// ElectionPolicy picks the master among a non-empty set of participants.
type ElectionPolicy interface {
	Elect(ps []Participant) string
}

// EarliestJoin elects the participant that joined first. Equal join times
// fall back to the smaller user id so every peer reaches the same answer.
type EarliestJoin struct{}

func (EarliestJoin) Elect(ps []Participant) string {
	best := slices.MinFunc(ps, compareSeniority)
	return best.UserID
}

func compareSeniority(a, b Participant) int {
	if c := cmp.Compare(a.JoinTime, b.JoinTime); c != 0 {
		return c
	}
	return cmp.Compare(a.UserID, b.UserID)
}

// Roster tracks the participants of one room. Whenever it is non-empty
// exactly one of them holds RoleMaster.
type Roster struct {
	members map[string]*Participant
	policy  ElectionPolicy
	master  string
}

func New(policy ElectionPolicy) *Roster {
	if policy == nil {
		policy = EarliestJoin{}
	}
	return &Roster{members: make(map[string]*Participant), policy: policy}
}

// Upsert adds p or refreshes the name and join time of a known participant.
// It reports whether p was new and whether the master changed.
func (r *Roster) Upsert(p Participant) (added, masterChanged bool) {
	if cur, ok := r.members[p.UserID]; ok {
		cur.Username = p.Username
		if p.JoinTime != 0 {
			cur.JoinTime = p.JoinTime
		}
	} else {
		cp := p
		r.members[p.UserID] = &cp
		added = true
	}
	return added, r.elect()
}

// Remove drops a participant and reports whether the master changed.
func (r *Roster) Remove(userID string) (removed Participant, ok, masterChanged bool) {
	p, ok := r.members[userID]
	if !ok {
		return Participant{}, false, false
	}
	delete(r.members, userID)
	return *p, true, r.elect()
}

// Reset drops everyone except keep.
func (r *Roster) Reset(keep string) {
	for id := range r.members {
		if id != keep {
			delete(r.members, id)
		}
	}
	r.elect()
}

func (r *Roster) SetCursor(userID string, at geom.Point) bool {
	p, ok := r.members[userID]
	if !ok {
		return false
	}
	p.Cursor = &at
	return true
}

func (r *Roster) Get(userID string) (Participant, bool) {
	p, ok := r.members[userID]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

func (r *Roster) Has(userID string) bool {
	_, ok := r.members[userID]
	return ok
}

func (r *Roster) Len() int { return len(r.members) }

// Master returns the current master's id, or "" for an empty roster.
func (r *Roster) Master() string { return r.master }

func (r *Roster) IsMaster(userID string) bool {
	return userID != "" && r.master == userID
}

// List returns a copy of the participants ordered by seniority.
func (r *Roster) List() []Participant {
	out := make([]Participant, 0, len(r.members))
	for _, p := range r.members {
		out = append(out, *p)
	}
	slices.SortFunc(out, compareSeniority)
	return out
}

func (r *Roster) elect() bool {
	prev := r.master
	if len(r.members) == 0 {
		r.master = ""
		return prev != ""
	}
	r.master = r.policy.Elect(r.List())
	for id, p := range r.members {
		if id == r.master {
			p.Role = RoleMaster
		} else {
			p.Role = RoleFollower
		}
	}
	return prev != r.master
}
