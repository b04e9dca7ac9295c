package syncproto

import (
	"errors"
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/DoyleJ11/whiteboard-sync/internal/geom"
	"github.com/DoyleJ11/whiteboard-sync/internal/protocol"
	"github.com/DoyleJ11/whiteboard-sync/internal/scene"
)

// Applied lists what a batch of remote ops changed.
type Applied struct {
	Started  []string // remote strokes opened
	Finished []string // strokes that entered the scene
	Removed  []string
	Ignored  int // duplicates, orphans and loopback
}

func (a Applied) Changed() bool {
	return len(a.Started)+len(a.Finished)+len(a.Removed) > 0
}

// Reconciler folds remote ops into the local scene. Strokes still being
// drawn by others are held as open transients until their end op arrives.
type Reconciler struct {
	self  string
	scene *scene.Scene
	open  map[string]*scene.Stroke
	stats *Stats
	log   *zap.Logger
}

func NewReconciler(self string, sc *scene.Scene, stats *Stats, log *zap.Logger) *Reconciler {
	if stats == nil {
		stats = &Stats{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		self:  self,
		scene: sc,
		open:  make(map[string]*scene.Stroke),
		stats: stats,
		log:   log,
	}
}

// Apply applies one batch sent by sender, in order. Nothing sent by the
// local participant is ever applied.
func (r *Reconciler) Apply(sender string, ops []protocol.Op) Applied {
	var res Applied
	if sender == r.self {
		r.stats.IncLoopbackDropped()
		res.Ignored = len(ops)
		return res
	}
	for _, op := range ops {
		if !r.applyOne(sender, op, &res) {
			res.Ignored++
		}
	}
	return res
}

func (r *Reconciler) applyOne(sender string, op protocol.Op, res *Applied) bool {
	switch op.Kind {
	case protocol.OpStart:
		if _, ok := r.open[op.ID]; ok || r.scene.Known(op.ID) {
			r.stats.IncDuplicatesIgnored()
			return false
		}
		st := scene.NewStroke(op.ID, sender, propsOf(op))
		_ = st.Append(geom.Pt(op.X, op.Y)) // new strokes are open
		r.open[op.ID] = st
		res.Started = append(res.Started, op.ID)

	case protocol.OpAppend:
		st := r.openFor(sender, op)
		if st == nil {
			return false
		}
		_ = st.Append(geom.Pt(op.X, op.Y)) // r.open holds open strokes only

	case protocol.OpEnd:
		st := r.openFor(sender, op)
		if st == nil {
			return false
		}
		delete(r.open, op.ID)
		if !r.finish(st) {
			return false
		}
		res.Finished = append(res.Finished, op.ID)

	case protocol.OpFull:
		if r.scene.Known(op.ID) {
			r.stats.IncDuplicatesIgnored()
			return false
		}
		if st, ok := r.open[op.ID]; ok {
			if st.OwnerID != sender {
				r.stats.IncDuplicatesIgnored()
				return false
			}
			delete(r.open, op.ID)
		}
		st := scene.NewStroke(op.ID, sender, propsOf(op))
		for i := 0; i+1 < len(op.Points); i += 2 {
			_ = st.Append(geom.Pt(op.Points[i], op.Points[i+1])) // still open until finish
		}
		if !r.finish(st) {
			return false
		}
		res.Finished = append(res.Finished, op.ID)

	case protocol.OpRemove:
		if st, ok := r.open[op.ID]; ok && st.OwnerID == sender {
			delete(r.open, op.ID)
			r.scene.Tombstone(op.ID)
			res.Removed = append(res.Removed, op.ID)
			break
		}
		st, ok := r.scene.Get(op.ID)
		if !ok || st.OwnerID != sender {
			r.stats.IncOrphanOps()
			r.log.Debug("ignored remove", zap.String("stroke", op.ID), zap.String("sender", sender))
			return false
		}
		r.scene.Remove(op.ID)
		res.Removed = append(res.Removed, op.ID)

	default:
		r.stats.IncMalformed()
		return false
	}
	r.stats.IncOpsApplied()
	return true
}

// openFor returns the open stroke op continues, or nil when op is an orphan.
func (r *Reconciler) openFor(sender string, op protocol.Op) *scene.Stroke {
	st, ok := r.open[op.ID]
	if !ok || st.OwnerID != sender {
		r.stats.IncOrphanOps()
		r.log.Debug("orphan op",
			zap.String("kind", string(op.Kind)),
			zap.String("stroke", op.ID),
			zap.String("sender", sender),
		)
		return nil
	}
	return st
}

func (r *Reconciler) finish(st *scene.Stroke) bool {
	if err := st.Close(r.scene.Config().SimplifyTolerance); err != nil {
		r.log.Warn("close stroke", zap.String("stroke", st.ID), zap.Error(err))
		return false
	}
	if err := r.scene.Add(st); err != nil {
		if !errors.Is(err, scene.ErrDuplicateStroke) && !errors.Is(err, scene.ErrStrokeRemoved) {
			r.log.Warn("add stroke", zap.String("stroke", st.ID), zap.Error(err))
		}
		return false
	}
	return true
}

// ApplyFullState adds every stroke of a snapshot the scene does not know
// yet. Tombstoned ids stay removed.
func (r *Reconciler) ApplyFullState(sender string, state []protocol.StrokeData) Applied {
	var res Applied
	if sender == r.self {
		r.stats.IncLoopbackDropped()
		res.Ignored = len(state)
		return res
	}
	r.stats.IncFullStatesApplied()
	for _, d := range state {
		if r.scene.Known(d.ID) {
			res.Ignored++
			continue
		}
		delete(r.open, d.ID)
		if !r.finish(StrokeFromData(d)) {
			res.Ignored++
			continue
		}
		res.Finished = append(res.Finished, d.ID)
	}
	return res
}

// DropOpen discards the transient strokes owner left unfinished and returns
// their ids.
func (r *Reconciler) DropOpen(owner string) []string {
	var ids []string
	for id, st := range r.open {
		if st.OwnerID == owner {
			ids = append(ids, id)
			delete(r.open, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Open returns the transient stroke with id, if any.
func (r *Reconciler) Open(id string) (*scene.Stroke, bool) {
	st, ok := r.open[id]
	return st, ok
}

func (r *Reconciler) OpenCount() int { return len(r.open) }

// OpenStrokes returns the transients sorted by id.
func (r *Reconciler) OpenStrokes() []*scene.Stroke {
	ids := slices.Sorted(maps.Keys(r.open))
	out := make([]*scene.Stroke, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.open[id])
	}
	return out
}

func propsOf(op protocol.Op) scene.Properties {
	return scene.Properties{Color: uint32(op.Color), Width: op.Width, Opacity: op.Opacity}
}

// StrokeFromData rebuilds an open stroke from its serialized form. The
// caller closes it.
func StrokeFromData(d protocol.StrokeData) *scene.Stroke {
	props := scene.Properties{
		Color:   uint32(d.Color),
		Width:   d.Width,
		Opacity: d.Opacity,
		Effects: make(map[string]struct{}, len(d.Effects)),
	}
	for _, e := range d.Effects {
		props.Effects[e] = struct{}{}
	}
	st := scene.NewStroke(d.ID, d.OwnerID, props)
	for i := 0; i+1 < len(d.Points); i += 2 {
		_ = st.Append(geom.Pt(d.Points[i], d.Points[i+1])) // new strokes are open
	}
	return st
}

// DataFromStroke serializes a closed stroke for full_state.
func DataFromStroke(st *scene.Stroke) protocol.StrokeData {
	pts := st.Points()
	flat := make([]float64, 0, 2*len(pts))
	for _, p := range pts {
		flat = append(flat, p.X, p.Y)
	}
	return protocol.StrokeData{
		ID:      st.ID,
		OwnerID: st.OwnerID,
		Color:   protocol.Color(st.Properties.Color),
		Width:   st.Properties.Width,
		Opacity: st.Properties.Opacity,
		Effects: st.Properties.EffectList(),
		Points:  flat,
	}
}
