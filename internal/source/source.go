package source

import (
	"math/rand"
	"time"

	"github.com/saltytrain2/genradio/internal/geo"
)

const (
	// KeyLen is the fixed length of generated source keys. The peer
	// matches sources by key, so the format is part of the protocol.
	KeyLen = 20

	keyAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// DefaultRemoveThresholdM is the maximum distance in meters between a
// click and a source for RemoveNearest to consider it a match.
const DefaultRemoveThresholdM = 10

// Marker is an opaque visual handle owned by the map layer.
type Marker any

// MarkerLayer is the map collaborator. A nil layer disables visual
// registration without affecting registry semantics.
type MarkerLayer interface {
	AddMarker(key string, pos geo.Point) Marker
	RemoveMarker(key string)
}

// Source is one simulated signal source: a fixed position, a stable
// key, and the visual handle the source owns for its lifetime.
type Source struct {
	ID     string
	Pos    geo.Point
	Marker Marker
}

// DistanceFrom returns the great-circle distance in meters from the
// source to p.
func (s *Source) DistanceFrom(p geo.Point) float64 {
	return geo.Distance(s.Pos, p)
}

// Registry is the authoritative local set of active sources, in
// insertion order. Every mutation touches the marker layer in the same
// call, so registry membership and visual membership never diverge.
type Registry struct {
	layer   MarkerLayer
	sources []*Source
	rng     *rand.Rand
}

// NewRegistry creates an empty registry. layer may be nil.
func NewRegistry(layer MarkerLayer) *Registry {
	return &Registry{
		layer:   layer,
		sources: make([]*Source, 0),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Add creates a source at pos with a fresh key and registers its
// marker. It always succeeds.
func (r *Registry) Add(pos geo.Point) *Source {
	s := &Source{
		ID:  r.newKey(),
		Pos: pos,
	}
	if r.layer != nil {
		s.Marker = r.layer.AddMarker(s.ID, pos)
	}
	r.sources = append(r.sources, s)
	return s
}

// Put inserts a source under a caller-provided key, used when
// mirroring a registry owned by the other side of the sync link.
// Returns nil, false if the key is already present.
func (r *Registry) Put(id string, pos geo.Point) (*Source, bool) {
	if r.hasKey(id) {
		return nil, false
	}
	s := &Source{ID: id, Pos: pos}
	if r.layer != nil {
		s.Marker = r.layer.AddMarker(s.ID, pos)
	}
	r.sources = append(r.sources, s)
	return s, true
}

// RemoveByID removes the source with the given key, releasing its
// marker, and reports whether a removal occurred.
func (r *Registry) RemoveByID(id string) bool {
	for i, s := range r.sources {
		if s.ID == id {
			r.removeAt(i)
			return true
		}
	}
	return false
}

// RemoveNearest removes and returns the source closest to pos if its
// distance is strictly below maxDistance meters. Ties go to the first
// source in insertion order. Returns nil, false when nothing is close
// enough; the registry is left untouched.
func (r *Registry) RemoveNearest(pos geo.Point, maxDistance float64) (*Source, bool) {
	closest := -1
	closestDistance := maxDistance
	for i, s := range r.sources {
		if d := s.DistanceFrom(pos); d < closestDistance {
			closestDistance = d
			closest = i
		}
	}
	if closest < 0 {
		return nil, false
	}
	s := r.sources[closest]
	r.removeAt(closest)
	return s, true
}

// ClearAll removes every source, releasing every marker, and returns
// the removed keys in insertion order.
func (r *Registry) ClearAll() []string {
	ids := make([]string, 0, len(r.sources))
	for _, s := range r.sources {
		if r.layer != nil {
			r.layer.RemoveMarker(s.ID)
		}
		ids = append(ids, s.ID)
	}
	r.sources = r.sources[:0]
	return ids
}

// Len returns the number of active sources.
func (r *Registry) Len() int {
	return len(r.sources)
}

// List returns the active sources in insertion order.
func (r *Registry) List() []*Source {
	out := make([]*Source, len(r.sources))
	copy(out, r.sources)
	return out
}

func (r *Registry) removeAt(i int) {
	s := r.sources[i]
	if r.layer != nil {
		r.layer.RemoveMarker(s.ID)
	}
	r.sources = append(r.sources[:i], r.sources[i+1:]...)
}

func (r *Registry) newKey() string {
	for {
		buf := make([]byte, KeyLen)
		for i := range buf {
			buf[i] = keyAlphabet[r.rng.Intn(len(keyAlphabet))]
		}
		key := string(buf)
		if !r.hasKey(key) {
			return key
		}
	}
}

func (r *Registry) hasKey(key string) bool {
	for _, s := range r.sources {
		if s.ID == key {
			return true
		}
	}
	return false
}
