package session

import "github.com/paulmach/orb"

// Renderer draws transient previews. All points are geographic [lng, lat]
// except HighlightSegment, which receives the segment's projected endpoints
// as stored in the index.
type Renderer interface {
	ShowMarker(p orb.Point)
	HighlightSegment(a, b orb.Point)
	ShowPendingStart(p orb.Point)
	ClearPreview()
}

// NopRenderer draws nothing.
type NopRenderer struct{}

func (NopRenderer) ShowMarker(orb.Point)            {}
func (NopRenderer) HighlightSegment(_, _ orb.Point) {}
func (NopRenderer) ShowPendingStart(orb.Point)      {}
func (NopRenderer) ClearPreview()                   {}

var _ Renderer = NopRenderer{}
