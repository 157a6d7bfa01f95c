package lazy

// IsNearEnd decides whether more items should be loaded: it returns true when the distance between
// the visible end of the window and the end of the rendered content is at most threshold.
// The distance and the threshold can use any unit (rows, pixels) as long as it is the same.
func IsNearEnd(distanceToEnd, threshold float64) bool {
	return distanceToEnd <= threshold
}

// ScrollMetrics describes the position of a viewport over rendered content.
type ScrollMetrics struct {
	Offset   float64 //position of the top of the viewport
	Viewport float64 //height of the viewport
	Content  float64 //height of the content
}

// DistanceToEnd returns the distance between the bottom of the viewport and the end of the content,
// it is zero when the content is fully scrolled or shorter than the viewport.
func (m ScrollMetrics) DistanceToEnd() float64 {
	return max(m.Content-(m.Offset+m.Viewport), 0)
}
