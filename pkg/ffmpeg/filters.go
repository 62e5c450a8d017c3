package ffmpeg

import "fmt"

// ScaleFilter represents a scale filter.
type ScaleFilter struct {
	Width, Height int
}

// String returns the ffmpeg filter string.
func (s ScaleFilter) String() string {
	return fmt.Sprintf("scale=%d:%d", s.Width, s.Height)
}

// Scale adds a scale filter. -2 for either side keeps the aspect ratio with
// an even dimension.
func Scale(width, height int) Option {
	return Filter(ScaleFilter{Width: width, Height: height}.String())
}
