// Package media describes the on-disk media layout shared by the upload
// handler, the conversion pipeline and the streaming endpoints.
package media

// Rendition labels.
const (
	Res480p  = "480p"
	Res720p  = "720p"
	Res1080p = "1080p"
)

// Rendition is one HLS quality level produced for every video.
type Rendition struct {
	Label     string // directory name and URL segment, e.g. "720p"
	Width     int
	Height    int
	Bandwidth int // nominal bits per second advertised in master.m3u8
}

var renditions = [...]Rendition{
	{Label: Res480p, Width: 854, Height: 480, Bandwidth: 1_400_000},
	{Label: Res720p, Width: 1280, Height: 720, Bandwidth: 2_800_000},
	{Label: Res1080p, Width: 1920, Height: 1080, Bandwidth: 5_000_000},
}

// Renditions returns the fixed rendition set in processing order.
func Renditions() []Rendition {
	out := make([]Rendition, len(renditions))
	copy(out, renditions[:])
	return out
}

// LookupRendition returns the rendition with the given label.
func LookupRendition(label string) (Rendition, bool) {
	for _, r := range renditions {
		if r.Label == label {
			return r, true
		}
	}
	return Rendition{}, false
}
