package ffmpeg

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// DefaultSegmentSeconds is the target HLS segment length.
const DefaultSegmentSeconds = 4

// HLSVOD configures the hls muxer for an on-demand playlist: fixed segment
// length, every segment kept in the playlist, segments named by pattern
// (e.g. "<dir>/%04d.ts").
func HLSVOD(segmentSeconds int, segmentPattern string) Option {
	if segmentSeconds <= 0 {
		segmentSeconds = DefaultSegmentSeconds
	}
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput,
			"-f", "hls",
			"-hls_time", strconv.Itoa(segmentSeconds),
			"-hls_list_size", "0",
			"-hls_segment_filename", segmentPattern,
		)
	})
}

// HLSRendition builds the command that encodes input into one scaled HLS
// rendition (h264/aac) written to playlist.
func HLSRendition(input, playlist, segmentPattern string, width, height, segmentSeconds int) *Command {
	return NewCommand(input, playlist,
		Scale(width, height),
		VideoCodec("h264"),
		AudioCodec("aac"),
		HLSVOD(segmentSeconds, segmentPattern),
	)
}

// VideoVariant describes one video quality variant in the HLS master playlist.
type VideoVariant struct {
	Width        int    // video width in pixels
	Height       int    // video height in pixels
	Bandwidth    int    // bits per second
	Name         string // optional NAME attribute (e.g. "720p")
	PlaylistFile string // relative path from master.m3u8 (e.g. "720p/index.m3u8")
}

// MasterPlaylist renders a master playlist with variants sorted highest
// bandwidth first. The input slice is not modified.
func MasterPlaylist(variants []VideoVariant) string {
	sorted := append([]VideoVariant(nil), variants...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Bandwidth > sorted[j].Bandwidth
	})

	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n")
	for _, v := range sorted {
		attrs := fmt.Sprintf("BANDWIDTH=%d", v.Bandwidth)
		if v.Width > 0 && v.Height > 0 {
			attrs += fmt.Sprintf(",RESOLUTION=%dx%d", v.Width, v.Height)
		}
		if v.Name != "" {
			attrs += fmt.Sprintf(",NAME=%q", v.Name)
		}
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:%s\n%s\n", attrs, v.PlaylistFile)
	}
	return b.String()
}

// WriteMasterPlaylist writes MasterPlaylist(variants) to path, replacing any
// previous file.
func WriteMasterPlaylist(path string, variants []VideoVariant) error {
	if len(variants) == 0 {
		return fmt.Errorf("hls: master playlist needs at least one variant")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(MasterPlaylist(variants)), 0o644); err != nil {
		return fmt.Errorf("hls: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("hls: rename %s: %w", path, err)
	}
	return nil
}
