package media

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Content types of served assets.
const (
	ContentTypePlaylist = "application/vnd.apple.mpegurl"
	ContentTypeSegment  = "video/MP2T"
	ContentTypeJPEG     = "image/jpeg"
)

// ErrNotFound is returned for missing files and for requests that do not
// name a valid asset. Callers must not distinguish the two.
var ErrNotFound = errors.New("media: not found")

var (
	reResolution = regexp.MustCompile(`^[0-9]{3,4}p$`)
	reSegment    = regexp.MustCompile(`^[0-9]{4}\.ts$`)
	reThumbnail  = regexp.MustCompile(`^[0-9]{1,19}\.jpg$`)
)

// Asset is a resolved file ready to be served.
type Asset struct {
	Path        string
	ContentType string
	Size        int64
}

// Library resolves streaming requests to files under a Layout.
type Library struct {
	layout Layout
}

func NewLibrary(layout Layout) *Library {
	return &Library{layout: layout}
}

// Playlist resolves the media playlist of one rendition.
func (l *Library) Playlist(videoID int64, resolution string) (Asset, error) {
	if videoID <= 0 || !reResolution.MatchString(resolution) {
		return Asset{}, ErrNotFound
	}
	dir := l.layout.RenditionDir(videoID, resolution)
	return l.resolve(dir, PlaylistName, ContentTypePlaylist)
}

// Segment resolves one transport stream segment, e.g. "0003.ts".
func (l *Library) Segment(videoID int64, resolution, segment string) (Asset, error) {
	if videoID <= 0 || !reResolution.MatchString(resolution) || !reSegment.MatchString(segment) {
		return Asset{}, ErrNotFound
	}
	dir := l.layout.RenditionDir(videoID, resolution)
	return l.resolve(dir, segment, ContentTypeSegment)
}

// Master resolves the multi-variant playlist.
func (l *Library) Master(videoID int64) (Asset, error) {
	if videoID <= 0 {
		return Asset{}, ErrNotFound
	}
	return l.resolve(l.layout.HLSRoot(videoID), MasterPlaylistName, ContentTypePlaylist)
}

// Thumbnail resolves a thumbnail by file name ("<id>.jpg").
func (l *Library) Thumbnail(name string) (Asset, error) {
	if !reThumbnail.MatchString(name) {
		return Asset{}, ErrNotFound
	}
	id, err := strconv.ParseInt(strings.TrimSuffix(name, ThumbnailExt), 10, 64)
	if err != nil || id <= 0 {
		return Asset{}, ErrNotFound
	}
	return l.resolve(l.layout.ThumbnailDir(), name, ContentTypeJPEG)
}

// resolve joins name under dir and checks that the cleaned result is still
// inside dir and is a regular file.
func (l *Library) resolve(dir, name, contentType string) (Asset, error) {
	dir = filepath.Clean(dir)
	full := filepath.Clean(filepath.Join(dir, name))
	if !strings.HasPrefix(full, dir+string(filepath.Separator)) {
		return Asset{}, ErrNotFound
	}

	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		return Asset{}, ErrNotFound
	}
	return Asset{Path: full, ContentType: contentType, Size: info.Size()}, nil
}
