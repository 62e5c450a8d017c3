package media

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Directory and file names under the media root.
const (
	VideosDir          = "videos"
	HLSDir             = "hls"
	ThumbnailsDir      = "thumbnails"
	PlaylistName       = "index.m3u8"
	MasterPlaylistName = "master.m3u8"
	SegmentPattern     = "%04d.ts"
	ThumbnailExt       = ".jpg"
)

// Layout resolves every path of the media tree relative to Root:
//
//	<root>/videos/<file>
//	<root>/hls/<id>/master.m3u8
//	<root>/hls/<id>/<res>/index.m3u8
//	<root>/hls/<id>/<res>/0000.ts ...
//	<root>/thumbnails/<id>.jpg
type Layout struct {
	Root string
}

// SourcePath resolves a stored source reference such as "videos/clip.mp4".
func (l Layout) SourcePath(rel string) string {
	return filepath.Join(l.Root, filepath.FromSlash(rel))
}

// VideoDir is where uploaded source files are stored.
func (l Layout) VideoDir() string {
	return filepath.Join(l.Root, VideosDir)
}

// SourceRef returns the stored reference for an uploaded file name.
func SourceRef(fileName string) string {
	return VideosDir + "/" + fileName
}

// HLSRoot is the directory holding all renditions of a video.
func (l Layout) HLSRoot(videoID int64) string {
	return filepath.Join(l.Root, HLSDir, strconv.FormatInt(videoID, 10))
}

// RenditionDir is the directory of one rendition.
func (l Layout) RenditionDir(videoID int64, res string) string {
	return filepath.Join(l.HLSRoot(videoID), res)
}

// PlaylistPath is the media playlist of one rendition.
func (l Layout) PlaylistPath(videoID int64, res string) string {
	return filepath.Join(l.RenditionDir(videoID, res), PlaylistName)
}

// SegmentPattern is the ffmpeg segment filename template of one rendition.
func (l Layout) SegmentPattern(videoID int64, res string) string {
	return filepath.Join(l.RenditionDir(videoID, res), SegmentPattern)
}

// MasterPlaylistPath is the multi-variant playlist of a video.
func (l Layout) MasterPlaylistPath(videoID int64) string {
	return filepath.Join(l.HLSRoot(videoID), MasterPlaylistName)
}

func (l Layout) ThumbnailDir() string {
	return filepath.Join(l.Root, ThumbnailsDir)
}

func (l Layout) ThumbnailPath(videoID int64) string {
	return filepath.Join(l.ThumbnailDir(), strconv.FormatInt(videoID, 10)+ThumbnailExt)
}

// ThumbnailURL builds the public URL stored on the catalog record.
func ThumbnailURL(baseURL string, videoID int64) string {
	return strings.TrimRight(baseURL, "/") + "/" + ThumbnailsDir + "/" + strconv.FormatInt(videoID, 10) + ThumbnailExt
}
