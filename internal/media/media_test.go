package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenditions_FixedOrder(t *testing.T) {
	got := Renditions()
	require.Len(t, got, 3)
	assert.Equal(t, Rendition{Label: "480p", Width: 854, Height: 480, Bandwidth: 1_400_000}, got[0])
	assert.Equal(t, "720p", got[1].Label)
	assert.Equal(t, 1280, got[1].Width)
	assert.Equal(t, 720, got[1].Height)
	assert.Equal(t, "1080p", got[2].Label)
	assert.Equal(t, 1920, got[2].Width)
	assert.Equal(t, 1080, got[2].Height)

	// callers get a copy
	got[0].Label = "mutated"
	assert.Equal(t, "480p", Renditions()[0].Label)
}

func TestLookupRendition(t *testing.T) {
	r, ok := LookupRendition("720p")
	require.True(t, ok)
	assert.Equal(t, 1280, r.Width)

	_, ok = LookupRendition("360p")
	assert.False(t, ok)
}

func TestLayoutPaths(t *testing.T) {
	l := Layout{Root: "/srv/media"}

	assert.Equal(t, "/srv/media/videos/clip.mp4", l.SourcePath("videos/clip.mp4"))
	assert.Equal(t, "/srv/media/videos", l.VideoDir())
	assert.Equal(t, "videos/clip.mp4", SourceRef("clip.mp4"))
	assert.Equal(t, "/srv/media/hls/42", l.HLSRoot(42))
	assert.Equal(t, "/srv/media/hls/42/720p", l.RenditionDir(42, "720p"))
	assert.Equal(t, "/srv/media/hls/42/720p/index.m3u8", l.PlaylistPath(42, "720p"))
	assert.Equal(t, "/srv/media/hls/42/720p/%04d.ts", l.SegmentPattern(42, "720p"))
	assert.Equal(t, "/srv/media/hls/42/master.m3u8", l.MasterPlaylistPath(42))
	assert.Equal(t, "/srv/media/thumbnails", l.ThumbnailDir())
	assert.Equal(t, "/srv/media/thumbnails/42.jpg", l.ThumbnailPath(42))
}

func TestThumbnailURL(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:8000/media/thumbnails/7.jpg", ThumbnailURL("http://127.0.0.1:8000/media", 7))
	assert.Equal(t, "https://cdn.example.com/thumbnails/7.jpg", ThumbnailURL("https://cdn.example.com/", 7))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLibrary_Playlist(t *testing.T) {
	root := t.TempDir()
	layout := Layout{Root: root}
	lib := NewLibrary(layout)

	_, err := lib.Playlist(1, "480p")
	assert.ErrorIs(t, err, ErrNotFound)

	writeFile(t, layout.PlaylistPath(1, "480p"), "#EXTM3U\n")

	asset, err := lib.Playlist(1, "480p")
	require.NoError(t, err)
	assert.Equal(t, layout.PlaylistPath(1, "480p"), asset.Path)
	assert.Equal(t, ContentTypePlaylist, asset.ContentType)
	assert.Equal(t, int64(8), asset.Size)

	data, err := os.ReadFile(asset.Path)
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n", string(data))
}

func TestLibrary_Segment(t *testing.T) {
	root := t.TempDir()
	layout := Layout{Root: root}
	lib := NewLibrary(layout)
	segPath := filepath.Join(layout.RenditionDir(3, "1080p"), "0002.ts")
	writeFile(t, segPath, "segment-bytes")

	asset, err := lib.Segment(3, "1080p", "0002.ts")
	require.NoError(t, err)
	assert.Equal(t, segPath, asset.Path)
	assert.Equal(t, ContentTypeSegment, asset.ContentType)

	_, err = lib.Segment(3, "1080p", "0003.ts")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLibrary_RejectsInvalidAndEscapingNames(t *testing.T) {
	root := t.TempDir()
	layout := Layout{Root: root}
	lib := NewLibrary(layout)

	writeFile(t, filepath.Join(root, "secret.ts"), "x")
	writeFile(t, layout.PlaylistPath(1, "480p"), "#EXTM3U\n")
	require.NoError(t, os.MkdirAll(filepath.Join(layout.RenditionDir(1, "480p"), "0001.ts"), 0o755))

	cases := []struct {
		name string
		call func() (Asset, error)
	}{
		{"zero id", func() (Asset, error) { return lib.Playlist(0, "480p") }},
		{"negative id", func() (Asset, error) { return lib.Playlist(-1, "480p") }},
		{"traversal resolution", func() (Asset, error) { return lib.Playlist(1, "../../..") }},
		{"resolution without p", func() (Asset, error) { return lib.Playlist(1, "480") }},
		{"resolution too long", func() (Asset, error) { return lib.Playlist(1, "48000p") }},
		{"traversal segment", func() (Asset, error) { return lib.Segment(1, "480p", "../../../secret.ts") }},
		{"segment three digits", func() (Asset, error) { return lib.Segment(1, "480p", "001.ts") }},
		{"segment wrong ext", func() (Asset, error) { return lib.Segment(1, "480p", "0001.mp4") }},
		{"segment is a directory", func() (Asset, error) { return lib.Segment(1, "480p", "0001.ts") }},
		{"thumbnail traversal", func() (Asset, error) { return lib.Thumbnail("../secret.ts") }},
		{"thumbnail zero", func() (Asset, error) { return lib.Thumbnail("0.jpg") }},
		{"master missing", func() (Asset, error) { return lib.Master(1) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.call()
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestLibrary_MasterAndThumbnail(t *testing.T) {
	root := t.TempDir()
	layout := Layout{Root: root}
	lib := NewLibrary(layout)

	writeFile(t, layout.MasterPlaylistPath(9), "#EXTM3U\n")
	writeFile(t, layout.ThumbnailPath(9), "jpeg")

	m, err := lib.Master(9)
	require.NoError(t, err)
	assert.Equal(t, ContentTypePlaylist, m.ContentType)

	th, err := lib.Thumbnail("9.jpg")
	require.NoError(t, err)
	assert.Equal(t, layout.ThumbnailPath(9), th.Path)
	assert.Equal(t, ContentTypeJPEG, th.ContentType)
}
