package ffmpeg

import "time"

// DefaultThumbnailOffset is where the thumbnail frame is taken from.
const DefaultThumbnailOffset = time.Second

// Thumbnail builds the command that grabs a single frame at offset into a
// JPEG at output.
func Thumbnail(input, output string, offset time.Duration) *Command {
	if offset < 0 {
		offset = 0
	}
	return NewCommand(input, output,
		Seek(offset),
		Frames(1),
	)
}
