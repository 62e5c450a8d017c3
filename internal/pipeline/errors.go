package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"videoflix.systems/videoflix/pkg/ffmpeg"
)

// ErrSourceMissing is returned when the source file named by a job no longer
// exists. Nothing is written in that case.
var ErrSourceMissing = errors.New("pipeline: source file missing")

// Stage names reported in TranscodeFailure.Stage.
const (
	StageMasterPlaylist = "master-playlist"
	StageThumbnail      = "thumbnail"
)

// RenditionStage names the stage that encodes one rendition.
func RenditionStage(label string) string {
	return "rendition:" + label
}

// TranscodeFailure reports which stage of a conversion failed along with the
// command line and diagnostic output of the failing invocation.
type TranscodeFailure struct {
	VideoID int64
	Stage   string
	Command string
	Stderr  string
	Err     error
}

func (f *TranscodeFailure) Error() string {
	return fmt.Sprintf("convert video %d: %s: %v", f.VideoID, f.Stage, f.Err)
}

func (f *TranscodeFailure) Unwrap() error {
	return f.Err
}

// Summary is a short description suitable for persisting on the job row.
func (f *TranscodeFailure) Summary() string {
	var b strings.Builder
	b.WriteString(f.Error())
	if tail := stderrTail(f.Stderr, 10); tail != "" {
		b.WriteString("\n")
		b.WriteString(tail)
	}
	return b.String()
}

func newFailure(videoID int64, stage string, err error) *TranscodeFailure {
	f := &TranscodeFailure{VideoID: videoID, Stage: stage, Err: err}
	var ffErr *ffmpeg.Error
	if errors.As(err, &ffErr) {
		f.Command = ffErr.Command()
		f.Stderr = ffErr.Stderr
	}
	return f
}

func stderrTail(stderr string, n int) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
