package audio

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/pion/webrtc/v3/pkg/media/oggreader"
)

// Opus granule positions always count 48kHz samples, whatever the input rate.
const opusGranuleRate = 48000

// ErrNotOgg is returned when the data is not an Ogg/Opus stream.
var ErrNotOgg = errors.New("audio is not an ogg/opus stream")

// Info describes a voice message container.
type Info struct {
	SampleRate int
	Channels   int
	Duration   time.Duration
}

// Inspect reads the Ogg/Opus headers and page granules. The audio itself is never decoded.
func Inspect(data []byte) (Info, error) {
	reader, header, err := oggreader.NewWith(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrNotOgg, err)
	}

	info := Info{
		SampleRate: int(header.SampleRate),
		Channels:   int(header.Channels),
	}

	var lastGranule uint64
	for {
		_, page, err := reader.ParseNextPage()
		if err != nil {
			// io.EOF, or a truncated tail that still leaves a usable estimate.
			break
		}
		if page.GranulePosition > lastGranule {
			lastGranule = page.GranulePosition
		}
	}

	preSkip := uint64(header.PreSkip)
	if lastGranule > preSkip {
		samples := lastGranule - preSkip
		info.Duration = time.Duration(samples) * time.Second / opusGranuleRate
	}
	return info, nil
}
