// Package audio holds synthesized and recorded audio payloads and probes their metadata.
package audio

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/hajimehoshi/go-mp3"
)

// bytesPerFrame is the decoder output size of one sample frame: 16-bit stereo.
const bytesPerFrame = 4

// ErrUnknownDuration is returned when a payload's length cannot be determined.
var ErrUnknownDuration = errors.New("unknown audio duration")

// MP3Duration decodes an MP3 payload's header stream and returns its length in seconds.
func MP3Duration(data []byte) (float64, error) {
	if len(data) == 0 {
		return 0, ErrUnknownDuration
	}

	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("decode mp3: %w", err)
	}

	n := dec.Length()
	rate := dec.SampleRate()
	if n <= 0 || rate <= 0 {
		return 0, ErrUnknownDuration
	}
	return float64(n) / float64(rate*bytesPerFrame), nil
}
