// Package audio inspects uploaded clips.
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// AcceptedExtension is the only container accepted for uploads.
const AcceptedExtension = ".mp3"

var ErrUnknownLength = errors.New("mp3 stream length unknown")

// HasAcceptedExtension reports whether filename ends in .mp3, ignoring case.
func HasAcceptedExtension(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), AcceptedExtension)
}

// ProbeMP3 decodes the stream header of the file at path and returns the clip duration.
func ProbeMP3(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open clip: %w", err)
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return 0, fmt.Errorf("decode mp3: %w", err)
	}

	// Length is in bytes of 16-bit stereo PCM.
	length := dec.Length()
	if length <= 0 || dec.SampleRate() <= 0 {
		return 0, ErrUnknownLength
	}
	samples := length / 4
	return time.Duration(samples) * time.Second / time.Duration(dec.SampleRate()), nil
}
