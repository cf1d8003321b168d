package wakeup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/borgmon/alarm-clock/pkg/models"
	"github.com/samber/lo"
)

// PlaylistFunc turns a media reference into the tracks to play in order
type PlaylistFunc func(ref models.MediaRef) ([]string, error)

// audioExtensions are the formats audio.Output decodes
var audioExtensions = []string{".wav"}

// ResolveTracks plays single references as they are and expands a directory
// into its audio files, sorted by name or shuffled.
func ResolveTracks(ref models.MediaRef) ([]string, error) {
	if ref.Type != models.MediaDirectory {
		return []string{ref.Path}, nil
	}

	entries, err := os.ReadDir(ref.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist %s: %w", ref.Path, err)
	}

	tracks := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		if e.IsDir() || !lo.Contains(audioExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			return "", false
		}
		return filepath.Join(ref.Path, e.Name()), true
	})

	if ref.Shuffle {
		tracks = lo.Shuffle(tracks)
	}
	return tracks, nil
}
