package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MediaType identifies what kind of sound source an alarm plays
type MediaType int

const (
	MediaNone      MediaType = iota // Silent, cues only
	MediaFile                       // A single audio file
	MediaDirectory                  // Every audio file in a directory, as a playlist
	MediaRingtone                   // A system ringtone path
	MediaStreaming                  // A streaming service reference resolved by the player
)

var mediaTypeNames = map[MediaType]string{
	MediaNone:      "none",
	MediaFile:      "file",
	MediaDirectory: "directory",
	MediaRingtone:  "ringtone",
	MediaStreaming: "streaming",
}

func (t MediaType) String() string {
	if name, ok := mediaTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("MediaType(%d)", int(t))
}

// ParseMediaType converts a name produced by MediaType.String back into a MediaType
func ParseMediaType(name string) (MediaType, error) {
	for t, n := range mediaTypeNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return t, nil
		}
	}
	return MediaNone, fmt.Errorf("unknown media type %q", name)
}

// MediaRef points at the sound an alarm plays while ringing
type MediaRef struct {
	Path    string    `json:"path"`
	Type    MediaType `json:"type"`
	Repeat  bool      `json:"repeat"`  // loop the playlist or restart the single track
	Shuffle bool      `json:"shuffle"` // directory playlists only
}

// DefaultRingtone is the path of the built-in tone
const DefaultRingtone = "default"

// DefaultMedia loops the built-in tone
func DefaultMedia() MediaRef {
	return MediaRef{Path: DefaultRingtone, Type: MediaRingtone, Repeat: true}
}

// HasMedia reports whether there is anything to play
func (m MediaRef) HasMedia() bool {
	return m.Type != MediaNone && m.Path != ""
}

// Alarm is a configured wake-up time together with how it should ring
type Alarm struct {
	ID      int64  // Stable across edits
	Name    string // Label shown by the host
	Enabled bool

	Hour   int    // 0-23
	Minute int    // 0-59
	Days   DaySet // Empty means one-time
	Repeat bool   // Only meaningful when Days is non-empty

	Volume              int // 0-100, percentage of the device maximum
	Vibrate             bool
	Media               MediaRef
	TTS                 bool
	TTSFrequencySeconds int // 0 = speak once
	GradualVolume       bool
	RestrictVolume      bool

	RequireToken bool
	TokenID      string // Empty = any token accepted

	SnoozeCount      int
	Active           bool
	EarlyDismissedAt *time.Time    // Occurrence the user cancelled ahead of time
	ActiveDuration   time.Duration // Ringing time carried across snoozes
}

var (
	ErrInvalidHour   = errors.New("hour must be between 0 and 23")
	ErrInvalidMinute = errors.New("minute must be between 0 and 59")
	ErrInvalidVolume = errors.New("volume must be between 0 and 100")
	ErrInvalidTTS    = errors.New("speech frequency must not be negative")
)

// Validate checks the configured ranges of an alarm
func (a Alarm) Validate() error {
	var errs []error
	if a.Hour < 0 || a.Hour > 23 {
		errs = append(errs, ErrInvalidHour)
	}
	if a.Minute < 0 || a.Minute > 59 {
		errs = append(errs, ErrInvalidMinute)
	}
	if a.Volume < 0 || a.Volume > 100 {
		errs = append(errs, ErrInvalidVolume)
	}
	if a.TTSFrequencySeconds < 0 {
		errs = append(errs, ErrInvalidTTS)
	}
	return errors.Join(errs...)
}

// OneTime reports whether the alarm rings once rather than on a set of weekdays
func (a Alarm) OneTime() bool {
	return a.Days.Empty()
}

// TimeString formats the alarm's wall-clock time
func (a Alarm) TimeString() string {
	return fmt.Sprintf("%02d:%02d", a.Hour, a.Minute)
}

// Occurrence is a concrete instant at which an alarm is due. It is always
// derived from the alarm configuration and never stored.
type Occurrence struct {
	AlarmID int64
	At      time.Time
}

// IsZero reports whether the occurrence is unset
func (o Occurrence) IsZero() bool {
	return o.At.IsZero()
}
