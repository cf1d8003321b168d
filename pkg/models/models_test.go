package models

import (
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestParseDaySet(t *testing.T) {
	is := is.New(t)

	s, err := ParseDaySet("mon, Wednesday,fri")
	is.NoErr(err)
	is.Equal(NewDaySet(time.Monday, time.Wednesday, time.Friday), s)
	is.Equal("Mon,Wed,Fri", s.String())

	s, err = ParseDaySet("weekdays")
	is.NoErr(err)
	is.Equal(Weekdays, s)

	s, err = ParseDaySet("daily")
	is.NoErr(err)
	is.Equal(7, len(s.Days()))

	s, err = ParseDaySet("once")
	is.NoErr(err)
	is.True(s.Empty())
	is.Equal("once", s.String())

	_, err = ParseDaySet("mo")
	is.True(err != nil)

	_, err = ParseDaySet("funday")
	is.True(err != nil)
}

func TestDaySetRemove(t *testing.T) {
	is := is.New(t)

	s := NewDaySet(time.Tuesday)
	is.True(s.Has(time.Tuesday))
	is.True(!s.Has(time.Monday))

	s = s.Remove(time.Tuesday)
	is.True(s.Empty())
}

func TestAlarmValidate(t *testing.T) {
	is := is.New(t)

	is.NoErr(Alarm{Hour: 23, Minute: 59, Volume: 100}.Validate())

	err := Alarm{Hour: 24, Minute: -1, Volume: 101, TTSFrequencySeconds: -5}.Validate()
	is.True(errors.Is(err, ErrInvalidHour))
	is.True(errors.Is(err, ErrInvalidMinute))
	is.True(errors.Is(err, ErrInvalidVolume))
	is.True(errors.Is(err, ErrInvalidTTS))
}

func TestMediaType(t *testing.T) {
	is := is.New(t)

	mt, err := ParseMediaType("Directory")
	is.NoErr(err)
	is.Equal(MediaDirectory, mt)
	is.Equal("directory", mt.String())

	_, err = ParseMediaType("vinyl")
	is.True(err != nil)

	is.True(!MediaRef{Type: MediaFile}.HasMedia())
	is.True(MediaRef{Type: MediaFile, Path: "a.wav"}.HasMedia())
}

func TestDefaultConfigIsValid(t *testing.T) {
	is := is.New(t)

	cfg := DefaultConfig()
	is.NoErr(cfg.Validate())
	is.Equal(10*time.Minute, cfg.SnoozeDuration())
	is.Equal(15*time.Minute, cfg.AutoDismissAfter())

	cfg.SnoozeMinutes = 0
	is.True(cfg.Validate() != nil)
}
