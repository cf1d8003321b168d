package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/borgmon/alarm-clock/pkg/models"
	"gopkg.in/yaml.v3"
)

// alarmFile is the YAML layout accepted by Import
//
//	alarms:
//	  - name: Work
//	    time: "06:45"
//	    days: weekdays
//	    repeat: true
//	    volume: 70
//	    gradual_volume: true
//	    media: {path: /music/morning, type: directory, repeat: true}
type alarmFile struct {
	Alarms []alarmDefinition `yaml:"alarms"`
}

type alarmDefinition struct {
	Name           string           `yaml:"name"`
	Time           string           `yaml:"time"`
	Days           string           `yaml:"days"`
	Repeat         bool             `yaml:"repeat"`
	Enabled        *bool            `yaml:"enabled"`
	Volume         *int             `yaml:"volume"`
	Vibrate        bool             `yaml:"vibrate"`
	Media          *mediaDefinition `yaml:"media"`
	TTS            bool             `yaml:"tts"`
	TTSFrequency   int              `yaml:"tts_frequency"`
	GradualVolume  bool             `yaml:"gradual_volume"`
	RestrictVolume bool             `yaml:"restrict_volume"`
	RequireToken   bool             `yaml:"require_token"`
	TokenID        string           `yaml:"token_id"`
}

type mediaDefinition struct {
	Path    string `yaml:"path"`
	Type    string `yaml:"type"`
	Repeat  bool   `yaml:"repeat"`
	Shuffle bool   `yaml:"shuffle"`
}

const defaultVolume = 80

// ParseDefinitions reads alarm definitions from YAML without storing them
func ParseDefinitions(r io.Reader) ([]models.Alarm, error) {
	var file alarmFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode alarm definitions: %w", err)
	}

	alarms := make([]models.Alarm, 0, len(file.Alarms))
	for i, def := range file.Alarms {
		alarm, err := def.toModel()
		if err != nil {
			return nil, fmt.Errorf("alarm %d (%s): %w", i+1, def.Name, err)
		}
		alarms = append(alarms, alarm)
	}
	return alarms, nil
}

func (d alarmDefinition) toModel() (models.Alarm, error) {
	at, err := time.Parse("15:04", d.Time)
	if err != nil {
		return models.Alarm{}, fmt.Errorf("invalid time %q, expected HH:MM", d.Time)
	}

	days, err := models.ParseDaySet(d.Days)
	if err != nil {
		return models.Alarm{}, err
	}

	alarm := models.Alarm{
		Name:                d.Name,
		Enabled:             true,
		Hour:                at.Hour(),
		Minute:              at.Minute(),
		Days:                days,
		Repeat:              d.Repeat,
		Volume:              defaultVolume,
		Vibrate:             d.Vibrate,
		TTS:                 d.TTS,
		TTSFrequencySeconds: d.TTSFrequency,
		GradualVolume:       d.GradualVolume,
		RestrictVolume:      d.RestrictVolume,
		RequireToken:        d.RequireToken,
		TokenID:             d.TokenID,
		Media:               models.DefaultMedia(),
	}
	if d.Enabled != nil {
		alarm.Enabled = *d.Enabled
	}
	if d.Volume != nil {
		alarm.Volume = *d.Volume
	}

	if d.Media != nil {
		mediaType := models.MediaFile
		if d.Media.Type != "" {
			if mediaType, err = models.ParseMediaType(d.Media.Type); err != nil {
				return models.Alarm{}, err
			}
		}
		alarm.Media = models.MediaRef{
			Path:    d.Media.Path,
			Type:    mediaType,
			Repeat:  d.Media.Repeat,
			Shuffle: d.Media.Shuffle,
		}
	}

	return alarm, alarm.Validate()
}

// Import stores every alarm defined in r as a new alarm. Nothing is stored
// when any definition is invalid.
func (s *AlarmStore) Import(ctx context.Context, r io.Reader) ([]models.Alarm, error) {
	alarms, err := ParseDefinitions(r)
	if err != nil {
		return nil, err
	}

	for i := range alarms {
		if err := s.Save(ctx, &alarms[i]); err != nil {
			return alarms[:i], err
		}
	}

	s.logger.Info().Int("count", len(alarms)).Msg("imported alarms")
	return alarms, nil
}
