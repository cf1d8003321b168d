package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/borgmon/alarm-clock/pkg/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var ErrAlarmNotFound = errors.New("alarm not found")

// alarmRecord is the row an alarm is persisted as
type alarmRecord struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	UpdatedAt time.Time

	Name    string
	Enabled bool
	Hour    int
	Minute  int
	Days    uint8
	Repeat  bool

	Volume         int
	Vibrate        bool
	MediaPath      string
	MediaType      string
	MediaRepeat    bool
	MediaShuffle   bool
	TTS            bool
	TTSFrequency   int
	GradualVolume  bool
	RestrictVolume bool

	RequireToken bool
	TokenID      string

	SnoozeCount      int
	Active           bool
	EarlyDismissedAt *time.Time
	ActiveDurationMs int64
}

func (alarmRecord) TableName() string {
	return "alarms"
}

func toRecord(a models.Alarm) alarmRecord {
	return alarmRecord{
		ID:               a.ID,
		Name:             a.Name,
		Enabled:          a.Enabled,
		Hour:             a.Hour,
		Minute:           a.Minute,
		Days:             uint8(a.Days),
		Repeat:           a.Repeat,
		Volume:           a.Volume,
		Vibrate:          a.Vibrate,
		MediaPath:        a.Media.Path,
		MediaType:        a.Media.Type.String(),
		MediaRepeat:      a.Media.Repeat,
		MediaShuffle:     a.Media.Shuffle,
		TTS:              a.TTS,
		TTSFrequency:     a.TTSFrequencySeconds,
		GradualVolume:    a.GradualVolume,
		RestrictVolume:   a.RestrictVolume,
		RequireToken:     a.RequireToken,
		TokenID:          a.TokenID,
		SnoozeCount:      a.SnoozeCount,
		Active:           a.Active,
		EarlyDismissedAt: a.EarlyDismissedAt,
		ActiveDurationMs: a.ActiveDuration.Milliseconds(),
	}
}

func (r alarmRecord) toModel() models.Alarm {
	mediaType, err := models.ParseMediaType(r.MediaType)
	if err != nil {
		mediaType = models.MediaNone
	}

	return models.Alarm{
		ID:      r.ID,
		Name:    r.Name,
		Enabled: r.Enabled,
		Hour:    r.Hour,
		Minute:  r.Minute,
		Days:    models.DaySet(r.Days),
		Repeat:  r.Repeat,
		Volume:  r.Volume,
		Vibrate: r.Vibrate,
		Media: models.MediaRef{
			Path:    r.MediaPath,
			Type:    mediaType,
			Repeat:  r.MediaRepeat,
			Shuffle: r.MediaShuffle,
		},
		TTS:                 r.TTS,
		TTSFrequencySeconds: r.TTSFrequency,
		GradualVolume:       r.GradualVolume,
		RestrictVolume:      r.RestrictVolume,
		RequireToken:        r.RequireToken,
		TokenID:             r.TokenID,
		SnoozeCount:         r.SnoozeCount,
		Active:              r.Active,
		EarlyDismissedAt:    r.EarlyDismissedAt,
		ActiveDuration:      time.Duration(r.ActiveDurationMs) * time.Millisecond,
	}
}

// AlarmStore keeps alarm definitions in a sql database
type AlarmStore struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewAlarmStore connects and migrates the schema
func NewAlarmStore(connect ConnectorFunc, logger zerolog.Logger) (*AlarmStore, error) {
	db, err := connect()
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&alarmRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate alarms: %w", err)
	}

	return &AlarmStore{db: db, logger: logger}, nil
}

// Load returns every alarm ordered by id
func (s *AlarmStore) Load(ctx context.Context) ([]models.Alarm, error) {
	var records []alarmRecord

	if err := s.db.WithContext(ctx).Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load alarms: %w", err)
	}

	alarms := make([]models.Alarm, 0, len(records))
	for _, r := range records {
		alarms = append(alarms, r.toModel())
	}
	return alarms, nil
}

func (s *AlarmStore) Get(ctx context.Context, id int64) (models.Alarm, error) {
	var r alarmRecord

	err := s.db.WithContext(ctx).First(&r, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Alarm{}, ErrAlarmNotFound
		}
		return models.Alarm{}, err
	}
	return r.toModel(), nil
}

// Save inserts the alarm when its id is zero, assigning a new id, and
// overwrites the stored row otherwise
func (s *AlarmStore) Save(ctx context.Context, alarm *models.Alarm) error {
	if err := alarm.Validate(); err != nil {
		return fmt.Errorf("invalid alarm: %w", err)
	}

	r := toRecord(*alarm)
	if err := s.db.WithContext(ctx).Save(&r).Error; err != nil {
		return fmt.Errorf("failed to save alarm %d: %w", alarm.ID, err)
	}

	alarm.ID = r.ID
	s.logger.Debug().Int64("alarm_id", r.ID).Msg("alarm saved")
	return nil
}

func (s *AlarmStore) Delete(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Delete(&alarmRecord{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete alarm %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlarmNotFound
	}

	s.logger.Debug().Int64("alarm_id", id).Msg("alarm deleted")
	return nil
}

func (s *AlarmStore) Close() error {
	sqldb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqldb.Close()
}
