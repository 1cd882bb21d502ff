package entities

import (
	"time"

	"order-dispatch/pkg/constants"
)

// AlertSettings - настройки звука одной панели.
type AlertSettings struct {
	Panel              constants.Panel `json:"panel"`
	Enabled            bool            `json:"enabled"`
	SoundID            string          `json:"sound_id"`
	Volume             float64         `json:"volume"`
	MinIntervalSeconds int             `json:"min_interval_seconds"`

	// Только для кухни
	RepeatEnabled            bool `json:"repeat_enabled"`
	RepeatIntervalSeconds    int  `json:"repeat_interval_seconds"`
	MaxRepeatDurationSeconds int  `json:"max_repeat_duration_seconds"`

	UpdatedAt time.Time `json:"updated_at"`
}

func (s AlertSettings) MinInterval() time.Duration {
	return time.Duration(s.MinIntervalSeconds) * time.Second
}

func (s AlertSettings) RepeatInterval() time.Duration {
	return time.Duration(s.RepeatIntervalSeconds) * time.Second
}

func (s AlertSettings) MaxRepeatDuration() time.Duration {
	return time.Duration(s.MaxRepeatDurationSeconds) * time.Second
}

// AlertSettingsPatch - частичное обновление; nil означает «не менять».
type AlertSettingsPatch struct {
	Enabled                  *bool
	SoundID                  *string
	Volume                   *float64
	MinIntervalSeconds       *int
	RepeatEnabled            *bool
	RepeatIntervalSeconds    *int
	MaxRepeatDurationSeconds *int
}

// Apply возвращает настройки с применённым патчем.
func (p AlertSettingsPatch) Apply(s AlertSettings) AlertSettings {
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	if p.SoundID != nil {
		s.SoundID = *p.SoundID
	}
	if p.Volume != nil {
		s.Volume = *p.Volume
	}
	if p.MinIntervalSeconds != nil {
		s.MinIntervalSeconds = *p.MinIntervalSeconds
	}
	if s.Panel == constants.PanelKitchen {
		if p.RepeatEnabled != nil {
			s.RepeatEnabled = *p.RepeatEnabled
		}
		if p.RepeatIntervalSeconds != nil {
			s.RepeatIntervalSeconds = *p.RepeatIntervalSeconds
		}
		if p.MaxRepeatDurationSeconds != nil {
			s.MaxRepeatDurationSeconds = *p.MaxRepeatDurationSeconds
		}
	}
	return s
}

// DefaultAlertSettings - значения для панели без сохранённых настроек.
func DefaultAlertSettings(panel constants.Panel) AlertSettings {
	s := AlertSettings{
		Panel:              panel,
		Enabled:            true,
		SoundID:            "bell",
		Volume:             0.8,
		MinIntervalSeconds: 3,
	}
	if panel == constants.PanelKitchen {
		s.RepeatEnabled = true
		s.RepeatIntervalSeconds = 30
		s.MaxRepeatDurationSeconds = 300
	}
	return s
}
