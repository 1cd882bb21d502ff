package dto

import (
	"order-dispatch/internal/entities"
)

// UpdateAlertSettingsDTO - частичное обновление; отсутствующее поле не меняется.
type UpdateAlertSettingsDTO struct {
	Enabled                  *bool    `json:"enabled,omitempty"`
	SoundID                  *string  `json:"sound_id,omitempty" validate:"omitempty,min=1,max=64"`
	Volume                   *float64 `json:"volume,omitempty" validate:"omitempty,gte=0,lte=1"`
	MinIntervalSeconds       *int     `json:"min_interval_seconds,omitempty" validate:"omitempty,gte=0,lte=3600"`
	RepeatEnabled            *bool    `json:"repeat_enabled,omitempty"`
	RepeatIntervalSeconds    *int     `json:"repeat_interval_seconds,omitempty" validate:"omitempty,gt=0,lte=3600"`
	MaxRepeatDurationSeconds *int     `json:"max_repeat_duration_seconds,omitempty" validate:"omitempty,gte=0,lte=86400"`
}

func (d UpdateAlertSettingsDTO) ToPatch() entities.AlertSettingsPatch {
	return entities.AlertSettingsPatch{
		Enabled:                  d.Enabled,
		SoundID:                  d.SoundID,
		Volume:                   d.Volume,
		MinIntervalSeconds:       d.MinIntervalSeconds,
		RepeatEnabled:            d.RepeatEnabled,
		RepeatIntervalSeconds:    d.RepeatIntervalSeconds,
		MaxRepeatDurationSeconds: d.MaxRepeatDurationSeconds,
	}
}

type FeedStatusDTO struct {
	Overall string            `json:"overall"`
	Feeds   map[string]string `json:"feeds"`
}
