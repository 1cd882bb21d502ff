package services

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"order-dispatch/internal/entities"
	"order-dispatch/internal/repositories"
	"order-dispatch/pkg/constants"
	apperrors "order-dispatch/pkg/errors"
)

type AlertSettingsServiceInterface interface {
	List(ctx context.Context) ([]entities.AlertSettings, error)
	Update(ctx context.Context, panel constants.Panel, patch entities.AlertSettingsPatch) (entities.AlertSettings, error)
	Current() []entities.AlertSettings
}

// AlertSettingsService держит последнюю известную версию настроек всех панелей.
// Обновление применяется локально до записи и откатывается, если хранилище отказало.
type AlertSettingsService struct {
	mu      sync.RWMutex
	current map[constants.Panel]entities.AlertSettings

	repo   repositories.AlertSettingsRepositoryInterface
	sounds SoundCatalogInterface
	logger *zap.Logger
}

func NewAlertSettingsService(
	repo repositories.AlertSettingsRepositoryInterface,
	sounds SoundCatalogInterface,
	logger *zap.Logger,
) AlertSettingsServiceInterface {
	current := make(map[constants.Panel]entities.AlertSettings, len(constants.AlertPanels))
	for _, p := range constants.AlertPanels {
		current[p] = entities.DefaultAlertSettings(p)
	}
	return &AlertSettingsService{
		current: current,
		repo:    repo,
		sounds:  sounds,
		logger:  logger,
	}
}

// List читает настройки из хранилища. Панели без записи получают значения по умолчанию.
func (s *AlertSettingsService) List(ctx context.Context) ([]entities.AlertSettings, error) {
	stored, err := s.repo.ListAlertSettings(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceError("list_alert_settings", err)
	}
	byPanel := make(map[constants.Panel]entities.AlertSettings, len(stored))
	for _, st := range stored {
		byPanel[st.Panel] = st
	}

	out := make([]entities.AlertSettings, 0, len(constants.AlertPanels))
	s.mu.Lock()
	for _, p := range constants.AlertPanels {
		st, ok := byPanel[p]
		if !ok {
			st = entities.DefaultAlertSettings(p)
		}
		s.current[p] = st
		out = append(out, st)
	}
	s.mu.Unlock()
	return out, nil
}

func (s *AlertSettingsService) Current() []entities.AlertSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.AlertSettings, 0, len(constants.AlertPanels))
	for _, p := range constants.AlertPanels {
		out = append(out, s.current[p])
	}
	return out
}

func (s *AlertSettingsService) Update(ctx context.Context, panel constants.Panel, patch entities.AlertSettingsPatch) (entities.AlertSettings, error) {
	if err := s.validate(panel, patch); err != nil {
		return entities.AlertSettings{}, err
	}

	var applied entities.AlertSettings
	return RunOptimistic(ctx, Optimistic[entities.AlertSettings, entities.AlertSettings]{
		Op: "update_alert_settings",
		Apply: func() (entities.AlertSettings, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			before := s.current[panel]
			applied = patch.Apply(before)
			s.current[panel] = applied
			return before, nil
		},
		Persist: func(ctx context.Context) (entities.AlertSettings, error) {
			return s.repo.UpdateAlertSettings(ctx, panel, patch)
		},
		Rollback: func(before entities.AlertSettings) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.current[panel] == applied {
				s.current[panel] = before
			}
			s.logger.Warn("обновление настроек звука откачено", zap.String("panel", panel.String()))
		},
		Commit: func(saved entities.AlertSettings) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.current[panel] = saved
		},
	})
}

func (s *AlertSettingsService) validate(panel constants.Panel, patch entities.AlertSettingsPatch) error {
	if !panel.HasAlerts() {
		return apperrors.NewInvalidInputError("панель %q не воспроизводит звуки", panel)
	}
	if patch.Volume != nil && (*patch.Volume < 0 || *patch.Volume > 1) {
		return apperrors.NewInvalidInputError("громкость должна быть в диапазоне 0..1")
	}
	if patch.MinIntervalSeconds != nil && *patch.MinIntervalSeconds < 0 {
		return apperrors.NewInvalidInputError("минимальный интервал не может быть отрицательным")
	}
	if patch.SoundID != nil {
		if _, ok := s.sounds.Lookup(*patch.SoundID); !ok {
			return fmt.Errorf("%w: %s", apperrors.ErrUnknownSound, *patch.SoundID)
		}
	}

	hasRepeat := patch.RepeatEnabled != nil || patch.RepeatIntervalSeconds != nil || patch.MaxRepeatDurationSeconds != nil
	if hasRepeat && panel != constants.PanelKitchen {
		return apperrors.NewInvalidInputError("повтор сигнала настраивается только для кухни")
	}
	if patch.RepeatIntervalSeconds != nil && *patch.RepeatIntervalSeconds <= 0 {
		return apperrors.NewInvalidInputError("интервал повтора должен быть больше нуля")
	}
	if patch.MaxRepeatDurationSeconds != nil && *patch.MaxRepeatDurationSeconds < 0 {
		return apperrors.NewInvalidInputError("длительность повтора не может быть отрицательной")
	}
	return nil
}
