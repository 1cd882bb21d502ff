package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"order-dispatch/internal/entities"
	"order-dispatch/internal/repositories"
	"order-dispatch/pkg/constants"
	apperrors "order-dispatch/pkg/errors"
	"order-dispatch/pkg/utils"
)

func newSettingsService() (AlertSettingsServiceInterface, *repositories.MemoryAlertSettingsRepository) {
	repo := repositories.NewMemoryAlertSettingsRepository(nil)
	return NewAlertSettingsService(repo, NewSoundCatalog(builtinSounds), zap.NewNop()), repo
}

func TestAlertSettingsService_ListFillsDefaults(t *testing.T) {
	svc, _ := newSettingsService()

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, len(constants.AlertPanels))
	for i, p := range constants.AlertPanels {
		assert.Equal(t, entities.DefaultAlertSettings(p), list[i])
	}
}

func TestAlertSettingsService_UpdatePersistsAndCommits(t *testing.T) {
	svc, repo := newSettingsService()

	chime, interval := "chime", 10
	saved, err := svc.Update(context.Background(), constants.PanelKitchen, entities.AlertSettingsPatch{
		SoundID:               &chime,
		RepeatIntervalSeconds: &interval,
	})
	require.NoError(t, err)
	assert.Equal(t, "chime", saved.SoundID)
	assert.Equal(t, 10, saved.RepeatIntervalSeconds)
	assert.Equal(t, 300, saved.MaxRepeatDurationSeconds, "не указанные поля не меняются")

	stored, err := repo.ListAlertSettings(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, saved, stored[0])

	current := svc.Current()
	assert.Equal(t, saved, current[1])
}

func TestAlertSettingsService_PersistFailureRollsBack(t *testing.T) {
	svc, repo := newSettingsService()
	repo.FailNext(assert.AnError)

	vol := 0.1
	_, err := svc.Update(context.Background(), constants.PanelAdmin, entities.AlertSettingsPatch{Volume: &vol})
	require.Error(t, err)
	assert.True(t, apperrors.IsPersistence(err))
	code, _ := utils.StatusFor(err)
	assert.Equal(t, 502, code)

	assert.Equal(t, 0.8, svc.Current()[0].Volume)
}

func TestAlertSettingsService_Validation(t *testing.T) {
	svc, repo := newSettingsService()
	bad, neg, zero, unknown := 1.5, -1, 0, "trumpet"
	on := true

	cases := []struct {
		name  string
		panel constants.Panel
		patch entities.AlertSettingsPatch
	}{
		{"витрина без звука", constants.PanelStorefront, entities.AlertSettingsPatch{Enabled: &on}},
		{"громкость больше 1", constants.PanelAdmin, entities.AlertSettingsPatch{Volume: &bad}},
		{"отрицательный интервал", constants.PanelAdmin, entities.AlertSettingsPatch{MinIntervalSeconds: &neg}},
		{"повтор не для кухни", constants.PanelCourier, entities.AlertSettingsPatch{RepeatEnabled: &on}},
		{"нулевой интервал повтора", constants.PanelKitchen, entities.AlertSettingsPatch{RepeatIntervalSeconds: &zero}},
		{"неизвестный звук", constants.PanelKitchen, entities.AlertSettingsPatch{SoundID: &unknown}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Update(context.Background(), tc.panel, tc.patch)
			require.Error(t, err)
			code, _ := utils.StatusFor(err)
			assert.Equal(t, 400, code)
		})
	}

	stored, err := repo.ListAlertSettings(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored, "отклонённые патчи ничего не пишут")
}
