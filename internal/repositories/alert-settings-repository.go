package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"order-dispatch/internal/entities"
	"order-dispatch/pkg/changefeed"
	"order-dispatch/pkg/constants"
)

const alertSettingsTable = "alert_settings"

const alertSettingsColumns = `panel, enabled, sound_id, volume, min_interval_seconds,
	repeat_enabled, repeat_interval_seconds, max_repeat_duration_seconds, updated_at`

type AlertSettingsRepositoryInterface interface {
	ListAlertSettings(ctx context.Context) ([]entities.AlertSettings, error)
	UpdateAlertSettings(ctx context.Context, panel constants.Panel, patch entities.AlertSettingsPatch) (entities.AlertSettings, error)
}

type AlertSettingsRepository struct {
	storage   *pgxpool.Pool
	txManager TxManagerInterface
	publisher changefeed.Publisher
	logger    *zap.Logger
}

func NewAlertSettingsRepository(storage *pgxpool.Pool, publisher changefeed.Publisher, logger *zap.Logger) AlertSettingsRepositoryInterface {
	return &AlertSettingsRepository{
		storage:   storage,
		txManager: NewTxManager(storage),
		publisher: publisher,
		logger:    logger,
	}
}

func scanAlertSettings(row pgx.Row) (entities.AlertSettings, error) {
	var s entities.AlertSettings
	err := row.Scan(
		&s.Panel, &s.Enabled, &s.SoundID, &s.Volume, &s.MinIntervalSeconds,
		&s.RepeatEnabled, &s.RepeatIntervalSeconds, &s.MaxRepeatDurationSeconds, &s.UpdatedAt,
	)
	return s, err
}

func (r *AlertSettingsRepository) ListAlertSettings(ctx context.Context) ([]entities.AlertSettings, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY panel`, alertSettingsColumns, alertSettingsTable)
	rows, err := r.storage.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения настроек оповещений: %w", err)
	}
	defer rows.Close()

	out := make([]entities.AlertSettings, 0, len(constants.AlertPanels))
	for rows.Next() {
		s, err := scanAlertSettings(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования настроек: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateAlertSettings применяет патч поверх сохранённых (или дефолтных) настроек под блокировкой строки.
func (r *AlertSettingsRepository) UpdateAlertSettings(ctx context.Context, panel constants.Panel, patch entities.AlertSettingsPatch) (entities.AlertSettings, error) {
	var saved entities.AlertSettings
	err := r.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE panel = $1 FOR UPDATE`, alertSettingsColumns, alertSettingsTable)
		current, err := scanAlertSettings(tx.QueryRow(ctx, query, panel.String()))
		if errors.Is(err, pgx.ErrNoRows) {
			current = entities.DefaultAlertSettings(panel)
		} else if err != nil {
			return fmt.Errorf("ошибка чтения настроек панели %s: %w", panel, err)
		}

		next := patch.Apply(current)
		upsert := fmt.Sprintf(`
			INSERT INTO %s (panel, enabled, sound_id, volume, min_interval_seconds,
				repeat_enabled, repeat_interval_seconds, max_repeat_duration_seconds, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
			ON CONFLICT (panel) DO UPDATE SET
				enabled = EXCLUDED.enabled,
				sound_id = EXCLUDED.sound_id,
				volume = EXCLUDED.volume,
				min_interval_seconds = EXCLUDED.min_interval_seconds,
				repeat_enabled = EXCLUDED.repeat_enabled,
				repeat_interval_seconds = EXCLUDED.repeat_interval_seconds,
				max_repeat_duration_seconds = EXCLUDED.max_repeat_duration_seconds,
				updated_at = NOW()
			RETURNING %s`, alertSettingsTable, alertSettingsColumns)

		saved, err = scanAlertSettings(tx.QueryRow(ctx, upsert,
			panel.String(), next.Enabled, next.SoundID, next.Volume, next.MinIntervalSeconds,
			next.RepeatEnabled, next.RepeatIntervalSeconds, next.MaxRepeatDurationSeconds,
		))
		if err != nil {
			return fmt.Errorf("ошибка сохранения настроек панели %s: %w", panel, err)
		}
		return nil
	})
	if err != nil {
		return entities.AlertSettings{}, err
	}

	if err := r.publisher.Publish(ctx, changefeed.Notice{Entity: constants.EntityAlertSettings, Op: changefeed.OpUpdate, ID: panel.String()}); err != nil {
		r.logger.Warn("не удалось отправить уведомление об изменении настроек", zap.String("panel", panel.String()), zap.Error(err))
	}
	return saved, nil
}
