package seeders

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"order-dispatch/internal/entities"
	"order-dispatch/pkg/constants"
)

// true - вернуть настройки звука к заводским, false - не трогать уже сохранённые.
const updateIfExists_AlertSettings = false

func seedAlertSettings(ctx context.Context, db *pgxpool.Pool) error {
	log.Println("  - Наполнение таблицы 'alert_settings'...")

	query := `INSERT INTO alert_settings
			(panel, enabled, sound_id, volume, min_interval_seconds,
			 repeat_enabled, repeat_interval_seconds, max_repeat_duration_seconds)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if updateIfExists_AlertSettings {
		query += ` ON CONFLICT (panel) DO UPDATE SET
			enabled = EXCLUDED.enabled, sound_id = EXCLUDED.sound_id, volume = EXCLUDED.volume,
			min_interval_seconds = EXCLUDED.min_interval_seconds, repeat_enabled = EXCLUDED.repeat_enabled,
			repeat_interval_seconds = EXCLUDED.repeat_interval_seconds,
			max_repeat_duration_seconds = EXCLUDED.max_repeat_duration_seconds, updated_at = NOW();`
		log.Println("    - Стратегия: Сброс к значениям по умолчанию (UPSERT)")
	} else {
		query += ` ON CONFLICT (panel) DO NOTHING;`
		log.Println("    - Стратегия: Пропуск существующих панелей (IGNORE)")
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, s := range alertSettingsData() {
		if _, err := tx.Exec(ctx, query,
			s.Panel.String(), s.Enabled, s.SoundID, s.Volume, s.MinIntervalSeconds,
			s.RepeatEnabled, s.RepeatIntervalSeconds, s.MaxRepeatDurationSeconds,
		); err != nil {
			log.Printf("Ошибка при вставке настроек панели '%s': %v", s.Panel, err)
			return err
		}
	}

	return tx.Commit(ctx)
}

func alertSettingsData() []entities.AlertSettings {
	data := make([]entities.AlertSettings, 0, len(constants.AlertPanels))
	for _, p := range constants.AlertPanels {
		data = append(data, entities.DefaultAlertSettings(p))
	}
	return data
}
