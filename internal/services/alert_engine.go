package services

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"order-dispatch/internal/entities"
	"order-dispatch/pkg/constants"
	apperrors "order-dispatch/pkg/errors"
	"order-dispatch/pkg/scheduler"
)

// Player воспроизводит звук на устройстве панели.
type Player interface {
	Play(panel constants.Panel, sound Sound, volume float64) error
}

// Notifier показывает всплывающее сообщение, если звук не прозвучал.
type Notifier interface {
	Toast(panel constants.Panel, message string)
}

// VisibilityProbe сообщает, видна ли панель пользователю.
type VisibilityProbe interface {
	Visible(panel constants.Panel) bool
}

// AlertFlags - снимок состояния оповещений для интерфейса.
type AlertFlags struct {
	AudioUnlocked       bool                          `json:"audio_unlocked"`
	SoundPlaybackFailed bool                          `json:"sound_playback_failed"`
	KitchenRepeating    bool                          `json:"kitchen_repeating"`
	RepeatOrderID       string                        `json:"repeat_order_id,omitempty"`
	Playing             map[constants.Panel]bool      `json:"playing"`
	LastPlayed          map[constants.Panel]time.Time `json:"last_played"`
}

type alertKey struct {
	panel   constants.Panel
	orderID string
}

type repeatState struct {
	active    bool
	orderID   string
	startedAt time.Time
	gen       uint64
	cancel    scheduler.CancelFunc
}

type AlertEngineOptions struct {
	VisualWindow time.Duration
}

// AlertEngine - звуковые оповещения одной сессии: троттлинг, дедупликация и повтор на кухне.
type AlertEngine struct {
	mu sync.Mutex

	clock      scheduler.Scheduler
	player     Player
	notifier   Notifier
	visibility VisibilityProbe
	sounds     SoundCatalogInterface
	opts       AlertEngineOptions
	logger     *zap.Logger

	settings      map[constants.Panel]entities.AlertSettings
	limiters      map[constants.Panel]*rate.Limiter
	lastPlayed    map[constants.Panel]time.Time
	alerted       map[alertKey]struct{}
	playing       map[constants.Panel]bool
	playingCancel map[constants.Panel]scheduler.CancelFunc

	audioUnlocked  bool
	playbackFailed bool
	repeat         repeatState
	closed         bool

	listeners []func(AlertFlags)
}

func NewAlertEngine(
	clock scheduler.Scheduler,
	player Player,
	notifier Notifier,
	visibility VisibilityProbe,
	sounds SoundCatalogInterface,
	opts AlertEngineOptions,
	logger *zap.Logger,
) *AlertEngine {
	e := &AlertEngine{
		clock:         clock,
		player:        player,
		notifier:      notifier,
		visibility:    visibility,
		sounds:        sounds,
		opts:          opts,
		logger:        logger,
		settings:      make(map[constants.Panel]entities.AlertSettings),
		limiters:      make(map[constants.Panel]*rate.Limiter),
		lastPlayed:    make(map[constants.Panel]time.Time),
		alerted:       make(map[alertKey]struct{}),
		playing:       make(map[constants.Panel]bool),
		playingCancel: make(map[constants.Panel]scheduler.CancelFunc),
	}
	for _, p := range constants.AlertPanels {
		e.applySettingsLocked(entities.DefaultAlertSettings(p))
	}
	return e
}

// OnStateChange подписывает на изменения флагов.
func (e *AlertEngine) OnStateChange(fn func(AlertFlags)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// -----------------------------------------------------------
// SETTINGS
// -----------------------------------------------------------

// UpdateSettings применяет настройки панелей. Выключение повтора на кухне останавливает текущий повтор.
func (e *AlertEngine) UpdateSettings(settings []entities.AlertSettings) {
	e.mu.Lock()
	for _, s := range settings {
		if !s.Panel.HasAlerts() {
			continue
		}
		e.applySettingsLocked(s)
	}
	k := e.settings[constants.PanelKitchen]
	if e.repeat.active && (!k.Enabled || !k.RepeatEnabled) {
		e.stopRepeatLocked()
	}
	e.mu.Unlock()
	e.emit()
}

func (e *AlertEngine) Settings(panel constants.Panel) (entities.AlertSettings, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.settings[panel]
	return s, ok
}

// applySettingsLocked перенастраивает лимитер, сохраняя уже израсходованный интервал.
func (e *AlertEngine) applySettingsLocked(s entities.AlertSettings) {
	prev, had := e.settings[s.Panel]
	e.settings[s.Panel] = s
	if had && prev.MinIntervalSeconds == s.MinIntervalSeconds {
		return
	}

	limit := rate.Inf
	if s.MinInterval() > 0 {
		limit = rate.Every(s.MinInterval())
	}
	lim := rate.NewLimiter(limit, 1)
	if last, ok := e.lastPlayed[s.Panel]; ok {
		lim.AllowN(last, 1)
	}
	e.limiters[s.Panel] = lim
}

// -----------------------------------------------------------
// PLAYBACK
// -----------------------------------------------------------

// Play: включено → не было сигнала по паре (панель, заказ) → выдержан минимальный интервал.
// true - только если звук действительно прозвучал.
func (e *AlertEngine) Play(panel constants.Panel, orderID string) bool {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	s, ok := e.settings[panel]
	if !ok || !s.Enabled {
		e.mu.Unlock()
		return false
	}
	key := alertKey{panel: panel, orderID: orderID}
	if orderID != "" {
		if _, seen := e.alerted[key]; seen {
			e.mu.Unlock()
			return false
		}
	}
	now := e.clock.Now()
	if !e.limiters[panel].AllowN(now, 1) {
		e.mu.Unlock()
		e.logger.Debug("сигнал подавлен интервалом", zap.String("panel", panel.String()), zap.String("order_id", orderID))
		return false
	}
	if orderID != "" {
		e.alerted[key] = struct{}{}
	}
	e.lastPlayed[panel] = now
	e.setPlayingLocked(panel)
	sound := e.soundLocked(s.SoundID)
	unlocked := e.audioUnlocked
	e.mu.Unlock()

	played := e.playback(panel, sound, s.Volume, unlocked, toastMessage(orderID))
	e.emit()
	return played
}

// PreviewSound проигрывает звук из настроек без троттлинга и дедупликации.
func (e *AlertEngine) PreviewSound(panel constants.Panel, soundID string, volume float64) error {
	if volume < 0 || volume > 1 {
		return apperrors.NewInvalidInputError("громкость должна быть в диапазоне 0..1, получено %.2f", volume)
	}
	sound, ok := e.sounds.Lookup(soundID)
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrUnknownSound, soundID)
	}

	e.mu.Lock()
	unlocked := e.audioUnlocked
	e.mu.Unlock()
	if !unlocked {
		return &apperrors.PlaybackError{Panel: panel.String(), Err: apperrors.ErrAudioLocked}
	}
	if err := e.player.Play(panel, sound, volume); err != nil {
		return &apperrors.PlaybackError{Panel: panel.String(), Err: err}
	}
	return nil
}

// InitializeAudio отмечает, что пользователь разблокировал звук жестом.
func (e *AlertEngine) InitializeAudio() {
	e.mu.Lock()
	e.audioUnlocked = true
	e.mu.Unlock()
	e.emit()
}

func (e *AlertEngine) playback(panel constants.Panel, sound Sound, volume float64, unlocked bool, fallback string) bool {
	var err error
	if !unlocked {
		err = apperrors.ErrAudioLocked
	} else {
		err = e.player.Play(panel, sound, volume)
	}

	e.mu.Lock()
	e.playbackFailed = err != nil
	e.mu.Unlock()

	if err != nil {
		perr := &apperrors.PlaybackError{Panel: panel.String(), Err: err}
		e.logger.Warn("звук не воспроизведён, показываю уведомление", zap.Error(perr))
		if e.notifier != nil {
			e.notifier.Toast(panel, fallback)
		}
		return false
	}
	return true
}

func (e *AlertEngine) setPlayingLocked(panel constants.Panel) {
	if cancel := e.playingCancel[panel]; cancel != nil {
		cancel()
	}
	e.playing[panel] = true
	if e.opts.VisualWindow <= 0 {
		e.playing[panel] = false
		return
	}
	e.playingCancel[panel] = e.clock.AfterFunc(e.opts.VisualWindow, func() {
		e.mu.Lock()
		e.playing[panel] = false
		delete(e.playingCancel, panel)
		e.mu.Unlock()
		e.emit()
	})
}

func (e *AlertEngine) soundLocked(id string) Sound {
	if s, ok := e.sounds.Lookup(id); ok {
		return s
	}
	if s, ok := e.sounds.Lookup(DefaultSoundID); ok {
		return s
	}
	return Sound{ID: id}
}

func toastMessage(orderID string) string {
	if orderID == "" {
		return "Новое оповещение"
	}
	return "Новое оповещение по заказу " + orderID
}

// -----------------------------------------------------------
// DEDUP
// -----------------------------------------------------------

func panelsOrAll(panels []constants.Panel) []constants.Panel {
	if len(panels) == 0 {
		return constants.AlertPanels
	}
	return panels
}

// MarkAlerted отмечает заказ как отработанный. Без панелей - на всех трёх.
// Отметка кухни для заказа, который сейчас повторяется, останавливает повтор.
func (e *AlertEngine) MarkAlerted(orderID string, panels ...constants.Panel) {
	e.mu.Lock()
	stopped := false
	for _, p := range panelsOrAll(panels) {
		e.alerted[alertKey{panel: p, orderID: orderID}] = struct{}{}
		if p == constants.PanelKitchen && e.repeat.active && e.repeat.orderID == orderID {
			e.stopRepeatLocked()
			stopped = true
		}
	}
	e.mu.Unlock()
	if stopped {
		e.emit()
	}
}

// ClearAlerted снимает отметку, чтобы следующий сигнал по заказу снова прозвучал.
func (e *AlertEngine) ClearAlerted(orderID string, panels ...constants.Panel) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range panelsOrAll(panels) {
		delete(e.alerted, alertKey{panel: p, orderID: orderID})
	}
}

func (e *AlertEngine) IsAlerted(panel constants.Panel, orderID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.alerted[alertKey{panel: panel, orderID: orderID}]
	return ok
}

// -----------------------------------------------------------
// KITCHEN REPEAT
// -----------------------------------------------------------

// StartKitchenRepeat запускает повтор сигнала на кухне. Если повтор уже идёт или выключен - ничего.
func (e *AlertEngine) StartKitchenRepeat(orderID string) {
	e.mu.Lock()
	s := e.settings[constants.PanelKitchen]
	if e.closed || e.repeat.active || !s.Enabled || !s.RepeatEnabled || s.RepeatInterval() <= 0 {
		e.mu.Unlock()
		return
	}
	e.repeat.gen++
	e.repeat.active = true
	e.repeat.orderID = orderID
	e.repeat.startedAt = e.clock.Now()
	gen := e.repeat.gen
	e.repeat.cancel = e.clock.AfterFunc(s.RepeatInterval(), func() { e.repeatTick(gen) })
	e.mu.Unlock()

	e.logger.Info("повтор сигнала на кухне запущен", zap.String("order_id", orderID))
	e.emit()
}

// StopKitchenRepeat гарантирует, что ни один запланированный повтор больше не сработает.
func (e *AlertEngine) StopKitchenRepeat() {
	e.mu.Lock()
	was := e.repeat.active
	e.stopRepeatLocked()
	e.mu.Unlock()
	if was {
		e.emit()
	}
}

func (e *AlertEngine) stopRepeatLocked() {
	e.repeat.gen++
	if e.repeat.cancel != nil {
		e.repeat.cancel()
	}
	e.repeat.active = false
	e.repeat.orderID = ""
	e.repeat.cancel = nil
}

// repeatTick - одна итерация повтора. Устаревшее поколение молча выходит.
func (e *AlertEngine) repeatTick(gen uint64) {
	e.mu.Lock()
	if e.closed || !e.repeat.active || e.repeat.gen != gen {
		e.mu.Unlock()
		return
	}
	s := e.settings[constants.PanelKitchen]
	now := e.clock.Now()
	if limit := s.MaxRepeatDuration(); limit > 0 && now.Sub(e.repeat.startedAt) >= limit {
		orderID := e.repeat.orderID
		e.stopRepeatLocked()
		e.mu.Unlock()
		e.logger.Info("повтор сигнала на кухне завершён по времени", zap.String("order_id", orderID))
		e.emit()
		return
	}
	e.repeat.cancel = e.clock.AfterFunc(s.RepeatInterval(), func() { e.repeatTick(gen) })

	visible := e.visibility == nil || e.visibility.Visible(constants.PanelKitchen)
	if !visible {
		e.mu.Unlock()
		return
	}
	// Повтор не ждёт лимитер, но расходует его: обычный сигнал сразу после повтора подавляется.
	if lim, ok := e.limiters[constants.PanelKitchen]; ok {
		lim.AllowN(now, 1)
	}
	e.lastPlayed[constants.PanelKitchen] = now
	e.setPlayingLocked(constants.PanelKitchen)
	sound := e.soundLocked(s.SoundID)
	unlocked := e.audioUnlocked
	orderID := e.repeat.orderID
	e.mu.Unlock()

	e.playback(constants.PanelKitchen, sound, s.Volume, unlocked, toastMessage(orderID))
	e.emit()
}

// -----------------------------------------------------------
// STATE
// -----------------------------------------------------------

func (e *AlertEngine) Flags() AlertFlags {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flagsLocked()
}

func (e *AlertEngine) flagsLocked() AlertFlags {
	f := AlertFlags{
		AudioUnlocked:       e.audioUnlocked,
		SoundPlaybackFailed: e.playbackFailed,
		KitchenRepeating:    e.repeat.active,
		RepeatOrderID:       e.repeat.orderID,
		Playing:             make(map[constants.Panel]bool, len(e.playing)),
		LastPlayed:          make(map[constants.Panel]time.Time, len(e.lastPlayed)),
	}
	for p, v := range e.playing {
		f.Playing[p] = v
	}
	for p, t := range e.lastPlayed {
		f.LastPlayed[p] = t
	}
	return f
}

func (e *AlertEngine) emit() {
	e.mu.Lock()
	if e.closed || len(e.listeners) == 0 {
		e.mu.Unlock()
		return
	}
	flags := e.flagsLocked()
	listeners := make([]func(AlertFlags), len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.Unlock()
	for _, l := range listeners {
		l(flags)
	}
}

// Close останавливает повтор и таймеры подсветки. После Close движок молчит.
func (e *AlertEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopRepeatLocked()
	for p, cancel := range e.playingCancel {
		cancel()
		delete(e.playingCancel, p)
	}
	e.closed = true
}
