package services

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Sound - звук из каталога.
type Sound struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

const DefaultSoundID = "bell"

var builtinSounds = []Sound{
	{ID: "bell", Name: "Колокольчик", URL: "/sounds/bell.mp3"},
	{ID: "chime", Name: "Перезвон", URL: "/sounds/chime.mp3"},
	{ID: "ding", Name: "Дзинь", URL: "/sounds/ding.mp3"},
	{ID: "alarm", Name: "Тревога", URL: "/sounds/alarm.mp3"},
}

type SoundCatalogInterface interface {
	Lookup(id string) (Sound, bool)
	All() []Sound
}

type SoundCatalog struct {
	sounds []Sound
	byID   map[string]Sound
}

type soundsFile struct {
	Sounds []Sound `yaml:"sounds"`
}

func NewSoundCatalog(sounds []Sound) *SoundCatalog {
	c := &SoundCatalog{byID: make(map[string]Sound, len(sounds))}
	for _, s := range sounds {
		if s.ID == "" {
			continue
		}
		if _, dup := c.byID[s.ID]; dup {
			continue
		}
		c.sounds = append(c.sounds, s)
		c.byID[s.ID] = s
	}
	return c
}

// LoadSoundCatalog читает YAML-каталог. Если файла нет или он битый - встроенный набор.
func LoadSoundCatalog(path string, logger *zap.Logger) *SoundCatalog {
	sounds, err := readSoundsFile(path)
	if err != nil {
		logger.Warn("каталог звуков не загружен, использую встроенный", zap.String("path", path), zap.Error(err))
		return NewSoundCatalog(builtinSounds)
	}
	c := NewSoundCatalog(sounds)
	if _, ok := c.Lookup(DefaultSoundID); !ok {
		c = NewSoundCatalog(append([]Sound{builtinSounds[0]}, c.sounds...))
	}
	logger.Info("каталог звуков загружен", zap.String("path", path), zap.Int("sounds", len(c.sounds)))
	return c
}

func readSoundsFile(path string) ([]Sound, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f soundsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("разбор %s: %w", path, err)
	}
	if len(f.Sounds) == 0 {
		return nil, fmt.Errorf("в %s нет звуков", path)
	}
	return f.Sounds, nil
}

func (c *SoundCatalog) Lookup(id string) (Sound, bool) {
	s, ok := c.byID[id]
	return s, ok
}

func (c *SoundCatalog) All() []Sound {
	return append([]Sound(nil), c.sounds...)
}
