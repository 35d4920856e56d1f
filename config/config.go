package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration. Loops never hold on to a Config
// across ticks; they call Manager.Current at the top of each cycle so edits to
// the file take effect on the next cycle without a restart.
type Config struct {
	General  GeneralConfig  `mapstructure:"general"`
	Trigger  TriggerConfig  `mapstructure:"trigger"`
	Overlay  OverlayConfig  `mapstructure:"overlay"`
	Bunnyhop BunnyhopConfig `mapstructure:"bunnyhop"`
	NoFlash  NoFlashConfig  `mapstructure:"noflash"`
}

type GeneralConfig struct {
	ProcessName  string `mapstructure:"process_name"`
	ModuleName   string `mapstructure:"module_name"`
	WindowTitle  string `mapstructure:"window_title"`
	GameBuild    string `mapstructure:"game_build"`
	PollInterval int    `mapstructure:"poll_interval_ms"`
}

type TriggerConfig struct {
	Enabled           bool                   `mapstructure:"enabled"`
	TriggerKey        string                 `mapstructure:"trigger_key"`
	ToggleMode        bool                   `mapstructure:"toggle_mode"`
	AttackOnTeammates bool                   `mapstructure:"attack_on_teammates"`
	Weapons           map[string]WeaponDelay `mapstructure:"weapons"`
}

// DelayFor returns the timing profile for a weapon class name. Classes are
// matched case-insensitively; unknown classes get the rifle profile.
func (t TriggerConfig) DelayFor(class string) WeaponDelay {
	key := strings.ToLower(class)
	if d, ok := t.Weapons[key]; ok {
		return d
	}
	if d, ok := defaultWeaponDelays[key]; ok {
		return d
	}
	return defaultWeaponDelays["rifles"]
}

// WeaponDelay holds per-category shot timing in milliseconds.
type WeaponDelay struct {
	ShotDelayMin int `mapstructure:"shot_delay_min_ms"`
	ShotDelayMax int `mapstructure:"shot_delay_max_ms"`
	PostShotDelay int `mapstructure:"post_shot_delay_ms"`
}

func (d WeaponDelay) Min() time.Duration  { return time.Duration(d.ShotDelayMin) * time.Millisecond }
func (d WeaponDelay) Max() time.Duration  { return time.Duration(d.ShotDelayMax) * time.Millisecond }
func (d WeaponDelay) Post() time.Duration { return time.Duration(d.PostShotDelay) * time.Millisecond }

type OverlayConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	EnableBox         bool    `mapstructure:"enable_box"`
	DrawSnaplines     bool    `mapstructure:"draw_snaplines"`
	DrawSkeleton      bool    `mapstructure:"draw_skeleton"`
	DrawHealthNumbers bool    `mapstructure:"draw_health_numbers"`
	DrawNicknames     bool    `mapstructure:"draw_nicknames"`
	DrawTeammates     bool    `mapstructure:"draw_teammates"`
	UseTransliteration bool   `mapstructure:"use_transliteration"`
	BoxColorHex       string  `mapstructure:"box_color_hex"`
	TeammateColorHex  string  `mapstructure:"teammate_color_hex"`
	TextColorHex      string  `mapstructure:"text_color_hex"`
	SnaplinesColorHex string  `mapstructure:"snaplines_color_hex"`
	SkeletonColorHex  string  `mapstructure:"skeleton_color_hex"`
	BoxLineThickness  float64 `mapstructure:"box_line_thickness"`
	TargetFPS         int     `mapstructure:"target_fps"`
}

type BunnyhopConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	JumpKey        string `mapstructure:"jump_key"`
	JumpDelay      int    `mapstructure:"jump_delay_ms"`
	UseMemoryWrite bool   `mapstructure:"use_memory_write"`
}

func (b BunnyhopConfig) Delay() time.Duration { return time.Duration(b.JumpDelay) * time.Millisecond }

type NoFlashConfig struct {
	Enabled             bool    `mapstructure:"enabled"`
	SuppressionStrength float64 `mapstructure:"flash_suppression_strength"`
}

// Manager loads the config file and republishes a fresh Config on every file
// change. Current is safe to call from any goroutine.
type Manager struct {
	v   *viper.Viper
	cur atomic.Pointer[Config]
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.process_name", "cs2.exe")
	v.SetDefault("general.module_name", "client.dll")
	v.SetDefault("general.window_title", "Counter-Strike 2")
	v.SetDefault("general.game_build", "")
	v.SetDefault("general.poll_interval_ms", 10)

	v.SetDefault("trigger.enabled", true)
	v.SetDefault("trigger.trigger_key", "X")
	v.SetDefault("trigger.toggle_mode", false)
	v.SetDefault("trigger.attack_on_teammates", false)
	for cat, d := range defaultWeaponDelays {
		v.SetDefault(fmt.Sprintf("trigger.weapons.%s.shot_delay_min_ms", cat), d.ShotDelayMin)
		v.SetDefault(fmt.Sprintf("trigger.weapons.%s.shot_delay_max_ms", cat), d.ShotDelayMax)
		v.SetDefault(fmt.Sprintf("trigger.weapons.%s.post_shot_delay_ms", cat), d.PostShotDelay)
	}

	v.SetDefault("overlay.enabled", true)
	v.SetDefault("overlay.enable_box", true)
	v.SetDefault("overlay.draw_snaplines", false)
	v.SetDefault("overlay.draw_skeleton", false)
	v.SetDefault("overlay.draw_health_numbers", true)
	v.SetDefault("overlay.draw_nicknames", true)
	v.SetDefault("overlay.draw_teammates", false)
	v.SetDefault("overlay.use_transliteration", false)
	v.SetDefault("overlay.box_color_hex", "#FF0000")
	v.SetDefault("overlay.teammate_color_hex", "#00FFFF")
	v.SetDefault("overlay.text_color_hex", "#FFFFFF")
	v.SetDefault("overlay.snaplines_color_hex", "#FFFFFF")
	v.SetDefault("overlay.skeleton_color_hex", "#FFFF00")
	v.SetDefault("overlay.box_line_thickness", 1.0)
	v.SetDefault("overlay.target_fps", 60)

	v.SetDefault("bunnyhop.enabled", false)
	v.SetDefault("bunnyhop.jump_key", "SPACE")
	v.SetDefault("bunnyhop.jump_delay_ms", 20)
	v.SetDefault("bunnyhop.use_memory_write", true)

	v.SetDefault("noflash.enabled", false)
	v.SetDefault("noflash.flash_suppression_strength", 0.0)
}

// defaultWeaponDelays mirrors the shipped per-category timing profile.
var defaultWeaponDelays = map[string]WeaponDelay{
	"pistols": {ShotDelayMin: 10, ShotDelayMax: 30, PostShotDelay: 100},
	"rifles":  {ShotDelayMin: 10, ShotDelayMax: 30, PostShotDelay: 100},
	"snipers": {ShotDelayMin: 20, ShotDelayMax: 50, PostShotDelay: 200},
	"smgs":    {ShotDelayMin: 10, ShotDelayMax: 25, PostShotDelay: 80},
	"heavy":   {ShotDelayMin: 15, ShotDelayMax: 40, PostShotDelay: 150},
}

// Load reads config.json from configDir. A missing file is not an error; the
// defaults are used and the watcher picks the file up if it appears later.
func Load(configDir string) (*Manager, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	m := &Manager{v: v}
	if err := m.reload(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) reload() error {
	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("error decoding config: %w", err)
	}
	if cfg.General.PollInterval <= 0 {
		cfg.General.PollInterval = 10
	}
	m.cur.Store(&cfg)
	return nil
}

// Current returns the most recently loaded configuration. The returned value
// is shared and must be treated as read-only.
func (m *Manager) Current() *Config {
	return m.cur.Load()
}

// PollInterval is the snapshot cadence from the current config.
func (m *Manager) PollInterval() time.Duration {
	return time.Duration(m.Current().General.PollInterval) * time.Millisecond
}

// Watch republishes the config whenever the file changes. onChange may be nil.
func (m *Manager) Watch(onChange func(*Config)) {
	m.v.OnConfigChange(func(fsnotify.Event) {
		if err := m.reload(); err != nil {
			return
		}
		if onChange != nil {
			onChange(m.Current())
		}
	})
	m.v.WatchConfig()
}
