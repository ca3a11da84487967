package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/annel0/gunpowder/internal/effects"
	"github.com/annel0/gunpowder/internal/fuse"
	"github.com/annel0/gunpowder/internal/territory"
	"github.com/annel0/gunpowder/internal/world/block"
)

// Config корневая структура конфигурации приложения.
type Config struct {
	Gunpowder GunpowderConfig `yaml:"gunpowder"`
	Server    ServerConfig    `yaml:"server"`
	World     WorldConfig     `yaml:"world"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Claims    ClaimsConfig    `yaml:"claims"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// GunpowderConfig — параметры механики пороха.
type GunpowderConfig struct {
	Enabled                 *bool             `yaml:"enabled"`
	AmbientIntervalTicks    int               `yaml:"ambient_interval_ticks"`
	FuseStepTicks           int               `yaml:"fuse_step_ticks"`
	ExtraDisallowedSupports []string          `yaml:"extra_disallowed_supports"`
	TNTFuseTicks            int               `yaml:"tnt_fuse_ticks"`
	ExplosionRadius         float64           `yaml:"explosion_radius"`
	Particles               effects.Particles `yaml:"particles"`
}

// IsEnabled возвращает флаг включения (по умолчанию механика включена).
func (g GunpowderConfig) IsEnabled() bool {
	return g.Enabled == nil || *g.Enabled
}

// Settings переводит конфигурацию в настройки механики.
func (g GunpowderConfig) Settings() (fuse.Settings, error) {
	policy, err := block.SupportPolicyFromNames(g.ExtraDisallowedSupports)
	if err != nil {
		return fuse.Settings{}, fmt.Errorf("gunpowder.extra_disallowed_supports: %w", err)
	}
	return fuse.Settings{
		AmbientIntervalTicks: g.AmbientIntervalTicks,
		FuseStepTicks:        g.FuseStepTicks,
		Support:              policy,
	}, nil
}

type ServerConfig struct {
	TickRate    int `yaml:"tick_rate"`
	RESTPort    int `yaml:"rest_port"`
	MetricsPort int `yaml:"metrics_port"`
	// AdminToken защищает изменяющие REST-запросы. Пусто — без проверки.
	AdminToken string `yaml:"admin_token"`
}

// GetAdminToken возвращает токен администратора: config -> GAME_ADMIN_TOKEN.
func (s *ServerConfig) GetAdminToken() string {
	if s.AdminToken != "" {
		return s.AdminToken
	}
	return os.Getenv("GAME_ADMIN_TOKEN")
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "GAME_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "GAME_METRICS_PORT", 2112)
}

type WorldConfig struct {
	ID       string `yaml:"id"`
	Seed     int64  `yaml:"seed"`
	DataPath string `yaml:"data_path"` // Пусто — мир только в памяти
	// SaveEverySeconds — период автосохранения изменённых чанков.
	SaveEverySeconds int `yaml:"save_every_seconds"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"` // Пусто — in-memory шина
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	QueueSize int    `yaml:"queue_size"`
}

// RetentionDuration возвращает срок хранения событий в стриме.
func (e EventBusConfig) RetentionDuration() time.Duration {
	return time.Duration(e.Retention) * time.Hour
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type ClaimsConfig struct {
	Admins []string          `yaml:"admins"`
	Areas  []territory.Claim `yaml:"areas"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		Gunpowder: GunpowderConfig{
			AmbientIntervalTicks: 10,
			FuseStepTicks:        3,
			TNTFuseTicks:         80,
			ExplosionRadius:      3,
			Particles:            effects.DefaultParticles(),
		},
		Server: ServerConfig{TickRate: 20},
		World: WorldConfig{
			ID:               "overworld",
			Seed:             1337,
			SaveEverySeconds: 300,
		},
		EventBus: EventBusConfig{
			Stream:    "FUSE",
			Retention: 24,
			QueueSize: 1024,
		},
		Telemetry: TelemetryConfig{ServiceName: "gunpowder"},
		Logging:   LoggingConfig{Level: "info", Dir: "logs"},
	}
}

// normalize поднимает периоды до одного тика и подставляет пропущенные значения.
func (c *Config) normalize() {
	d := Default()
	if c.Gunpowder.AmbientIntervalTicks < 1 {
		c.Gunpowder.AmbientIntervalTicks = 1
	}
	if c.Gunpowder.FuseStepTicks < 1 {
		c.Gunpowder.FuseStepTicks = 1
	}
	if c.Gunpowder.TNTFuseTicks < 1 {
		c.Gunpowder.TNTFuseTicks = 1
	}
	if c.Gunpowder.ExplosionRadius <= 0 {
		c.Gunpowder.ExplosionRadius = d.Gunpowder.ExplosionRadius
	}
	if c.Server.TickRate <= 0 {
		c.Server.TickRate = d.Server.TickRate
	}
	if c.World.ID == "" {
		c.World.ID = d.World.ID
	}
	if c.EventBus.QueueSize <= 0 {
		c.EventBus.QueueSize = d.EventBus.QueueSize
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = d.Telemetry.ServiceName
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	// Используем дефолтное значение
	return defaultPort
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV GAME_CONFIG, а без неё
// возвращает Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("GAME_CONFIG")
	}
	cfg := Default()
	if path == "" {
		return cfg, nil // конфиг не задан — использовать дефолты
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
	}
	cfg.normalize()

	if _, err := cfg.Gunpowder.Settings(); err != nil {
		return nil, err
	}
	return cfg, nil
}
