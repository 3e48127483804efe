package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// HTTP настройки сервера
type HTTP struct {
	Addr string `yaml:"addr"`
}

// Storage выбор бэкенда хранения: memory или postgres
type Storage struct {
	Backend  string `yaml:"backend"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// Catalog источник снимка каталога: local (свои репозитории) или remote
type Catalog struct {
	Mode    string `yaml:"mode"`
	BaseURL string `yaml:"base_url"`
}

// Sessions хранилище кассовых сессий
type Sessions struct {
	Backend  string `yaml:"backend"` // memory | redis
	RedisURL string `yaml:"redis_url"`
	TTLHours int    `yaml:"ttl_hours"`
}

// Rabbit публикация событий заказов
type Rabbit struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
}

// App корневая конфигурация сервиса
type App struct {
	HTTP     HTTP     `yaml:"http"`
	Storage  Storage  `yaml:"storage"`
	Catalog  Catalog  `yaml:"catalog"`
	Sessions Sessions `yaml:"sessions"`
	Rabbit   Rabbit   `yaml:"rabbitmq"`
}

// Load читает YAML и подставляет значения по умолчанию
func Load(path string) (App, error) {
	a := App{
		HTTP:     HTTP{Addr: ":9091"},
		Storage:  Storage{Backend: "memory"},
		Catalog:  Catalog{Mode: "local"},
		Sessions: Sessions{Backend: "memory"},
	}
	if path == "" {
		return a, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return App{}, err
	}
	if err := yaml.Unmarshal(b, &a); err != nil {
		return App{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if err := a.validate(); err != nil {
		return App{}, err
	}
	return a, nil
}

func (a App) validate() error {
	switch a.Storage.Backend {
	case "memory":
	case "postgres":
		if a.Storage.Host == "" || a.Storage.Database == "" {
			return fmt.Errorf("invalid config: postgres backend requires host and database")
		}
	default:
		return fmt.Errorf("invalid config: unknown storage backend %q", a.Storage.Backend)
	}
	switch a.Catalog.Mode {
	case "local":
	case "remote":
		if a.Catalog.BaseURL == "" {
			return fmt.Errorf("invalid config: remote catalog requires base_url")
		}
	default:
		return fmt.Errorf("invalid config: unknown catalog mode %q", a.Catalog.Mode)
	}
	switch a.Sessions.Backend {
	case "memory":
	case "redis":
		if a.Sessions.RedisURL == "" {
			return fmt.Errorf("invalid config: redis sessions require redis_url")
		}
	default:
		return fmt.Errorf("invalid config: unknown sessions backend %q", a.Sessions.Backend)
	}
	return nil
}

// FindConfig ищет конфиг в типовых местах
func FindConfig() string {
	candidates := []string{"config.yaml", "deploy/config.example.yaml"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
