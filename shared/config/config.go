package config

import (
	"fmt"
	"os"
	"path"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	StorageMemory = "memory"
	StoragePg     = "pg"
)

type Config struct {
	Public  Public
	Private Private
}

type Public struct {
	Storage     string        `yaml:"storage"` // "pg" or "memory"
	Http        Http          `yaml:"http"`
	Log         Log           `yaml:"log"`
	JwtTTL      time.Duration `yaml:"jwt_ttl"`
	Locks       Locks         `yaml:"locks"`
	Limits      Limits        `yaml:"limits"`
	CorsOrigins []string      `yaml:"cors_origins"`
}

type Http struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	// Https enables the Strict-Transport-Security header.
	Https bool `yaml:"https"`
}

type Log struct {
	Level string `yaml:"level"`
	Json  bool   `yaml:"json"`
}

// Locks are the lock strings given to new resources, plus the permission that
// bypasses every lock.
type Locks struct {
	Site            string `yaml:"site"`
	Category        string `yaml:"category"`
	Board           string `yaml:"board"`
	SuperPermission string `yaml:"super_permission"`
}

type Limits struct {
	SubjectMaxLen int   `yaml:"subject_max_len"`
	BodyMaxLen    int   `yaml:"body_max_len"`
	MaxBodyBytes  int64 `yaml:"max_body_bytes"`
	// Token bucket for post creation, per subject.
	PostsPerSecond float64 `yaml:"posts_per_second"`
	PostBurst      int     `yaml:"post_burst"`
}

type Pg struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Dbname   string `yaml:"dbname"`
	SslMode  string `yaml:"sslmode"`
	// ConnectAttempts bounds the retries while the database is starting up.
	ConnectAttempts int `yaml:"connect_attempts"`
}

type Private struct {
	Pg     Pg     `yaml:"pg"`
	JwtKey string `yaml:"jwt_key"`
}

func (s *Config) JwtKey() string {
	return s.Private.JwtKey
}

func (s *Config) JwtTTL() time.Duration {
	return s.Public.JwtTTL
}

// DSN is the lib/pq connection string for the configured database.
func (p Pg) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Dbname, p.SslMode)
}

func loadPath(configPath string, output interface{}) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist: %s", configPath)
	}
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("can't read config file %s: %w", configPath, err)
	}
	if err := yaml.UnmarshalStrict(configFile, output); err != nil {
		return fmt.Errorf("can't unmarshal config file %s: %w", configPath, err)
	}
	return nil
}

// Load reads public.yaml and private.yaml from configFolder, fills defaults and
// validates the result.
func Load(configFolder string) (*Config, error) {
	var public Public
	if err := loadPath(path.Join(configFolder, "public.yaml"), &public); err != nil {
		return nil, err
	}

	var private Private
	if err := loadPath(path.Join(configFolder, "private.yaml"), &private); err != nil {
		return nil, err
	}

	cfg := &Config{public, private}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func MustLoad(configFolder string) *Config {
	cfg, err := Load(configFolder)
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

func (s *Config) applyDefaults() {
	p := &s.Public
	if p.Storage == "" {
		p.Storage = StoragePg
	}
	if p.Http.Addr == "" {
		p.Http.Addr = ":8080"
	}
	if p.Http.ReadTimeout == 0 {
		p.Http.ReadTimeout = 10 * time.Second
	}
	if p.Http.WriteTimeout == 0 {
		p.Http.WriteTimeout = 10 * time.Second
	}
	if p.Http.IdleTimeout == 0 {
		p.Http.IdleTimeout = time.Minute
	}
	if p.Log.Level == "" {
		p.Log.Level = "info"
	}
	if p.JwtTTL == 0 {
		p.JwtTTL = 24 * time.Hour
	}
	if p.Locks.Site == "" {
		p.Locks.Site = "create:perm(Admin);delete:perm(Admin);admin:perm(Admin)"
	}
	if p.Locks.Category == "" {
		p.Locks.Category = "see:all();create:perm(Admin);delete:perm(Admin);admin:perm(Admin)"
	}
	if p.Locks.Board == "" {
		p.Locks.Board = "read:all();post:all();admin:perm(Admin)"
	}
	if p.Locks.SuperPermission == "" {
		p.Locks.SuperPermission = "Developer"
	}
	if p.Limits.SubjectMaxLen == 0 {
		p.Limits.SubjectMaxLen = 120
	}
	if p.Limits.BodyMaxLen == 0 {
		p.Limits.BodyMaxLen = 20000
	}
	if p.Limits.MaxBodyBytes == 0 {
		p.Limits.MaxBodyBytes = 1 << 20
	}
	if p.Limits.PostsPerSecond == 0 {
		p.Limits.PostsPerSecond = 0.2
	}
	if p.Limits.PostBurst == 0 {
		p.Limits.PostBurst = 5
	}
	if s.Private.Pg.SslMode == "" {
		s.Private.Pg.SslMode = "disable"
	}
	if s.Private.Pg.ConnectAttempts == 0 {
		s.Private.Pg.ConnectAttempts = 5
	}
}

func (s *Config) validate() error {
	switch s.Public.Storage {
	case StoragePg:
		if s.Private.Pg.Host == "" || s.Private.Pg.Dbname == "" {
			return fmt.Errorf("pg storage requires pg.host and pg.dbname")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage %q", s.Public.Storage)
	}
	if s.Private.JwtKey == "" {
		return fmt.Errorf("jwt_key is required")
	}
	return nil
}
