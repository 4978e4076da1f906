// Package config loads process configuration from the environment, with an
// optional YAML policy file for decision and autonomy thresholds.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	id "permitpulse/pkg/domain"
)

// Config is the full process configuration.
type Config struct {
	Server   Server
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Archive  ArchiveConfig
	Model    ModelConfig
	Operator OperatorConfig
	Policy   Policy
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string
}

// IsLocal reports whether logs should be human readable.
func (s Server) IsLocal() bool {
	return s.Environment == "" || s.Environment == "local"
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig is optional; an empty URL disables the rollback claim lock.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ClaimTTL     time.Duration
}

// KafkaConfig is optional; no brokers disables the change feed.
type KafkaConfig struct {
	Brokers     []string
	ClientID    string
	AlertsTopic string
	EventsTopic string
}

// ArchiveConfig is optional; an empty bucket disables raw document archiving.
type ArchiveConfig struct {
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// ModelConfig is optional; an empty API key disables the model extraction pass.
type ModelConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type OperatorConfig struct {
	CronSharedSecret string
	JWTSigningKey    string
}

// CitySource maps a city code to the page its regulations are fetched from.
type CitySource struct {
	Code string `yaml:"code"`
	URL  string `yaml:"url"`
}

// GateConfig mirrors the validation gate thresholds.
type GateConfig struct {
	MaxGrowthRatio float64 `yaml:"max_growth_ratio"`
	MinShrinkRatio float64 `yaml:"min_shrink_ratio"`
	ScoreFloor     float64 `yaml:"score_floor"`
}

type SLOConfig struct {
	AvailabilityTarget float64       `yaml:"availability_target"`
	AutoRecoveryTarget float64       `yaml:"auto_recovery_target"`
	Window             time.Duration `yaml:"window"`
	RecoveryLookback   time.Duration `yaml:"recovery_lookback"`
}

// Policy holds the tunable business thresholds. Every field has a default and
// may be overridden by the policy file.
type Policy struct {
	ConfidenceThreshold    float64        `yaml:"confidence_threshold"`
	PlanQuotas             map[string]int `yaml:"plan_quotas"`
	Gate                   GateConfig     `yaml:"validation_gate"`
	SLO                    SLOConfig      `yaml:"slo"`
	Cities                 []CitySource   `yaml:"cities"`
	FetchTimeout           time.Duration  `yaml:"fetch_timeout"`
	FetchRatePerSecond     float64        `yaml:"fetch_rate_per_second"`
	MaintenanceConcurrency int            `yaml:"maintenance_concurrency"`
}

// DefaultPolicy returns the production thresholds.
func DefaultPolicy() Policy {
	return Policy{
		ConfidenceThreshold: 0.8,
		PlanQuotas:          map[string]int{"starter": 30, "pro": 200, "team": 1000},
		Gate: GateConfig{
			MaxGrowthRatio: 3.0,
			MinShrinkRatio: 0.33,
			ScoreFloor:     0.5,
		},
		SLO: SLOConfig{
			AvailabilityTarget: 99.9,
			AutoRecoveryTarget: 95.0,
			Window:             24 * time.Hour,
			RecoveryLookback:   10 * time.Minute,
		},
		Cities: []CitySource{
			{Code: "NYC", URL: "https://www.nyc.gov/site/specialenforcement/registration-law/registration-for-hosts.page"},
			{Code: "LA", URL: "https://planning.lacity.gov/plans-policies/initiatives-policies/home-sharing"},
			{Code: "SF", URL: "https://www.sf.gov/short-term-rentals"},
		},
		FetchTimeout:           15 * time.Second,
		FetchRatePerSecond:     1,
		MaintenanceConcurrency: 3,
	}
}

// FromEnv builds the configuration from environment variables so main stays lean.
func FromEnv() (Config, error) {
	cfg := Config{
		Server: Server{
			Addr:        getenv("PERMITPULSE_ADDR", ":8080"),
			Environment: getenv("PERMITPULSE_ENV", "local"),
			LogLevel:    getenv("PERMITPULSE_LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getenvInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getenvInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getenvDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getenvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getenvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getenvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getenvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getenvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			ClaimTTL:     getenvDuration("REDIS_ROLLBACK_CLAIM_TTL", time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(os.Getenv("KAFKA_BROKERS")),
			ClientID:    getenv("KAFKA_CLIENT_ID", "permitpulse"),
			AlertsTopic: getenv("KAFKA_ALERTS_TOPIC", "permitpulse.alerts"),
			EventsTopic: getenv("KAFKA_EVENTS_TOPIC", "permitpulse.autonomy-events"),
		},
		Archive: ArchiveConfig{
			Bucket:       os.Getenv("ARCHIVE_BUCKET"),
			Prefix:       getenv("ARCHIVE_PREFIX", "raw-documents"),
			Region:       getenv("AWS_REGION", "us-east-1"),
			Endpoint:     os.Getenv("ARCHIVE_ENDPOINT"),
			UsePathStyle: os.Getenv("ARCHIVE_USE_PATH_STYLE") == "true",
		},
		Model: ModelConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:   getenv("OPENAI_MODEL", "gpt-4.1-mini"),
			Timeout: getenvDuration("OPENAI_TIMEOUT", 30*time.Second),
		},
		Operator: OperatorConfig{
			CronSharedSecret: os.Getenv("CRON_SHARED_SECRET"),
			JWTSigningKey:    os.Getenv("OPERATOR_JWT_SIGNING_KEY"),
		},
		Policy: DefaultPolicy(),
	}

	if path := os.Getenv("PERMITPULSE_POLICY_FILE"); path != "" {
		policy, err := LoadPolicy(path, cfg.Policy)
		if err != nil {
			return Config{}, err
		}
		cfg.Policy = policy
	}
	return cfg, nil
}

// LoadPolicy reads a YAML policy file over base. Keys absent from the file keep
// their base values.
func LoadPolicy(path string, base Policy) (Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicy(raw, base)
}

// ParsePolicy decodes YAML over base and validates the result.
func ParsePolicy(raw []byte, base Policy) (Policy, error) {
	policy := base
	quotas := make(map[string]int, len(base.PlanQuotas))
	for plan, quota := range base.PlanQuotas {
		quotas[plan] = quota
	}
	policy.PlanQuotas = quotas

	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return Policy{}, fmt.Errorf("decode policy file: %w", err)
	}
	if err := policy.Validate(); err != nil {
		return Policy{}, err
	}
	return policy, nil
}

// Validate rejects thresholds that would disable the safety gates.
func (p Policy) Validate() error {
	if p.ConfidenceThreshold <= 0 || p.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in (0, 1], got %v", p.ConfidenceThreshold)
	}
	if p.Gate.MaxGrowthRatio <= 1 || p.Gate.MinShrinkRatio <= 0 || p.Gate.MinShrinkRatio >= 1 {
		return fmt.Errorf("validation_gate ratios must satisfy 0 < min_shrink_ratio < 1 < max_growth_ratio")
	}
	if _, ok := p.PlanQuotas["starter"]; !ok {
		return fmt.Errorf("plan_quotas must define starter")
	}
	if len(p.Cities) == 0 {
		return fmt.Errorf("at least one city source is required")
	}
	for _, c := range p.Cities {
		if c.Code == "" || c.URL == "" {
			return fmt.Errorf("city sources need both code and url")
		}
	}
	if p.MaintenanceConcurrency < 1 {
		return fmt.Errorf("maintenance_concurrency must be positive")
	}
	return nil
}

// CityURL returns the configured source URL for code.
func (p Policy) CityURL(code string) (string, bool) {
	for _, c := range p.Cities {
		if strings.EqualFold(c.Code, code) {
			return c.URL, true
		}
	}
	return "", false
}

// CityCodes returns the configured cities in file order.
func (p Policy) CityCodes() []id.CityCode {
	out := make([]id.CityCode, 0, len(p.Cities))
	for _, c := range p.Cities {
		out = append(out, id.CityCode(strings.ToUpper(strings.TrimSpace(c.Code))))
	}
	return out
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
