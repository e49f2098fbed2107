package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"coachplanner/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Backup     BackupConfig     `yaml:"backup"`
	Redis      RedisConfig      `yaml:"redis"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Scheduling SchedulingConfig `yaml:"scheduling"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
	Worker     WorkerConfig     `yaml:"worker"`
	Exports    ExportConfig     `yaml:"exports"`
	Seed       SeedConfig       `yaml:"seed"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	BaseURL     string `yaml:"base_url"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	RetentionDays int           `yaml:"retention_days"`
	StoragePath   string        `yaml:"storage_path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	HTTP       APIHTTPConfig      `yaml:"http"`
	GRPC       APIGRPCConfig      `yaml:"grpc"`
	RateLimit  APIRateLimitConfig `yaml:"rate_limit"`
	SessionTTL time.Duration      `yaml:"session_ttl"`
	Login      LoginConfig        `yaml:"login"`
	// TrustedProxies lists the peers, as IPs or CIDRs, whose
	// X-Forwarded-For header is honoured.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// TrustedProxyPrefixes parses TrustedProxies. A bare IP becomes a
// single-address prefix.
func (c APIConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if strings.Contains(raw, "/") {
			prefix, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool `yaml:"enabled"`
	Port       int  `yaml:"port"`
	Reflection bool `yaml:"reflection"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type LoginConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Window      time.Duration `yaml:"window"`
}

// SchedulingConfig fixes the timezone and the weekday numbering used by
// stored availability windows.
type SchedulingConfig struct {
	Timezone    string `yaml:"timezone"`
	WeekdayBase string `yaml:"weekday_base"`
}

// Location loads the configured timezone. Call after Validate.
func (s SchedulingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

func (s SMTPConfig) Enabled() bool {
	return s.Host != ""
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	Debug    bool   `yaml:"debug"`
}

type GoogleConfig struct {
	CredentialsFile     string `yaml:"credentials_file"`
	AgendaSpreadsheetID string `yaml:"agenda_spreadsheet_id"`
	AgendaSheetName     string `yaml:"agenda_sheet_name"`
}

type WorkerConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

// SeedConfig is reference data synced into the database at start-up.
type SeedConfig struct {
	Profiles  []models.Profile        `yaml:"profiles"`
	Windows   []SeedWindow            `yaml:"windows"`
	Trainings []models.TrainingOption `yaml:"trainings"`
}

type SeedWindow struct {
	CoachEmail string `yaml:"coach_email"`
	Weekday    int    `yaml:"weekday"`
	StartHour  int    `yaml:"start_hour"`
	EndHour    int    `yaml:"end_hour"`
}

func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.App.BaseURL == "" {
		return errors.New("app base_url is required")
	}
	if _, err := time.LoadLocation(c.Scheduling.Timezone); err != nil {
		return fmt.Errorf("invalid scheduling timezone %q: %w", c.Scheduling.Timezone, err)
	}
	if !models.ValidWeekdayBase(c.Scheduling.WeekdayBase) {
		return fmt.Errorf("scheduling weekday_base must be %q or %q, got %q",
			models.WeekdayBaseSunday, models.WeekdayBaseMonday, c.Scheduling.WeekdayBase)
	}
	if _, err := c.API.TrustedProxyPrefixes(); err != nil {
		return err
	}

	return ValidateSeed(c.Seed)
}

func ValidateSeed(seed SeedConfig) error {
	emails := make(map[string]string)
	for _, p := range seed.Profiles {
		email := strings.ToLower(strings.TrimSpace(p.Email))
		if email == "" {
			return fmt.Errorf("seed profile %q has no email", p.DisplayName)
		}
		if _, dup := emails[email]; dup {
			return fmt.Errorf("duplicate seed profile email: %s", email)
		}
		if p.Role != models.RoleClient && p.Role != models.RoleCoach {
			return fmt.Errorf("seed profile %s has unknown role %q", email, p.Role)
		}
		emails[email] = p.Role
	}

	for _, w := range seed.Windows {
		role, ok := emails[strings.ToLower(strings.TrimSpace(w.CoachEmail))]
		if !ok || role != models.RoleCoach {
			return fmt.Errorf("seed window references unknown coach %s", w.CoachEmail)
		}
		window := models.AvailabilityWindow{Weekday: w.Weekday, StartHour: w.StartHour, EndHour: w.EndHour}
		if err := window.Validate(); err != nil {
			return fmt.Errorf("seed window for %s: %w", w.CoachEmail, err)
		}
	}

	trainingIDs := make(map[int64]bool)
	for _, tr := range seed.Trainings {
		if tr.ID == 0 {
			return fmt.Errorf("training '%s' has invalid ID 0", tr.Name)
		}
		if trainingIDs[tr.ID] {
			return fmt.Errorf("duplicate training ID found: %d", tr.ID)
		}
		trainingIDs[tr.ID] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "coachplanner"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 5
	}
	if c.API.SessionTTL == 0 {
		c.API.SessionTTL = models.DefaultSessionTTL * time.Second
	}
	if c.API.Login.MaxAttempts == 0 {
		c.API.Login.MaxAttempts = models.LoginAttempts
	}
	if c.API.Login.Window == 0 {
		c.API.Login.Window = models.LoginWindow * time.Second
	}

	if c.Scheduling.Timezone == "" {
		c.Scheduling.Timezone = models.DefaultTimezone
	}
	if c.Scheduling.WeekdayBase == "" {
		c.Scheduling.WeekdayBase = models.WeekdayBaseSunday
	}
	c.Scheduling.WeekdayBase = strings.ToLower(strings.TrimSpace(c.Scheduling.WeekdayBase))

	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.Google.AgendaSheetName == "" {
		c.Google.AgendaSheetName = "Agenda"
	}

	if c.Worker.MaxRetries == 0 {
		c.Worker.MaxRetries = 5
	}
	if c.Worker.InitialDelay == 0 {
		c.Worker.InitialDelay = 2 * time.Second
	}
	if c.Worker.MaxDelay == 0 {
		c.Worker.MaxDelay = time.Minute
	}
	if c.Worker.PollInterval == 0 {
		c.Worker.PollInterval = 2 * time.Second
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
	c.App.BaseURL = strings.TrimRight(c.App.BaseURL, "/")
}
