package config

import (
	"os"
	"path"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// DBConfig database config
type DBConfig struct {
	Type     string `yaml:"type"` // postgres or sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Passwd   string `yaml:"passwd"`
	MaxConn  int    `yaml:"max_conn"`
	IdleConn int    `yaml:"idle_conn"`
	Debug    bool   `yaml:"debug"`
}

// SysConfig system config
type SysConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location"`
	Workdir  string `yaml:"workdir"`
	Debug    bool   `yaml:"debug"`
}

// WebConfig web server config
type WebConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Secret    string `yaml:"secret"`
	StaticDir string `yaml:"static_dir"`
}

// AuthConfig token issuing config
type AuthConfig struct {
	JwtSecret     string `yaml:"jwt_secret"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
	AdminPassword string `yaml:"admin_password"`
}

// MailConfig SMTP settings for the nightly sales report
type MailConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// StoreConfig defaults for stores without runtime settings
type StoreConfig struct {
	DefaultID string `yaml:"default_id"`
	DemoMode  bool   `yaml:"demo_mode"`
}

// LogConfig logging config
type LogConfig struct {
	Mode       string `yaml:"mode"`
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

type AppConfig struct {
	System   SysConfig   `yaml:"system"`
	Web      WebConfig   `yaml:"web"`
	Database DBConfig    `yaml:"database"`
	Auth     AuthConfig  `yaml:"auth"`
	Mail     MailConfig  `yaml:"mail"`
	Store    StoreConfig `yaml:"store"`
	Logger   LogConfig   `yaml:"logger"`
}

func (c *AppConfig) GetLogDir() string {
	return path.Join(c.System.Workdir, "logs")
}

func (c *AppConfig) GetDataDir() string {
	return path.Join(c.System.Workdir, "data")
}

func (c *AppConfig) GetMetricsDir() string {
	return path.Join(c.System.Workdir, "metrics")
}

func (c *AppConfig) GetBackupDir() string {
	return path.Join(c.System.Workdir, "backup")
}

// InitDirs creates the working directories.
func (c *AppConfig) InitDirs() error {
	for _, dir := range []string{c.GetLogDir(), c.GetDataDir(), c.GetMetricsDir(), c.GetBackupDir()} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	return nil
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "VelvetPOS",
		Location: "America/New_York",
		Workdir:  "/var/velvetpos",
		Debug:    true,
	},
	Web: WebConfig{
		Host:   "0.0.0.0",
		Port:   5000,
		Secret: "9b6de5cc-0731-4bf1-velvet-0f568ac9da37",
	},
	Database: DBConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "velvetpos",
		User:     "postgres",
		Passwd:   "myroot",
		MaxConn:  100,
		IdleConn: 10,
		Debug:    false,
	},
	Auth: AuthConfig{
		JwtSecret:     "velvetpos-jwt-secret",
		TokenTTLHours: 12,
		AdminPassword: "velvetpos",
	},
	Mail: MailConfig{
		Port: 587,
	},
	Store: StoreConfig{
		DefaultID: "default",
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: true,
		Filename:   "/var/velvetpos/logs/velvetpos.log",
	},
}

// LoadConfig reads the YAML file (falling back to the defaults when it is absent)
// and applies VELVETPOS_* environment overrides.
func LoadConfig(cfile string) *AppConfig {
	cfg := *DefaultAppConfig
	cfg.Mail.To = append([]string(nil), DefaultAppConfig.Mail.To...)

	if cfile == "" {
		cfile = "velvetpos.yml"
	}
	if data, err := os.ReadFile(cfile); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			panic(err)
		}
	}

	applyEnv(&cfg)
	return &cfg
}

func setEnvValue(name string, val *string) {
	if v := os.Getenv(name); v != "" {
		*val = v
	}
}

func setEnvBoolValue(name string, val *bool) {
	if v := os.Getenv(name); v != "" {
		*val = cast.ToBool(v)
	}
}

func setEnvIntValue(name string, val *int) {
	if v := os.Getenv(name); v != "" {
		*val = cast.ToInt(v)
	}
}

func applyEnv(cfg *AppConfig) {
	setEnvValue("VELVETPOS_SYSTEM_WORKER_DIR", &cfg.System.Workdir)
	setEnvValue("VELVETPOS_SYSTEM_LOCATION", &cfg.System.Location)
	setEnvBoolValue("VELVETPOS_SYSTEM_DEBUG", &cfg.System.Debug)

	setEnvValue("VELVETPOS_WEB_HOST", &cfg.Web.Host)
	setEnvIntValue("VELVETPOS_WEB_PORT", &cfg.Web.Port)
	setEnvIntValue("PORT", &cfg.Web.Port)
	setEnvValue("VELVETPOS_WEB_SECRET", &cfg.Web.Secret)
	setEnvValue("VELVETPOS_WEB_STATIC_DIR", &cfg.Web.StaticDir)

	setEnvValue("VELVETPOS_DB_TYPE", &cfg.Database.Type)
	setEnvValue("VELVETPOS_DB_HOST", &cfg.Database.Host)
	setEnvIntValue("VELVETPOS_DB_PORT", &cfg.Database.Port)
	setEnvValue("VELVETPOS_DB_NAME", &cfg.Database.Name)
	setEnvValue("VELVETPOS_DB_USER", &cfg.Database.User)
	setEnvValue("VELVETPOS_DB_PWD", &cfg.Database.Passwd)
	setEnvBoolValue("VELVETPOS_DB_DEBUG", &cfg.Database.Debug)

	setEnvValue("VELVETPOS_JWT_SECRET", &cfg.Auth.JwtSecret)
	setEnvIntValue("VELVETPOS_TOKEN_TTL_HOURS", &cfg.Auth.TokenTTLHours)
	setEnvValue("VELVETPOS_ADMIN_PASSWORD", &cfg.Auth.AdminPassword)

	setEnvBoolValue("VELVETPOS_MAIL_ENABLED", &cfg.Mail.Enabled)
	setEnvValue("VELVETPOS_MAIL_HOST", &cfg.Mail.Host)
	setEnvIntValue("VELVETPOS_MAIL_PORT", &cfg.Mail.Port)
	setEnvValue("VELVETPOS_MAIL_USERNAME", &cfg.Mail.Username)
	setEnvValue("VELVETPOS_MAIL_PASSWORD", &cfg.Mail.Password)
	setEnvValue("VELVETPOS_MAIL_FROM", &cfg.Mail.From)
	if v := os.Getenv("VELVETPOS_MAIL_TO"); v != "" {
		cfg.Mail.To = nil
		for _, addr := range strings.Split(v, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				cfg.Mail.To = append(cfg.Mail.To, addr)
			}
		}
	}

	setEnvValue("VELVETPOS_STORE_DEFAULT_ID", &cfg.Store.DefaultID)
	setEnvBoolValue("VELVETPOS_DEMO_MODE", &cfg.Store.DemoMode)

	setEnvValue("VELVETPOS_LOGGER_MODE", &cfg.Logger.Mode)
	setEnvBoolValue("VELVETPOS_LOGGER_FILE_ENABLE", &cfg.Logger.FileEnable)
	setEnvValue("VELVETPOS_LOGGER_FILENAME", &cfg.Logger.Filename)
	if os.Getenv("ENVIRONMENT") == "production" {
		cfg.Logger.Mode = "production"
		cfg.System.Debug = false
	}
}
