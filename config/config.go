// Package config loads the service configuration from flags, ACCOUNTS_*
// environment variables and an optional YAML file, in that order of
// precedence, on top of defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	accounts "github.com/goliatone/go-accounts"
)

const envPrefix = "ACCOUNTS"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Links     LinksConfig     `mapstructure:"links"`
	Mail      MailConfig      `mapstructure:"mail"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type AppConfig struct {
	URL     string `mapstructure:"url"`
	SiteURL string `mapstructure:"site_url"`
	Debug   bool   `mapstructure:"debug"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type AuthConfig struct {
	SigningKey      string        `mapstructure:"signing_key"`
	TokenExpiration time.Duration `mapstructure:"token_expiration"`
	Issuer          string        `mapstructure:"issuer"`
	Audience        []string      `mapstructure:"audience"`
}

type LinksConfig struct {
	Key            string        `mapstructure:"key"`
	ActivationTTL  time.Duration `mapstructure:"activation_ttl"`
	EmailChangeTTL time.Duration `mapstructure:"email_change_ttl"`
	SingleUse      bool          `mapstructure:"single_use"`
}

type MailConfig struct {
	// Driver is smtp or log.
	Driver     string        `mapstructure:"driver"`
	From       string        `mapstructure:"from"`
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	Username   string        `mapstructure:"username"`
	Password   string        `mapstructure:"password"`
	RequireTLS bool          `mapstructure:"require_tls"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Async      bool          `mapstructure:"async"`
}

type RateLimitConfig struct {
	MailMax    int           `mapstructure:"mail_max"`
	MailWindow time.Duration `mapstructure:"mail_window"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var _ accounts.Config = (*Config)(nil)

func (c *Config) GetAppURL() string                { return c.App.URL }
func (c *Config) GetSiteURL() string               { return c.App.SiteURL }
func (c *Config) GetActivationTTL() time.Duration  { return c.Links.ActivationTTL }
func (c *Config) GetEmailChangeTTL() time.Duration { return c.Links.EmailChangeTTL }
func (c *Config) GetSingleUseLinks() bool          { return c.Links.SingleUse }

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.App, validation.By(func(any) error {
			return validation.ValidateStruct(&c.App,
				validation.Field(&c.App.URL, validation.Required, is.URL),
				validation.Field(&c.App.SiteURL, validation.Required, is.URL),
			)
		})),
		validation.Field(&c.Database, validation.By(func(any) error {
			return validation.ValidateStruct(&c.Database,
				validation.Field(&c.Database.DSN, validation.Required),
			)
		})),
		validation.Field(&c.Auth, validation.By(func(any) error {
			return validation.ValidateStruct(&c.Auth,
				validation.Field(&c.Auth.SigningKey, validation.Required, validation.Length(32, 0)),
				validation.Field(&c.Auth.TokenExpiration, validation.Required),
			)
		})),
		validation.Field(&c.Links, validation.By(func(any) error {
			return validation.ValidateStruct(&c.Links,
				validation.Field(&c.Links.Key, validation.Required, validation.Length(32, 0)),
				validation.Field(&c.Links.ActivationTTL, validation.Required),
				validation.Field(&c.Links.EmailChangeTTL, validation.Required),
			)
		})),
		validation.Field(&c.Mail, validation.By(func(any) error {
			return validation.ValidateStruct(&c.Mail,
				validation.Field(&c.Mail.Driver, validation.In("smtp", "log")),
				validation.Field(&c.Mail.From, validation.Required, is.EmailFormat),
				validation.Field(&c.Mail.Host, validation.When(c.Mail.Driver == "smtp", validation.Required)),
			)
		})),
		validation.Field(&c.Log, validation.By(func(any) error {
			return validation.ValidateStruct(&c.Log,
				validation.Field(&c.Log.Level, validation.In("debug", "info", "warn", "error")),
				validation.Field(&c.Log.Format, validation.In("text", "json")),
			)
		})),
	)
}

// Manager binds configuration keys to flags and environment variables.
type Manager struct {
	viper *viper.Viper
	flags *pflag.FlagSet
}

// NewManager registers every configuration flag on flags.
func NewManager(flags *pflag.FlagSet) *Manager {
	man := &Manager{
		viper: viper.New(),
		flags: flags,
	}
	man.addConfigs()
	return man
}

func (man *Manager) addConfigs() {
	man.flags.String("config", "", "Path to a YAML configuration file")

	man.addConfigString("server.address", ":8080", "Address the HTTP server listens on")

	man.addConfigString("app.url", "http://localhost:8080", "Public URL of this API, signed links point here")
	man.addConfigString("app.site_url", "http://localhost:3000", "Front end URL confirmations redirect to")
	man.addConfigBool("app.debug", false, "Dump request payloads")

	man.addConfigString("database.dsn", "file:accounts.db?cache=shared", "Database DSN, sqlite file: or postgres://")

	man.addConfigString("auth.signing_key", "", "HMAC key for access tokens")
	man.addConfigDuration("auth.token_expiration", 24*time.Hour, "Access token lifetime")
	man.addConfigString("auth.issuer", "go-accounts", "Access token issuer")
	man.addConfigStringSlice("auth.audience", []string{"go-accounts"}, "Access token audience")

	man.addConfigString("links.key", "", "HMAC key for signed links")
	man.addConfigDuration("links.activation_ttl", accounts.DefaultActivationTTL, "Activation link lifetime")
	man.addConfigDuration("links.email_change_ttl", accounts.DefaultEmailChangeTTL, "Email change link lifetime")
	man.addConfigBool("links.single_use", false, "Reject signed links presented more than once")

	man.addConfigString("mail.driver", "log", "Mail driver, smtp or log")
	man.addConfigString("mail.from", "no-reply@example.com", "Sender address")
	man.addConfigString("mail.host", "", "SMTP host")
	man.addConfigInt("mail.port", 587, "SMTP port")
	man.addConfigString("mail.username", "", "SMTP username")
	man.addConfigString("mail.password", "", "SMTP password")
	man.addConfigBool("mail.require_tls", true, "Require STARTTLS")
	man.addConfigDuration("mail.timeout", 10*time.Second, "SMTP dial timeout")
	man.addConfigBool("mail.async", false, "Deliver mail in the background")

	man.addConfigInt("ratelimit.mail_max", 5, "Mail requests allowed per window and user")
	man.addConfigDuration("ratelimit.mail_window", time.Minute, "Mail rate limit window")

	man.addConfigString("log.level", "info", "Log level")
	man.addConfigString("log.format", "text", "Log format, text or json")
}

// Load reads the configuration file named by --config, if any, and returns
// the validated configuration.
func (man *Manager) Load() (*Config, error) {
	if file, _ := man.flags.GetString("config"); file != "" {
		man.viper.SetConfigType("yaml")
		man.viper.SetConfigFile(file)
		if err := man.viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := man.viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigFileUsed returns the loaded file, if any.
func (man *Manager) ConfigFileUsed() string {
	return man.viper.ConfigFileUsed()
}

func (man *Manager) bind(key string) {
	man.viper.BindPFlag(key, man.flags.Lookup(flagNameFromConfigKey(key)))
	man.viper.BindEnv(key, envNameFromConfigKey(key))
}

func (man *Manager) addConfigString(key, defVal, usage string) {
	man.flags.String(flagNameFromConfigKey(key), defVal, getFlagUsage(key, usage))
	man.bind(key)
}

func (man *Manager) addConfigStringSlice(key string, defVal []string, usage string) {
	man.flags.StringSlice(flagNameFromConfigKey(key), defVal, getFlagUsage(key, usage))
	man.bind(key)
}

func (man *Manager) addConfigInt(key string, defVal int, usage string) {
	man.flags.Int(flagNameFromConfigKey(key), defVal, getFlagUsage(key, usage))
	man.bind(key)
}

func (man *Manager) addConfigBool(key string, defVal bool, usage string) {
	man.flags.Bool(flagNameFromConfigKey(key), defVal, getFlagUsage(key, usage))
	man.bind(key)
}

func (man *Manager) addConfigDuration(key string, defVal time.Duration, usage string) {
	man.flags.Duration(flagNameFromConfigKey(key), defVal, getFlagUsage(key, usage))
	man.bind(key)
}

// envNameFromConfigKey converts a config key into the corresponding
// environment variable name
func envNameFromConfigKey(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// flagNameFromConfigKey converts a config key into the corresponding flag name
func flagNameFromConfigKey(key string) string {
	return strings.ReplaceAll(key, ".", "-")
}

func getFlagUsage(key string, usage string) string {
	return fmt.Sprintf("%s (env %s)", usage, envNameFromConfigKey(key))
}
