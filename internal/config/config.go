// Package config loads the process configuration from environment
// variables and an optional YAML file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DropboxConfig holds the OAuth application credentials for the remote
// storage provider.
type DropboxConfig struct {
	// ClientID is the Dropbox app key.
	ClientID string `mapstructure:"client_id"`

	// ClientSecret is the Dropbox app secret.
	ClientSecret string `mapstructure:"client_secret"`

	// RedirectURI is the registered OAuth redirect URI.
	RedirectURI string `mapstructure:"redirect_uri"`

	// SourceFolder is the remote folder polled for incoming files.
	SourceFolder string `mapstructure:"source_folder"`

	// BackupFolder is the remote folder archived copies are uploaded to.
	BackupFolder string `mapstructure:"backup_folder"`

	// DeleteAfterSend removes the remote original once an entry has been
	// forwarded and archived.
	DeleteAfterSend bool `mapstructure:"delete_after_send"`
}

// MailConfig holds the SMTP transport settings and message addressing.
type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// TLS selects implicit TLS; when false STARTTLS is used.
	TLS bool `mapstructure:"tls"`

	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`
}

// ScheduleConfig holds the cron expressions for the two periodic jobs.
// An invalid expression is a startup error for that job only.
type ScheduleConfig struct {
	// Poll is the cron expression for the folder poll job.
	Poll string `mapstructure:"poll"`

	// Refresh is the cron expression for the token refresh job.
	Refresh string `mapstructure:"refresh"`

	// RunTimeout bounds a single triggered run; an expired run is aborted
	// and its partial results logged.
	RunTimeout time.Duration `mapstructure:"run_timeout"`
}

// ServerConfig holds the HTTP front door settings.
type ServerConfig struct {
	Addr   string `mapstructure:"addr"`
	APIKey string `mapstructure:"api_key"`
}

// Config is the top-level configuration for dropforward.
type Config struct {
	// StorageRoot is the local directory temp files and the run log live under.
	StorageRoot string `mapstructure:"storage_root"`

	// TokenFile is the path of the persisted OAuth token record.
	TokenFile string `mapstructure:"token_file"`

	// AcceptedExtensions are the lowercase file extensions forwarded by mail.
	AcceptedExtensions []string `mapstructure:"accepted_extensions"`

	// ProcessEml enables unwrapping of .eml mail-container files.
	ProcessEml bool `mapstructure:"process_eml"`

	// DeleteLocalAfterSend removes local temp files after a successful send.
	DeleteLocalAfterSend bool `mapstructure:"delete_local_after_send"`

	// RefreshAtStart refreshes the persisted token once at daemon startup,
	// discarding the record if the refresh is rejected.
	RefreshAtStart bool `mapstructure:"refresh_at_start"`

	// LogFile is the dated run log, relative paths resolve under StorageRoot.
	LogFile string `mapstructure:"log_file"`

	Dropbox  DropboxConfig  `mapstructure:"dropbox"`
	Mail     MailConfig     `mapstructure:"mail"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Server   ServerConfig   `mapstructure:"server"`
}

const envPrefix = "DROPFORWARD"

// envKeys is every configuration key. Unmarshal resolves environment
// variables only for keys viper already knows, so each one is bound
// explicitly; a default alone is not enough for keys that have none.
var envKeys = []string{
	"storage_root",
	"token_file",
	"accepted_extensions",
	"process_eml",
	"delete_local_after_send",
	"refresh_at_start",
	"log_file",
	"dropbox.client_id",
	"dropbox.client_secret",
	"dropbox.redirect_uri",
	"dropbox.source_folder",
	"dropbox.backup_folder",
	"dropbox.delete_after_send",
	"mail.host",
	"mail.port",
	"mail.username",
	"mail.password",
	"mail.tls",
	"mail.from",
	"mail.to",
	"schedule.poll",
	"schedule.refresh",
	"schedule.run_timeout",
	"server.addr",
	"server.api_key",
}

// Load reads configuration from environment variables with the DROPFORWARD_
// prefix and, when path is non-empty, a YAML file. Environment variables win
// over file values. Missing keys resolve to defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding environment for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	for i, ext := range cfg.AcceptedExtensions {
		cfg.AcceptedExtensions[i] = strings.ToLower(strings.TrimPrefix(ext, "."))
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage_root", "./storage")
	v.SetDefault("token_file", "./storage/dropbox.token.json")
	v.SetDefault("accepted_extensions", []string{"pdf"})
	v.SetDefault("process_eml", false)
	v.SetDefault("delete_local_after_send", true)
	v.SetDefault("refresh_at_start", false)
	v.SetDefault("log_file", "dropforward.log")

	v.SetDefault("dropbox.source_folder", "/in")
	v.SetDefault("dropbox.backup_folder", "/backup")
	v.SetDefault("dropbox.delete_after_send", true)

	v.SetDefault("mail.port", "587")
	v.SetDefault("mail.tls", false)

	v.SetDefault("schedule.poll", "*/5 * * * *")
	v.SetDefault("schedule.refresh", "0 */3 * * *")
	v.SetDefault("schedule.run_timeout", 10*time.Minute)

	v.SetDefault("server.addr", ":3500")
}

// Validate checks the settings a running daemon cannot do without.
func (c *Config) Validate() error {
	if c.StorageRoot == "" {
		return fmt.Errorf("storage_root is required")
	}
	if c.TokenFile == "" {
		return fmt.Errorf("token_file is required")
	}
	if len(c.AcceptedExtensions) == 0 {
		return fmt.Errorf("accepted_extensions must not be empty")
	}
	if c.Dropbox.ClientID == "" || c.Dropbox.ClientSecret == "" {
		return fmt.Errorf("dropbox.client_id and dropbox.client_secret are required")
	}
	if c.Mail.From == "" || c.Mail.To == "" {
		return fmt.Errorf("mail.from and mail.to are required")
	}
	return nil
}

// Accepts reports whether ext (without leading dot, any case) is in the
// accepted extension set.
func (c *Config) Accepts(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range c.AcceptedExtensions {
		if a == ext {
			return true
		}
	}
	return false
}
