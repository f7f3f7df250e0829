package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "./storage", cfg.StorageRoot)
	assert.Equal(t, []string{"pdf"}, cfg.AcceptedExtensions)
	assert.False(t, cfg.ProcessEml)
	assert.True(t, cfg.DeleteLocalAfterSend)
	assert.True(t, cfg.Dropbox.DeleteAfterSend)
	assert.Equal(t, "/in", cfg.Dropbox.SourceFolder)
	assert.Equal(t, "/backup", cfg.Dropbox.BackupFolder)
	assert.Equal(t, 10*time.Minute, cfg.Schedule.RunTimeout)
	assert.Equal(t, ":3500", cfg.Server.Addr)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DROPFORWARD_STORAGE_ROOT", "/var/lib/dropforward")
	t.Setenv("DROPFORWARD_PROCESS_EML", "true")
	t.Setenv("DROPFORWARD_DROPBOX_SOURCE_FOLDER", "/fatture")
	t.Setenv("DROPFORWARD_MAIL_FROM", "noreply@example.com")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/dropforward", cfg.StorageRoot)
	assert.True(t, cfg.ProcessEml)
	assert.Equal(t, "/fatture", cfg.Dropbox.SourceFolder)
	assert.Equal(t, "noreply@example.com", cfg.Mail.From)
}

func TestLoadFromEnvOnly(t *testing.T) {
	t.Setenv("DROPFORWARD_DROPBOX_CLIENT_ID", "app-key")
	t.Setenv("DROPFORWARD_DROPBOX_CLIENT_SECRET", "app-secret")
	t.Setenv("DROPFORWARD_MAIL_FROM", "a@example.com")
	t.Setenv("DROPFORWARD_MAIL_TO", "b@example.com")
	t.Setenv("DROPFORWARD_SERVER_API_KEY", "ping-key")

	// A deployment configured purely through the environment must pass
	// validation without a config file.
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "app-key", cfg.Dropbox.ClientID)
	assert.Equal(t, "app-secret", cfg.Dropbox.ClientSecret)
	assert.Equal(t, "a@example.com", cfg.Mail.From)
	assert.Equal(t, "b@example.com", cfg.Mail.To)
	assert.Equal(t, "ping-key", cfg.Server.APIKey)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
storage_root: /data
accepted_extensions: [".PDF", "Docx"]
dropbox:
  client_id: app-key
  client_secret: app-secret
mail:
  from: a@example.com
  to: b@example.com
schedule:
  poll: "*/2 * * * *"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data", cfg.StorageRoot)
	// Extensions are normalized to lowercase without a leading dot.
	assert.Equal(t, []string{"pdf", "docx"}, cfg.AcceptedExtensions)
	assert.Equal(t, "*/2 * * * *", cfg.Schedule.Poll)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		cfg.Dropbox.ClientID = "id"
		cfg.Dropbox.ClientSecret = "secret"
		cfg.Mail.From = "a@example.com"
		cfg.Mail.To = "b@example.com"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing storage root", func(c *Config) { c.StorageRoot = "" }, "storage_root"},
		{"missing token file", func(c *Config) { c.TokenFile = "" }, "token_file"},
		{"empty extensions", func(c *Config) { c.AcceptedExtensions = nil }, "accepted_extensions"},
		{"missing credentials", func(c *Config) { c.Dropbox.ClientSecret = "" }, "client_id"},
		{"missing addresses", func(c *Config) { c.Mail.To = "" }, "mail.from"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestAccepts(t *testing.T) {
	cfg := &Config{AcceptedExtensions: []string{"pdf", "xml"}}

	assert.True(t, cfg.Accepts("pdf"))
	assert.True(t, cfg.Accepts("PDF"))
	assert.True(t, cfg.Accepts(".pdf"))
	assert.True(t, cfg.Accepts("xml"))
	assert.False(t, cfg.Accepts("exe"))
	assert.False(t, cfg.Accepts(""))
}
