package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lcoppola/dropforward/internal/config"
	"github.com/lcoppola/dropforward/internal/dropbox"
	"github.com/lcoppola/dropforward/internal/eml"
	"github.com/lcoppola/dropforward/internal/instrumentation"
	"github.com/lcoppola/dropforward/internal/logging"
	"github.com/lcoppola/dropforward/internal/mailer"
	"github.com/lcoppola/dropforward/internal/pipeline"
	"github.com/lcoppola/dropforward/internal/token"
)

// app bundles the wired components shared by the CLI commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
	manager   *token.Manager
	client    *dropbox.Client
	poller    *pipeline.Poller
}

// newApp loads configuration, opens the run log, and wires the token
// manager, storage client, notifier, and poller together. metrics may be
// nil for one-shot commands.
func newApp(metrics *instrumentation.Metrics) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := os.MkdirAll(cfg.StorageRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", cfg.StorageRoot, err)
	}

	logPath := cfg.LogFile
	if !filepath.IsAbs(logPath) {
		logPath = filepath.Join(cfg.StorageRoot, logPath)
	}
	logger, logCloser, err := logging.NewFileLogger(logPath, slog.LevelInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}

	store := token.NewStore(cfg.TokenFile)
	manager := token.NewManager(
		token.OAuthConfig(cfg.Dropbox.ClientID, cfg.Dropbox.ClientSecret, cfg.Dropbox.RedirectURI),
		store,
		token.WithLogger(logger),
	)

	client := dropbox.NewClient(manager,
		dropbox.WithClientLogger(logger),
		dropbox.WithClientMetrics(metrics),
	)

	notifier := mailer.NewNotifier(mailer.Config{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		TLS:      cfg.Mail.TLS,
	}, logger, metrics)

	var unwrapper pipeline.Unwrapper
	if cfg.ProcessEml {
		unwrapper = eml.NewUnwrapper(cfg.AcceptedExtensions, logger)
	}

	pipe := pipeline.New(client, notifier, unwrapper, pipeline.Settings{
		StorageRoot:           cfg.StorageRoot,
		AcceptedExtensions:    cfg.AcceptedExtensions,
		ProcessContainers:     cfg.ProcessEml,
		BackupFolder:          cfg.Dropbox.BackupFolder,
		MailFrom:              cfg.Mail.From,
		MailTo:                cfg.Mail.To,
		DeleteRemoteAfterSend: cfg.Dropbox.DeleteAfterSend,
		DeleteLocalAfterSend:  cfg.DeleteLocalAfterSend,
	}, logger, metrics)

	poller := pipeline.NewPoller(client, pipe, cfg.Dropbox.SourceFolder, logger, metrics)

	return &app{
		cfg:       cfg,
		logger:    logger,
		logCloser: logCloser,
		manager:   manager,
		client:    client,
		poller:    poller,
	}, nil
}

// Close releases the run log.
func (a *app) Close() {
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}
