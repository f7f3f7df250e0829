package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lcoppola/dropforward/internal/dropbox"
	"github.com/lcoppola/dropforward/internal/instrumentation"
	"github.com/lcoppola/dropforward/internal/logging"
)

// containerExtension is the mail-container format unwrapped when container
// processing is enabled.
const containerExtension = "eml"

// Storage is the remote storage capability the pipeline consumes.
type Storage interface {
	ListFolder(ctx context.Context, path string) (*dropbox.ListingPage, error)
	Download(ctx context.Context, path, destDir string) (*dropbox.LocalFile, error)
	Upload(ctx context.Context, localPath, remotePath string) (*dropbox.Receipt, error)
	Delete(ctx context.Context, path string) (*dropbox.Receipt, error)
}

// Notifier delivers a message with a single attachment and returns an
// opaque delivery identifier.
type Notifier interface {
	Send(ctx context.Context, from, to, subject, body, attachmentPath string) (string, error)
}

// Unwrapper extracts accepted attachments from a mail-container file.
type Unwrapper interface {
	SenderIdentity(path string) (string, error)
	ExtractAttachments(path, prefix, destDir string) ([]string, error)
}

// Settings carries the per-run policy knobs for entry processing.
type Settings struct {
	// StorageRoot is the local directory files are materialized under.
	StorageRoot string

	// AcceptedExtensions is the lowercase extension allow list.
	AcceptedExtensions []string

	// ProcessContainers enables unwrapping of mail-container files.
	ProcessContainers bool

	// BackupFolder is the remote folder processed files are archived to.
	BackupFolder string

	// MailFrom and MailTo are the notification addresses.
	MailFrom string
	MailTo   string

	// DeleteRemoteAfterSend removes the remote original once an entry
	// has been mailed and archived.
	DeleteRemoteAfterSend bool

	// DeleteLocalAfterSend removes local temp files after a successful
	// entry. Failed entries always clean up their temp files.
	DeleteLocalAfterSend bool
}

// Accepts reports whether a lowercase extension is in the accepted set.
func (s Settings) Accepts(ext string) bool {
	for _, e := range s.AcceptedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Pipeline processes one listed entry at a time: download, classify,
// optionally unwrap, filter, notify, archive, cleanup. A stage failure
// aborts only that entry.
type Pipeline struct {
	storage   Storage
	notifier  Notifier
	unwrapper Unwrapper
	settings  Settings
	logger    *slog.Logger
	metrics   *instrumentation.Metrics
}

// New returns a Pipeline over the given collaborators. unwrapper may be nil
// when container processing is disabled.
func New(storage Storage, notifier Notifier, unwrapper Unwrapper, settings Settings, logger *slog.Logger, metrics *instrumentation.Metrics) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}
	return &Pipeline{
		storage:   storage,
		notifier:  notifier,
		unwrapper: unwrapper,
		settings:  settings,
		logger:    logging.WithComponent(logger, "pipeline"),
		metrics:   metrics,
	}
}

// Process runs the stage sequence for one entry and reports its outcome.
// Errors never escape; they are folded into the returned Result.
func (p *Pipeline) Process(ctx context.Context, entry dropbox.Entry) Result {
	start := time.Now()
	ctx, span := instrumentation.StartSpan(ctx, "intake.entry",
		attribute.String(instrumentation.SpanAttrEntry, entry.Name),
		attribute.String(instrumentation.SpanAttrPath, entry.Path),
	)
	defer span.End()

	result := p.process(ctx, entry)

	p.metrics.RecordEntry(ctx, string(result.Outcome), time.Since(start))
	span.SetAttributes(attribute.String(instrumentation.SpanAttrOutcome, string(result.Outcome)))
	switch result.Outcome {
	case OutcomeFailed:
		instrumentation.SetSpanError(span, result.Err)
		p.logger.Error("entry processing failed",
			logging.Entry(entry.Name),
			logging.Path(entry.Path),
			logging.Err(result.Err),
		)
	default:
		instrumentation.SetSpanSuccess(span)
		p.logger.Info("entry processed",
			logging.Entry(entry.Name),
			logging.Path(entry.Path),
			logging.Result(result.Detail),
			logging.Status(string(result.Outcome)),
		)
	}
	return result
}

func (p *Pipeline) process(ctx context.Context, entry dropbox.Entry) Result {
	remotePath, err := p.resolve(ctx, entry)
	if err != nil {
		return failed(entry, err)
	}
	if remotePath == "" {
		return skipped(entry, "folder holds no files")
	}

	var temps []string
	cleanup := func(keep bool) {
		if keep && !p.settings.DeleteLocalAfterSend {
			return
		}
		for _, path := range temps {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				p.logger.Warn("failed to remove local file",
					logging.Path(path),
					logging.Err(err),
				)
			}
		}
	}

	local, err := p.storage.Download(ctx, remotePath, p.settings.StorageRoot)
	if err != nil {
		return failed(entry, fmt.Errorf("%w: %w", ErrDownload, err))
	}
	temps = append(temps, local.Path)

	filename := local.Name
	localPath := local.Path
	ext := extensionOf(filename)

	if p.settings.ProcessContainers && ext == containerExtension {
		filename, localPath, err = p.unwrap(ctx, entry.Path, local, &temps)
		if err != nil {
			cleanup(false)
			return failed(entry, err)
		}
		ext = extensionOf(filename)
	}

	if !p.settings.Accepts(ext) {
		// Poison handling: an unsupported type never becomes acceptable,
		// so the remote original is removed rather than retried. Deletes
		// always target the listed entry, not a resolved inner file.
		p.deleteRemote(ctx, entry.Path)
		cleanup(false)
		return failed(entry, fmt.Errorf("%w: %s has extension %q", ErrUnsupportedType, filename, ext))
	}

	subject := "Attachment - " + filename
	deliveryID, err := p.notifier.Send(ctx, p.settings.MailFrom, p.settings.MailTo, subject, subject, localPath)
	if err != nil {
		// The remote original stays put so the next run retries it.
		cleanup(false)
		return failed(entry, fmt.Errorf("%w: %w", ErrNotify, err))
	}

	backupPath := p.settings.BackupFolder + "/" + filename
	if _, err := p.storage.Upload(ctx, localPath, backupPath); err != nil {
		cleanup(false)
		return failed(entry, fmt.Errorf("%w: %w", ErrArchive, err))
	}

	if p.settings.DeleteRemoteAfterSend {
		p.deleteRemote(ctx, entry.Path)
	}
	cleanup(true)

	return sent(entry, fmt.Sprintf("mail %s sent to %s", deliveryID, p.settings.MailTo))
}

// resolve maps a listed entry to the remote path to download. A folder
// entry resolves to its first contained file; an empty folder resolves to
// no work.
func (p *Pipeline) resolve(ctx context.Context, entry dropbox.Entry) (string, error) {
	if entry.Tag != dropbox.TagFolder {
		return entry.Path, nil
	}

	page, err := p.storage.ListFolder(ctx, entry.Path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownload, err)
	}
	if len(page.Entries) == 0 {
		return "", nil
	}
	return page.Entries[0].Path, nil
}

// unwrap extracts the first accepted attachment from the downloaded
// container. A container that cannot be parsed or yields no accepted
// attachment is poison: the listed entry is deleted remotely and
// ErrEmptyContainer returned.
func (p *Pipeline) unwrap(ctx context.Context, entryPath string, local *dropbox.LocalFile, temps *[]string) (string, string, error) {
	prefix, err := p.unwrapper.SenderIdentity(local.Path)
	if err != nil {
		p.logger.Warn("failed to read container sender, using fallback prefix",
			logging.Path(local.Path),
			logging.Err(err),
		)
		prefix = "file"
	}

	attachments, err := p.unwrapper.ExtractAttachments(local.Path, prefix, p.settings.StorageRoot)
	if err != nil {
		p.deleteRemote(ctx, entryPath)
		return "", "", fmt.Errorf("%w: %w", ErrEmptyContainer, err)
	}
	for _, name := range attachments {
		*temps = append(*temps, filepath.Join(p.settings.StorageRoot, name))
	}
	if len(attachments) == 0 {
		p.deleteRemote(ctx, entryPath)
		return "", "", fmt.Errorf("%w: %s", ErrEmptyContainer, local.Name)
	}

	name := attachments[0]
	return name, filepath.Join(p.settings.StorageRoot, name), nil
}

// deleteRemote removes the remote original, logging rather than failing the
// entry when the provider refuses. The listing on the next run is the
// source of truth either way.
func (p *Pipeline) deleteRemote(ctx context.Context, remotePath string) {
	if _, err := p.storage.Delete(ctx, remotePath); err != nil {
		p.logger.Warn("failed to delete remote original",
			logging.Path(remotePath),
			logging.Err(err),
		)
	}
}

// extensionOf returns the lowercase extension of name without the dot.
func extensionOf(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
