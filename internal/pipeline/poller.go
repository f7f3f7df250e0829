package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lcoppola/dropforward/internal/dropbox"
	"github.com/lcoppola/dropforward/internal/instrumentation"
	"github.com/lcoppola/dropforward/internal/logging"
)

// maxListingCalls bounds one run's listing calls: processed files are
// deleted during the run, so chasing has_more could loop forever if new
// files keep arriving.
const maxListingCalls = 5

// Processor handles one listed entry.
type Processor interface {
	Process(ctx context.Context, entry dropbox.Entry) Result
}

// Lister enumerates one page of a remote folder.
type Lister interface {
	ListFolder(ctx context.Context, path string) (*dropbox.ListingPage, error)
}

// Poller drives the processor over every entry of the source folder. At
// most one run executes at a time; overlapping triggers are skipped.
type Poller struct {
	lister    Lister
	processor Processor
	folder    string
	logger    *slog.Logger
	metrics   *instrumentation.Metrics

	mu sync.Mutex
}

// NewPoller returns a Poller over the given source folder.
func NewPoller(lister Lister, processor Processor, folder string, logger *slog.Logger, metrics *instrumentation.Metrics) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}
	return &Poller{
		lister:    lister,
		processor: processor,
		folder:    folder,
		logger:    logging.WithComponent(logger, "poller"),
		metrics:   metrics,
	}
}

// Run lists the source folder and processes every entry, re-listing while
// pages report more content, up to the listing ceiling. A listing failure
// aborts the run; results already produced are returned alongside the
// error. trigger names what fired the run ("schedule" or "webhook").
func (p *Poller) Run(ctx context.Context, trigger string) ([]Result, error) {
	if !p.mu.TryLock() {
		p.logger.Info("poll run skipped, previous run still in progress",
			logging.Operation("poll"),
		)
		return nil, ErrRunInProgress
	}
	defer p.mu.Unlock()

	start := time.Now()
	ctx, span := instrumentation.StartPollSpan(ctx, trigger)
	defer span.End()

	var results []Result
	for calls := 0; calls < maxListingCalls; calls++ {
		page, err := p.lister.ListFolder(ctx, p.folder)
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrListing, err)
			instrumentation.SetSpanError(span, err)
			p.metrics.RecordPollRun(ctx, trigger, instrumentation.StatusError, time.Since(start))
			p.logger.Error("poll run aborted",
				logging.Operation("poll"),
				logging.Path(p.folder),
				logging.Err(err),
			)
			return results, err
		}

		for _, entry := range page.Entries {
			results = append(results, p.processor.Process(ctx, entry))
		}

		if !page.HasMore {
			break
		}
	}

	instrumentation.SetSpanSuccess(span)
	p.metrics.RecordPollRun(ctx, trigger, instrumentation.StatusSuccess, time.Since(start))
	p.logger.Info("poll run finished",
		logging.Operation("poll"),
		logging.Path(p.folder),
		slog.Int("entries", len(results)),
		slog.Duration(logging.KeyDuration, time.Since(start)),
	)
	return results, nil
}
