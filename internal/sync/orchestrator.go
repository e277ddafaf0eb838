// Package sync runs the client-directory to remote-contact synchronization.
// One Orchestrator is constructed per process; it owns the run state machine
// and is the only component that drives the mapper, the duplicate detection
// engine and the API client together.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/caselink/contactsync/internal/conf"
	"github.com/caselink/contactsync/internal/datastore"
	"github.com/caselink/contactsync/internal/dedup"
	"github.com/caselink/contactsync/internal/errors"
	"github.com/caselink/contactsync/internal/logging"
	"github.com/caselink/contactsync/internal/mapper"
	"github.com/caselink/contactsync/internal/notify"
	"github.com/caselink/contactsync/internal/observability/metrics"
	"github.com/caselink/contactsync/internal/provider"
)

var logger = logging.ForService("sync")

// DefaultBatchSize is the number of clients fanned out per batch.
const DefaultBatchSize = 50

// Options controls one sync run.
type Options struct {
	Mode Mode
	// Since bounds incremental runs; ignored for full runs. A zero value
	// defaults to 24 hours ago.
	Since  time.Time
	DryRun bool
}

// Orchestrator coordinates sync runs. Safe for concurrent use; at most one
// run executes at a time and a second request fails fast.
type Orchestrator struct {
	client          provider.Interface
	store           datastore.Interface
	engine          *dedup.Engine
	fieldKeys       *conf.CustomFieldKeys
	batchSize       int
	continueOnError bool
	sink            notify.Sink
	metrics         *metrics.SyncMetrics

	mu          stdsync.Mutex
	state       State
	lastResult  *Result
	subscribers []func(Progress)
}

// New creates an orchestrator. A nil sink defaults to the log sink.
func New(client provider.Interface, store datastore.Interface, engine *dedup.Engine, settings *conf.Settings) *Orchestrator {
	batchSize := settings.Sync.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Orchestrator{
		client:          client,
		store:           store,
		engine:          engine,
		fieldKeys:       &settings.Provider.CustomFields,
		batchSize:       batchSize,
		continueOnError: settings.Sync.ContinueOnError,
		sink:            notify.NewLogSink(),
		state:           StateIdle,
	}
}

// SetSink replaces the event sink.
func (o *Orchestrator) SetSink(sink notify.Sink) {
	if sink != nil {
		o.sink = sink
	}
}

// SetMetrics attaches Prometheus collectors. Optional.
func (o *Orchestrator) SetMetrics(m *metrics.SyncMetrics) {
	o.metrics = m
}

// Subscribe registers a progress callback invoked after each batch.
// Callbacks run on the orchestrator goroutine and should return quickly.
func (o *Orchestrator) Subscribe(fn func(Progress)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subscribers = append(o.subscribers, fn)
}

// State returns the current run state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastResult returns the outcome of the most recent completed run, or nil.
func (o *Orchestrator) LastResult() *Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastResult
}

// begin claims the running state. A call while another run is in flight
// fails immediately without starting anything.
func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateRunning {
		return errors.Newf("a sync run is already in progress").
			Category(errors.CategoryState).
			Component("sync").
			Build()
	}
	o.state = StateRunning
	return nil
}

// SyncContacts executes one run, failing fast when another run is in flight.
func (o *Orchestrator) SyncContacts(ctx context.Context, opts Options) (*Result, error) {
	if err := o.begin(); err != nil {
		return nil, err
	}
	return o.execute(ctx, opts)
}

// StartSync claims the running state synchronously, then executes the run in
// the background. Callers get the mutual-exclusion failure immediately; the
// run's outcome is observable through State and LastResult.
func (o *Orchestrator) StartSync(ctx context.Context, opts Options) error {
	if err := o.begin(); err != nil {
		return err
	}
	go func() {
		if _, err := o.execute(ctx, opts); err != nil {
			logger.Error("background sync run failed", "error", err)
		}
	}()
	return nil
}

// execute runs one sync pass. The caller must already hold the running state
// via begin.
func (o *Orchestrator) execute(ctx context.Context, opts Options) (*Result, error) {
	if opts.Mode == "" {
		opts.Mode = ModeFull
	}

	result := &Result{
		RunID:     uuid.NewString(),
		Mode:      opts.Mode,
		DryRun:    opts.DryRun,
		StartedAt: time.Now(),
	}
	runLogger := logger.With("run_id", result.RunID, "mode", opts.Mode, "dry_run", opts.DryRun)
	runLogger.Info("sync run starting")
	o.emit(ctx, result.RunID, notify.KindRunStarted, "sync run starting", map[string]any{
		"mode":    string(opts.Mode),
		"dry_run": opts.DryRun,
	})

	res, err := o.run(ctx, opts, result, runLogger)

	o.mu.Lock()
	if err != nil || !res.Success {
		o.state = StateFailure
	} else {
		o.state = StateSuccess
	}
	o.lastResult = res
	o.mu.Unlock()

	if o.metrics != nil {
		outcome := "success"
		if err != nil || !res.Success {
			outcome = "failure"
		}
		o.metrics.ObserveRun(string(opts.Mode), outcome, res.Duration())
		o.metrics.ClientsProcessed.Add(float64(res.ClientsProcessed))
		o.metrics.ContactsCreated.Add(float64(res.TotalContactsCreated))
		o.metrics.ContactsUpdated.Add(float64(res.TotalContactsUpdated))
		o.metrics.ContactsSkipped.Add(float64(res.TotalContactsSkipped))
		o.metrics.ClientErrors.Add(float64(len(res.Errors)))
	}
	return res, err
}

func (o *Orchestrator) run(ctx context.Context, opts Options, result *Result, runLogger *slog.Logger) (*Result, error) {
	fail := func(err error) (*Result, error) {
		result.FinishedAt = time.Now()
		runLogger.Error("sync run aborted", "error", err)
		o.emit(ctx, result.RunID, notify.KindRunFailed, err.Error(), nil)
		return result, err
	}

	// Both endpoints must be reachable before any client is touched.
	if err := o.client.Ping(ctx); err != nil {
		return fail(errors.Newf("provider unreachable: %w", err).
			Category(errors.CategoryNetwork).
			Component("sync").
			Build())
	}
	if err := o.store.Ping(); err != nil {
		return fail(errors.Newf("database unreachable: %w", err).
			Category(errors.CategoryDatabase).
			Component("sync").
			Build())
	}

	clients, err := o.fetchClients(opts)
	if err != nil {
		return fail(err)
	}
	total := len(clients)
	runLogger.Info("fetched candidate clients", "count", total)

	counts := &tally{}
	var countsMu stdsync.Mutex

	for start := 0; start < total; start += o.batchSize {
		end := min(start+o.batchSize, total)
		batch := clients[start:end]

		g, gctx := errgroup.WithContext(ctx)
		for i := range batch {
			client := &batch[i]
			g.Go(func() error {
				created, updated, skipped, perr := o.processClient(gctx, client, opts.DryRun)

				countsMu.Lock()
				counts.created += created
				counts.updated += updated
				counts.skipped += skipped
				if perr != nil {
					counts.addError(client.ID, client.Name, perr)
				}
				countsMu.Unlock()

				if perr != nil {
					runLogger.Warn("client sync failed", "client_id", client.ID, "error", perr)
					o.emit(gctx, result.RunID, notify.KindClientError, perr.Error(), map[string]any{
						"client_id":   client.ID,
						"client_name": client.Name,
					})
					if !o.continueOnError {
						return perr
					}
				}
				return nil
			})
		}
		batchErr := g.Wait()

		result.ClientsProcessed = end
		countsMu.Lock()
		o.publishProgress(result, counts, total, end)
		countsMu.Unlock()

		if batchErr != nil {
			o.finalize(result, counts, &countsMu)
			return fail(batchErr)
		}
	}

	o.finalize(result, counts, &countsMu)
	runLogger.Info("sync run finished",
		"clients", result.ClientsProcessed,
		"created", result.TotalContactsCreated,
		"updated", result.TotalContactsUpdated,
		"skipped", result.TotalContactsSkipped,
		"errors", len(result.Errors),
		"duration_ms", result.Duration().Milliseconds())

	kind := notify.KindRunCompleted
	message := "sync run completed"
	if !result.Success {
		kind = notify.KindRunFailed
		message = fmt.Sprintf("sync run completed with %d client errors", len(result.Errors))
	}
	o.emit(ctx, result.RunID, kind, message, map[string]any{
		"clients": result.ClientsProcessed,
		"created": result.TotalContactsCreated,
		"updated": result.TotalContactsUpdated,
		"skipped": result.TotalContactsSkipped,
		"errors":  len(result.Errors),
	})
	return result, nil
}

func (o *Orchestrator) fetchClients(opts Options) ([]datastore.Client, error) {
	if opts.Mode == ModeIncremental {
		since := opts.Since
		if since.IsZero() {
			since = time.Now().Add(-24 * time.Hour)
		}
		return o.store.GetClientsUpdatedSince(since)
	}
	return o.store.GetAllClients()
}

// processClient maps one client and creates or updates each resulting
// contact. Within a client main-before-alternatives ordering is preserved:
// the mapper only emits alternatives after a valid main entry, and the
// contacts are written in slice order.
func (o *Orchestrator) processClient(ctx context.Context, client *datastore.Client, dryRun bool) (created, updated, skipped int, err error) {
	contacts := mapper.MapClientToContacts(client, o.fieldKeys)
	if len(contacts) == 0 {
		logger.Debug("client has no mappable contacts", "client_id", client.ID)
		return 0, 0, 1, nil
	}

	for i := range contacts {
		req := &contacts[i]

		check, derr := o.engine.CheckDuplicate(ctx, req)
		if derr != nil {
			return created, updated, skipped, derr
		}

		if dryRun {
			if check.IsDuplicate {
				updated++
			} else {
				created++
			}
			continue
		}

		if check.IsDuplicate {
			remote, uerr := o.client.UpdateContact(ctx, check.RemoteID, req)
			if uerr != nil {
				return created, updated, skipped, uerr
			}
			o.engine.IndexContact(remote)
			updated++
		} else {
			remote, cerr := o.client.CreateContact(ctx, req)
			if cerr != nil {
				return created, updated, skipped, cerr
			}
			o.engine.IndexContact(remote)
			created++
		}
	}
	return created, updated, skipped, nil
}

// finalize copies the tallies into the immutable result.
func (o *Orchestrator) finalize(result *Result, counts *tally, countsMu *stdsync.Mutex) {
	countsMu.Lock()
	defer countsMu.Unlock()
	result.TotalContactsCreated = counts.created
	result.TotalContactsUpdated = counts.updated
	result.TotalContactsSkipped = counts.skipped
	result.Errors = counts.errors
	result.Success = len(counts.errors) == 0
	result.FinishedAt = time.Now()
}

// publishProgress snapshots the tallies for subscribers. Caller holds the
// counts mutex.
func (o *Orchestrator) publishProgress(result *Result, counts *tally, total, processed int) {
	progress := Progress{
		RunID:     result.RunID,
		Step:      "processing clients",
		Processed: processed,
		Total:     total,
		Created:   counts.created,
		Updated:   counts.updated,
		Skipped:   counts.skipped,
		Errored:   len(counts.errors),
	}
	if processed > 0 && processed < total {
		elapsed := time.Since(result.StartedAt)
		progress.ETA = elapsed / time.Duration(processed) * time.Duration(total-processed)
	}

	o.mu.Lock()
	subscribers := make([]func(Progress), len(o.subscribers))
	copy(subscribers, o.subscribers)
	o.mu.Unlock()
	for _, fn := range subscribers {
		fn(progress)
	}
}

func (o *Orchestrator) emit(ctx context.Context, runID, kind, message string, fields map[string]any) {
	event := notify.Event{
		RunID:     runID,
		Kind:      kind,
		Message:   message,
		Timestamp: time.Now(),
		Fields:    fields,
	}
	if err := o.sink.Publish(ctx, event); err != nil {
		logger.Warn("failed to publish sync event", "kind", kind, "error", err)
	}
}
