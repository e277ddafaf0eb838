// Package app wires the contact sync stack together: configuration, store,
// API client, duplicate detection, orchestrator, importer, metrics and the
// notification sink. Commands construct one App and share it.
package app

import (
	"time"

	"github.com/caselink/contactsync/internal/commimport"
	"github.com/caselink/contactsync/internal/conf"
	"github.com/caselink/contactsync/internal/datastore"
	"github.com/caselink/contactsync/internal/dedup"
	"github.com/caselink/contactsync/internal/errors"
	"github.com/caselink/contactsync/internal/logging"
	"github.com/caselink/contactsync/internal/notify"
	"github.com/caselink/contactsync/internal/observability"
	"github.com/caselink/contactsync/internal/provider"
	syncengine "github.com/caselink/contactsync/internal/sync"
)

var logger = logging.ForService("app")

// App holds the assembled sync stack.
type App struct {
	Settings     *conf.Settings
	Store        datastore.Interface
	Client       provider.Interface
	Engine       *dedup.Engine
	Orchestrator *syncengine.Orchestrator
	Importer     *commimport.Importer
	Metrics      *observability.Metrics
	Sink         notify.Sink
}

// New builds the full stack from settings. Everything it opens is released
// by Close.
func New(settings *conf.Settings) (*App, error) {
	store := datastore.New(settings)
	if store == nil {
		return nil, errors.Newf("no output database is enabled").
			Category(errors.CategoryConfiguration).
			Component("app").
			Build()
	}
	if err := store.Open(); err != nil {
		return nil, err
	}

	client, err := provider.NewClient(provider.ConfigFromSettings(&settings.Provider))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	obs, err := observability.NewMetrics()
	if err != nil {
		client.Close()
		_ = store.Close()
		return nil, err
	}
	client.SetMetrics(obs.Provider)

	engine := dedup.NewEngine(client, settings.Sync.NameSimilarityThreshold)
	engine.SetMetrics(obs.Dedup)
	if settings.Sync.CacheTTL > 0 {
		engine.SetSnapshotTTL(time.Duration(settings.Sync.CacheTTL) * time.Minute)
	}

	orchestrator := syncengine.New(client, store, engine, settings)
	orchestrator.SetMetrics(obs.Sync)

	importer := commimport.New(client, store, settings)
	importer.SetMetrics(obs.Sync)

	app := &App{
		Settings:     settings,
		Store:        store,
		Client:       client,
		Engine:       engine,
		Orchestrator: orchestrator,
		Importer:     importer,
		Metrics:      obs,
		Sink:         notify.NewLogSink(),
	}

	if settings.Notify.MQTT.Enabled {
		mqttSink, err := notify.NewMQTTSink(&settings.Notify.MQTT)
		if err != nil {
			logger.Warn("MQTT sink unavailable, events go to the log only", "error", err)
		} else {
			app.Sink = notify.NewMulti(notify.NewLogSink(), mqttSink)
		}
	}
	orchestrator.SetSink(app.Sink)

	return app, nil
}

// Close releases the store, the API client and the event sink.
func (a *App) Close() {
	if a.Sink != nil {
		if err := a.Sink.Close(); err != nil {
			logger.Warn("closing event sink", "error", err)
		}
	}
	if a.Client != nil {
		a.Client.Close()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			logger.Warn("closing datastore", "error", err)
		}
	}
}
