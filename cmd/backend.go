package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/faceauth/internal/config"
	"github.com/kozaktomas/faceauth/internal/database"
	"github.com/kozaktomas/faceauth/internal/database/mariadb"
	"github.com/kozaktomas/faceauth/internal/database/postgres"
	"github.com/kozaktomas/faceauth/internal/database/sqlite"
	"github.com/kozaktomas/faceauth/internal/events"
	"github.com/kozaktomas/faceauth/internal/facematch"
	"github.com/kozaktomas/faceauth/internal/flow"
	"github.com/kozaktomas/faceauth/internal/i18n"
	"github.com/kozaktomas/faceauth/internal/vision"
	"github.com/kozaktomas/faceauth/internal/web/middleware"
	log "github.com/sirupsen/logrus"
)

// storage is the opened storage backend.
type storage struct {
	// sessions is set only when the backend can persist web sessions
	sessions middleware.SessionRepository
	// templates is the pgvector mirror, postgres only
	templates *postgres.TemplateRepository
	close     func()
}

// openStorage connects the backend selected by STORAGE_BACKEND and registers it.
func openStorage(cfg *config.Config) (*storage, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		store, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite store: %w", err)
		}
		database.RegisterBackend("sqlite", func() database.KeyValueStore { return store })
		log.WithField("path", cfg.Storage.SQLitePath).Info("Using SQLite storage")
		return &storage{close: func() { _ = store.Close() }}, nil

	case "postgres":
		pool, err := postgres.Open(context.Background(), &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		kv := postgres.NewKeyValueRepository(pool)
		templates := postgres.NewTemplateRepository(pool)
		database.RegisterBackend("postgres", func() database.KeyValueStore { return kv })
		database.RegisterTemplateMirror(func() database.TemplateMirror { return templates })
		log.Info("Using PostgreSQL storage with template mirror and session persistence")
		return &storage{
			sessions:  postgres.NewSessionRepository(pool),
			templates: templates,
			close:     func() { _ = pool.Close() },
		}, nil

	case "mariadb":
		pool, err := mariadb.NewPool(cfg.Storage.MariaDBDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MariaDB: %w", err)
		}
		database.RegisterBackend("mariadb", func() database.KeyValueStore { return pool })
		log.Info("Using MariaDB storage")
		return &storage{close: func() { _ = pool.Close() }}, nil
	}
	return nil, fmt.Errorf("unknown STORAGE_BACKEND %q (sqlite, postgres or mariadb)", cfg.Storage.Backend)
}

// faceStack is everything a flow needs besides its camera.
type faceStack struct {
	engine     vision.Engine
	loader     *vision.ModelLoader
	extractor  *vision.Extractor
	publisher  events.Publisher
	translator *i18n.Translator
	deps       flow.Deps
}

// newFaceStack creates the vision engine, starts model loading in the
// background and assembles flow dependencies over the registered storage.
func newFaceStack(ctx context.Context, cfg *config.Config) (*faceStack, error) {
	engine, err := vision.New(cfg)
	if err != nil {
		return nil, err
	}

	templates, err := database.GetTemplateStore(ctx)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	users, err := database.GetUserStore(ctx)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}

	translator, err := i18n.New(cfg.Language)
	if err != nil {
		_ = engine.Close()
		return nil, fmt.Errorf("loading translations: %w", err)
	}

	publisher, err := events.NewPublisher(cfg.MQTT)
	if err != nil {
		// outcome events are optional, the screens work without them
		log.WithError(err).Warn("MQTT publisher unavailable, outcome events disabled")
		publisher = events.NoopPublisher{}
	}

	loader := vision.NewModelLoader(engine, cfg.Models, cfg.Vision.ModelsPath)
	loader.Start(ctx)

	extractor := vision.NewExtractor(engine)
	return &faceStack{
		engine:     engine,
		loader:     loader,
		extractor:  extractor,
		publisher:  publisher,
		translator: translator,
		deps: flow.Deps{
			Loader:     loader,
			Extractor:  extractor,
			Comparer:   facematch.NewEngine(engine.Distance),
			Templates:  templates,
			Users:      users,
			Publisher:  publisher,
			Translator: translator,
			Language:   cfg.Language,
		},
	}, nil
}

func (f *faceStack) Close() {
	f.publisher.Close()
	if err := f.engine.Close(); err != nil {
		log.WithError(err).Warn("Closing vision engine")
	}
}
