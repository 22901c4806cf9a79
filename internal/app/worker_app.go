package app

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/services/crawler"
	"github.com/ternarybob/scribo/internal/services/llm"
	"github.com/ternarybob/scribo/internal/services/pipeline"
	"github.com/ternarybob/scribo/internal/storage/badger"
	"github.com/ternarybob/scribo/internal/storage/sqlite"
	"github.com/ternarybob/scribo/internal/worker"
)

// WorkerApp wires the worker process: both stores, the pipeline executor,
// the queue-draining loop, and the cron maintenance runner.
type WorkerApp struct {
	Config *common.Config
	Logger arbor.ILogger

	SQLiteDB         *sqlite.SQLiteDB
	PublisherStorage interfaces.PublisherStorage
	StorageManager   interfaces.StorageManager
	LLMService       interfaces.LLMService

	Loop        *worker.Loop
	Maintenance *worker.Maintenance
}

// NewWorker creates and wires the worker application
func NewWorker(config *common.Config, logger arbor.ILogger) (*WorkerApp, error) {
	db, err := sqlite.NewSQLiteDB(logger, &config.Storage.SQLite)
	if err != nil {
		return nil, err
	}
	publisherStorage := sqlite.NewPublisherStorage(db, logger)

	storageManager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		db.Close()
		return nil, err
	}

	jobStorage := storageManager.JobStorage()
	artifactStorage := storageManager.ArtifactStorage()

	llmService := llm.NewService(config, logger)
	crawlerService := crawler.NewService(config.Crawler, logger)

	executor := pipeline.NewExecutor(publisherStorage, jobStorage, artifactStorage, crawlerService, llmService, logger)
	loop := worker.NewLoop(jobStorage, executor, config, logger)

	reconciler := worker.NewReconciler(publisherStorage, jobStorage, logger)
	sweeper := worker.NewSweeper(jobStorage, config.StuckJobThreshold(), logger)
	maintenance := worker.NewMaintenance(reconciler, sweeper, config, logger)

	app := &WorkerApp{
		Config:           config,
		Logger:           logger,
		SQLiteDB:         db,
		PublisherStorage: publisherStorage,
		StorageManager:   storageManager,
		LLMService:       llmService,
		Loop:             loop,
		Maintenance:      maintenance,
	}

	logger.Info().Msg("Worker application initialized")
	return app, nil
}

// Close releases all worker resources
func (a *WorkerApp) Close() {
	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM service")
		}
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close badger storage")
		}
	}
	if a.SQLiteDB != nil {
		if err := a.SQLiteDB.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close sqlite storage")
		}
	}
}
