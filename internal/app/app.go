package app

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/handlers"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/services/auth"
	"github.com/ternarybob/scribo/internal/services/deletion"
	"github.com/ternarybob/scribo/internal/services/intake"
	"github.com/ternarybob/scribo/internal/services/llm"
	"github.com/ternarybob/scribo/internal/services/qa"
	"github.com/ternarybob/scribo/internal/storage/badger"
	"github.com/ternarybob/scribo/internal/storage/sqlite"
)

// App wires the API process: both stores, the coordinators, and the HTTP
// handlers.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	SQLiteDB         *sqlite.SQLiteDB
	PublisherStorage interfaces.PublisherStorage
	StorageManager   interfaces.StorageManager
	LLMService       interfaces.LLMService

	APIHandler       *handlers.APIHandler
	JobHandler       *handlers.JobHandler
	QuestionHandler  *handlers.QuestionHandler
	SearchHandler    *handlers.SearchHandler
	QAHandler        *handlers.QAHandler
	PublisherHandler *handlers.PublisherHandler
}

// New creates and wires the API application
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
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
	policy := auth.NewPolicy(logger)
	intakeCoordinator := intake.NewCoordinator(publisherStorage, jobStorage, artifactStorage, policy, logger)
	deletionCoordinator := deletion.NewCoordinator(artifactStorage, logger)
	qaService := qa.NewService(artifactStorage, llmService, logger)

	app := &App{
		Config:           config,
		Logger:           logger,
		SQLiteDB:         db,
		PublisherStorage: publisherStorage,
		StorageManager:   storageManager,
		LLMService:       llmService,

		APIHandler:       handlers.NewAPIHandler(logger),
		JobHandler:       handlers.NewJobHandler(intakeCoordinator, jobStorage, logger),
		QuestionHandler:  handlers.NewQuestionHandler(intakeCoordinator, deletionCoordinator, artifactStorage, logger),
		SearchHandler:    handlers.NewSearchHandler(artifactStorage, logger),
		QAHandler:        handlers.NewQAHandler(qaService, logger),
		PublisherHandler: handlers.NewPublisherHandler(publisherStorage, artifactStorage, logger),
	}

	logger.Info().Msg("Application initialized")
	return app, nil
}

// Close releases all application resources
func (a *App) Close() {
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
