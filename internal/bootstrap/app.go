package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	googleauth "grainlab-backend/internal/auth"
	"grainlab-backend/internal/categories"
	"grainlab-backend/internal/classifications"
	"grainlab-backend/internal/feedback"
	"grainlab-backend/internal/grainai"
	"grainlab-backend/internal/queue"
	"grainlab-backend/internal/roles"
	"grainlab-backend/internal/services/health"
	"grainlab-backend/internal/shared/config"
	"grainlab-backend/internal/shared/server"
	"grainlab-backend/internal/shared/storage/db"
	"grainlab-backend/internal/shared/storage/object"
	localstore "grainlab-backend/internal/shared/storage/object/local"
	s3store "grainlab-backend/internal/shared/storage/object/s3"
	"grainlab-backend/internal/uploads"
	"grainlab-backend/internal/users"
	"grainlab-backend/internal/webhook"
)

// App holds shared dependencies for the api and worker binaries.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Queue  queue.Client

	ClassificationsRepo classifications.Repo
	CategoriesRepo      categories.Repo
	UsersRepo           users.Repo
	RolesRepo           roles.Repo
	FeedbackRepo        feedback.Repo

	ClassificationsService *classifications.Service
	CategoriesService      *categories.Service
	UsersService           *users.Service
	RolesService           *roles.Service
	FeedbackService        *feedback.Service
	Dispatcher             *classifications.Dispatcher

	ClassificationsHandler *classifications.Handler
	CategoriesHandler      *categories.Handler
	UsersHandler           *users.Handler
	RolesHandler           *roles.Handler
	FeedbackHandler        *feedback.Handler
	WebhookHandler         *webhook.Handler
	GoogleAuth             *googleauth.GoogleService
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config: app.Config,
		Handlers: []server.RouteRegistrar{
			app.GoogleAuth,
			app.UsersHandler,
			app.RolesHandler,
			app.CategoriesHandler,
			app.ClassificationsHandler,
			app.FeedbackHandler,
			uploadsRegistrar{},
		},
		Webhook: app.WebhookHandler,
		Store:   app.Store,
		Health:  health.NewService(app.DB),
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context) (queue.Client, error) {
	if strings.TrimSpace(os.Getenv("GL_SQS_QUEUE_URL")) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) error {
	if app.DB != nil {
		app.ClassificationsRepo = &classifications.PGRepo{DB: app.DB}
		app.CategoriesRepo = &categories.PGRepo{DB: app.DB}
		app.UsersRepo = &users.PGRepo{DB: app.DB}
		app.RolesRepo = &roles.PGRepo{DB: app.DB}
		app.FeedbackRepo = &feedback.PGRepo{DB: app.DB}
	} else {
		app.ClassificationsRepo = classifications.NewMemoryRepo()
		app.CategoriesRepo = categories.NewMemoryRepo()
		app.UsersRepo = users.NewMemoryRepo()
		app.RolesRepo = roles.NewMemoryRepo()
		app.FeedbackRepo = feedback.NewMemoryRepo()
	}

	var aiClient grainai.Client
	if strings.TrimSpace(app.Config.AnalysisBaseURL) != "" {
		client, err := grainai.NewClient(app.Config.AnalysisBaseURL, app.Config.AnalysisToken, app.Config.AnalysisTimeout)
		if err != nil {
			return err
		}
		aiClient = client
	}

	app.Dispatcher = &classifications.Dispatcher{
		Repo:          app.ClassificationsRepo,
		Client:        aiClient,
		CallbackURL:   app.Config.CallbackURL(),
		PublicBaseURL: app.Config.PublicBaseURL,
	}

	app.ClassificationsService = &classifications.Service{
		Repo:       app.ClassificationsRepo,
		Categories: app.CategoriesRepo,
		Store:      app.Store,
		Queue:      app.Queue,
		Dispatcher: app.Dispatcher,
	}
	app.CategoriesService = categories.NewService(app.CategoriesRepo)
	app.UsersService = users.NewService(app.UsersRepo)
	app.RolesService = roles.NewService(app.RolesRepo)
	app.FeedbackService = feedback.NewService(app.FeedbackRepo)

	app.ClassificationsHandler = classifications.NewHandler(app.ClassificationsService)
	app.CategoriesHandler = categories.NewHandler(app.CategoriesService)
	app.UsersHandler = users.NewHandler(app.UsersService, app.RolesService)
	app.RolesHandler = roles.NewHandler(app.RolesService)
	app.FeedbackHandler = feedback.NewHandler(app.FeedbackService)

	keySet := webhook.NewKeySet(app.Config.WebhookKeys, app.Config.WebhookAllowedSessions)
	app.WebhookHandler = webhook.NewHandler(app.ClassificationsRepo, keySet)

	app.GoogleAuth = googleauth.NewGoogleService(
		app.Config.GoogleClientID,
		app.Config.GoogleClientSecret,
		app.Config.GoogleRedirectURL,
		app.Config.UIRedirectURL,
		app.UsersService,
		app.RolesService,
	)

	return nil
}

type uploadsRegistrar struct{}

func (uploadsRegistrar) RegisterRoutes(rg *gin.RouterGroup) {
	uploads.RegisterRoutes(rg)
}
