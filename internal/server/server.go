package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/inkwell-blog/apiserver/config"
	"github.com/inkwell-blog/apiserver/internal/auth"
	"github.com/inkwell-blog/apiserver/internal/db"
	"github.com/inkwell-blog/apiserver/internal/events"
	"github.com/inkwell-blog/apiserver/internal/handlers"
	"github.com/inkwell-blog/apiserver/internal/services"
	"github.com/inkwell-blog/apiserver/internal/storage"
	"github.com/inkwell-blog/apiserver/internal/store"
	"github.com/rs/zerolog"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	publisher  *events.Publisher
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Server, error) {
	jwtSecret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	publisher, err := newPublisher(ctx, cfg, log)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	postRepo := store.NewPostRepository(dbConn)

	issuer := auth.NewIssuer(jwtSecret, cfg.Auth.TokenTTL)
	userService := services.NewUserService(userRepo)
	postService := services.NewPostService(postRepo, publisher, log)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, issuer)
	})
	router.Route("/posts", func(r chi.Router) {
		handlers.PostRouter(r, postService, issuer)

		attachments, err := newAttachmentStore(ctx, cfg)
		if err != nil {
			log.Warn().Err(err).Msg("attachment storage disabled")
			return
		}
		if attachments != nil {
			handlers.MediaRouter(r, postService, attachments, issuer)
		}
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		publisher:  publisher,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}

func newPublisher(ctx context.Context, cfg config.Config, log zerolog.Logger) (*events.Publisher, error) {
	switch strings.ToLower(cfg.Events.Backend) {
	case "":
		return events.NewPublisher(events.NopBackend{}), nil
	case "rabbitmq":
		backend, err := events.NewRabbitMQBackend(cfg.Events.RabbitMQ)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("publishing post events to rabbitmq")
		return events.NewPublisher(backend), nil
	case "pubsub":
		backend, err := events.NewPubSubBackend(ctx, cfg.Events.PubSub)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("publishing post events to pubsub")
		return events.NewPublisher(backend), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Events.Backend)
	}
}

func newAttachmentStore(ctx context.Context, cfg config.Config) (*storage.Store, error) {
	switch strings.ToLower(cfg.Storage.Backend) {
	case "":
		return nil, nil
	case "minio":
		client, err := storage.NewMinioClient(cfg.Storage.Minio)
		if err != nil {
			return nil, err
		}
		attachments := storage.NewStore(client)
		if err := attachments.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return attachments, nil
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.Storage.GCS)
		if err != nil {
			return nil, err
		}
		attachments := storage.NewStore(client)
		if err := attachments.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return attachments, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
