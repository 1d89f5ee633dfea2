package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/structprep/quizd/internal/api"
	"github.com/structprep/quizd/internal/archive"
	"github.com/structprep/quizd/internal/catalog"
	"github.com/structprep/quizd/internal/event"
	"github.com/structprep/quizd/internal/questionbank"
	"github.com/structprep/quizd/internal/quiz"
	"github.com/structprep/quizd/internal/sampler"
	"github.com/structprep/quizd/internal/stats"
	"github.com/structprep/quizd/internal/telemetry"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	Auth struct {
		Secret string
	}

	Redis struct {
		Catalog struct {
			Addrs  []string
			Pass   string
			Prefix string
			TTL    time.Duration
		}
	}

	Postgres struct {
		Questions struct {
			Addr string
			User string
			Pass string
			Name string
		}

		Sessions struct {
			Addr string
			User string
			Pass string
			Name string
		}
	}

	Quiz struct {
		CandidateCap int
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			catalog redis.UniversalClient
		}

		postgres struct {
			questions *pgxpool.Pool
			sessions  *pgxpool.Pool
		}
	}

	service struct {
		questions *questionbank.Store
		archive   *archive.Store
		catalog   *catalog.Service
		sampler   *sampler.Sampler
		quiz      *quiz.Manager
		stats     *stats.Aggregator
	}

	http *http.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()
	telemetry.MonitorBus(s.eb)

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Catalog.Addrs,
		Password: s.c.Redis.Catalog.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	s.infra.redis.catalog = r
	return nil
}

func (s *Server) initPostgres() (err error) {
	connect := func(addr, user, pass, name string) (*pgxpool.Pool, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", user, pass, addr, name))
		if err != nil {
			return nil, err
		}

		db, err := pgxpool.NewWithConfig(ctx, cc)
		if err != nil {
			return nil, err
		}

		if err := db.Ping(ctx); err != nil {
			return nil, err
		}

		return db, nil
	}

	s.infra.postgres.questions, err = connect(s.c.Postgres.Questions.Addr, s.c.Postgres.Questions.User, s.c.Postgres.Questions.Pass, s.c.Postgres.Questions.Name)
	if err != nil {
		return fmt.Errorf("questions: %w", err)
	}

	s.infra.postgres.sessions, err = connect(s.c.Postgres.Sessions.Addr, s.c.Postgres.Sessions.User, s.c.Postgres.Sessions.Pass, s.c.Postgres.Sessions.Name)
	if err != nil {
		return fmt.Errorf("sessions: %w", err)
	}

	return nil
}

func (s *Server) initService() {
	s.service.questions = questionbank.NewStore(questionbank.Config{
		DB: s.infra.postgres.questions,
	})

	s.service.archive = archive.NewStore(archive.StoreConfig{
		DB: s.infra.postgres.sessions,
	})

	s.service.catalog = catalog.NewService(catalog.Config{
		Source: s.service.questions,
		Redis:  s.infra.redis.catalog,
		Prefix: s.c.Redis.Catalog.Prefix,
		TTL:    s.c.Redis.Catalog.TTL,
	})

	s.service.sampler = sampler.New(sampler.Config{
		Source:       s.service.questions,
		CandidateCap: s.c.Quiz.CandidateCap,
	})

	s.service.quiz = quiz.NewManager(quiz.Config{
		EventBus: s.eb,
		Sampler:  s.service.sampler,
	})

	s.service.stats = stats.New(stats.Config{
		Store: s.service.archive,
	})

	// Archives completed sessions off the bus, fire-and-forget.
	archive.NewService(archive.Config{
		EventBus: s.eb,
		Store:    s.service.archive,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	api.New(api.Config{
		Router:     e,
		Quiz:       s.service.quiz,
		Catalog:    s.service.catalog,
		Stats:      s.service.stats,
		AuthSecret: s.c.Auth.Secret,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.service.quiz.Close()
	s.eb.Stop()

	s.infra.postgres.questions.Close()
	s.infra.postgres.sessions.Close()
	if err := s.infra.redis.catalog.Close(); err != nil {
		slog.ErrorContext(ctx, "server: close redis failed", "error", err)
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
