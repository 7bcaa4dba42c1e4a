package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/lingua/internal/api"
	"github.com/abhisek/lingua/internal/clock"
	"github.com/abhisek/lingua/internal/config"
	"github.com/abhisek/lingua/internal/exercise"
	"github.com/abhisek/lingua/internal/exstore"
	"github.com/abhisek/lingua/internal/gateway"
	"github.com/abhisek/lingua/internal/llm"
	"github.com/abhisek/lingua/internal/session"
	"github.com/abhisek/lingua/internal/store"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the exercise and session HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, cfg, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		gw, err := newGateway(ctx, cfg, st, log)
		if err != nil {
			return err
		}

		exercises, closeExercises, err := newExerciseStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeExercises()

		gen := exercise.NewGenerator(gw, exercises, exercise.DefaultConfig(), log)

		ctl := session.NewController(exercises, clock.Real(), cfg.Session, st, log)
		defer ctl.Close()

		srv := api.NewHTTPServer(cfg.Addr, api.New(gen, ctl, gw, log).Handler())

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Info("listening",
				zap.String("addr", cfg.Addr),
				zap.String("store", cfg.Store),
				zap.Strings("models", modelNames(gw.Models())))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer cancel()
			log.Info("shutting down")
			return srv.Shutdown(shutdownCtx)
		})
		g.Go(func() error {
			return exstore.RunSweeper(gctx, exercises, cfg.SweepInterval, clock.Real(), log)
		})
		g.Go(func() error {
			return ctl.RunTicker(gctx, cfg.SweepInterval)
		})
		return g.Wait()
	},
}

func init() {
	config.AddServeFlags(serveCmd)
}

// newGateway registers a provider for every model whose backend has
// credentials. LLM calls are recorded in st.
func newGateway(ctx context.Context, cfg config.Config, st *store.Store, log *zap.Logger) (*gateway.Gateway, error) {
	if err := cfg.LLM.Validate(); err != nil {
		return nil, fmt.Errorf("llm config: %w", err)
	}
	providers, err := llm.NewProviders(ctx, cfg.LLM, st, log)
	if err != nil {
		return nil, err
	}
	return gateway.New(providers, gateway.Config{
		Timeout:           cfg.LLM.Timeout,
		DefaultModel:      cfg.LLM.DefaultModel,
		DefaultRetryAfter: cfg.LLM.RateLimitRetryAfter,
		MaxTokens:         cfg.LLM.MaxTokens,
		Temperature:       cfg.Temperature,
	}, log), nil
}

func newExerciseStore(ctx context.Context, cfg config.Config) (exercise.Store, func(), error) {
	if cfg.Store != config.StoreRedis {
		return exstore.NewMemory(cfg.TTLs, clock.Real()), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	rs := exstore.NewRedis(client, cfg.RedisPrefix, cfg.TTLs, clock.Real())
	if err := rs.Ping(ctx); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	return rs, func() { client.Close() }, nil
}

func modelNames(models []llm.Model) []string {
	out := make([]string, len(models))
	for i, m := range models {
		out[i] = string(m)
	}
	return out
}
