package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evandrarf/halpi-mastery/internal/cache"
	"github.com/evandrarf/halpi-mastery/internal/delivery/http/handler"
	"github.com/evandrarf/halpi-mastery/internal/delivery/http/middleware"
	"github.com/evandrarf/halpi-mastery/internal/delivery/http/repository"
	"github.com/evandrarf/halpi-mastery/internal/delivery/http/route"
	"github.com/evandrarf/halpi-mastery/internal/delivery/http/usecase"
	"github.com/evandrarf/halpi-mastery/internal/mastery"
	"github.com/evandrarf/halpi-mastery/internal/pkg/llm"
	"github.com/evandrarf/halpi-mastery/internal/pkg/validate"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

type BootstrapConfig struct {
	Api       *fiber.App
	Config    *viper.Viper
	DB        *gorm.DB
	Log       *logrus.Logger
	Validator *validate.Validator
}

// ShutdownFunc flushes pending session saves and releases clients.
type ShutdownFunc func(ctx context.Context) error

func Bootstrap(config *BootstrapConfig) ShutdownFunc {

	mid := middleware.NewMiddleware(&middleware.MiddlewareConfig{
		Log:    config.Log,
		Config: config.Config,
	})

	generator, err := NewTextGenerator(context.Background(), config.Config, config.Log)
	if err != nil {
		config.Log.WithError(err).Warn("remote evaluation disabled, using fallback scoring only")
		generator = llm.NewDisabled()
	}
	config.Log.WithField("provider", generator.Name()).Info("concept evaluator ready")

	redisClient := NewRedis(config.Config, config.Log)
	var progressCache cache.ProgressCache
	if redisClient != nil {
		progressCache = cache.NewProgressCache(redisClient, config.Config.GetDuration("redis.ttl"))
	}

	masteryRepo := repository.NewMasteryRepository(config.DB)
	masteryUsecase := usecase.NewMasteryUsecase(usecase.MasteryConfig{
		DB:         config.DB,
		Repository: masteryRepo,
		Cache:      progressCache,
		Evaluator:  usecase.NewConceptEvaluator(generator),
		Log:        config.Log,
		Config:     config.Config,
		OnComplete: func(key mastery.SessionKey, score, maxScore float64) {
			config.Log.WithFields(logrus.Fields{
				"activity_id": key.ActivityID,
				"learner_id":  key.LearnerID,
				"score":       score,
				"max_score":   maxScore,
			}).Info("activity completed")
		},
	})
	masteryHandler := handler.NewMasteryHandler(config.Validator, config.Log, masteryUsecase)

	route.Setup(&route.RouteConfig{
		Api:            config.Api,
		Middleware:     mid,
		MasteryHandler: masteryHandler,
	})

	return func(ctx context.Context) error {
		err := masteryUsecase.Shutdown(ctx)
		if redisClient != nil {
			if cerr := redisClient.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		return err
	}
}

// NewTextGenerator builds the configured LLM provider behind the resilience
// wrapper. llm.disable_ai returns a generator that always fails.
func NewTextGenerator(ctx context.Context, config *viper.Viper, log *logrus.Logger) (llm.TextGenerator, error) {
	if config.GetBool("llm.disable_ai") {
		return llm.NewDisabled(), nil
	}

	var generator llm.TextGenerator
	switch provider := strings.ToLower(config.GetString("llm.provider")); provider {
	case "openai", "":
		apiKey := config.GetString("llm.openai.api_key")
		if apiKey == "" {
			return nil, errors.New("llm.openai.api_key is not set")
		}
		generator = llm.NewOpenAIClient(apiKey, config.GetString("llm.openai.model"), config.GetString("llm.openai.base_url"))
	case "gemini":
		apiKey := config.GetString("llm.gemini.api_key")
		if apiKey == "" {
			return nil, errors.New("llm.gemini.api_key is not set")
		}
		gemini, err := llm.NewGeminiClient(ctx, apiKey, config.GetString("llm.gemini.model"))
		if err != nil {
			return nil, err
		}
		generator = gemini
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}

	return llm.NewResilient(generator, llm.ResilientConfig{
		MaxAttempts: config.GetInt("llm.retry.max_attempts"),
		Log:         log,
	}), nil
}

// NewRedis connects to redis.addr. It returns nil when no address is set or
// the server cannot be reached.
func NewRedis(config *viper.Viper, log *logrus.Logger) *redis.Client {
	addr := config.GetString("redis.addr")
	if addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.GetString("redis.password"),
		DB:       config.GetInt("redis.db"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("redis unavailable, progress cache disabled")
		client.Close()
		return nil
	}
	return client
}
