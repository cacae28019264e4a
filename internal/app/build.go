package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/antoniostano/sara/internal/config"
	"github.com/antoniostano/sara/internal/customers"
	"github.com/antoniostano/sara/internal/delivery"
	"github.com/antoniostano/sara/internal/dialog"
	"github.com/antoniostano/sara/internal/httpapi"
	"github.com/antoniostano/sara/internal/menu"
	"github.com/antoniostano/sara/internal/observability"
	"github.com/antoniostano/sara/internal/orders"
	"github.com/antoniostano/sara/internal/prompts"
	"github.com/antoniostano/sara/internal/runtime"
	"github.com/antoniostano/sara/internal/session"
	"github.com/antoniostano/sara/internal/store"
	"github.com/antoniostano/sara/internal/tts"
)

type BuildResult struct {
	Config    config.Config
	API       *httpapi.Server
	Evaluator *runtime.Evaluator
	Metrics   *observability.Metrics

	// Cleanup should be called on shutdown to release external resources
	// (store connections, log files).
	Cleanup func() error
}

// Build wires the whole service from configuration. Reference data that fails
// to load degrades to an empty or default set with a log line; the call flow
// then still answers, it just has less to say.
func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", cfg.Timezone, err)
	}

	kv, err := store.Open(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := kv.Ping(ctx); err != nil {
		log.Printf("store not reachable yet: %v", err)
	}

	index, err := menu.Load(cfg.MenuPath)
	if err != nil {
		log.Printf("menu %s not loaded: %v", cfg.MenuPath, err)
		index = menu.Empty()
	}
	zones, err := delivery.Load(cfg.DeliveryPath)
	if err != nil {
		log.Printf("delivery config %s not loaded, using defaults: %v", cfg.DeliveryPath, err)
		zones = delivery.Default()
	}
	catalog, err := prompts.Load(cfg.PromptsPath)
	if err != nil {
		log.Printf("prompts %s not loaded: %v", cfg.PromptsPath, err)
		catalog = prompts.Empty()
	}
	if missing := catalog.Missing(prompts.Required...); len(missing) > 0 {
		log.Printf("prompts missing: %s", strings.Join(missing, ", "))
	}

	directory := customers.NewDirectory(cfg.CustomerCSV)
	if err := directory.Refresh(); err != nil {
		log.Printf("customer csv %s not loaded: %v", cfg.CustomerCSV, err)
	}

	overrides := runtime.NewStore(kv, cfg.OverridesTTLMin)
	evaluator := runtime.NewEvaluator(overrides, loc)

	ordersLog, err := orders.OpenLogbook(cfg.OrdersLogPath)
	if err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("orders log: %w", err)
	}
	statusLog, err := orders.OpenLogbook(cfg.StatusLogPath)
	if err != nil {
		_ = ordersLog.Close()
		_ = kv.Close()
		return nil, fmt.Errorf("status log: %w", err)
	}

	feed := orders.NewFeed()
	sink := orders.NewSink(kv, ordersLog, feed, metrics)

	engine := dialog.NewEngine(dialog.Config{
		Sessions:  session.NewStore(kv),
		Menu:      index,
		Delivery:  zones,
		Customers: directory,
		Prompts:   catalog,
		Sink:      sink,
		Metrics:   metrics,
	})

	speech := tts.NewClient(tts.Options{
		Key:   cfg.OpenAIAPIKey,
		Model: cfg.TTSModel,
		Voice: cfg.TTSVoice,
	})

	api := httpapi.New(cfg, httpapi.Deps{
		Engine:    engine,
		Evaluator: evaluator,
		Overrides: overrides,
		KV:        kv,
		Sink:      sink,
		Feed:      feed,
		StatusLog: statusLog,
		Customers: directory,
		Prompts:   catalog,
		Speech:    speech,
		Metrics:   metrics,
	})

	cleanup := func() error {
		var errs []string
		if err := statusLog.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := ordersLog.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := kv.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:    cfg,
		API:       api,
		Evaluator: evaluator,
		Metrics:   metrics,
		Cleanup:   cleanup,
	}, nil
}
