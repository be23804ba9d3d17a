package cmd

import (
	"context"

	"github.com/djeeyo/nmreggae/config"
	"github.com/djeeyo/nmreggae/internal/cache"
	"github.com/djeeyo/nmreggae/internal/calendar"
	"github.com/djeeyo/nmreggae/internal/database"
	"github.com/djeeyo/nmreggae/internal/messaging"
	"github.com/djeeyo/nmreggae/internal/metrics"
	"github.com/djeeyo/nmreggae/internal/repositories"
	"github.com/djeeyo/nmreggae/internal/search"
	"github.com/djeeyo/nmreggae/internal/services"
	"github.com/djeeyo/nmreggae/internal/tracing"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const dbConnectAttempts = 5

// application holds the wired service and the resources to release on exit
type application struct {
	db      *gorm.DB
	metrics *metrics.Metrics
	tracer  tracing.Tracer
	events  *services.EventService
	closers []func()
}

// newApplication connects the database and the optional backends. Redis,
// Elasticsearch, Service Bus and New Relic failures only disable the
// matching feature.
func newApplication(ctx context.Context, c config.Config) (*application, error) {
	app := &application{metrics: metrics.New()}

	db, err := database.ConnectWithRetry(ctx, c.DB, app.metrics, dbConnectAttempts)
	if err != nil {
		return nil, err
	}
	app.db = db
	app.closers = append(app.closers, func() {
		if err := database.Close(db); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	})

	loc, err := calendar.LoadLocation(c.Calendar.Timezone)
	if err != nil {
		app.Close()
		return nil, err
	}

	tracer, err := tracing.NewTracer(c.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer = tracing.Noop()
	}
	app.tracer = tracer
	app.closers = append(app.closers, tracer.Close)

	opts := services.Options{
		Tracer:       tracer,
		Metrics:      app.metrics,
		Location:     loc,
		WindowMonths: c.Calendar.WindowMonths,
		BackupDir:    c.Backup.Dir,
	}

	redisCache, err := cache.NewRedisCache(c.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
	} else if redisCache.Enabled() {
		opts.Cache = redisCache
		app.closers = append(app.closers, func() { redisCache.Close() })
	}

	if c.Elastic.Enabled {
		elasticClient, err := search.NewElasticClient(c.Elastic)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
		} else {
			opts.Search = elasticClient
		}
	}

	if c.Azure.QueueConnStr != "" {
		bus, err := messaging.NewServiceBusClient(c.Azure, rootCmd.Use)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Azure Service Bus, continuing without notifications")
		} else {
			opts.Publisher = bus
			app.closers = append(app.closers, func() {
				if err := bus.Close(); err != nil {
					log.Error().Err(err).Msg("Failed to close Service Bus client")
				}
			})
		}
	}

	app.events = services.NewEventService(repositories.NewEventRepository(db), opts)
	return app, nil
}

// Close releases resources in reverse order of acquisition
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
