package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klokku/slotfinder/internal/config"
	"github.com/klokku/slotfinder/internal/event_bus"
	"github.com/klokku/slotfinder/internal/utils"
	"github.com/klokku/slotfinder/pkg/calendar_provider"
	"github.com/klokku/slotfinder/pkg/google"
	"github.com/klokku/slotfinder/pkg/ics"
	"github.com/klokku/slotfinder/pkg/schedule"
	"github.com/klokku/slotfinder/pkg/user"
	log "github.com/sirupsen/logrus"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	EventBus *event_bus.EventBus
	Clock    utils.Clock

	UserService user.Service
	UserHandler *user.Handler

	GoogleAuth    *google.GoogleAuth
	GoogleService google.Service
	GoogleHandler *google.Handler

	IcsSource        *ics.Source
	CalendarProvider *calendar_provider.CalendarProvider

	ScheduleAssembler *schedule.Assembler
	ScheduleHandler   *schedule.Handler
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(db *pgxpool.Pool, cfg config.Application) (*Dependencies, error) {
	deps := &Dependencies{}

	deps.EventBus = event_bus.NewEventBus()
	deps.Clock = &utils.SystemClock{}
	subscribeScheduleLogging(deps.EventBus)

	deps.UserService = user.NewUserService(user.NewUserRepo(db))
	deps.UserHandler = user.NewHandler(deps.UserService)

	deps.GoogleAuth = google.NewGoogleAuth(google.NewAuthRepository(db), cfg)
	deps.GoogleService = google.NewService(deps.GoogleAuth)
	deps.GoogleHandler = google.NewHandler(deps.GoogleService)

	feeds := make(map[string]string, len(cfg.ICS))
	for _, feed := range cfg.ICS {
		feeds[feed.Id] = feed.Url
	}
	deps.IcsSource = ics.NewSource(&http.Client{Timeout: 30 * time.Second}, feeds)
	deps.CalendarProvider = calendar_provider.NewCalendarProvider(deps.GoogleService, deps.IcsSource)

	policy, err := cfg.Booking.Policy()
	if err != nil {
		return nil, fmt.Errorf("invalid booking configuration: %w", err)
	}
	fetcher := schedule.NewPagedFetcher(deps.CalendarProvider, cfg.Fetch.MaxPages)
	aggregator := schedule.NewAggregator(fetcher, cfg.Fetch.Concurrency)
	deps.ScheduleAssembler, err = schedule.NewAssembler(aggregator, policy, deps.Clock, user.ContextIdentity{}, deps.EventBus, cfg.Fetch.Composers)
	if err != nil {
		return nil, err
	}
	deps.ScheduleHandler = schedule.NewHandler(deps.ScheduleAssembler)

	return deps, nil
}

func subscribeScheduleLogging(bus *event_bus.EventBus) {
	event_bus.SubscribeTyped(bus, event_bus.ScheduleProvidedType, func(e event_bus.EventT[event_bus.ScheduleProvided]) error {
		log.WithFields(log.Fields{
			"request":   e.Data.RequestId,
			"calendars": len(e.Data.CalendarIDs),
			"revocable": e.Data.Revocable,
			"entries":   e.Data.Entries,
			"free":      e.Data.FreeEntries,
			"duration":  e.Data.Duration,
		}).Info("schedule provided")
		return nil
	})
	event_bus.SubscribeTyped(bus, event_bus.ScheduleFailedType, func(e event_bus.EventT[event_bus.ScheduleFailed]) error {
		log.WithFields(log.Fields{
			"request":   e.Data.RequestId,
			"calendars": len(e.Data.CalendarIDs),
			"revocable": e.Data.Revocable,
		}).Warnf("schedule failed: %s", e.Data.Error)
		return nil
	})
}
