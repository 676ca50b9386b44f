package main

import (
	"context"
	"log/slog"
	"os"

	"mandi/config"
	"mandi/internal/delivery"
	"mandi/internal/delivery/http"
	"mandi/internal/delivery/http/router/handler"
	"mandi/internal/domain/entity"
	"mandi/internal/domain/repository"
	"mandi/internal/domain/service"
	"mandi/internal/infra/location"
	logs "mandi/internal/infra/log"
	"mandi/internal/infra/notification"
	"mandi/internal/infra/persistence/badgerdb"
	"mandi/internal/infra/pubsub"
	"mandi/internal/infra/qrcode"
	"mandi/internal/infra/realtime"
	"mandi/internal/infra/rest"
	"mandi/internal/infra/sched"
	"mandi/internal/usecase"
	"mandi/internal/usecase/impl"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectService(),
		injectUsecase(),
		injectHandler(),
		injectDelivery(),
		fx.Invoke(
			startSession,
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
		context.Background,
		sched.NewReal,
		newSessionRole,
		newLocationStore,
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			newRealtimeChannel,
			newMarketplaceClient,
			newLocationSource,
			newPushNotifier,
			newStallCardService,
			pubsub.NewEventPublisher,
		),
	)
}

// newSessionRole validates the configured marketplace role once, at startup.
func newSessionRole(cfg *config.Config) (entity.Role, error) {
	role := entity.Role(cfg.Session.Role)
	if !role.IsValid() {
		return "", errors.Errorf("invalid session role %q: must be vendor or consumer", cfg.Session.Role)
	}

	return role, nil
}

func newLocationStore(lc fx.Lifecycle, cfg *config.Config) (repository.LocationStore, error) {
	store, err := badgerdb.New(cfg.Storage)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return store.Close()
		},
	})

	return store, nil
}

func newRealtimeChannel(cfg *config.Config, logger *slog.Logger, scheduler sched.Scheduler) service.RealtimeChannel {
	dialer := realtime.NewDialer(cfg.Realtime.HandshakeTimeout)

	return realtime.NewChannel(cfg.Realtime, &cfg.Session, logger, dialer, scheduler)
}

func newMarketplaceClient(cfg *config.Config, logger *slog.Logger, store repository.LocationStore) service.MarketplaceClient {
	return rest.NewClient(cfg.API, &cfg.Session, logger, store)
}

// newLocationSource picks the sensor for the session: vendors get the walking
// simulator so the proximity stream has movement to chew on, consumers sit at
// a fixed position.
func newLocationSource(cfg *config.Config, logger *slog.Logger, scheduler sched.Scheduler, role entity.Role) service.LocationSource {
	center := entity.Location{
		Latitude:  28.6139,
		Longitude: 77.2090,
		Accuracy:  5,
		Timestamp: scheduler.Now(),
	}

	if role == entity.RoleVendor {
		return location.NewSimulatedSource(logger, scheduler, center, 150)
	}

	return location.NewStaticSource(scheduler, center, true)
}

// newPushNotifier creates a Firebase-backed notifier when credentials are
// configured, otherwise a log-only one so headless sessions still work.
func newPushNotifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (service.PushNotifier, error) {
	if cfg.Firebase == nil {
		return notification.NewLogNotifier(logger), nil
	}

	notifier, err := notification.NewFirebaseNotifier(ctx, cfg.Firebase)
	if err != nil {
		return nil, errors.Wrap(err, "create firebase notifier")
	}

	return notifier, nil
}

func newStallCardService(cfg *config.Config) service.StallCardService {
	return qrcode.NewStallCardService(cfg.QRCode.Size, cfg.QRCode.ErrorCorrectionLevel)
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			newDeliveryUsecase,
			newTrackingUsecase,
			newProximityUsecase,
			newNotificationUsecase,
		),
	)
}

func newDeliveryUsecase(cfg *config.Config) usecase.DeliveryUsecase {
	return impl.NewDeliveryService(cfg.Delivery)
}

func newTrackingUsecase(
	cfg *config.Config,
	logger *slog.Logger,
	source service.LocationSource,
	store repository.LocationStore,
	client service.MarketplaceClient,
	channel service.RealtimeChannel,
) usecase.TrackingUsecase {
	return impl.NewTrackingService(cfg.Tracking, logger, source, store, client, channel)
}

func newProximityUsecase(
	cfg *config.Config,
	logger *slog.Logger,
	channel service.RealtimeChannel,
	tracker usecase.TrackingUsecase,
	deliveryUsecase usecase.DeliveryUsecase,
	scheduler sched.Scheduler,
	role entity.Role,
) usecase.ProximityUsecase {
	return impl.NewProximityService(cfg.Tracking, logger, channel, tracker, deliveryUsecase, scheduler, role)
}

func newNotificationUsecase(
	cfg *config.Config,
	logger *slog.Logger,
	channel service.RealtimeChannel,
	push service.PushNotifier,
	publisher service.EventPublisher,
	prox usecase.ProximityUsecase,
	scheduler sched.Scheduler,
) usecase.NotificationUsecase {
	return impl.NewNotificationService(cfg.Notification, logger, channel, push, publisher, prox, scheduler)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewStatusHandler,
			handler.NewMatchesHandler,
			handler.NewNotificationHandler,
			handler.NewStallHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				http.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

type sessionParams struct {
	fx.In
	fx.Lifecycle

	Ctx           context.Context
	Logger        *slog.Logger
	Role          entity.Role
	Channel       service.RealtimeChannel
	Tracker       usecase.TrackingUsecase
	Prox          usecase.ProximityUsecase
	Notifications usecase.NotificationUsecase
}

// startSession brings the engine up in dependency order: channel, tracking,
// proximity matcher, notification dispatcher. Teardown runs in reverse.
func startSession(params sessionParams) {
	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := params.Channel.Connect(ctx, params.Role); err != nil {
				return errors.Wrap(err, "connect realtime channel")
			}

			// The watch must outlive OnStart, so it gets the process context.
			if !params.Tracker.StartTracking(params.Ctx, params.Role, nil) {
				params.Logger.Warn("location tracking unavailable, proximity uses the fallback center")
			}

			if err := params.Prox.Start(params.Ctx); err != nil {
				return errors.Wrap(err, "start proximity matcher")
			}
			params.Notifications.Start()

			return nil
		},
		OnStop: func(context.Context) error {
			params.Notifications.Stop()
			params.Prox.Stop()
			params.Tracker.StopTracking()
			params.Channel.Disconnect()

			return nil
		},
	})
}

func startServer(ctx context.Context, params startServerParams) {
	for _, d := range params.Deliveries {
		go func() {
			if err := d.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))
				os.Exit(1)
			}
		}()
	}
}
