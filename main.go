package main

import (
	"context"
	"log"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	"github.com/redis/go-redis/v9"

	"github.com/SWM-FIRE/modoco-backend-sub000/modules/auth"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/coordinator"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/fanout"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/gateway"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/lifecycle"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/membership"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/messages"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/metrics"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/ratelimit"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/registry"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/rooms"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/session"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/signaling"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis at %s: %v", cfg.RedisAddr, err)
	}

	life := lifecycle.NewController()
	m := metrics.New()
	reg := registry.New()

	// Shared stores
	store := membership.NewRedisStore(rdb, "", logger.WithModule("membership"))
	store.OnClamp(func(string, int, int) { m.OccupancyClamps.Inc() })

	// Modules
	lifecycleModule := lifecycle.NewModule(life, cfg.HealthInterval, logger.WithModule("lifecycle"))
	fanoutModule := fanout.NewModule(cfg.Fanout, fanout.NewRedisPresence(rdb, ""), logger.WithModule("fanout"))
	bus := fanoutModule.Bus()
	bus.OnPublish(m.ObservePublish)

	roomsModule := rooms.NewModule(cfg.DBPath, store, logger.WithModule("rooms"))
	store.SetLoader(roomsModule)

	sessionModule := session.NewModule(session.NewStore(rdb, "", cfg.SessionTTL), logger.WithModule("session"))
	messagesModule := messages.NewModule(messages.NewLog(rdb, "", cfg.MessageTTL), logger.WithModule("messages"))

	relay := signaling.NewRelay(bus, reg, m, logger.WithModule("signaling"))
	coordinatorModule := coordinator.NewModule(coordinator.Deps{
		Registry:  reg,
		Store:     store,
		Bus:       bus,
		Lifecycle: life,
		Media:     relay,
		Limiter:   ratelimit.NewLimiter(rdb, "", cfg.ChatLimit, cfg.ChatWindow),
		Metrics:   m,
		Logger:    logger.WithModule("coordinator"),
	})

	gatewayModule := gateway.NewModule(cfg.Gateway, gateway.Deps{
		Coordinator: coordinatorModule.Coordinator(),
		Relay:       relay,
		Bus:         bus,
		Registry:    reg,
		Lifecycle:   life,
		Verifier:    auth.NewManager(cfg.Auth),
		Metrics:     m,
		Logger:      logger.WithModule("gateway"),
	})

	lifecycleModule.Watch("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	lifecycleModule.Watch("fanout", bus.Ping)

	// Register modules with the framework.
	// Order: infrastructure first, then domain modules, then the edge
	// - lifecycle: dependency monitor
	// - fanout: transport of the fan-out bus
	// - rooms, session, messages: service providers
	// - coordinator: membership event emitter
	// - gateway: websocket and HTTP edge, depends on the service providers
	app.Register(lifecycleModule)
	app.Register(fanoutModule)
	app.Register(roomsModule)
	app.Register(sessionModule)
	app.Register(messagesModule)
	app.Register(coordinatorModule)
	app.Register(gatewayModule)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
	life.Advance(lifecycle.Ready)

	logger.Info("Room server started",
		"port", cfg.Gateway.Port,
		"transport", cfg.Fanout.Transport,
		"redis", cfg.RedisAddr,
		"namespaces", []string{"/ws/" + gateway.NamespaceRoom, "/ws/" + gateway.NamespaceLobby, "/ws/" + gateway.NamespaceChat},
	)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				logger.Info("Graceful shutdown initiated", "connections", reg.Count())
				life.Advance(lifecycle.Draining)
				err := app.Stop(ctx)
				life.Advance(lifecycle.Stopped)
				if cerr := rdb.Close(); cerr != nil && err == nil {
					err = cerr
				}
				return err
			},
		},
	)

	exitCode := <-wait
	logger.Info("Application exited", "code", exitCode)
	os.Exit(exitCode)
}
