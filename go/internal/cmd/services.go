package main

import (
	"database/sql"

	"github.com/jonboulle/clockwork"

	"github.com/studyhall/studyhall/go/internal/badges"
	"github.com/studyhall/studyhall/go/internal/messages"
	"github.com/studyhall/studyhall/go/internal/polls"
	"github.com/studyhall/studyhall/go/internal/presence"
	"github.com/studyhall/studyhall/go/internal/realtime"
	"github.com/studyhall/studyhall/go/internal/roomtimer"
	"github.com/studyhall/studyhall/go/internal/rooms"
	"github.com/studyhall/studyhall/go/internal/sessions"
	"github.com/studyhall/studyhall/go/internal/tasks"
	"github.com/studyhall/studyhall/go/internal/users"
)

type Services struct {
	Manager  *realtime.Manager
	WS       *realtime.Handler
	Rooms    *rooms.Service
	Tasks    *tasks.Service
	Polls    *polls.Service
	Messages *messages.Service
	Users    *users.Service

	BadgeRepo *badges.Repository
}

func setupServices(database *sql.DB, cfg *Config) *Services {
	// Wire up dependency injection chain
	// Repository layer → App layer → Service layer

	clock := clockwork.NewRealClock()
	tracker := presence.NewTracker()

	// Realtime transport
	connCfg := realtime.DefaultConnectionConfig()
	if cfg.Realtime.WriteTimeout > 0 {
		connCfg.WriteTimeout = cfg.Realtime.WriteTimeout
	}
	if cfg.Realtime.ReadTimeout > 0 {
		connCfg.ReadTimeout = cfg.Realtime.ReadTimeout
	}
	if cfg.Realtime.PingInterval > 0 {
		connCfg.PingInterval = cfg.Realtime.PingInterval
	}
	if cfg.Realtime.MaxMessageSize > 0 {
		connCfg.MaxMessageSize = cfg.Realtime.MaxMessageSize
	}
	manager := realtime.NewManager(connCfg)

	timers := roomtimer.NewEngine(clock, manager)

	// Users
	userRepo := users.NewRepository(database)
	userApp := users.NewApp(userRepo)

	// Rooms
	roomRepo := rooms.NewRepository(database)
	roomApp := rooms.NewApp(roomRepo, tracker)
	roomService := rooms.NewService(roomApp)

	// Messages
	messageRepo := messages.NewRepository(database)
	messageApp := messages.NewApp(messageRepo)
	messageService := messages.NewService(messageApp)

	// Sessions and badges
	sessionRepo := sessions.NewRepository(database)
	sessionApp := sessions.NewApp(sessionRepo)
	badgeRepo := badges.NewRepository(database)
	evaluator := badges.NewEvaluator(badgeRepo, sessionRepo, clock, nil)

	userService := users.NewService(userApp, badgeRepo)

	// Tasks
	taskRepo := tasks.NewRepository(database)
	taskApp := tasks.NewApp(taskRepo, roomApp, manager)
	taskService := tasks.NewService(taskApp)

	// Polls
	pollRepo := polls.NewRepository(database)
	pollApp := polls.NewApp(pollRepo, roomApp, manager, clock)
	pollService := polls.NewService(pollApp)

	// Hub owns the websocket protocol on top of the manager.
	hub := realtime.NewHub(manager, tracker, timers, roomApp, messageApp, userApp, sessionApp, evaluator, clock)
	manager.SetHandler(hub)

	wsHandler := realtime.NewHandler(manager, realtime.HeaderIdentityResolver{})

	return &Services{
		Manager:   manager,
		WS:        wsHandler,
		Rooms:     roomService,
		Tasks:     taskService,
		Polls:     pollService,
		Messages:  messageService,
		Users:     userService,
		BadgeRepo: badgeRepo,
	}
}
