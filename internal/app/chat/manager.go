/*
Package chat contains the action engine, the websocket client and the Manager that
owns every piece of shared chat state.

This file defines the Manager struct, the single state context of the coordinator. It
wires the user directory, session registry, group directory, message store, delivery
dispatcher and moderation engine together and hands out Clients for new connections.
*/
package chat

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatcoord/internal/app/group"
	"chatcoord/internal/app/message"
	"chatcoord/internal/app/moderation"
	"chatcoord/internal/app/router"
	"chatcoord/internal/app/session"
	"chatcoord/internal/app/user"
	"chatcoord/internal/configs"
	"chatcoord/internal/pkg/logx"
	"chatcoord/internal/pkg/metrics"
	"chatcoord/internal/pkg/workpool"
)

const (
	// CloseCodeNormal ends a session the user logged out of.
	CloseCodeNormal = websocket.CloseNormalClosure

	// CloseCodeGoingAway is sent to every live session on shutdown.
	CloseCodeGoingAway = websocket.CloseGoingAway

	// ReasonServerShutdown accompanies CloseCodeGoingAway.
	ReasonServerShutdown = "server shutting down"
)

// Manager owns the shared chat state and the engine that mutates it.
type Manager struct {
	// config holds the application's read-only configuration settings.
	config *configs.AppConfig

	Metrics    *metrics.Metrics
	Users      *user.Directory
	Sessions   *session.Registry
	Groups     *group.Directory
	Messages   *message.Store
	Dispatcher *router.Dispatcher
	Moderation *moderation.Engine

	engine *Engine

	// pool is nil when a custom submitter was injected.
	pool *workpool.Pool

	now    func() time.Time
	logger zerolog.Logger
}

// Option customizes a Manager.
type Option func(*options)

type options struct {
	now       func() time.Time
	submitter router.Submitter
}

// WithClock replaces the wall clock used for timestamps, mutes and recall windows.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithSubmitter replaces the worker pool used for fan-out.
func WithSubmitter(s router.Submitter) Option {
	return func(o *options) { o.submitter = s }
}

// NewManager constructs a Manager and all of its components.
func NewManager(cfg *configs.AppConfig, opts ...Option) *Manager {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Manager{
		config:  cfg,
		Metrics: metrics.New(),
		now:     o.now,
		logger:  logx.Component("Manager"),
	}

	m.Users = user.NewDirectory(cfg.AdminUsername, cfg.BcryptCost, user.WithClock(o.now))
	m.Sessions = session.NewRegistry(session.Hooks{
		Online:  func(count int) { m.Metrics.OnlineSessions.Set(float64(count)) },
		Evicted: m.Metrics.Evictions.Inc,
	})
	m.Groups = group.NewDirectory(o.now)
	m.Messages = message.NewStore(o.now)

	submitter := o.submitter
	if submitter == nil {
		m.pool = workpool.New(cfg.WorkerCount, cfg.WorkerQueueSize, workpool.Hooks{
			CallerRuns: m.Metrics.CallerRuns.Inc,
			Panic:      m.Metrics.WorkerPanics.Inc,
		})
		submitter = m.pool
	}

	m.Dispatcher = router.New(m.Sessions, m.Groups, submitter, router.Hooks{
		Delivered: m.Metrics.Deliveries.Inc,
		Failed:    m.Metrics.DeliveryFailures.Inc,
	})

	m.Moderation = moderation.New(m.Messages, m.Users, m.Groups, m.Sessions, m.Dispatcher, moderation.Config{
		RecallWindow: cfg.RecallWindow,
		Now:          o.now,
		Hooks: moderation.Hooks{
			Recalled: m.Metrics.Recalls.Inc,
			Reacted: func(t message.ReactType, isAdd bool) {
				direction := "remove"
				if isAdd {
					direction = "add"
				}
				m.Metrics.Reactions.WithLabelValues(string(t), direction).Inc()
			},
			Read: m.Metrics.ReadReceipts.Inc,
		},
	})

	m.engine = newEngine(m)

	m.logger.Info().
		Int("workers", cfg.WorkerCount).
		Int("queue_size", cfg.WorkerQueueSize).
		Dur("recall_window", cfg.RecallWindow).
		Msg("Chat manager initialized.")

	return m
}

// Engine returns the action engine.
func (m *Manager) Engine() *Engine {
	return m.engine
}

// NewClient wraps an upgraded websocket connection. The caller starts its pumps.
func (m *Manager) NewClient(ws *websocket.Conn, remoteAddr string) *Client {
	return NewClient(ws, m.engine, m.config.SendBufferSize, remoteAddr)
}

// Shutdown closes every live session and stops the worker pool.
func (m *Manager) Shutdown() {
	m.logger.Info().Int("sessions", m.Sessions.Count()).Msg("Shutting down chat manager...")

	m.Sessions.CloseAll(CloseCodeGoingAway, ReasonServerShutdown)

	if m.pool != nil {
		m.pool.Shutdown()
	}

	m.logger.Info().Msg("Chat manager shutdown complete.")
}
