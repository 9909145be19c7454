package http

import (
	"context"

	"github.com/dkeye/roomlink/internal/adapters/signal"
	"github.com/dkeye/roomlink/internal/app/orch"
	"github.com/dkeye/roomlink/internal/config"
	rest "github.com/dkeye/roomlink/internal/transport/http"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const clientTokenKey = "client_token"

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware keeps a per-browser token in the cookie session.
// Join rate limits are counted per token.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		token, _ := s.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			s.Set(clientTokenKey, token)
			if err := s.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

func signalOptions(cfg config.ServerConfig) signal.Options {
	return signal.Options{
		ReadLimit:    cfg.ReadLimit,
		PingPeriod:   cfg.PingPeriod,
		WriteWait:    cfg.WriteWait,
		MailboxSize:  cfg.MailboxSize,
		JoinLimit:    cfg.JoinLimit,
		JoinInterval: cfg.JoinInterval,
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Server.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Server.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("RoomlinkSessions", store))
	r.Use(ClientTokenMiddleware())

	ctl := signal.NewSignalWSController(o, signalOptions(cfg.Server))
	api := &rest.RoomsAPI{Orch: o}

	r.GET("/healthz", api.HandleHealth)
	g := r.Group("/api")
	g.GET("/ws", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("token", c.GetString(clientTokenKey)).Msg("ws endpoint hit")
		ctl.HandleSignal(ctx, c)
	})
	api.Register(g)

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Server.Mode).Msg("router setup")
	return r
}
