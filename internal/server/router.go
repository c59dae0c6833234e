package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"scanbridge/internal/auth"
	"scanbridge/internal/handler"
	"scanbridge/internal/middleware"
	"scanbridge/internal/notifier"
	"scanbridge/internal/objectstore"
	"scanbridge/internal/pairing"
	"scanbridge/internal/relay"
)

type Deps struct {
	Pairing     pairing.Store
	Broker      *relay.Broker
	Notifier    *notifier.Notifier
	Resolver    objectstore.Resolver
	Uploader    objectstore.Uploader
	TokenConfig auth.TokenConfig
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	pairingHandler := &handler.PairingHandler{
		Store:    deps.Pairing,
		Resolver: deps.Resolver,
		Uploader: deps.Uploader,
	}

	createLimiter := middleware.NewRateLimiter(30, time.Minute)
	r.POST("/v1/pair",
		middleware.RequireAuth(deps.TokenConfig),
		middleware.RateLimit(createLimiter),
		pairingHandler.Create)

	// Token-gated, deliberately unauthenticated: the mobile client's only
	// credential is the token it scanned.
	r.GET("/v1/pair/:token", pairingHandler.Query)
	r.POST("/v1/pair/:token/complete", pairingHandler.Complete)
	r.POST("/v1/pair/:token/uploads", pairingHandler.PresignUpload)

	relayHandler := &handler.RelayHandler{Broker: deps.Broker}
	r.GET("/relay", relayHandler.Serve)

	streamHandler := &handler.StreamHandler{Notifier: deps.Notifier}
	r.GET("/v1/events", middleware.RequireAuth(deps.TokenConfig), streamHandler.Serve)

	return r
}
