package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"scanbridge/internal/auth"
	"scanbridge/internal/config"
	"scanbridge/internal/database"
	"scanbridge/internal/model"
	"scanbridge/internal/notifier"
	"scanbridge/internal/objectstore"
	"scanbridge/internal/pairing"
	"scanbridge/internal/relay"
	"scanbridge/internal/server"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, cfg.DatabaseURL); err != nil {
		log.Fatal(err)
	}
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	deps := server.Deps{
		Pairing: pairing.NewPostgresStore(pool),
		Broker:  relay.NewBroker(cfg.FrameByteLimit),
		Notifier: notifier.New(notifier.NewPostgresQuerier(pool), model.DocTypes(), notifier.Options{
			Interval: cfg.PollInterval,
			Lifetime: cfg.StreamLifetime,
		}),
		TokenConfig: auth.TokenConfig{
			Secret: cfg.MasterSecret,
			Expiry: cfg.TokenExpiry,
			Issuer: "scanbridge",
		},
	}

	if cfg.S3Bucket != "" {
		objects, err := objectstore.New(ctx, objectstore.Config{
			Endpoint:      cfg.S3Endpoint,
			Region:        cfg.S3Region,
			Bucket:        cfg.S3Bucket,
			PublicBaseURL: cfg.S3PublicBaseURL,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
		})
		if err != nil {
			log.Fatal(err)
		}
		deps.Resolver = objects
		deps.Uploader = objects
	} else {
		log.Printf("object store not configured, image URL derivation and presigned uploads disabled")
	}

	go deps.Broker.Run(ctx)

	log.Printf("listening on %s", fmt.Sprintf(":%d", cfg.Port))
	if err := server.Run(ctx, cfg, server.NewRouter(deps)); err != nil {
		log.Fatal(err)
	}
}
