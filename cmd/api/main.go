package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"polyvox.org/internal/authz"
	"polyvox.org/internal/follow"
	"polyvox.org/internal/httpapi"
	"polyvox.org/internal/notify"
	"polyvox.org/internal/obs"
	"polyvox.org/internal/outbox"
	"polyvox.org/internal/store/pg"
	"polyvox.org/internal/token"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	if os.Getenv("POLYVOX_AUTH_SECRET") == "" {
		log.Fatal("POLYVOX_AUTH_SECRET is required")
	}

	scopedDSN := os.Getenv("POLYVOX_PG_DSN")
	if scopedDSN == "" {
		log.Fatal("POLYVOX_PG_DSN is required")
	}
	elevatedDSN := os.Getenv("POLYVOX_PG_ELEVATED_DSN")
	if elevatedDSN == "" {
		elevatedDSN = scopedDSN
	}

	scoped, err := pg.Open(scopedDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer scoped.Close()

	elevated := scoped
	if elevatedDSN != scopedDSN {
		elevated, err = pg.Open(elevatedDSN)
		if err != nil {
			log.Fatalf("open elevated db: %v", err)
		}
		defer elevated.Close()
	}

	resolver, err := authz.NewResolver(elevated, scoped)
	if err != nil {
		log.Fatalf("build resolver: %v", err)
	}
	gate, err := authz.NewGate(resolver)
	if err != nil {
		log.Fatalf("build gate: %v", err)
	}

	follows, err := follow.NewService(scoped)
	if err != nil {
		log.Fatalf("build follow service: %v", err)
	}
	fanout, err := notify.NewFanout(scoped)
	if err != nil {
		log.Fatalf("build fanout: %v", err)
	}

	tokenSecret := os.Getenv("POLYVOX_EMAIL_TOKEN_SECRET")
	if tokenSecret == "" {
		log.Fatal("POLYVOX_EMAIL_TOKEN_SECRET is required")
	}
	codec, err := token.NewCodec(tokenSecret)
	if err != nil {
		log.Fatalf("build token codec: %v", err)
	}

	mailer, err := outbox.NewHTTPMailer(
		os.Getenv("POLYVOX_MAIL_API_KEY"),
		os.Getenv("POLYVOX_MAIL_FROM"),
	)
	if err != nil {
		log.Fatalf("build mailer: %v", err)
	}
	processor, err := outbox.NewProcessor(scoped, mailer)
	if err != nil {
		log.Fatalf("build outbox processor: %v", err)
	}

	api := httpapi.New(httpapi.Config{
		Version:     version,
		ReadyProbe:  httpapi.ReadyProbe{DB: scoped.DB()},
		Gate:        gate,
		Follows:     follows,
		Fanout:      fanout,
		Processor:   processor,
		Tokens:      codec,
		Admin:       scoped,
		InternalKey: os.Getenv("POLYVOX_INTERNAL_KEY"),
	})

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting polyvox-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
