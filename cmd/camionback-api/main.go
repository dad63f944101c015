// README: Entry point; loads config, runs migrations, wires services, starts HTTP server.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"camionback/internal/ai"
	"camionback/internal/config"
	httptransport "camionback/internal/http"
	"camionback/internal/http/handlers"
	"camionback/internal/infra"
	"camionback/internal/maps"
	"camionback/internal/modules/interest"
	"camionback/internal/modules/offer"
	"camionback/internal/modules/pricing"
	"camionback/internal/modules/request"
	"camionback/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := infra.MigrateUp(cfg.DB.MigrationsDir, cfg.DB.DSN); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	var estimator ai.Estimator
	if cfg.AI.GeminiKey != "" {
		provider, err := ai.NewGeminiProvider(ctx, cfg.AI.GeminiKey)
		if err != nil {
			log.Fatalf("gemini init: %v", err)
		}
		defer provider.Close()
		estimator = provider
	} else {
		log.Print("GEMINI_API_KEY not set, pricing runs heuristic-only")
	}

	var distance request.DistanceResolver
	if cfg.Maps.APIKey != "" {
		routes, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			log.Fatalf("maps init: %v", err)
		}
		distance = routes
	}

	notifier := notify.LogNotifier{}

	pricingSvc := pricing.NewService(estimator, pricing.NewCache(cfg.Pricing.CacheTTL), cfg.Pricing)

	requestStore := request.NewStore(dbPool)
	interestStore := interest.NewStore(dbPool)
	offerStore := offer.NewStore(dbPool)

	requestSvc := request.NewService(request.Deps{
		Store:    requestStore,
		Pricer:   pricingSvc,
		Distance: distance,
		Refs:     request.NewRefCounter(redisClient),
		Notifier: notifier,
	})
	interestSvc := interest.NewService(interest.Deps{
		Store:    interestStore,
		Requests: requestSvc,
		Profiles: interest.NewProfileStore(dbPool),
		Guard:    interest.NewAssignMarks(redisClient),
		Notifier: notifier,
	})
	offerSvc := offer.NewService(offerStore, requestSvc, notifier)

	router := httptransport.NewRouter(
		handlers.NewRequestHandler(requestSvc),
		handlers.NewInterestHandler(interestSvc),
		handlers.NewOfferHandler(offerSvc),
	)

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("listening on %s", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
