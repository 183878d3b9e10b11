package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/antipr000/NobaServer-sub008/internal/api"
	"github.com/antipr000/NobaServer-sub008/internal/circle"
	"github.com/antipr000/NobaServer-sub008/internal/config"
	"github.com/antipr000/NobaServer-sub008/internal/exchange"
	"github.com/antipr000/NobaServer-sub008/internal/logging"
	"github.com/antipr000/NobaServer-sub008/internal/pomelo"
	"github.com/antipr000/NobaServer-sub008/internal/service"
	"github.com/antipr000/NobaServer-sub008/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := logging.New(cfg.LogLevel)

	db, err := store.NewStore(cfg.DBSource)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Unable to prepare schema: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	// Collaborators
	authorizations := store.NewAuthorizationStore(db)
	internalTxs := store.NewInternalTransactionStore(db)
	cards := store.NewCardStore(db)
	wallets := circle.NewClient(cfg.CircleBaseURL, cfg.CircleAPIKey, cfg.CircleMasterWalletID, logger)
	rates := exchange.NewService(
		exchange.NewHTTPSource(cfg.RatesBaseURL),
		exchange.NewRedisCache(rdb, cfg.RateCacheTTL),
		logger,
	)
	signer := pomelo.NewSigner(cfg.PomeloAPISecret)

	svc := service.NewAuthorizationService(authorizations, internalTxs, wallets, rates, cards, logger)
	handler := api.NewHandler(svc, signer, cfg.PomeloWebhookPath, logger)

	// Router
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	r.HandleFunc(handler.WebhookPath(), handler.AuthorizeTransaction).Methods("POST")

	log.Printf("Server starting on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal(err)
	}
}
