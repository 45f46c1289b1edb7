package main

import (
	"context"
	"log"

	"github.com/Skibfizz/studydrop-backend/app"
	"github.com/Skibfizz/studydrop-backend/app/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	store, err := app.OpenStore(cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer store.Close()

	billing := app.NewStripeBilling(cfg.Stripe.SecretKey)

	gen, err := app.NewGeminiGenerator(context.Background(), cfg.Gemini)
	if err != nil {
		log.Fatalf("failed to initialize Gemini: %v", err)
	}

	api := app.NewAPI(store, billing, gen, cfg, nil)
	router, err := api.NewRouter()
	if err != nil {
		log.Fatalf("failed to initialize router: %v", err)
	}
	router.Run("0.0.0.0:8080")
}
