package app

import (
	"github.com/Skibfizz/studydrop-backend/app/config"
	"github.com/Skibfizz/studydrop-backend/app/models"
)

// API bundles the dependencies every handler needs. All collaborators
// are injected; there are no package-level clients.
type API struct {
	store       *Store
	billing     BillingClient
	gen         Generator
	recon       *Reconciler
	transcripts *TranscriptFetcher
	cfg         *config.Config
	limits      models.TierLimits
	prices      PriceTable
}

// NewAPI wires the handler set. limits defaults to the production table
// when nil.
func NewAPI(store *Store, billing BillingClient, gen Generator, cfg *config.Config, limits models.TierLimits) *API {
	if limits == nil {
		limits = models.DefaultTierLimits
	}
	prices := NewPriceTable(cfg.Stripe)
	return &API{
		store:       store,
		billing:     billing,
		gen:         gen,
		recon:       NewReconciler(store, billing, prices),
		transcripts: NewTranscriptFetcher(),
		cfg:         cfg,
		limits:      limits,
		prices:      prices,
	}
}
