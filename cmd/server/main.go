package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/eugeneleychenko/vyb-marine-demo/config"
	httpDelivery "github.com/eugeneleychenko/vyb-marine-demo/internal/delivery/http"
	"github.com/eugeneleychenko/vyb-marine-demo/internal/eventbus"
	"github.com/eugeneleychenko/vyb-marine-demo/internal/infrastructure/cache"
	"github.com/eugeneleychenko/vyb-marine-demo/internal/infrastructure/elevenlabs"
	"github.com/eugeneleychenko/vyb-marine-demo/internal/infrastructure/feed"
	"github.com/eugeneleychenko/vyb-marine-demo/internal/infrastructure/media"
	"github.com/eugeneleychenko/vyb-marine-demo/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting Marine Demo Backend v1.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)
	log.Printf("Catalog feed: %s/%s", cfg.Feed.BaseURL, cfg.Feed.SheetPath)

	// Initialize infrastructure dependencies
	memoryCache := cache.NewMemoryCache()

	feedClient := feed.NewClient(cfg.Feed.BaseURL, cfg.Feed.SheetPath, memoryCache, cfg.Feed.CacheTTL)

	// Enable debug mode in development environment
	if cfg.Server.Environment == "development" {
		feedClient.SetDebug(true)
		log.Printf("Feed client debug mode enabled")
	}

	// Warm the catalog cache so the first search does not pay the feed
	// round-trip.
	go func() {
		if products, err := feedClient.FetchCatalog(context.Background()); err != nil {
			log.Printf("Catalog preload failed: %v", err)
		} else {
			log.Printf("Catalog preloaded: %d products", len(products))
		}
	}()

	signingClient := elevenlabs.NewClient(cfg.ElevenLabs.APIKey, cfg.ElevenLabs.BaseURL)
	if cfg.ElevenLabs.APIKey != "" {
		log.Printf("Speech API configured: %s (agent: %s)", cfg.ElevenLabs.BaseURL, cfg.ElevenLabs.AgentID)
	} else {
		log.Printf("WARNING: Speech API key not configured - voice sessions will fail with an auth error")
	}

	dialer := elevenlabs.NewRealtimeDialer()
	microphone := media.NewStaticMicrophone(true)

	// Shared event bus, constructed once and passed by reference
	bus := eventbus.New()

	// Initialize usecase layer
	cartService := usecase.NewCartService(bus)
	matchingService := usecase.NewMatchingService(feedClient, usecase.MatchConfig{
		MaxResults:         cfg.Matcher.MaxResults,
		EnableDebugLogging: cfg.Matcher.EnableDebugLogging,
	})
	skuExtractor := usecase.NewSkuExtractor(feedClient)

	sessionManager := usecase.NewVoiceSessionManager(
		signingClient,
		dialer,
		microphone,
		feedClient,
		matchingService,
		bus,
		usecase.VoiceSessionConfig{
			AgentID:      cfg.ElevenLabs.AgentID,
			Debounce:     cfg.Voice.Debounce,
			FirstMessage: cfg.Voice.FirstMessage,
		},
	)

	log.Printf("Matcher: max_results=%d, debug=%v", cfg.Matcher.MaxResults, cfg.Matcher.EnableDebugLogging)
	log.Printf("Voice: debounce=%s", cfg.Voice.Debounce)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(feedClient, cartService, matchingService, skuExtractor, sessionManager, bus)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("Server listening on %s", addr)

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
