package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/go-identity-api/internal/config"
	"github.com/go-identity-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-identity-api/internal/infrastructure/jwt"
	oauthinfra "github.com/go-identity-api/internal/infrastructure/oauth"
	"github.com/go-identity-api/internal/infrastructure/smtp"
	transporthttp "github.com/go-identity-api/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("JWT provider not available: %v", err)
	}

	mailer := smtp.NewMailer(cfg)

	var oauthClients []oauthinfra.Client
	if cfg.GoogleClientID != "" {
		oauthClients = append(oauthClients, oauthinfra.NewGoogleClient(cfg))
	}
	if cfg.GitHubClientID != "" {
		oauthClients = append(oauthClients, oauthinfra.NewGitHubClient(cfg))
	}

	deps := &transporthttp.Deps{
		AccountRepo:   dynamo.NewAccountRepo(dynamoClient, cfg.DynamoTables),
		BlacklistRepo: dynamo.NewBlacklistRepo(dynamoClient, cfg.DynamoTables.TokenBlacklist),
		JWTProvider:   jwtProvider,
		Mailer:        mailer,
		OAuthClients:  oauthClients,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("listening on :%s", cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
