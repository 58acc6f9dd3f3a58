package main

import (
	"context"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"clipfolio/internal/adapter/api"
	"clipfolio/internal/adapter/api/handler"
	apimiddleware "clipfolio/internal/adapter/api/middleware"
	"clipfolio/internal/adapter/api/router"
	"clipfolio/internal/adapter/repository"
	"clipfolio/internal/infrastructure/realtime"
	"clipfolio/internal/infrastructure/websocket"
	"clipfolio/internal/usecase"
	"clipfolio/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var opts []option.ClientOption

	// Service account from env for production, file path for local work.
	if serviceAccountJSON := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON"); serviceAccountJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(serviceAccountJSON)))
	} else if serviceAccountPath := os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH"); serviceAccountPath != "" {
		opts = append(opts, option.WithCredentialsFile(serviceAccountPath))
	}

	firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opts...)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase Auth: %v", err)
	}

	firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opts...)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer firestoreClient.Close()

	messageRepo := repository.NewFirestoreMessageRepository(firestoreClient)
	userRepo := repository.NewFirestoreUserRepository(firestoreClient)
	followRepo := repository.NewFirestoreFollowRepository(firestoreClient)

	feed := realtime.NewFeed()
	defer feed.Close()

	wsManager := websocket.NewManager()
	wsManager.Start(ctx)

	messagingUseCase := usecase.NewMessagingUseCase(messageRepo, userRepo, feed)
	directoryUseCase := usecase.NewDirectoryUseCase(userRepo, followRepo, messageRepo)

	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(authClient)

	messageHandler := handler.NewMessageHandler(messagingUseCase, cfg.MessagePageSize)
	directoryHandler := handler.NewDirectoryHandler(directoryUseCase)
	wsHandler := handler.NewWebSocketHandler(
		wsManager,
		authMiddleware,
		messagingUseCase,
		feed,
		cfg.MessagePageSize,
		cfg.UnreadRescanInterval,
	)

	router.SetupHealthRouter(e)
	router.SetupMessageRouter(e, messageHandler, authMiddleware)
	router.SetupDirectoryRouter(e, directoryHandler, authMiddleware)
	router.SetupWebSocketRouter(e, wsHandler)

	log.Printf("Starting server on port %s...", cfg.ServerPort)
	e.Logger.Fatal(e.Start(":" + cfg.ServerPort))
}
