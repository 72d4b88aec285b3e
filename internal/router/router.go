package router

import (
	"context"
	"log"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/postboard/backend/internal/handlers"
	"github.com/anonto42/postboard/backend/internal/middleware"
	"github.com/anonto42/postboard/backend/internal/models"
	"github.com/anonto42/postboard/backend/internal/repositories"
	"github.com/anonto42/postboard/backend/internal/uploads"
	"github.com/anonto42/postboard/backend/pkg/config"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// SetupRoutes configures all application routes and injects dependencies.
// firebaseAuthClient may be nil when Firebase is not configured.
func SetupRoutes(e *echo.Echo, cfg *config.Config, pgdb *gorm.DB, mgClient *mongo.Client, firebaseAuthClient *auth.Client, files *uploads.Store) {
	if err := pgdb.AutoMigrate(&models.Notification{}, &models.SavedPost{}); err != nil {
		log.Fatalf("Failed to auto migrate models: %v", err)
	}
	log.Println("PostgreSQL auto-migrations completed.")

	mongoDB := mgClient.Database(cfg.MongoDatabase)
	tx := repositories.NewTxRunner(mgClient, cfg.MongoTransactions)

	// --- Initialize Repositories ---
	userRepo := repositories.NewMongoUserRepository(mongoDB)
	if err := userRepo.EnsureIndexes(context.Background()); err != nil {
		log.Fatalf("Failed to create user indexes: %v", err)
	}
	postRepo := repositories.NewMongoPostRepository(mongoDB, tx)
	commentRepo := repositories.NewMongoCommentRepository(mongoDB, tx)
	notificationRepo := repositories.NewPostgresNotificationRepository(pgdb)
	savedPostRepo := repositories.NewPostgresSavedPostRepository(pgdb)

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck(func(ctx context.Context) error {
		return mgClient.Ping(ctx, nil)
	}))
	e.Static("/uploads", files.Dir())

	var verifier middleware.IDTokenVerifier
	if firebaseAuthClient != nil {
		verifier = firebaseAuthClient
	}

	authMiddleware := middleware.JWTAuthMiddleware(cfg.JWTSecret)
	if cfg.AuthProvider == "firebase" {
		if verifier == nil {
			log.Fatal("AUTH_PROVIDER=firebase requires FIREBASE_CREDENTIALS_PATH")
		}
		authMiddleware = middleware.FirebaseAuthMiddleware(verifier, userRepo.GetUserByFirebaseUID)
	}
	log.Printf("Using %s authentication for protected routes.", cfg.AuthProvider)

	api := e.Group("/api/v1")

	authHandler := handlers.NewAuthHandler(userRepo, verifier, cfg.JWTSecret)
	authHandler.RegisterAuthRoutes(api.Group("/auth"))
	log.Println("Auth routes configured.")

	userHandler := handlers.NewUserHandler(userRepo)
	userHandler.RegisterProfileRoutes(api, authMiddleware)
	log.Println("User profile routes configured.")

	postHandler := handlers.NewPostHandler(postRepo, files)
	postHandler.RegisterPostRoutes(api, authMiddleware)
	log.Println("Post routes configured.")

	likeHandler := handlers.NewLikeHandler(postRepo, notificationRepo)
	likeHandler.RegisterLikeRoutes(api, authMiddleware)
	log.Println("Like routes configured.")

	commentHandler := handlers.NewCommentHandler(commentRepo, postRepo, notificationRepo)
	commentHandler.RegisterCommentRoutes(api, authMiddleware)
	log.Println("Comment routes configured.")

	savedPostHandler := handlers.NewSavedPostHandler(savedPostRepo, postRepo)
	savedPostHandler.RegisterSavedPostRoutes(api, authMiddleware)
	log.Println("Saved post routes configured.")

	notificationHandler := handlers.NewNotificationHandler(notificationRepo)
	notificationHandler.RegisterNotificationRoutes(api, authMiddleware)
	log.Println("Notification routes configured.")

	log.Println("All routes configured.")
}
