package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/anonto42/postboard/backend/internal/middleware"
	"github.com/anonto42/postboard/backend/internal/models"
	"github.com/anonto42/postboard/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// storeError turns a repository error into the HTTP error sent to the
// client. Unrecognised errors are logged and reported as a 500 naming the
// failed action, e.g. "There was a problem liking the post".
func storeError(err error, action string) error {
	switch {
	case errors.Is(err, repositories.ErrInvalidID):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid ID")
	case errors.Is(err, repositories.ErrPostNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	case errors.Is(err, repositories.ErrCommentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Comment not found")
	case errors.Is(err, repositories.ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	case errors.Is(err, repositories.ErrAlreadyLiked):
		return echo.NewHTTPError(http.StatusBadRequest, "You already liked this post")
	case errors.Is(err, repositories.ErrAlreadySaved):
		return echo.NewHTTPError(http.StatusConflict, "Post already saved")
	case errors.Is(err, repositories.ErrNotSaved):
		return echo.NewHTTPError(http.StatusNotFound, "Saved post not found")
	case errors.Is(err, repositories.ErrDuplicateEmail):
		return echo.NewHTTPError(http.StatusConflict, "User with this email already registered")
	}
	log.Printf("Error %s: %v", action, err)
	return echo.NewHTTPError(http.StatusInternalServerError, "There was a problem "+action)
}

// currentUserID returns the authenticated caller or a 401.
func currentUserID(c echo.Context) (string, error) {
	userID := middleware.UserID(c)
	if userID == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return userID, nil
}

// notify records a notification for the recipient. Failures are logged and
// never fail the request that caused them.
func notify(ctx context.Context, repo repositories.NotificationRepository, n *models.Notification) {
	if repo == nil || n.ActorID == n.RecipientID {
		return
	}
	if err := repo.CreateNotification(ctx, n); err != nil {
		log.Printf("Error creating %s notification for %s: %v", n.Type, n.RecipientID, err)
	}
}
