package handlers

import (
	"net/http"

	"github.com/anonto42/postboard/backend/internal/models"
	"github.com/anonto42/postboard/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// LikeHandler handles HTTP requests related to likes
type LikeHandler struct {
	postRepository         repositories.PostRepository
	notificationRepository repositories.NotificationRepository
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(postRepo repositories.PostRepository, notifRepo repositories.NotificationRepository) *LikeHandler {
	return &LikeHandler{
		postRepository:         postRepo,
		notificationRepository: notifRepo,
	}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group, auth echo.MiddlewareFunc) {
	g.POST("/posts/:id/like", h.LikePost, auth)
	g.POST("/posts/:id/unlike", h.UnlikePost, auth)
}

// LikePost adds the caller to the post's likes. Liking twice is a 400.
func (h *LikeHandler) LikePost(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	post, err := h.postRepository.LikePost(ctx, c.Param("id"), userID)
	if err != nil {
		return storeError(err, "liking the post")
	}

	notify(ctx, h.notificationRepository, &models.Notification{
		Type:        models.NotificationTypeLike,
		ActorID:     userID,
		RecipientID: post.UserID.Hex(),
		TargetID:    post.ID.Hex(),
		TargetType:  "post",
		Message:     "liked your post",
	})

	return c.JSON(http.StatusOK, post)
}

// UnlikePost removes the caller's like. Unliking a post that was never liked
// returns the post unchanged.
func (h *LikeHandler) UnlikePost(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	post, err := h.postRepository.UnlikePost(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return storeError(err, "unliking the post")
	}

	return c.JSON(http.StatusOK, post)
}
