package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/anonto42/postboard/backend/internal/models"
	"github.com/anonto42/postboard/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// SavedPostHandler handles saved post HTTP requests
type SavedPostHandler struct {
	savedPostRepository repositories.SavedPostRepository
	postRepository      repositories.PostRepository
}

// NewSavedPostHandler creates a new SavedPostHandler
func NewSavedPostHandler(savedPostRepo repositories.SavedPostRepository, postRepo repositories.PostRepository) *SavedPostHandler {
	return &SavedPostHandler{
		savedPostRepository: savedPostRepo,
		postRepository:      postRepo,
	}
}

// RegisterSavedPostRoutes registers saved post routes; all of them require auth.
func (h *SavedPostHandler) RegisterSavedPostRoutes(g *echo.Group, auth echo.MiddlewareFunc) {
	g.GET("/saved-posts", h.GetSavedPosts, auth)
	g.POST("/posts/:id/save", h.SavePost, auth)
	g.DELETE("/posts/:id/save", h.UnsavePost, auth)
}

// SavePost bookmarks a post for the caller
func (h *SavedPostHandler) SavePost(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	post, err := h.postRepository.GetPostByID(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "saving the post")
	}

	saved, err := h.savedPostRepository.SavePost(ctx, userID, post.ID.Hex())
	if err != nil {
		return storeError(err, "saving the post")
	}
	return c.JSON(http.StatusCreated, saved)
}

// UnsavePost removes a post from the caller's bookmarks
func (h *SavedPostHandler) UnsavePost(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	if err := h.savedPostRepository.UnsavePost(c.Request().Context(), userID, c.Param("id")); err != nil {
		return storeError(err, "unsaving the post")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Post removed from saved posts"})
}

// GetSavedPosts returns the caller's bookmarked posts, most recently saved
// first. Bookmarks of posts deleted since are dropped.
func (h *SavedPostHandler) GetSavedPosts(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	saved, err := h.savedPostRepository.GetSavedPostsByUser(ctx, userID)
	if err != nil {
		return storeError(err, "getting the saved posts")
	}

	posts := make([]models.Post, 0, len(saved))
	for _, s := range saved {
		post, err := h.postRepository.GetPostByID(ctx, s.PostID)
		if errors.Is(err, repositories.ErrPostNotFound) {
			if err := h.savedPostRepository.RemovePost(ctx, s.PostID); err != nil {
				log.Printf("Error pruning saved post %s: %v", s.PostID, err)
			}
			continue
		}
		if err != nil {
			return storeError(err, "getting the saved posts")
		}
		posts = append(posts, *post)
	}
	return c.JSON(http.StatusOK, posts)
}
