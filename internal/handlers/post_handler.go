package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/anonto42/postboard/backend/internal/models"
	"github.com/anonto42/postboard/backend/internal/repositories"
	"github.com/anonto42/postboard/backend/internal/uploads"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultPostsLimit = 3
	maxTitleSearchLen = 20
)

// FileStore persists uploaded post images.
type FileStore interface {
	Save(files []*multipart.FileHeader) ([]string, error)
	Remove(names []string)
}

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	postRepository repositories.PostRepository
	files          FileStore
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(postRepo repositories.PostRepository, files FileStore) *PostHandler {
	return &PostHandler{
		postRepository: postRepo,
		files:          files,
	}
}

// RegisterPostRoutes registers post-related routes. Mutating routes go
// through auth; reads are public.
func (h *PostHandler) RegisterPostRoutes(g *echo.Group, auth echo.MiddlewareFunc) {
	g.GET("/posts", h.GetPosts)
	g.GET("/posts/search", h.GetPostsByKeywords)
	g.GET("/posts/title/:title", h.GetPostsByTitle)
	g.GET("/posts/:id", h.GetPost)
	g.POST("/posts", h.CreatePost, auth)
	g.PUT("/posts/:id", h.UpdatePost, auth)
	g.DELETE("/posts/:id", h.DeletePost, auth)
}

// CreatePost creates a new post from a multipart form. Files sent under
// "images" are stored and referenced by filename.
func (h *PostHandler) CreatePost(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	authorID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid user ID")
	}

	var req models.CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	keywords := models.ParseKeywords(req.Keywords)
	if len(keywords) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Please provide at least one keyword")
	}

	var files []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil {
		files = form.File["images"]
	}
	images, err := h.files.Save(files)
	if err != nil {
		if errors.Is(err, uploads.ErrUnsupportedType) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return storeError(err, "storing the images")
	}

	post := &models.Post{
		Title:    req.Title,
		Body:     req.Body,
		Keywords: keywords,
		Images:   images,
		UserID:   authorID,
	}

	if err := h.postRepository.CreatePost(c.Request().Context(), post); err != nil {
		h.files.Remove(images)
		return storeError(err, "creating the post")
	}

	return c.JSON(http.StatusCreated, post)
}

// GetPosts returns one page of posts with authors and comments joined in.
func (h *PostHandler) GetPosts(c echo.Context) error {
	ctx := c.Request().Context()
	page, limit := pageParams(c, defaultPostsLimit)
	skip := int64((page - 1) * limit)

	posts, err := h.postRepository.ListPosts(ctx, skip, int64(limit))
	if err != nil {
		return storeError(err, "getting the posts")
	}
	total, err := h.postRepository.CountPosts(ctx)
	if err != nil {
		return storeError(err, "counting the posts")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"posts":        posts,
		"hasMorePages": total > int64(page*limit),
	})
}

// GetPost retrieves a post by ID
func (h *PostHandler) GetPost(c echo.Context) error {
	post, err := h.postRepository.GetPostByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "getting the post by id")
	}
	return c.JSON(http.StatusOK, post)
}

// GetPostsByTitle does a case-insensitive substring search on titles.
func (h *PostHandler) GetPostsByTitle(c echo.Context) error {
	title := c.Param("title")
	// params are still escaped only when the route matched on RawPath
	if c.Request().URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(title); err == nil {
			title = unescaped
		}
	}
	if utf8.RuneCountInString(title) > maxTitleSearchLen {
		return echo.NewHTTPError(http.StatusBadRequest, "Search too long")
	}
	if strings.TrimSpace(title) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Please provide a title for the search.")
	}

	posts, err := h.postRepository.SearchByTitle(c.Request().Context(), title)
	if err != nil {
		return storeError(err, "getting the post by title")
	}
	return c.JSON(http.StatusOK, posts)
}

// GetPostsByKeywords returns posts carrying any of the comma-separated
// keywords.
func (h *PostHandler) GetPostsByKeywords(c echo.Context) error {
	keywords := models.ParseKeywords(c.QueryParam("keywords"))
	if len(keywords) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Please provide keywords for the search.")
	}

	posts, err := h.postRepository.SearchByKeywords(c.Request().Context(), keywords)
	if err != nil {
		return storeError(err, "getting posts with keywords")
	}
	return c.JSON(http.StatusOK, posts)
}

// UpdatePost updates title, body or keywords of a post owned by the caller.
func (h *PostHandler) UpdatePost(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	postID := c.Param("id")

	var req models.UpdatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	update := models.PostUpdate{Title: req.Title, Body: req.Body}
	if req.Keywords != nil {
		update.Keywords = models.ParseKeywords(*req.Keywords)
		if len(update.Keywords) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "Please provide at least one keyword")
		}
	}
	if update.Empty() {
		return echo.NewHTTPError(http.StatusBadRequest, "Nothing to update")
	}

	existingPost, err := h.postRepository.GetPostByID(ctx, postID)
	if err != nil {
		return storeError(err, "updating the post")
	}

	// Ensure the user updating the post is the owner
	if existingPost.UserID.Hex() != userID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to update this post")
	}

	post, err := h.postRepository.UpdatePost(ctx, postID, update)
	if err != nil {
		return storeError(err, "updating the post")
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Post updated successfully!", "post": post})
}

// DeletePost deletes a post owned by the caller together with its comments.
func (h *PostHandler) DeletePost(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	postID := c.Param("id")

	existingPost, err := h.postRepository.GetPostByID(ctx, postID)
	if err != nil {
		return storeError(err, "removing the post")
	}

	// Ensure the user deleting the post is the owner
	if existingPost.UserID.Hex() != userID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to delete this post")
	}

	if err := h.postRepository.DeletePost(ctx, postID); err != nil {
		return storeError(err, "removing the post")
	}
	h.files.Remove(existingPost.Images)

	return c.JSON(http.StatusOK, echo.Map{"message": "Post deleted successfully"})
}
