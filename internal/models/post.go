package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post represents a social media post stored in MongoDB
type Post struct {
	ID         primitive.ObjectID   `json:"_id" bson:"_id,omitempty"`
	Title      string               `json:"title" bson:"title"`
	Body       string               `json:"body" bson:"body"`
	Keywords   []string             `json:"keywords" bson:"keywords"`
	Images     []string             `json:"images" bson:"images"`
	UserID     primitive.ObjectID   `json:"userId" bson:"userId"` // author
	Likes      []primitive.ObjectID `json:"likes" bson:"likes"`
	CommentIDs []primitive.ObjectID `json:"commentIds" bson:"commentIds"`
	CreatedAt  time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// PostView is a post with its author and comments joined in, as returned by
// the paginated listing.
type PostView struct {
	ID        primitive.ObjectID   `json:"_id" bson:"_id"`
	Title     string               `json:"title" bson:"title"`
	Body      string               `json:"body" bson:"body"`
	Keywords  []string             `json:"keywords" bson:"keywords"`
	Images    []string             `json:"images" bson:"images"`
	Author    *UserCompact         `json:"userId" bson:"userId,omitempty"`
	Likes     []primitive.ObjectID `json:"likes" bson:"likes"`
	Comments  []CommentView        `json:"commentIds" bson:"commentIds"`
	CreatedAt time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// CreatePostRequest is the multipart form accepted when creating a post.
// Uploaded files are read separately from the "images" field.
type CreatePostRequest struct {
	Title    string `form:"title" json:"title" validate:"required,max=200"`
	Body     string `form:"body" json:"body" validate:"max=5000"`
	Keywords string `form:"keywords" json:"keywords" validate:"required"`
}

// UpdatePostRequest lists the only fields a client may change on a post.
type UpdatePostRequest struct {
	Title    *string `json:"title" validate:"omitempty,min=1,max=200"`
	Body     *string `json:"body" validate:"omitempty,max=5000"`
	Keywords *string `json:"keywords"`
}

// PostUpdate is the whitelisted set of changes applied by the repository.
// Nil fields are left untouched.
type PostUpdate struct {
	Title    *string
	Body     *string
	Keywords []string
}

// Empty reports whether the update would change nothing.
func (u PostUpdate) Empty() bool {
	return u.Title == nil && u.Body == nil && u.Keywords == nil
}

// ParseKeywords splits a comma-delimited keyword string. Entries are trimmed
// and empty entries dropped, so "a, b, c" and "a,b,c" give the same list.
func ParseKeywords(raw string) []string {
	keywords := []string{}
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	return keywords
}
