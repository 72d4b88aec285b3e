package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Comment represents a comment on a post
type Comment struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Body      string             `json:"body" bson:"body"`
	UserID    primitive.ObjectID `json:"userId" bson:"userId"`
	PostID    primitive.ObjectID `json:"postId" bson:"postId"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}

// CommentView is a comment with its author's display fields joined in.
type CommentView struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id"`
	Body      string             `json:"body" bson:"body"`
	Author    *UserCompact       `json:"userId" bson:"userId,omitempty"`
	PostID    primitive.ObjectID `json:"postId" bson:"postId"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}

// CreateCommentRequest defines the request body for creating a new comment
type CreateCommentRequest struct {
	Body string `json:"body" form:"body" validate:"required,min=1,max=500"`
}
