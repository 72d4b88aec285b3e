package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is stored in MongoDB. PostIDs and LikesList are back-references kept
// in step with Post.UserID and Post.Likes.
type User struct {
	ID          primitive.ObjectID   `json:"_id" bson:"_id,omitempty"`
	Username    string               `json:"username" bson:"username"`
	Email       string               `json:"email" bson:"email"`
	Password    string               `json:"-" bson:"password,omitempty"` // bcrypt hash
	Avatar      string               `json:"avatar,omitempty" bson:"avatar,omitempty"`
	FirebaseUID string               `json:"firebase_uid,omitempty" bson:"firebaseUid,omitempty"`
	PostIDs     []primitive.ObjectID `json:"postIds" bson:"postIds"`
	LikesList   []primitive.ObjectID `json:"likesList" bson:"likesList"`
	CreatedAt   time.Time            `json:"createdAt" bson:"createdAt"`
}

// UserCompact is the subset of a user joined into posts and comments.
type UserCompact struct {
	ID       primitive.ObjectID `json:"_id" bson:"_id"`
	Username string             `json:"username" bson:"username"`
	Avatar   string             `json:"avatar,omitempty" bson:"avatar,omitempty"`
}

type CreateLocalUserRequest struct {
	Username string `json:"username" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims.
// UserID is the hex form of the user's ObjectID.
type JwtCustomClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
