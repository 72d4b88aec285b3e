package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/postboard/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	// CreateComment inserts the comment and appends it to the post's commentIds.
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetCommentByID(ctx context.Context, id string) (*models.Comment, error)
	GetCommentsByPostID(ctx context.Context, postID string) ([]models.Comment, error)
	// DeleteComment removes the comment and detaches it from its post.
	DeleteComment(ctx context.Context, comment *models.Comment) error
}

// MongoCommentRepository implements CommentRepository for MongoDB
type MongoCommentRepository struct {
	comments *mongo.Collection
	posts    *mongo.Collection
	tx       *TxRunner
}

// NewMongoCommentRepository creates a new MongoCommentRepository
func NewMongoCommentRepository(db *mongo.Database, tx *TxRunner) *MongoCommentRepository {
	return &MongoCommentRepository{
		comments: db.Collection("comments"),
		posts:    db.Collection("posts"),
		tx:       tx,
	}
}

func (r *MongoCommentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	comment.ID = primitive.NewObjectID()
	comment.CreatedAt = time.Now()

	return r.tx.Run(ctx, func(ctx context.Context) error {
		res, err := r.posts.UpdateOne(ctx, bson.M{"_id": comment.PostID}, bson.M{"$push": bson.M{"commentIds": comment.ID}})
		if err != nil {
			return fmt.Errorf("append comment to post: %w", err)
		}
		if res.MatchedCount == 0 {
			return ErrPostNotFound
		}
		if _, err := r.comments.InsertOne(ctx, comment); err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}
		return nil
	})
}

func (r *MongoCommentRepository) GetCommentByID(ctx context.Context, id string) (*models.Comment, error) {
	objID, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	var comment models.Comment
	if err := r.comments.FindOne(ctx, bson.M{"_id": objID}).Decode(&comment); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}
	return &comment, nil
}

func (r *MongoCommentRepository) GetCommentsByPostID(ctx context.Context, postID string) ([]models.Comment, error) {
	objID, err := parseObjectID(postID)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.comments.Find(ctx, bson.M{"postId": objID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	comments := []models.Comment{}
	if err = cursor.All(ctx, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *MongoCommentRepository) DeleteComment(ctx context.Context, comment *models.Comment) error {
	return r.tx.Run(ctx, func(ctx context.Context) error {
		res, err := r.comments.DeleteOne(ctx, bson.M{"_id": comment.ID})
		if err != nil {
			return fmt.Errorf("delete comment: %w", err)
		}
		if res.DeletedCount == 0 {
			return ErrCommentNotFound
		}
		if _, err := r.posts.UpdateOne(ctx, bson.M{"_id": comment.PostID}, bson.M{"$pull": bson.M{"commentIds": comment.ID}}); err != nil {
			return fmt.Errorf("detach comment from post: %w", err)
		}
		return nil
	})
}
