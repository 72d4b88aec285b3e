package repositories

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/anonto42/postboard/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PostRepository defines the interface for post data operations. Methods that
// touch more than one collection are atomic.
type PostRepository interface {
	// CreatePost inserts the post and appends it to the author's postIds.
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	ListPosts(ctx context.Context, skip, limit int64) ([]models.PostView, error)
	CountPosts(ctx context.Context) (int64, error)
	SearchByTitle(ctx context.Context, title string) ([]models.Post, error)
	SearchByKeywords(ctx context.Context, keywords []string) ([]models.Post, error)
	UpdatePost(ctx context.Context, id string, update models.PostUpdate) (*models.Post, error)
	// DeletePost removes the post, its comments and every user reference to it.
	DeletePost(ctx context.Context, id string) error
	LikePost(ctx context.Context, postID, userID string) (*models.Post, error)
	UnlikePost(ctx context.Context, postID, userID string) (*models.Post, error)
}

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	posts    *mongo.Collection
	users    *mongo.Collection
	comments *mongo.Collection
	tx       *TxRunner
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database, tx *TxRunner) *MongoPostRepository {
	return &MongoPostRepository{
		posts:    db.Collection("posts"),
		users:    db.Collection("users"),
		comments: db.Collection("comments"),
		tx:       tx,
	}
}

// CreatePost creates a new post in MongoDB
func (r *MongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	now := time.Now()
	post.ID = primitive.NewObjectID()
	post.CreatedAt = now
	post.UpdatedAt = now
	// $push fails on null fields, so every list starts out empty.
	if post.Keywords == nil {
		post.Keywords = []string{}
	}
	if post.Images == nil {
		post.Images = []string{}
	}
	post.Likes = []primitive.ObjectID{}
	post.CommentIDs = []primitive.ObjectID{}

	return r.tx.Run(ctx, func(ctx context.Context) error {
		if _, err := r.posts.InsertOne(ctx, post); err != nil {
			return fmt.Errorf("insert post: %w", err)
		}
		res, err := r.users.UpdateOne(ctx, bson.M{"_id": post.UserID}, bson.M{"$push": bson.M{"postIds": post.ID}})
		if err != nil {
			return fmt.Errorf("append post to author: %w", err)
		}
		if res.MatchedCount == 0 {
			return ErrUserNotFound
		}
		return nil
	})
}

// GetPostByID retrieves a post by ID from MongoDB
func (r *MongoPostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	objID, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	var post models.Post
	err = r.posts.FindOne(ctx, bson.M{"_id": objID}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// ListPosts returns one page of posts, newest first, with the author and the
// comment authors joined in.
func (r *MongoPostRepository) ListPosts(ctx context.Context, skip, limit int64) ([]models.PostView, error) {
	cursor, err := r.posts.Aggregate(ctx, listPipeline(skip, limit))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.PostView{}
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *MongoPostRepository) CountPosts(ctx context.Context) (int64, error) {
	return r.posts.CountDocuments(ctx, bson.D{})
}

// SearchByTitle does a case-insensitive substring match on the title.
func (r *MongoPostRepository) SearchByTitle(ctx context.Context, title string) ([]models.Post, error) {
	return r.find(ctx, titleFilter(title))
}

// SearchByKeywords matches posts carrying any of the given keywords.
func (r *MongoPostRepository) SearchByKeywords(ctx context.Context, keywords []string) ([]models.Post, error) {
	return r.find(ctx, bson.M{"keywords": bson.M{"$in": keywords}})
}

func (r *MongoPostRepository) find(ctx context.Context, filter bson.M) ([]models.Post, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.posts.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// UpdatePost applies the whitelisted changes and returns the updated post.
func (r *MongoPostRepository) UpdatePost(ctx context.Context, id string, update models.PostUpdate) (*models.Post, error) {
	objID, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var post models.Post
	err = r.posts.FindOneAndUpdate(ctx, bson.M{"_id": objID}, updateDocument(update, time.Now()), opts).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// DeletePost deletes a post by ID from MongoDB
func (r *MongoPostRepository) DeletePost(ctx context.Context, id string) error {
	objID, err := parseObjectID(id)
	if err != nil {
		return err
	}

	return r.tx.Run(ctx, func(ctx context.Context) error {
		var post models.Post
		if err := r.posts.FindOneAndDelete(ctx, bson.M{"_id": objID}).Decode(&post); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return ErrPostNotFound
			}
			return fmt.Errorf("delete post: %w", err)
		}
		if _, err := r.comments.DeleteMany(ctx, bson.M{"postId": objID}); err != nil {
			return fmt.Errorf("delete comments: %w", err)
		}
		if _, err := r.users.UpdateOne(ctx, bson.M{"_id": post.UserID}, bson.M{"$pull": bson.M{"postIds": objID}}); err != nil {
			return fmt.Errorf("detach post from author: %w", err)
		}
		if _, err := r.users.UpdateMany(ctx, bson.M{"likesList": objID}, bson.M{"$pull": bson.M{"likesList": objID}}); err != nil {
			return fmt.Errorf("detach post from likers: %w", err)
		}
		return nil
	})
}

// LikePost adds userID to the post's likes and the post to the user's
// likesList. The post update only matches while the user is absent from
// likes, so concurrent likes cannot add the same user twice.
func (r *MongoPostRepository) LikePost(ctx context.Context, postID, userID string) (*models.Post, error) {
	pid, err := parseObjectID(postID)
	if err != nil {
		return nil, err
	}
	uid, err := parseObjectID(userID)
	if err != nil {
		return nil, err
	}

	var post models.Post
	err = r.tx.Run(ctx, func(ctx context.Context) error {
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		filter := bson.M{"_id": pid, "likes": bson.M{"$ne": uid}}
		err := r.posts.FindOneAndUpdate(ctx, filter, bson.M{"$push": bson.M{"likes": uid}}, opts).Decode(&post)
		if errors.Is(err, mongo.ErrNoDocuments) {
			n, countErr := r.posts.CountDocuments(ctx, bson.M{"_id": pid})
			if countErr != nil {
				return countErr
			}
			if n == 0 {
				return ErrPostNotFound
			}
			return ErrAlreadyLiked
		}
		if err != nil {
			return fmt.Errorf("push like: %w", err)
		}

		res, err := r.users.UpdateOne(ctx, bson.M{"_id": uid}, bson.M{"$addToSet": bson.M{"likesList": pid}})
		if err != nil {
			return fmt.Errorf("append to likesList: %w", err)
		}
		if res.MatchedCount == 0 {
			return ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// UnlikePost removes the like from both sides. Unliking a post the user never
// liked changes nothing.
func (r *MongoPostRepository) UnlikePost(ctx context.Context, postID, userID string) (*models.Post, error) {
	pid, err := parseObjectID(postID)
	if err != nil {
		return nil, err
	}
	uid, err := parseObjectID(userID)
	if err != nil {
		return nil, err
	}

	var post models.Post
	err = r.tx.Run(ctx, func(ctx context.Context) error {
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		err := r.posts.FindOneAndUpdate(ctx, bson.M{"_id": pid}, bson.M{"$pull": bson.M{"likes": uid}}, opts).Decode(&post)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrPostNotFound
		}
		if err != nil {
			return fmt.Errorf("pull like: %w", err)
		}
		if _, err := r.users.UpdateOne(ctx, bson.M{"_id": uid}, bson.M{"$pull": bson.M{"likesList": pid}}); err != nil {
			return fmt.Errorf("remove from likesList: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// titleFilter escapes every regex metacharacter so the title is matched as
// a literal substring.
func titleFilter(title string) bson.M {
	return bson.M{"title": primitive.Regex{Pattern: regexp.QuoteMeta(title), Options: "i"}}
}

func updateDocument(update models.PostUpdate, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if update.Title != nil {
		set["title"] = *update.Title
	}
	if update.Body != nil {
		set["body"] = *update.Body
	}
	if update.Keywords != nil {
		set["keywords"] = update.Keywords
	}
	return bson.M{"$set": set}
}

func authorLookup(as string, fields bson.D) bson.D {
	return bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: "users"},
		{Key: "let", Value: bson.D{{Key: "uid", Value: "$userId"}}},
		{Key: "pipeline", Value: bson.A{
			bson.D{{Key: "$match", Value: bson.D{{Key: "$expr", Value: bson.D{{Key: "$eq", Value: bson.A{"$_id", "$$uid"}}}}}}},
			bson.D{{Key: "$project", Value: fields}},
		}},
		{Key: "as", Value: as},
	}}}
}

func unwind(path string) bson.D {
	return bson.D{{Key: "$unwind", Value: bson.D{
		{Key: "path", Value: "$" + path},
		{Key: "preserveNullAndEmptyArrays", Value: true},
	}}}
}

func listPipeline(skip, limit int64) mongo.Pipeline {
	commentsLookup := bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: "comments"},
		{Key: "let", Value: bson.D{{Key: "ids", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$commentIds", bson.A{}}}}}}},
		{Key: "pipeline", Value: bson.A{
			bson.D{{Key: "$match", Value: bson.D{{Key: "$expr", Value: bson.D{{Key: "$in", Value: bson.A{"$_id", "$$ids"}}}}}}},
			bson.D{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: 1}}}},
			authorLookup("userId", bson.D{{Key: "username", Value: 1}}),
			unwind("userId"),
		}},
		{Key: "as", Value: "commentIds"},
	}}}

	return mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$skip", Value: skip}},
		{{Key: "$limit", Value: limit}},
		authorLookup("userId", bson.D{{Key: "username", Value: 1}, {Key: "avatar", Value: 1}}),
		unwind("userId"),
		commentsLookup,
	}
}
