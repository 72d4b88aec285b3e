package repositories

import (
	"context"
	"errors"

	"github.com/anonto42/postboard/backend/internal/models"
	"gorm.io/gorm"
)

var (
	ErrAlreadySaved = errors.New("post already saved")
	ErrNotSaved     = errors.New("saved post not found")
)

// SavedPostRepository defines the interface for saved post operations
type SavedPostRepository interface {
	SavePost(ctx context.Context, userID, postID string) (*models.SavedPost, error)
	UnsavePost(ctx context.Context, userID, postID string) error
	GetSavedPostsByUser(ctx context.Context, userID string) ([]models.SavedPost, error)
	// RemovePost drops every bookmark of a deleted post.
	RemovePost(ctx context.Context, postID string) error
}

// PostgresSavedPostRepository implements SavedPostRepository
type PostgresSavedPostRepository struct {
	db *gorm.DB
}

func NewPostgresSavedPostRepository(db *gorm.DB) *PostgresSavedPostRepository {
	return &PostgresSavedPostRepository{db: db}
}

func (r *PostgresSavedPostRepository) SavePost(ctx context.Context, userID, postID string) (*models.SavedPost, error) {
	saved := &models.SavedPost{UserID: userID, PostID: postID}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.SavedPost{}).
			Where("user_id = ? AND post_id = ?", userID, postID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadySaved
		}
		return tx.Create(saved).Error
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (r *PostgresSavedPostRepository) UnsavePost(ctx context.Context, userID, postID string) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Delete(&models.SavedPost{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotSaved
	}
	return nil
}

func (r *PostgresSavedPostRepository) GetSavedPostsByUser(ctx context.Context, userID string) ([]models.SavedPost, error) {
	var saved []models.SavedPost
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&saved).Error
	return saved, err
}

func (r *PostgresSavedPostRepository) RemovePost(ctx context.Context, postID string) error {
	return r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&models.SavedPost{}).Error
}
