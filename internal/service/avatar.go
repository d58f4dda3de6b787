package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/dtroode/cardbook-server/internal/logger"
	"github.com/dtroode/cardbook-server/internal/model"
)

const avatarPrefix = "avatars/"

var avatarExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Avatar stores profile pictures in object storage.
type Avatar struct {
	userStore model.UserStore
	storage   model.Storage
	maxSize   int64
	logger    *logger.Logger
}

// NewAvatar creates an Avatar service. A nil storage disables uploads.
func NewAvatar(userStore model.UserStore, storage model.Storage, maxSize int64, logger *logger.Logger) *Avatar {
	return &Avatar{
		userStore: userStore,
		storage:   storage,
		maxSize:   maxSize,
		logger:    logger,
	}
}

// Upload stores file as the avatar of userID and replaces the previous one.
func (a *Avatar) Upload(ctx context.Context, userID int64, file io.Reader, size int64, contentType string) (model.Avatar, error) {
	if a.storage == nil {
		return model.Avatar{}, model.ErrStorageDisabled
	}

	if size <= 0 {
		return model.Avatar{}, model.NewValidationError("file", "is required")
	}
	if size > a.maxSize {
		return model.Avatar{}, model.NewValidationError("file",
			fmt.Sprintf("must not exceed %d KB", a.maxSize/1024))
	}

	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	ext, ok := avatarExtensions[mediaType]
	if !ok {
		return model.Avatar{}, model.NewValidationError("file", "must be a jpeg, png, gif or webp image")
	}

	user, err := a.userStore.GetByID(ctx, userID)
	if err != nil {
		return model.Avatar{}, fmt.Errorf("failed to get user by id: %w", err)
	}

	key := fmt.Sprintf("%s%d/%s%s", avatarPrefix, userID, uuid.NewString(), ext)
	if err := a.storage.Upload(ctx, key, file, size, mediaType); err != nil {
		a.logger.Error("Avatar service: failed to upload avatar",
			"user_id", userID,
			"key", key,
			"error", err.Error())
		return model.Avatar{}, fmt.Errorf("failed to upload avatar: %w", err)
	}

	if err := a.userStore.UpdateAvatar(ctx, userID, key); err != nil {
		a.logger.Error("Avatar service: failed to update user avatar",
			"user_id", userID,
			"error", err.Error())
		if delErr := a.storage.Delete(ctx, key); delErr != nil {
			a.logger.Warn("Avatar service: failed to remove orphaned avatar",
				"key", key,
				"error", delErr.Error())
		}
		return model.Avatar{}, fmt.Errorf("failed to update user avatar: %w", err)
	}

	if strings.HasPrefix(user.Avatar, avatarPrefix) && user.Avatar != key {
		if err := a.storage.Delete(ctx, user.Avatar); err != nil {
			a.logger.Warn("Avatar service: failed to remove previous avatar",
				"key", user.Avatar,
				"error", err.Error())
		}
	}

	a.logger.Info("Avatar service: avatar uploaded",
		"user_id", userID,
		"key", key)

	return model.Avatar{Key: key, URL: a.storage.URL(key)}, nil
}
