// Package directory resolves user IDs to display profiles for conversation
// and message enrichment. It is the messaging core's only view of the user
// table; account management happens elsewhere.
package directory

import (
	"context"

	"telederm/internal/models"

	"gorm.io/gorm"
)

// Profile is the subset of a user account the messaging surfaces expose.
type Profile struct {
	ID          uint   `json:"id"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Directory looks up user profiles.
type Directory interface {
	Lookup(ctx context.Context, userID uint) (*Profile, error)
	LookupMany(ctx context.Context, userIDs []uint) (map[uint]*Profile, error)
}

// GormDirectory is the relational-store implementation of Directory.
type GormDirectory struct {
	db *gorm.DB
}

// NewGormDirectory creates a Directory backed by the user table.
func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func profileFromUser(u *models.User) *Profile {
	name := u.DisplayName
	if name == "" {
		name = u.Username
	}
	return &Profile{
		ID:          u.ID,
		DisplayName: name,
		Role:        u.Role,
		AvatarURL:   u.Avatar,
	}
}

// Lookup returns the profile for a single user.
func (d *GormDirectory) Lookup(ctx context.Context, userID uint) (*Profile, error) {
	var user models.User
	if err := d.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, models.NewNotFoundError("User", userID)
		}
		return nil, models.NewInternalError(err)
	}
	return profileFromUser(&user), nil
}

// LookupMany resolves a batch of user IDs in one query. IDs that no longer
// resolve map to a placeholder profile so deleted accounts never break a
// conversation listing.
func (d *GormDirectory) LookupMany(ctx context.Context, userIDs []uint) (map[uint]*Profile, error) {
	result := make(map[uint]*Profile, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	var users []models.User
	if err := d.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	for i := range users {
		result[users[i].ID] = profileFromUser(&users[i])
	}
	for _, id := range userIDs {
		if _, ok := result[id]; !ok {
			result[id] = &Profile{ID: id, DisplayName: "Unknown User"}
		}
	}
	return result, nil
}
