package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kozaktomas/faceauth/internal/constants"
)

// UserStore reads and writes the current user record.
type UserStore struct {
	kv KeyValueStore
}

// NewUserStore creates a user store on top of kv.
func NewUserStore(kv KeyValueStore) *UserStore {
	return &UserStore{kv: kv}
}

// Current returns the signed-in user, or nil if nobody is signed in.
func (u *UserStore) Current(ctx context.Context) (*CurrentUser, error) {
	data, err := u.kv.Get(ctx, constants.CurrentUserKey)
	if err != nil {
		return nil, fmt.Errorf("load current user: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	var user CurrentUser
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("decode current user: %w", err)
	}
	return &user, nil
}

// SetCurrent records name as the signed-in user.
func (u *UserStore) SetCurrent(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("user name is required")
	}
	data, err := json.Marshal(CurrentUser{Name: name})
	if err != nil {
		return fmt.Errorf("marshal current user: %w", err)
	}
	if err := u.kv.Set(ctx, constants.CurrentUserKey, data); err != nil {
		return fmt.Errorf("save current user: %w", err)
	}
	return nil
}

// Clear signs the current user out.
func (u *UserStore) Clear(ctx context.Context) error {
	if err := u.kv.Delete(ctx, constants.CurrentUserKey); err != nil {
		return fmt.Errorf("clear current user: %w", err)
	}
	return nil
}
