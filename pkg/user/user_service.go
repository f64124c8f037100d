package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
)

type Service interface {
	GetCurrentUser(ctx context.Context) (User, error)
	GetUserByUid(ctx context.Context, uid string) (User, error)
	CreateUser(ctx context.Context, user User) (User, error)
}

type UserServiceImpl struct {
	repo Repo
}

func NewUserService(repo Repo) *UserServiceImpl {
	return &UserServiceImpl{repo: repo}
}

func (u *UserServiceImpl) GetCurrentUser(ctx context.Context) (User, error) {
	userId, err := CurrentId(ctx)
	if err != nil {
		return User{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return u.repo.GetUser(ctx, userId)
}

func (u *UserServiceImpl) GetUserByUid(ctx context.Context, uid string) (User, error) {
	return u.repo.GetUserByUid(ctx, uid)
}

func (u *UserServiceImpl) CreateUser(ctx context.Context, user User) (User, error) {
	if user.Username == "" {
		return User{}, errors.New("username is required")
	}
	if user.Email != "" {
		if _, err := mail.ParseAddress(user.Email); err != nil {
			return User{}, fmt.Errorf("invalid email %q: %w", user.Email, err)
		}
	}
	if user.Timezone == "" {
		user.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(user.Timezone); err != nil {
		return User{}, fmt.Errorf("invalid timezone %q: %w", user.Timezone, err)
	}
	if user.Uid == "" {
		user.Uid = uuid.NewString()
	}

	userId, err := u.repo.CreateUser(ctx, user)
	if err != nil {
		return User{}, err
	}
	user.Id = userId
	return user, nil
}
