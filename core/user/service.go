package user

import (
	"context"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/go-stock-ledger/core"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidUser    = errors.New("invalid user")
	ErrInvalidLogin   = errors.New("invalid username or password")
	usernamePattern   = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,64}$`)
	minPasswordLength = 5
)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

type Service interface {
	Create(ctx context.Context, user CreateUserRequest) (User, error)
	Get(ctx context.Context, username string) (User, error)
	Delete(ctx context.Context, username string) error
	Login(ctx context.Context, username, password string) (User, error)
}

type service struct {
	repo Repository
}

func (s *service) Get(ctx context.Context, username string) (User, error) {
	return s.repo.Get(ctx, username)
}

func (s *service) Create(ctx context.Context, req CreateUserRequest) (User, error) {
	if !usernameIsValid(req.Username) {
		return User{}, errors.WithMessage(ErrInvalidUser, "invalid username")
	}
	if !passwordIsValid(req.PlainTextPassword) {
		return User{}, errors.WithMessage(ErrInvalidUser, "invalid password")
	}
	if req.BusinessID == "" {
		return User{}, errors.WithMessage(ErrInvalidUser, "business id is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.PlainTextPassword), bcrypt.DefaultCost)
	if err != nil {
		return User{}, errors.WithStack(err)
	}
	user := &User{
		Username:       req.Username,
		BusinessID:     req.BusinessID,
		HashedPassword: string(hash),
		IsAdmin:        req.IsAdmin,
		Created:        time.Now(),
	}

	log.Info().
		Str("func", "Create").
		Str("username", user.Username).
		Str("businessId", user.BusinessID).
		Bool("isAdmin", user.IsAdmin).
		Msg("creating user")

	err = s.repo.Create(ctx, user)
	if err != nil {
		return User{}, errors.WithStack(err)
	}
	return *user, nil
}

func usernameIsValid(username string) bool {
	return usernamePattern.MatchString(username)
}

func passwordIsValid(password string) bool {
	return len(password) >= minPasswordLength
}

func (s *service) Delete(ctx context.Context, username string) error {
	return s.repo.Delete(ctx, username)
}

func (s *service) Login(ctx context.Context, username, password string) (User, error) {
	u, err := s.repo.Get(ctx, username)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return User{}, ErrInvalidLogin
		}
		return User{}, err
	}

	err = bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password))
	if err != nil {
		return User{}, ErrInvalidLogin
	}

	return u, nil
}

type Repository interface {
	Create(ctx context.Context, user *User, tx ...core.UpdateOptions) error
	Get(ctx context.Context, username string, tx ...core.QueryOptions) (User, error)
	Delete(ctx context.Context, username string, tx ...core.UpdateOptions) error
}
