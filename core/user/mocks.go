package user

import (
	"context"

	"github.com/sksmith/go-stock-ledger/core"
	"github.com/sksmith/go-stock-ledger/testutil"
)

// MockUserService rejects every login and reports every user as missing until its funcs are replaced.
type MockUserService struct {
	CreateFunc func(ctx context.Context, req CreateUserRequest) (User, error)
	GetFunc    func(ctx context.Context, username string) (User, error)
	DeleteFunc func(ctx context.Context, username string) error
	LoginFunc  func(ctx context.Context, username, password string) (User, error)
	*testutil.CallWatcher
}

func NewMockUserService() MockUserService {
	return MockUserService{
		CreateFunc: func(ctx context.Context, req CreateUserRequest) (User, error) {
			return User{Username: req.Username, BusinessID: req.BusinessID, IsAdmin: req.IsAdmin}, nil
		},
		GetFunc:     func(ctx context.Context, username string) (User, error) { return User{}, core.ErrNotFound },
		DeleteFunc:  func(ctx context.Context, username string) error { return nil },
		LoginFunc:   func(ctx context.Context, username, password string) (User, error) { return User{}, ErrInvalidLogin },
		CallWatcher: testutil.NewCallWatcher(),
	}
}

func (s *MockUserService) Create(ctx context.Context, req CreateUserRequest) (User, error) {
	s.AddCall(ctx, req)
	return s.CreateFunc(ctx, req)
}

func (s *MockUserService) Get(ctx context.Context, username string) (User, error) {
	s.AddCall(ctx, username)
	return s.GetFunc(ctx, username)
}

func (s *MockUserService) Delete(ctx context.Context, username string) error {
	s.AddCall(ctx, username)
	return s.DeleteFunc(ctx, username)
}

// Login records the username only.
func (s *MockUserService) Login(ctx context.Context, username, password string) (User, error) {
	s.AddCall(ctx, username)
	return s.LoginFunc(ctx, username, password)
}
