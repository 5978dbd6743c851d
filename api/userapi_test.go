package api_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/sksmith/go-stock-ledger/api"
	"github.com/sksmith/go-stock-ledger/core"
	"github.com/sksmith/go-stock-ledger/core/user"
	"github.com/sksmith/go-stock-ledger/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserCreate(t *testing.T) {
	tests := []struct {
		name           string
		options        testutil.RequestOptions
		request        api.CreateUserRequestDto
		createErr      error
		wantStatusCode int
		wantCreates    int
	}{
		{
			name:           "admin users can create valid users",
			options:        admin,
			request:        api.CreateUserRequestDto{Username: "someuser", Password: "somepass"},
			wantStatusCode: http.StatusCreated,
			wantCreates:    1,
		},
		{
			name:           "non-admin users are unable to create users",
			options:        clerk,
			request:        api.CreateUserRequestDto{Username: "someuser", Password: "somepass"},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "password is required",
			options:        admin,
			request:        api.CreateUserRequestDto{Username: "someuser"},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "users the service rejects are bad requests",
			options:        admin,
			request:        api.CreateUserRequestDto{Username: "x", Password: "somepass"},
			createErr:      pkgerrors.WithMessage(user.ErrInvalidUser, "invalid username"),
			wantStatusCode: http.StatusBadRequest,
			wantCreates:    1,
		},
		{
			name:           "existing usernames conflict",
			options:        admin,
			request:        api.CreateUserRequestDto{Username: "someuser", Password: "somepass"},
			createErr:      pkgerrors.WithStack(core.ErrConflict),
			wantStatusCode: http.StatusConflict,
			wantCreates:    1,
		},
		{
			name:           "unexpected errors are internal errors",
			options:        admin,
			request:        api.CreateUserRequestDto{Username: "someuser", Password: "somepass"},
			createErr:      errors.New("some unexpected error"),
			wantStatusCode: http.StatusInternalServerError,
			wantCreates:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServices()
			var got user.CreateUserRequest
			s.users.CreateFunc = func(ctx context.Context, req user.CreateUserRequest) (user.User, error) {
				got = req
				if tt.createErr != nil {
					return user.User{}, tt.createErr
				}
				return user.User{Username: req.Username, BusinessID: req.BusinessID, IsAdmin: req.IsAdmin, HashedPassword: "hash"}, nil
			}
			ts := s.server()
			defer ts.Close()

			res := testutil.Post(ts.URL+api.ApiPath+api.UserPath, tt.request, t, tt.options)
			require.Equal(t, tt.wantStatusCode, res.StatusCode)
			s.users.VerifyCount("Create", tt.wantCreates, t)

			if tt.wantStatusCode != http.StatusCreated {
				_ = res.Body.Close()
				return
			}
			body := api.UserResponse{}
			testutil.Unmarshal(res, &body, t)
			assert.Equal(t, api.UserResponse{Username: "someuser", BusinessID: biz}, body)
			assert.Equal(t, user.CreateUserRequest{Username: "someuser", BusinessID: biz, PlainTextPassword: "somepass"}, got)
		})
	}
}
