package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/sksmith/go-stock-ledger/core/inventory"
	"github.com/sksmith/go-stock-ledger/core/user"
)

type CtxKey string

const (
	CtxKeyPage     CtxKey = "page"
	CtxKeyPageSize CtxKey = "pageSize"
	CtxKeyUser     CtxKey = "user"
)

// Paginate reads the page and pageSize query parameters. Unparseable values fall back to the first page of the
// default size.
func Paginate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := intParam(r, "page", 1)
		pageSize := intParam(r, "pageSize", inventory.DefaultPageSize)

		log.Debug().Int("page", page).Int("pageSize", pageSize).Send()
		ctx := context.WithValue(r.Context(), CtxKeyPage, page)
		ctx = context.WithValue(ctx, CtxKeyPageSize, pageSize)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func intParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

type UserAccess interface {
	Login(ctx context.Context, username, password string) (user.User, error)
}

func Authenticate(ua UserAccess) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()

			if !ok {
				authErr(w)
				return
			}

			u, err := ua.Login(r.Context(), username, password)
			if err != nil {
				log.Debug().Err(err).Str("username", username).Msg("login failed")
				authErr(w)
				return
			}

			ctx := context.WithValue(r.Context(), CtxKeyUser, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		usr, ok := r.Context().Value(CtxKeyUser).(user.User)

		if !ok || !usr.IsAdmin {
			authErr(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// currentUser is only valid behind Authenticate.
func currentUser(r *http.Request) user.User {
	u, _ := r.Context().Value(CtxKeyUser).(user.User)
	return u
}

func authErr(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="restricted", charset="UTF-8"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
