package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/yuzvak/starnotary-service/internal/domain/star"
)

// AccountHeader carries the caller identity. Authentication happens in
// front of this service.
const AccountHeader = "X-Account"

type accountKey struct{}

func NewAccountMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account := star.Account(strings.TrimSpace(r.Header.Get(AccountHeader)))
			ctx := context.WithValue(r.Context(), accountKey{}, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccountFrom returns the caller, or the null account when none was sent.
func AccountFrom(ctx context.Context) star.Account {
	account, _ := ctx.Value(accountKey{}).(star.Account)
	return account
}
