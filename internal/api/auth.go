package api

import (
	"bytes"
	"errors"
	"strings"

	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"

	"well-go/internal/config"
)

const userIDKey = "userID"

// HashToken returns the bcrypt hash stored in [[server.tokens]] for token.
func HashToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("token must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// BearerAuth resolves the Bearer token to a configured user and stores the
// user ID on the request. Requests without a matching token get 401.
func BearerAuth(tokens []config.TokenConfig) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			auth := ctx.Request.Header.Peek("Authorization")
			if len(auth) == 0 {
				writeError(ctx, fasthttp.StatusUnauthorized, "missing Authorization header")
				return
			}

			const prefix = "Bearer "
			if !bytes.HasPrefix(auth, []byte(prefix)) {
				writeError(ctx, fasthttp.StatusUnauthorized, "invalid Authorization header")
				return
			}

			token := strings.TrimSpace(string(auth[len(prefix):]))
			if token == "" {
				writeError(ctx, fasthttp.StatusUnauthorized, "empty bearer token")
				return
			}

			for _, t := range tokens {
				if bcrypt.CompareHashAndPassword([]byte(t.TokenHash), []byte(token)) == nil {
					ctx.SetUserValue(userIDKey, t.UserID)
					next(ctx)
					return
				}
			}
			writeError(ctx, fasthttp.StatusUnauthorized, "invalid token")
		}
	}
}

// userFromCtx returns the authenticated user ID.
func userFromCtx(ctx *fasthttp.RequestCtx) (string, bool) {
	s, ok := ctx.UserValue(userIDKey).(string)
	return s, ok && s != ""
}
