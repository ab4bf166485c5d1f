package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apierrors "github.com/pribylovaa/placenotes/internal/transport/http/errors"
	logctx "github.com/pribylovaa/placenotes/pkg/log"
)

// AuthOptions: параметры проверки access-токенов (HS256).
// Пустые Issuer/Audience не проверяются.
type AuthOptions struct {
	Secret   string
	Issuer   string
	Audience string
}

type accessClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

var errUnauthenticated = status.Error(codes.Unauthenticated, "unauthenticated")

// Auth требует заголовок "Authorization: Bearer <jwt>", проверяет подпись,
// срок действия, issuer/audience и кладёт uid в контекст (UserIDFrom).
// Без валидного токена отвечает 401.
func Auth(opts AuthOptions) Middleware {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5 * time.Second),
		jwt.WithExpirationRequired(),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}
	parser := jwt.NewParser(parserOpts...)
	secret := []byte(opts.Secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				apierrors.WriteError(w, r, errUnauthenticated)
				return
			}

			var claims accessClaims
			_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
				return secret, nil
			})
			if err != nil || strings.TrimSpace(claims.UserID) == "" {
				reason := "empty uid"
				if err != nil {
					reason = err.Error()
					if errors.Is(err, jwt.ErrTokenExpired) {
						reason = "token expired"
					}
				}
				logctx.From(r.Context()).Warn("auth_rejected", "reason", reason)
				apierrors.WriteError(w, r, errUnauthenticated)
				return
			}

			ctx := WithUserID(r.Context(), claims.UserID)
			ctx = logctx.Into(ctx, logctx.From(ctx).With("user_id", claims.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, prefix) {
		return "", false
	}

	token := strings.TrimSpace(auth[len(prefix):])
	return token, token != ""
}
