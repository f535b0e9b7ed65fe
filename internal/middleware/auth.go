package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dompetku/backend/internal/services"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
)

type contextKey string

const userIDKey contextKey = "userID"

var errMissingSubject = errors.New("token has no user_id or sub claim")

// UserIDFromContext returns the authenticated user of the request
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

// WithUserID attaches an authenticated user to ctx
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Get token from Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			services.SendErrorResponse(w, "Authorization header required", http.StatusUnauthorized, nil)
			return
		}

		token, ok := bearerToken(authHeader)
		if !ok {
			services.SendErrorResponse(w, "Invalid authorization header format", http.StatusUnauthorized, nil)
			return
		}

		userID, err := ParseToken(token)
		if err != nil {
			services.SendErrorResponse(w, "Invalid token", http.StatusUnauthorized, nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// StreamAuth authenticates the push and pull endpoints. Browsers' EventSource
// cannot set headers, so the token may also come from the token query
// parameter. A userId query parameter must match the token subject.
//
// With required unset the userId parameter alone identifies the user; a token,
// if present, is still verified.
func StreamAuth(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			queryUser := r.URL.Query().Get("userId")

			token := r.URL.Query().Get("token")
			if header := r.Header.Get("Authorization"); header != "" {
				t, ok := bearerToken(header)
				if !ok {
					services.SendErrorResponse(w, "Invalid authorization header format", http.StatusUnauthorized, nil)
					return
				}
				token = t
			}

			if token == "" {
				if required {
					services.SendErrorResponse(w, "Authentication required", http.StatusUnauthorized, nil)
					return
				}
				if queryUser == "" {
					services.SendErrorResponse(w, "userId is required", http.StatusBadRequest, nil)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), queryUser)))
				return
			}

			userID, err := ParseToken(token)
			if err != nil {
				services.SendErrorResponse(w, "Invalid token", http.StatusUnauthorized, nil)
				return
			}
			if queryUser != "" && queryUser != userID {
				services.SendErrorResponse(w, "userId does not match token", http.StatusUnauthorized, nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// ParseToken validates an HS256 token signed with jwt.secret_key and returns
// its user_id (or sub) claim
func ParseToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(viper.GetString("jwt.secret_key")), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrTokenSignatureInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errMissingSubject
	}

	if userID, ok := claims["user_id"]; ok && userID != nil {
		if s := fmt.Sprintf("%v", userID); s != "" {
			return s, nil
		}
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, nil
	}
	return "", errMissingSubject
}

func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
