package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"
	"gorm.io/gorm"

	"timeledger/identity"
	"timeledger/models"
)

type contextKey string

const UserContextKey contextKey = "user"

type Claims struct {
	UserID         uuid.UUID   `json:"user_id"`
	Email          string      `json:"email"`
	Role           models.Role `json:"role"`
	OrganizationID uuid.UUID   `json:"organization_id"`
	jwt.RegisteredClaims
}

// Authenticator issues and checks JWTs and resolves them to users.
type Authenticator struct {
	db     *gorm.DB
	secret []byte
}

func NewAuthenticator(db *gorm.DB, secret string) *Authenticator {
	return &Authenticator{db: db, secret: []byte(secret)}
}

func (a *Authenticator) GenerateToken(user *models.User, expiration time.Duration) (string, error) {
	claims := &Claims{
		UserID:         user.ID,
		Email:          user.Email,
		Role:           user.Role,
		OrganizationID: user.OrganizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *Authenticator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}

func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie("token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := tokenFromRequest(r)
		if tokenString == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := a.ValidateToken(tokenString)
		if err != nil {
			hlog.FromRequest(r).Debug().Err(err).Msg("rejected token")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		// Roles and organization can change after the token was issued,
		// so the user row is authoritative.
		var user models.User
		if err := a.db.WithContext(r.Context()).First(&user, "id = ?", claims.UserID).Error; err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, &user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUserFromContext(r.Context())
			if user == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if user.IsSuperAdmin {
				next.ServeHTTP(w, r)
				return
			}

			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			http.Error(w, "Forbidden", http.StatusForbidden)
		})
	}
}

func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// IdentityFromContext returns the caller identity for service calls. The
// zero Identity is returned for unauthenticated requests.
func IdentityFromContext(ctx context.Context) identity.Identity {
	user := GetUserFromContext(ctx)
	if user == nil {
		return identity.Identity{}
	}
	return identity.FromUser(user)
}
