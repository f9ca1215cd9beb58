package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/itchan-dev/bbs/shared/domain"
	jwt_internal "github.com/itchan-dev/bbs/shared/jwt"
	"github.com/itchan-dev/bbs/shared/logger"
	"github.com/itchan-dev/bbs/shared/utils"
)

// Key to store the subject in the request context
type key int

const SubjectKey key = 0

const accessTokenCookie = "accessToken"

var errNoToken = errors.New("no token")

// Auth holds dependencies for authentication middleware
type Auth struct {
	jwtService jwt_internal.JwtService
}

func NewAuth(jwtService jwt_internal.JwtService) *Auth {
	return &Auth{jwtService: jwtService}
}

// NeedAuth rejects requests without a valid access token and stores the
// subject carried by the token in the request context.
func (a *Auth) NeedAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, err := a.extractSubject(r)
			if err != nil {
				if errors.Is(err, errNoToken) {
					http.Error(w, "Please sign-in", http.StatusUnauthorized)
					return
				}
				utils.WriteErrorAndStatusCode(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), SubjectKey, subject)
			ctx = logger.WithContext(ctx, logger.FromContext(ctx).With("subject_id", subject.Id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractSubject reads the token from the accessToken cookie (browser clients)
// or the Authorization header (API clients).
func (a *Auth) extractSubject(r *http.Request) (*domain.Subject, error) {
	var tokenString string
	if cookie, err := r.Cookie(accessTokenCookie); err == nil {
		tokenString = cookie.Value
	} else if token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); found {
		tokenString = token
	}
	if tokenString == "" {
		return nil, errNoToken
	}
	return a.jwtService.DecodeSubject(tokenString)
}

// GetSubjectFromContext retrieves the subject stored by NeedAuth.
func GetSubjectFromContext(r *http.Request) *domain.Subject {
	subject, ok := r.Context().Value(SubjectKey).(*domain.Subject)
	if !ok {
		return nil
	}
	return subject
}
