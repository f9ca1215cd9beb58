package middleware

import (
	"fmt"
	"net/http"

	"github.com/itchan-dev/bbs/shared/errors"
	"github.com/itchan-dev/bbs/shared/middleware/ratelimiter"
	"github.com/itchan-dev/bbs/shared/utils"
)

// RateLimit rejects requests once the bucket of the request's identity is
// empty. Super-admins are never limited.
func RateLimit(rl *ratelimiter.Limiter, getIdentity func(r *http.Request) (string, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if subject := GetSubjectFromContext(r); subject != nil && subject.IsSuperAdmin() {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := getIdentity(r)
			if err != nil {
				utils.WriteErrorAndStatusCode(w, err)
				return
			}
			if !rl.Allow(identity) {
				http.Error(w, "Rate limit exceeded, try again later", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SubjectIdentity keys the limiter by the authenticated subject. NeedAuth must
// run first.
func SubjectIdentity(r *http.Request) (string, error) {
	subject := GetSubjectFromContext(r)
	if subject == nil {
		return "", &errors.ErrorWithStatusCode{Message: "Please sign-in", StatusCode: http.StatusUnauthorized}
	}
	return fmt.Sprintf("subject_%d", subject.Id), nil
}

// IPIdentity keys the limiter by the client address.
func IPIdentity(r *http.Request) (string, error) {
	ip, err := utils.GetIP(r)
	if err != nil {
		return "", &errors.ErrorWithStatusCode{Message: "Can't determine client address", StatusCode: http.StatusBadRequest}
	}
	return "ip_" + ip, nil
}
