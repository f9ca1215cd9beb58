package jwt

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/itchan-dev/bbs/shared/domain"
	internal_errors "github.com/itchan-dev/bbs/shared/errors"
	"github.com/itchan-dev/bbs/shared/logger"
)

type JwtService interface {
	NewToken(subject domain.Subject) (string, error)
	DecodeToken(jwtStr string) (*jwt.Token, error)
	DecodeSubject(jwtStr string) (*domain.Subject, error)
}

type Jwt struct {
	secretKey string
	ttl       time.Duration
}

func New(secretKey string, ttl time.Duration) JwtService {
	return &Jwt{secretKey, ttl}
}

var ErrInvalidClaims = &internal_errors.ErrorWithStatusCode{Message: "Invalid token claims", StatusCode: http.StatusUnauthorized}

func (j *Jwt) NewToken(subject domain.Subject) (string, error) {
	perms := make([]string, len(subject.Permissions))
	copy(perms, subject.Permissions)

	claims := jwt.MapClaims{}
	claims["sub"] = subject.Id
	claims["name"] = subject.Name
	claims["perms"] = perms
	claims["admin"] = subject.SuperAdmin
	claims["jti"] = uuid.NewString()
	claims["exp"] = time.Now().Add(j.ttl).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		logger.Log.Error("signing token", "error", err)
		return "", errors.New("Can't create token")
	}

	return tokenString, nil
}

func (j *Jwt) DecodeToken(jwtStr string) (*jwt.Token, error) {
	token, err := jwt.Parse(jwtStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, &internal_errors.ErrorWithStatusCode{Message: fmt.Sprintf("Unexpected signing method: %v", token.Header["alg"]), StatusCode: http.StatusUnauthorized}
		}
		return []byte(j.secretKey), nil
	})
	if err != nil {
		logger.Log.Debug("decoding token", "error", err)
		return nil, &internal_errors.ErrorWithStatusCode{Message: "Invalid token signature", StatusCode: http.StatusUnauthorized}
	}

	if !token.Valid {
		return nil, &internal_errors.ErrorWithStatusCode{Message: "Invalid access token", StatusCode: http.StatusUnauthorized}
	}

	return token, nil
}

// DecodeSubject validates jwtStr and rebuilds the subject from its claims.
func (j *Jwt) DecodeSubject(jwtStr string) (*domain.Subject, error) {
	token, err := j.DecodeToken(jwtStr)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidClaims
	}

	id, ok := claims["sub"].(float64)
	if !ok {
		return nil, ErrInvalidClaims
	}
	name, ok := claims["name"].(string)
	if !ok {
		return nil, ErrInvalidClaims
	}
	admin, _ := claims["admin"].(bool)

	var perms domain.Permissions
	if raw, ok := claims["perms"].([]interface{}); ok {
		for _, p := range raw {
			s, ok := p.(string)
			if !ok {
				return nil, ErrInvalidClaims
			}
			perms = append(perms, s)
		}
	}

	return &domain.Subject{
		Id:          int64(id),
		Name:        name,
		Permissions: perms,
		SuperAdmin:  admin,
	}, nil
}
