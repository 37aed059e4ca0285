package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/orbit/core"
)

const (
	RoleFaculty = "faculty"
	RoleStudent = "student"

	tokenContextKey = "userToken"
)

// Claims represents the authorization claims transmitted via a JWT.
// Accounts live in the identity provider; the email is the owner key of every dashboard.
type Claims struct {
	jwt.StandardClaims
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (c Claims) IsFaculty() bool { return c.Role == RoleFaculty }

func (c Claims) Person() core.Person {
	return core.Person{ID: c.Subject, Name: c.Name, Email: c.Email}
}

// NewClaims returns the claims of a token valid for conf.Server.JWTExpirationDelta.
func NewClaims(conf *core.Config, email, name, role string) *Claims {
	now := time.Now()
	email = core.CleanString(email, true /* lower */)
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   email,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name:  name,
		Email: email,
		Role:  role,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// jwtConfig reads the token from tokenLookup, e.g. "header:Authorization" or "query:token".
func jwtConfig(conf *core.Config, tokenLookup string) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
		TokenLookup:   tokenLookup,
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok && claims.Email != "" {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}
