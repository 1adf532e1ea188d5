package http

import (
	"github.com/idgate/internal/application/auth"
	jwtinfra "github.com/idgate/internal/infrastructure/jwt"
	redisinfra "github.com/idgate/internal/infrastructure/redis"
	"github.com/idgate/internal/infrastructure/turnstile"
	"github.com/idgate/internal/notify"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo    auth.UserRepository
	Store       *redisinfra.Store
	Mailer      notify.Mailer
	SMSSender   notify.SMSSender
	JWTProvider *jwtinfra.Provider
	Captcha     *turnstile.Verifier
}
