package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/user"
)

const (
	contextTokenKey = "userToken"
	contextUserKey  = "user"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
}

type jwtAuth struct {
	signingKey    []byte
	issuer        string
	expiration    time.Duration
	refreshWindow time.Duration
}

func newJWTAuth(conf *core.Config) jwtAuth {
	return jwtAuth{
		signingKey:    []byte(conf.SecretKey),
		issuer:        conf.AppName,
		expiration:    conf.Server.JWTExpirationDelta,
		refreshWindow: conf.Server.JWTRefreshExpirationDelta,
	}
}

// GetUserClaims returns the claims of a new token for usr.
// origIat is the issue time of the first token of a refresh chain.
func GetUserClaims(conf *core.Config, usr user.User, origIat ...int64) *Claims {
	return newJWTAuth(conf).claims(usr, origIat...)
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	return newJWTAuth(conf).generateToken(claims)
}

func (a jwtAuth) claims(usr user.User, origIat ...int64) *Claims {
	now := nowFunc()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    a.issuer,
			Subject:   usr.ID,
			ExpiresAt: now.Add(a.expiration).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Email:        usr.Email,
		Role:         usr.Role,
	}
}

func (a jwtAuth) generateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(a.signingKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// middleware verifies the bearer token. When optional, requests without an Authorization header go through.
func (a jwtAuth) middleware(optional bool) echo.MiddlewareFunc {
	conf := middleware.JWTConfig{
		SigningKey:    a.signingKey,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
	if optional {
		conf.Skipper = func(ctx echo.Context) bool {
			return ctx.Request().Header.Get(echo.HeaderAuthorization) == ""
		}
	}
	return middleware.JWTWithConfig(conf)
}

// refreshToken issues a new token for the context user, as long as the first token of the chain
// was issued within the refresh window.
func (a jwtAuth) refreshToken(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}

	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.refreshWindow)
	if nowFunc().After(expTime) {
		return "", errRefreshExpired
	}
	return a.generateToken(a.claims(usr, claims.OrigIssuedAt))
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errTokenFailed
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUsrNotFoundInCtx
}

// optionalContextUser returns the logged in user, nil for anonymous requests.
func optionalContextUser(ctx echo.Context) *user.User {
	if usr, err := getContextUser(ctx); err == nil {
		return &usr
	}
	return nil
}

// authenticate checks the credentials and records the login.
func authenticate(ctx echo.Context, email, pwd string, svc *user.Service) (user.User, error) {
	usr, err := svc.GetByEmail(ctx.Request().Context(), email)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errInvalidCredentials
		}
		return user.User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, errInvalidCredentials
	}
	usr, err = svc.SetLastLogin(ctx.Request().Context(), usr)
	if err != nil {
		return user.User{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr, nil
}
