package jwt

import (
	"time"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/user"
	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Claim names carried by access tokens
const (
	ClaimUserID     = "user_id"
	ClaimName       = "name"
	ClaimEmployeeID = "employee_id"
	ClaimRole       = "role"
	ClaimType       = "type"

	TokenTypeAccess = "access"
)

type Service interface {
	GenerateAccessToken(identity user.Identity) (token string, expiresAt int64, err error)
	JWTAuth() *jwtauth.JWTAuth
}

type JWTService struct {
	accessTokenExpirationTime string
	tokenAuth                 *jwtauth.JWTAuth
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func NewJWTService(secretKey string, accessTokenExpirationTime string) Service {
	return &JWTService{
		accessTokenExpirationTime: accessTokenExpirationTime,
		tokenAuth:                 jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
	}
}

// GenerateAccessToken mints a token for an identity issued elsewhere.
// Used by operators and tests; payroll itself only verifies tokens.
func (j *JWTService) GenerateAccessToken(identity user.Identity) (token string, expiresAt int64, err error) {
	expDuration, err := time.ParseDuration(j.accessTokenExpirationTime)
	if err != nil {
		return "", 0, err
	}
	expiresAt = time.Now().Add(expDuration).Unix()

	claims := map[string]interface{}{
		ClaimUserID:     identity.UserID,
		ClaimName:       identity.Name,
		ClaimEmployeeID: returnValueOrNil(identity.EmployeeID),
		ClaimRole:       string(identity.Role),
		ClaimType:       TokenTypeAccess,
		"exp":           expiresAt,
	}

	_, tokenString, err := j.tokenAuth.Encode(claims)
	return tokenString, expiresAt, err
}

// IdentityFromClaims reads the caller identity out of verified token claims
func IdentityFromClaims(claims map[string]interface{}) (user.Identity, error) {
	if tokenType, _ := claims[ClaimType].(string); tokenType != TokenTypeAccess {
		return user.Identity{}, user.ErrInvalidToken
	}

	userID, _ := claims[ClaimUserID].(string)
	roleStr, _ := claims[ClaimRole].(string)
	if userID == "" || roleStr == "" {
		return user.Identity{}, user.ErrIdentityMissing
	}
	role := user.Role(roleStr)
	if !role.IsValid() {
		return user.Identity{}, user.ErrInvalidRole
	}

	identity := user.Identity{UserID: userID, Role: role}
	identity.Name, _ = claims[ClaimName].(string)
	if employeeID, ok := claims[ClaimEmployeeID].(string); ok && employeeID != "" {
		identity.EmployeeID = &employeeID
	}
	return identity, nil
}

func returnValueOrNil(value *string) interface{} {
	if value == nil {
		return nil
	}
	return *value
}
