package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"bank-backoffice/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTTokenService implements ports.TokenService using HS256 JWT.
// It accepts flat tokens it issued itself and Keycloak-shaped tokens that
// carry roles under realm_access or resource_access.
type JWTTokenService struct {
	secret []byte
	expiry time.Duration
	issuer string
}

// NewJWTTokenService creates a new JWT token service.
func NewJWTTokenService(secret string, expiry time.Duration, issuer string) *JWTTokenService {
	return &JWTTokenService{
		secret: []byte(secret),
		expiry: expiry,
		issuer: issuer,
	}
}

// Generate creates a signed JWT for the given identity.
func (s *JWTTokenService) Generate(identity domain.Identity) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.expiry)

	claims := jwt.MapClaims{
		"sub":   identity.ID.String(),
		"email": identity.Email,
		"role":  string(identity.Role),
		"iat":   now.Unix(),
		"exp":   expiresAt.Unix(),
		"iss":   s.issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// Validate parses and validates a JWT token, returning the caller identity.
func (s *JWTTokenService) Validate(tokenString string) (*domain.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, fmt.Errorf("missing subject claim")
	}

	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in token: %w", err)
	}

	role, roles, ok := resolveRoles(claims)
	if !ok {
		return nil, errors.New("token carries no recognised role")
	}

	email, _ := claims["email"].(string)

	identity := &domain.Identity{
		ID:    userID,
		Email: email,
		Role:  role,
	}
	if len(roles) > 1 {
		identity.Roles = roles
	}
	return identity, nil
}

// resolveRoles collects every known role in the claims. The primary role is
// the most privileged one (ADMIN, then AGENT, then CLIENT); route guards
// still accept any of the collected roles, so a CLIENT+AGENT token reaches
// both the client and the agent routes.
func resolveRoles(claims jwt.MapClaims) (domain.Role, []domain.Role, bool) {
	var names []string
	if r, ok := claims["role"].(string); ok {
		names = append(names, r)
	}
	if realm, ok := claims["realm_access"].(map[string]interface{}); ok {
		names = append(names, stringList(realm["roles"])...)
	}
	if resources, ok := claims["resource_access"].(map[string]interface{}); ok {
		for _, client := range resources {
			if c, ok := client.(map[string]interface{}); ok {
				names = append(names, stringList(c["roles"])...)
			}
		}
	}

	var roles []domain.Role
	seen := make(map[domain.Role]bool)
	best, found := domain.Role(""), false
	for _, name := range names {
		role, ok := mapRole(name)
		if !ok || seen[role] {
			continue
		}
		seen[role] = true
		roles = append(roles, role)
		if !found || rolePriority[role] > rolePriority[best] {
			best, found = role, true
		}
	}
	return best, roles, found
}

var rolePriority = map[domain.Role]int{
	domain.RoleClient: 1,
	domain.RoleAgent:  2,
	domain.RoleAdmin:  3,
}

func mapRole(name string) (domain.Role, bool) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "role_") {
	case "client":
		return domain.RoleClient, true
	case "agent", "agent_bancaire":
		return domain.RoleAgent, true
	case "admin":
		return domain.RoleAdmin, true
	}
	return "", false
}

func stringList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
