package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

const DefaultGroupsClaim = "cognito:groups"

// DecodeClaims extracts the payload of a signed token without verifying the
// signature (the backend is the actual authority). Malformed input yields an
// empty claim set, never an error.
func DecodeClaims(token string) jwt.MapClaims {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return jwt.MapClaims{}
	}
	return claims
}

// RoleFromClaims derives the role from the group-membership claim. The claim
// may be a delimited string or an array; anything else means viewer.
func RoleFromClaims(claims jwt.MapClaims, groupsClaim string) Role {
	if groupsClaim == "" {
		groupsClaim = DefaultGroupsClaim
	}
	for _, group := range groupList(claims[groupsClaim]) {
		if group == string(RoleAdmin) {
			return RoleAdmin
		}
	}
	return RoleViewer
}

func groupList(raw any) []string {
	switch v := raw.(type) {
	case string:
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	case []string:
		return v
	case []any:
		ret := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				ret = append(ret, s)
			}
		}
		return ret
	default:
		return nil
	}
}
