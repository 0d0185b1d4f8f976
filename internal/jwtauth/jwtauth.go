// Package jwtauth authenticates callers of the command pipeline. It
// covers two cases, both adapted from the teacher's
// internal/shared/auth/middleware.go bearer-token parsing and
// internal/auth/session.go JWTClaims shape:
//
//  1. Machine users authenticate with a JWT-profile assertion (ZITADEL-
//     style service account auth): a short-lived JWT whose issuer and
//     subject are the machine user's ID, signed with a private key whose
//     public half was registered via addMachineKey.
//  2. The thin admin HTTP surface (spec's non-business exterior) is
//     protected by a conventional bearer-token middleware using a
//     shared secret; the health endpoint is left unauthenticated.
package jwtauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/serbia-gov/iamcore/internal/shared/config"
)

// CallerContext identifies who is invoking a command (spec §4.3 step 6
// "creator from the caller context").
type CallerContext struct {
	InstanceID string
	UserID     string
	Roles      []string
}

// MachineAssertionClaims is the JWT-profile assertion shape a machine
// user presents (RFC 7523 style: iss == sub == user ID).
type MachineAssertionClaims struct {
	jwt.RegisteredClaims
	InstanceID string `json:"instance_id"`
}

// KeyResolver looks up the public key registered for a machine user
// (via addMachineKey) by (instanceID, userID, keyID).
type KeyResolver interface {
	ResolveKey(ctx context.Context, instanceID, userID, keyID string) (any, error)
}

// MachineVerifier verifies JWT-profile assertions presented by machine
// users and resolves them to a CallerContext.
type MachineVerifier struct {
	keys KeyResolver
}

func NewMachineVerifier(keys KeyResolver) *MachineVerifier {
	return &MachineVerifier{keys: keys}
}

// Verify parses and validates tokenString, requiring iss == sub (the
// asserting user's own ID) and a signature matching a registered key.
func (v *MachineVerifier) Verify(ctx context.Context, tokenString string) (CallerContext, error) {
	var claims MachineAssertionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		sub, _ := token.Claims.(*MachineAssertionClaims)
		if sub == nil {
			return nil, fmt.Errorf("missing claims")
		}
		return v.keys.ResolveKey(ctx, sub.InstanceID, sub.Subject, kid)
	})
	if err != nil {
		return CallerContext{}, fmt.Errorf("invalid machine assertion: %w", err)
	}
	if !token.Valid {
		return CallerContext{}, fmt.Errorf("invalid machine assertion")
	}
	if claims.Issuer != claims.Subject {
		return CallerContext{}, fmt.Errorf("machine assertion issuer must equal subject")
	}

	return CallerContext{
		InstanceID: claims.InstanceID,
		UserID:     claims.Subject,
		Roles:      []string{"MACHINE"},
	}, nil
}

// --- Admin-surface HTTP middleware (non-business exterior) ---

type contextKey string

const callerContextKey contextKey = "caller"

// AdminClaims is the claim shape for the thin admin surface.
type AdminClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// Middleware authenticates Bearer tokens for admin endpoints using the
// configured shared secret.
func Middleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			var claims AdminClaims
			token, err := jwt.ParseWithClaims(parts[1], &claims, func(token *jwt.Token) (any, error) {
				return []byte(cfg.JWTSecret), nil
			}, jwt.WithIssuer(cfg.JWTIssuer), jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), callerContextKey, CallerContext{
				UserID: claims.Subject,
				Roles:  claims.Roles,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose caller lacks role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			for _, have := range caller.Roles {
				if have == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "insufficient permissions")
		})
	}
}

// FromContext extracts the CallerContext set by Middleware.
func FromContext(ctx context.Context) (CallerContext, bool) {
	caller, ok := ctx.Value(callerContextKey).(CallerContext)
	return caller, ok
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
