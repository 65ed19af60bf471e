package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/raterudder/energyrates/pkg/log"
)

// tokenIdentity is what a verified ID token says about its bearer.
type tokenIdentity struct {
	Email   string
	Subject string
	Expiry  time.Time
}

// tokenVerifier validates a raw OIDC ID token.
type tokenVerifier func(ctx context.Context, rawIDToken string) (tokenIdentity, error)

// oidcTokenVerifier adapts an oidc.IDTokenVerifier, pulling the email claim
// out of the verified token.
func oidcTokenVerifier(v *oidc.IDTokenVerifier) tokenVerifier {
	return func(ctx context.Context, rawIDToken string) (tokenIdentity, error) {
		idToken, err := v.Verify(ctx, rawIDToken)
		if err != nil {
			return tokenIdentity{}, err
		}
		var claims struct {
			Email string `json:"email"`
		}
		if err := idToken.Claims(&claims); err != nil {
			return tokenIdentity{}, fmt.Errorf("error decoding claims: %w", err)
		}
		return tokenIdentity{
			Email:   claims.Email,
			Subject: idToken.Subject,
			Expiry:  idToken.Expiry,
		}, nil
	}
}

// adminMiddleware only lets through requests bearing an ID token for one of
// the configured admin emails.
func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.bypassAuth {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			log.Ctx(ctx).WarnContext(ctx, "missing auth header")
			writeJSONError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" {
			log.Ctx(ctx).WarnContext(ctx, "invalid auth header")
			writeJSONError(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		identity, err := s.authenticateToken(ctx, token)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "token validation failed", slog.Any("error", err))
			writeJSONError(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if !s.isAdmin(identity.Email) {
			log.Ctx(ctx).WarnContext(ctx, "non-admin sync attempt", slog.String("email", identity.Email))
			writeJSONError(w, "forbidden", http.StatusForbidden)
			return
		}

		ctx = log.WithAttrs(ctx, slog.String("authSubject", identity.Subject))
		log.Ctx(ctx).DebugContext(ctx, "authenticated admin request", slog.String("email", identity.Email))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) isAdmin(email string) bool {
	if email == "" {
		return false
	}
	var found bool
	for _, admin := range s.adminEmails {
		if subtle.ConstantTimeCompare([]byte(email), []byte(admin)) == 1 {
			found = true
		}
	}
	return found
}

func (s *Server) authenticateToken(ctx context.Context, token string) (tokenIdentity, error) {
	var errs []error
	for providerName, verifier := range s.oidcVerifiers {
		identity, err := verifier(ctx, token)
		if err == nil {
			return identity, nil
		}
		errs = append(errs, fmt.Errorf("%s verifier failed: %w", providerName, err))
	}

	if len(errs) > 0 {
		return tokenIdentity{}, errors.Join(errs...)
	}
	return tokenIdentity{}, errors.New("no token verifiers configured")
}
