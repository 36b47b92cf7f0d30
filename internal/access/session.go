package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/everest/authsvc/internal/apperr"
	"github.com/everest/authsvc/internal/authz"
	"github.com/everest/authsvc/internal/idp"
	"github.com/everest/authsvc/internal/role"
	"github.com/everest/authsvc/internal/user"
)

// RegisterInput is the self-service registration payload.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Authenticate exchanges credentials for an end-user session. Every failure
// to authenticate is reported as the same apperr.ErrAuthenticationFailed.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*idp.EndUserToken, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, apperr.ErrAuthenticationFailed
	}
	return s.gateway.AuthenticateUser(ctx, username, password)
}

// Refresh exchanges a refresh token for a new session.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*idp.EndUserToken, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, apperr.ErrAuthenticationFailed
	}
	return s.gateway.RefreshEndUserToken(ctx, refreshToken)
}

// Logout ends the identity provider session and forgets cached claims for
// the access token.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken != "" {
		s.cache.Delete(ctx, accessToken)
	}
	if refreshToken == "" {
		return nil
	}
	return s.gateway.Logout(ctx, refreshToken)
}

// Register creates an identity provider account and its local mirror with
// the RegisteredUser role. When the local write fails the account is
// disabled again so no usable orphan is left behind.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*user.User, error) {
	// Validate locally before touching the identity provider.
	if _, err := user.New("pending", in.Username, in.Email, role.RegisteredUser, nil); err != nil {
		return nil, err
	}

	externalID, err := s.gateway.CreateUser(ctx, idp.UserProfile{
		Username:  in.Username,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	}, in.Password)
	if err != nil {
		return nil, err
	}

	u, err := user.New(externalID, in.Username, in.Email, role.RegisteredUser, nil)
	if err != nil {
		return nil, err
	}

	if err := s.finishProvisioning(ctx, u); err != nil {
		return nil, err
	}

	if err := s.gateway.SendVerificationEmail(ctx, externalID); err != nil {
		slog.Warn("sending verification email failed", "userId", u.ID, "error", err)
	}

	slog.Info("user registered", "userId", u.ID, "externalId", externalID)
	return u, nil
}

// finishProvisioning maps the realm role and saves the local row for an
// account that already exists in the identity provider, disabling that
// account if either step fails.
func (s *Service) finishProvisioning(ctx context.Context, u *user.User) error {
	err := s.gateway.AssignRealmRole(ctx, u.ExternalID, u.Role)
	if err == nil {
		err = s.users.Save(ctx, u)
	}
	if err == nil {
		return nil
	}

	if cerr := s.gateway.SetEnabled(ctx, u.ExternalID, false); cerr != nil {
		slog.Error("disabling orphaned identity provider account failed",
			"externalId", u.ExternalID,
			"error", cerr,
		)
	} else {
		slog.Warn("disabled identity provider account after local write failure",
			"externalId", u.ExternalID,
			"error", err,
		)
	}
	return err
}

// ValidateToken resolves a bearer token to a Principal. Tokens whose subject
// has no active local user are rejected as invalid.
func (s *Service) ValidateToken(ctx context.Context, accessToken string) (*Principal, error) {
	claims, ok := s.cache.Get(ctx, accessToken)
	if !ok {
		var err error
		claims, err = s.gateway.IntrospectOrUserInfo(ctx, accessToken)
		if err != nil {
			return nil, err
		}
		s.cache.Set(ctx, accessToken, claims, s.cacheTTL)
	}

	u, err := s.users.GetByExternalID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, apperr.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: unknown subject", apperr.ErrInvalidToken)
		}
		return nil, err
	}
	if !u.Active {
		s.cache.Delete(ctx, accessToken)
		return nil, fmt.Errorf("%w: account disabled", apperr.ErrInvalidToken)
	}

	if claims.EmailVerified && !u.EmailVerified {
		verified, err := s.users.Update(ctx, u.ID, func(cur *user.User) error {
			cur.MarkEmailVerified()
			return nil
		})
		if err != nil {
			slog.Warn("recording email verification failed", "userId", u.ID, "error", err)
		} else {
			u = verified
		}
	}

	return &Principal{User: u, Permissions: authz.ComputePermissions(u)}, nil
}
