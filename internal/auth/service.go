// Package auth implements account lifecycle and session issuance: registration, login/logout, password changes,
// and self-deletion.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wireline-chat/wireline-server/internal/config"
	"github.com/wireline-chat/wireline-server/internal/session"
	"github.com/wireline-chat/wireline-server/internal/user"
)

// Notifier is the Presence Detector's edge-trigger contract (satisfied by *presence.Detector), invoked whenever a
// login or logout crosses a user's online/offline edge.
type Notifier interface {
	NotifyOnline(ctx context.Context, userID uint32)
	NotifyOffline(ctx context.Context, userID uint32)
}

// Service implements account registration, login/logout, and credential management.
type Service struct {
	users    user.Repository
	sessions session.Registry
	presence Notifier
	config   *config.Config
	log      zerolog.Logger

	// dummyHash is a precomputed Argon2id hash run against an unknown account on Login, so that a request for a
	// nonexistent user id takes the same time as one for an existing user id.
	dummyHash string
}

// NewService creates an account service. It precomputes the timing-defense dummy hash eagerly so the first real
// Login call never pays that cost inline.
func NewService(users user.Repository, sessions session.Registry, presence Notifier, cfg *config.Config, logger zerolog.Logger) (*Service, error) {
	dummyHash, err := HashPassword("wireline-dummy-password", cfg.Argon2Memory, cfg.Argon2Iterations, cfg.Argon2Parallelism, cfg.Argon2SaltLength, cfg.Argon2KeyLength)
	if err != nil {
		return nil, fmt.Errorf("precompute dummy hash: %w", err)
	}
	return &Service{
		users:     users,
		sessions:  sessions,
		presence:  presence,
		config:    cfg,
		log:       logger,
		dummyHash: dummyHash,
	}, nil
}

// Register hashes password and inserts a new user with the given username. Usernames are not unique: two accounts
// may share a username, distinguished only by id.
func (s *Service) Register(ctx context.Context, username, password string) (uint32, error) {
	if err := ValidateUsername(username); err != nil {
		return 0, err
	}
	if err := ValidatePassword(password); err != nil {
		return 0, err
	}

	hash, err := HashPassword(password, s.config.Argon2Memory, s.config.Argon2Iterations, s.config.Argon2Parallelism, s.config.Argon2SaltLength, s.config.Argon2KeyLength)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.users.Create(ctx, user.CreateParams{Username: username, PasswordHash: hash})
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}

	s.log.Debug().Uint32("user_id", id).Msg("user registered")
	return id, nil
}

// Login verifies userID and password, then mints a new session id and registers it. It returns ErrInvalidCredentials
// on any verification failure and never distinguishes "unknown user" from "wrong password" in the returned error or
// in its timing. Login is keyed by id rather than username (a user looks up their own id once at registration and
// authenticates with it afterward), mirroring the account system this was distilled from.
func (s *Service) Login(ctx context.Context, userID uint32, password, peerIP string) (string, user.Role, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			_, _ = VerifyPassword(password, s.dummyHash)
			return "", user.RoleInvalid, ErrInvalidCredentials
		}
		return "", user.RoleInvalid, fmt.Errorf("get user by id: %w", err)
	}

	match, err := VerifyPassword(password, u.PasswordHash)
	if err != nil {
		return "", user.RoleInvalid, fmt.Errorf("verify password: %w", err)
	}
	if !match {
		return "", user.RoleInvalid, ErrInvalidCredentials
	}

	if NeedsRehash(u.PasswordHash, s.config.Argon2Memory, s.config.Argon2Iterations, s.config.Argon2Parallelism, s.config.Argon2SaltLength, s.config.Argon2KeyLength) {
		s.rehash(ctx, u.ID, password)
	}

	wasOffline, err := s.isOffline(ctx, u.ID)
	if err != nil {
		return "", user.RoleInvalid, err
	}

	sessionID, err := newSessionID()
	if err != nil {
		return "", user.RoleInvalid, fmt.Errorf("generate session id: %w", err)
	}

	role := sessionRole(u.Role)
	if err := s.sessions.Insert(ctx, u.ID, sessionID, peerIP, role); err != nil {
		return "", user.RoleInvalid, fmt.Errorf("insert session: %w", err)
	}

	if wasOffline && s.presence != nil {
		s.presence.NotifyOnline(ctx, u.ID)
	}

	s.log.Debug().Uint32("user_id", u.ID).Str("session_id", sessionID).Msg("user logged in")
	return sessionID, role, nil
}

// Logout deletes sessionID from the registry and, if that was the user's last remaining session, invokes the
// presence detector's offline edge. A logout of an id the registry doesn't recognize is a client error.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	userID, existed, err := s.sessions.Delete(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if !existed {
		return ErrUnknownSession
	}

	ids, err := s.sessions.IDsOf(ctx, userID)
	if err != nil {
		return fmt.Errorf("list sessions for user: %w", err)
	}
	if len(ids) == 0 && s.presence != nil {
		s.presence.NotifyOffline(ctx, userID)
	}

	s.log.Debug().Uint32("user_id", userID).Str("session_id", sessionID).Msg("user logged out")
	return nil
}

// ChangePassword verifies oldPassword against the stored hash and, on success, replaces it with a hash of
// newPassword.
func (s *Service) ChangePassword(ctx context.Context, userID uint32, oldPassword, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	match, err := VerifyPassword(oldPassword, u.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !match {
		return ErrInvalidCredentials
	}

	hash, err := HashPassword(newPassword, s.config.Argon2Memory, s.config.Argon2Iterations, s.config.Argon2Parallelism, s.config.Argon2SaltLength, s.config.Argon2KeyLength)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}

	s.log.Debug().Uint32("user_id", userID).Msg("password changed")
	return nil
}

// DeleteSelf removes userID's account. Foreign keys cascade the removal of owned friendships, memberships, and
// messages; any sessions the user still holds are then deleted from the registry, so they no longer resolve.
func (s *Service) DeleteSelf(ctx context.Context, userID uint32) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	ids, err := s.sessions.IDsOf(ctx, userID)
	if err != nil {
		return fmt.Errorf("list sessions for user: %w", err)
	}
	for _, id := range ids {
		if _, _, err := s.sessions.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}
	s.log.Debug().Uint32("user_id", userID).Msg("user deleted self")
	return nil
}

func (s *Service) isOffline(ctx context.Context, userID uint32) (bool, error) {
	ids, err := s.sessions.IDsOf(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("list sessions for user: %w", err)
	}
	return len(ids) == 0, nil
}

func (s *Service) rehash(ctx context.Context, userID uint32, password string) {
	newHash, err := HashPassword(password, s.config.Argon2Memory, s.config.Argon2Iterations, s.config.Argon2Parallelism, s.config.Argon2SaltLength, s.config.Argon2KeyLength)
	if err != nil {
		s.log.Warn().Err(err).Uint32("user_id", userID).Msg("failed to rehash password on login")
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		s.log.Warn().Err(err).Uint32("user_id", userID).Msg("failed to persist rotated password hash")
		return
	}
	s.log.Debug().Uint32("user_id", userID).Msg("password hash rotated to current parameters")
}

func sessionRole(r user.Role) session.Role {
	if r == user.RoleAdmin {
		return session.RoleAdmin
	}
	return session.RoleUser
}

// newSessionID generates a time-ordered UUID (version 7), so session ids sort roughly by creation time. The id
// embeds its creation time in milliseconds; the remaining bits are random.
func newSessionID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
