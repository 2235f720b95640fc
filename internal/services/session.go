package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/harentsoaR/dermacare-api/internal/apperr"
	"github.com/harentsoaR/dermacare-api/internal/logger"
	"github.com/harentsoaR/dermacare-api/internal/metrics"
	"github.com/harentsoaR/dermacare-api/internal/models"
	"github.com/harentsoaR/dermacare-api/internal/store"
	"github.com/harentsoaR/dermacare-api/internal/utils"
)

const (
	defaultSpecialization = "Dermatology"
	defaultDoctorRating   = 4.5
)

// SessionStore is the slice of the store the session manager needs.
type SessionStore interface {
	store.UserStore
	store.SessionStore
	store.DoctorStore
}

type RegisterInput struct {
	Email    string
	Password string
	Role     string
	Name     string
}

// SessionManager issues, resolves, rotates and revokes sessions. A user has
// at most one live session; issuing a new one supersedes the old.
type SessionManager struct {
	store      SessionStore
	tokens     *utils.TokenIssuer
	refreshTTL time.Duration
	now        func() time.Time
	log        *logger.Logger
	metrics    *metrics.Metrics
}

func NewSessionManager(st SessionStore, tokens *utils.TokenIssuer, refreshTTL time.Duration, log *logger.Logger, m *metrics.Metrics) *SessionManager {
	return &SessionManager{
		store:      st,
		tokens:     tokens,
		refreshTTL: refreshTTL,
		now:        time.Now,
		log:        log,
		metrics:    m,
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperr.Validation("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation("email is not a valid address")
	}
	return email, nil
}

func (m *SessionManager) Register(ctx context.Context, in RegisterInput) (*models.Session, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidatePassword(in.Password); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	role, err := models.ParseRole(in.Role)
	if err != nil {
		return nil, apperr.Validation("role must be patient or doctor")
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal("failed to hash password", err)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = email[:strings.IndexByte(email, '@')]
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Name:         name,
		CreatedAt:    m.clock(),
	}
	if err := m.store.CreateUser(ctx, user); err != nil {
		m.metrics.RecordAuthAttempt("register", false)
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("user with this email already exists")
		}
		return nil, apperr.External("failed to create user", err)
	}

	m.ensureListed(ctx, user)

	m.log.Audit(user.ID, "register", "user", true, logrus.Fields{"role": role})
	m.metrics.RecordAuthAttempt("register", true)
	return m.issue(ctx, user, "")
}

// Authenticate checks credentials. Unknown email and wrong password produce
// the same error.
func (m *SessionManager) Authenticate(ctx context.Context, email, password string) (*models.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := m.store.UserByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		m.reject("login", "", "unknown email")
		return nil, apperr.Authentication("invalid email or password")
	case err != nil:
		return nil, apperr.External("failed to look up user", err)
	}

	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		m.reject("login", user.ID, "password mismatch")
		return nil, apperr.Authentication("invalid email or password")
	}

	m.ensureListed(ctx, user)

	m.metrics.RecordAuthAttempt("login", true)
	return m.issue(ctx, user, "")
}

// ResolveIdentity maps an access token to its caller. The token must belong
// to the user's current session.
func (m *SessionManager) ResolveIdentity(ctx context.Context, accessToken string) (models.Identity, error) {
	claims, err := m.tokens.Parse(accessToken)
	if err != nil {
		if errors.Is(err, utils.ErrExpiredToken) {
			return models.Identity{}, apperr.Authentication("access token expired")
		}
		return models.Identity{}, apperr.Authentication("invalid access token")
	}

	role, err := models.ParseRole(claims.Role)
	if err != nil || claims.Role == "" {
		return models.Identity{}, apperr.Authentication("invalid access token")
	}

	rec, err := m.store.SessionByUser(ctx, claims.UserID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return models.Identity{}, apperr.Authentication("session is no longer active")
	case err != nil:
		return models.Identity{}, apperr.External("failed to load session", err)
	}
	if rec.SessionID != claims.SessionID {
		return models.Identity{}, apperr.Authentication("session has been superseded")
	}

	return models.Identity{UserID: claims.UserID, Role: role}, nil
}

// Refresh exchanges a refresh token for a new token pair. The old pair stops
// working.
func (m *SessionManager) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	if refreshToken == "" {
		return nil, apperr.Authentication("refresh token is required")
	}

	rec, err := m.store.SessionByRefreshHash(ctx, utils.HashRefreshToken(refreshToken))
	switch {
	case errors.Is(err, store.ErrNotFound):
		m.reject("refresh", "", "unknown refresh token")
		return nil, apperr.Authentication("invalid refresh token")
	case err != nil:
		return nil, apperr.External("failed to load session", err)
	}
	if !m.clock().Before(rec.RefreshExpiresAt) {
		m.reject("refresh", rec.UserID, "refresh token expired")
		return nil, apperr.Authentication("refresh token expired")
	}

	user, err := m.store.UserByID(ctx, rec.UserID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, apperr.Authentication("invalid refresh token")
	case err != nil:
		return nil, apperr.External("failed to look up user", err)
	}

	next, err := m.issue(ctx, user, rec.RefreshHash)
	if err != nil {
		return nil, err
	}
	m.metrics.RecordAuthAttempt("refresh", true)
	return next, nil
}

// Invalidate revokes the session the token belongs to. Calling it again, or
// with an expired token, is a no-op.
func (m *SessionManager) Invalidate(ctx context.Context, accessToken string) error {
	claims, err := m.tokens.ParseSignature(accessToken)
	if err != nil {
		return apperr.Authentication("invalid access token")
	}
	if err := m.store.DeleteSession(ctx, claims.UserID, claims.SessionID); err != nil {
		return apperr.External("failed to revoke session", err)
	}
	m.log.Audit(claims.UserID, "logout", "session", true, nil)
	return nil
}

// issue mints a new token pair and stores its record. With prevRefreshHash
// set, the record is only replaced if that refresh token is still current.
func (m *SessionManager) issue(ctx context.Context, user *models.User, prevRefreshHash string) (*models.Session, error) {
	sessionID := uuid.NewString()

	access, exp, err := m.tokens.Issue(user.ID, string(user.Role), sessionID)
	if err != nil {
		return nil, apperr.Internal("failed to sign access token", err)
	}
	refresh, refreshHash, err := utils.GenerateRefreshToken()
	if err != nil {
		return nil, apperr.Internal("failed to generate refresh token", err)
	}

	now := m.clock()
	rec := &models.SessionRecord{
		UserID:           user.ID,
		SessionID:        sessionID,
		Role:             user.Role,
		RefreshHash:      refreshHash,
		IssuedAt:         now,
		ExpiresAt:        exp.UTC().Truncate(time.Millisecond),
		RefreshExpiresAt: now.Add(m.refreshTTL),
	}
	if prevRefreshHash == "" {
		err = m.store.PutSession(ctx, rec)
	} else {
		err = m.store.RotateSession(ctx, prevRefreshHash, rec)
	}
	switch {
	case errors.Is(err, store.ErrStale):
		m.reject("refresh", user.ID, "refresh token already used")
		return nil, apperr.Authentication("invalid refresh token")
	case err != nil:
		return nil, apperr.External("failed to store session", err)
	}

	return &models.Session{
		UserID:           user.ID,
		Email:            user.Email,
		Role:             user.Role,
		AccessToken:      access,
		RefreshToken:     refresh,
		IssuedAt:         rec.IssuedAt,
		ExpiresAt:        rec.ExpiresAt,
		RefreshExpiresAt: rec.RefreshExpiresAt,
	}, nil
}

// ensureListed gives a doctor account its directory entry if it has none.
// Failures are logged and retried on the next login.
func (m *SessionManager) ensureListed(ctx context.Context, user *models.User) {
	if user.Role != models.RoleDoctor {
		return
	}
	_, err := m.store.DoctorByID(ctx, user.ID)
	if err == nil {
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		err = m.store.UpsertDoctor(ctx, &models.Doctor{
			ID:             user.ID,
			Name:           user.Name,
			Specialization: defaultSpecialization,
			IsAvailable:    true,
			Rating:         defaultDoctorRating,
		})
	}
	if err != nil {
		m.log.WithUserID(user.ID).WithError(err).Warn("doctor directory entry not written")
	}
}

func (m *SessionManager) reject(method, userID, reason string) {
	m.metrics.RecordAuthAttempt(method, false)
	m.log.WithComponent("sessions").WithFields(logrus.Fields{
		"method":  method,
		"user_id": userID,
		"reason":  reason,
	}).Warn("authentication rejected")
}

func (m *SessionManager) clock() time.Time {
	return m.now().UTC().Truncate(time.Millisecond)
}
