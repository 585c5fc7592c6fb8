package matrix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

const (
	loginAttempts   = 8
	loginFirstDelay = 2 * time.Second
	loginMaxDelay   = time.Minute
)

// session persists the access token between restarts so the bot keeps a
// single device.
type session struct {
	path string
}

type savedSession struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	DeviceID    string `json:"device_id"`
}

func newSession(dataDir string) *session {
	return &session{path: filepath.Join(dataDir, "matrix_session.json")}
}

// login reuses the saved token when the homeserver still accepts it and
// falls back to a password login.
func (s *session) login(ctx context.Context, client *mautrix.Client, user, password string) error {
	if saved, err := s.load(); err == nil {
		client.AccessToken = saved.AccessToken
		client.UserID = id.UserID(saved.UserID)
		client.DeviceID = id.DeviceID(saved.DeviceID)
		_, err := client.Whoami(ctx)
		if err == nil {
			slog.Info("matrix session restored", "user", saved.UserID, "device", saved.DeviceID)
			return nil
		}
		if !errors.Is(err, mautrix.MUnknownToken) {
			return fmt.Errorf("matrix whoami: %w", err)
		}
		slog.Warn("saved matrix session revoked, logging in again", "user", saved.UserID)
		client.AccessToken = ""
	}

	delay := loginFirstDelay
	for attempt := 1; ; attempt++ {
		resp, err := client.Login(ctx, &mautrix.ReqLogin{
			Type:             mautrix.AuthTypePassword,
			Identifier:       mautrix.UserIdentifier{Type: mautrix.IdentifierTypeUser, User: user},
			Password:         password,
			StoreCredentials: true,
		})
		if err == nil {
			slog.Info("matrix login ok", "user", resp.UserID, "device", resp.DeviceID)
			s.save(savedSession{
				AccessToken: resp.AccessToken,
				UserID:      string(resp.UserID),
				DeviceID:    string(resp.DeviceID),
			})
			return nil
		}
		if permanent(err) || attempt == loginAttempts {
			return fmt.Errorf("matrix login (attempt %d): %w", attempt, err)
		}
		slog.Warn("matrix login failed", "attempt", attempt, "retry_in", delay, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, loginMaxDelay)
	}
}

// permanent reports login errors that a retry cannot fix.
func permanent(err error) bool {
	return errors.Is(err, mautrix.MForbidden) ||
		errors.Is(err, mautrix.MUserDeactivated) ||
		errors.Is(err, mautrix.MInvalidParam)
}

func (s *session) load() (savedSession, error) {
	var saved savedSession
	data, err := os.ReadFile(s.path)
	if err != nil {
		return saved, err
	}
	if err := json.Unmarshal(data, &saved); err != nil {
		return saved, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if saved.AccessToken == "" {
		return saved, fmt.Errorf("%s: no access token", s.path)
	}
	return saved, nil
}

func (s *session) save(saved savedSession) {
	data, err := json.MarshalIndent(saved, "", "  ")
	if err == nil {
		err = os.WriteFile(s.path, data, 0o600)
	}
	if err != nil {
		slog.Warn("matrix session not saved", "path", s.path, "error", err)
	}
}
