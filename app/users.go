package app

import (
	"context"
	"time"

	"github.com/Skibfizz/studydrop-backend/app/models"
	"github.com/Skibfizz/studydrop-backend/auth"
)

// UpsertUserFromClaims mirrors the authenticated identity into the users
// table, creating the row on first login and refreshing last_login after.
func (s *Store) UpsertUserFromClaims(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.Subject == "" {
		return nil
	}

	email := claims.Email()
	name := claims.Name()

	const q = `
		INSERT INTO users (auth0_sub, email, name, last_login)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (auth0_sub) DO UPDATE
		SET email = COALESCE(EXCLUDED.email, users.email),
		    name = COALESCE(EXCLUDED.name, users.name),
		    last_login = now();
	`

	_, err := s.db.ExecContext(ctx, q, claims.Subject, nullIfEmpty(email), nullIfEmpty(name))
	return err
}

// GetUser loads the cached identity mirror.
func (s *Store) GetUser(ctx context.Context, userID string) (models.User, error) {
	user := models.User{Auth0Sub: userID}
	var (
		email     string
		name      string
		lastLogin time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(email, ''), COALESCE(name, ''), last_login
		FROM users
		WHERE auth0_sub = $1;
	`, userID).Scan(&email, &name, &lastLogin)
	if err != nil {
		return models.User{}, err
	}
	user.Email = email
	user.Name = name
	user.LastLogin = lastLogin
	return user, nil
}

