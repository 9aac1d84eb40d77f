// Package keychain persists the portal login so the browser session
// can be re-authenticated across restarts without asking the user
// again. Credentials live in the local sqlite database and never leave
// the machine except inside the portal login form itself.
package keychain

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"chartbrief-backend/lib/timezone"
	"chartbrief-backend/services/keychain/db"
)

var tracer = otel.Tracer("services/keychain")

// the portal this deployment talks to; storage is keyed so a second
// portal can be added without a migration
const portalKey = "chartportal"

// Credentials is what callers get back. Password intentionally never
// serializes, it only travels in-process into the login form.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"-"`
	Stored   bool   `json:"stored"`
}

type Service struct {
	db  *sql.DB
	qry *db.Queries
}

func NewService(database *sql.DB) Service {
	return Service{
		db:  database,
		qry: db.New(database),
	}
}

func (s Service) GetCredentials(ctx context.Context) (Credentials, error) {
	ctx, span := tracer.Start(ctx, "keychain.GetCredentials")
	defer span.End()

	row, err := s.qry.GetCredentials(ctx, portalKey)
	if errors.Is(err, sql.ErrNoRows) {
		return Credentials{}, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read portal credentials")
		return Credentials{}, err
	}

	return Credentials{
		Username: row.Username,
		Password: row.Password,
		Stored:   true,
	}, nil
}

func (s Service) SetCredentials(ctx context.Context, username, password string) error {
	ctx, span := tracer.Start(ctx, "keychain.SetCredentials")
	defer span.End()

	if username == "" || password == "" {
		return fmt.Errorf("username and password must both be provided")
	}

	err := s.qry.SetCredentials(ctx, db.SetCredentialsParams{
		Portal:    portalKey,
		Username:  username,
		Password:  password,
		UpdatedAt: timezone.Now().Unix(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to store portal credentials")
		return err
	}

	slog.Info("stored portal credentials", "username", username)
	return nil
}

func (s Service) ClearCredentials(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "keychain.ClearCredentials")
	defer span.End()

	err := s.qry.DeleteCredentials(ctx, portalKey)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete portal credentials")
		return err
	}
	return nil
}
