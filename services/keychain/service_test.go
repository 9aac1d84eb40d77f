package keychain

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"chartbrief-backend/lib/telemetry"

	_ "embed"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"
)

//go:embed db/schema.sql
var schema string

func setup(t testing.TB) (Service, func()) {
	cleanup := telemetry.SetupForTesting(t, "test:services/keychain")

	sqlite, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	_, err = sqlite.Exec(schema)
	if err != nil {
		t.Fatal(err)
	}

	s := NewService(sqlite)
	return s, cleanup
}

func TestService(t *testing.T) {
	service, cleanup := setup(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	{ // nothing stored yet
		creds, err := service.GetCredentials(ctx)
		if err != nil {
			t.Fatal(err)
		}
		require.False(t, creds.Stored)
		require.Empty(t, creds.Username)
	}

	{
		err := service.SetCredentials(ctx, "forecaster1", "hunter2")
		if err != nil {
			t.Fatal(err)
		}
	}
	{
		creds, err := service.GetCredentials(ctx)
		if err != nil {
			t.Fatal(err)
		}
		require.True(t, creds.Stored)
		require.Equal(t, "forecaster1", creds.Username)
		require.Equal(t, "hunter2", creds.Password)
	}

	{ // overwriting replaces the single stored login
		err := service.SetCredentials(ctx, "forecaster2", "swordfish")
		if err != nil {
			t.Fatal(err)
		}
		creds, err := service.GetCredentials(ctx)
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, "forecaster2", creds.Username)
		require.Equal(t, "swordfish", creds.Password)
	}

	{
		err := service.ClearCredentials(ctx)
		if err != nil {
			t.Fatal(err)
		}
		creds, err := service.GetCredentials(ctx)
		if err != nil {
			t.Fatal(err)
		}
		require.False(t, creds.Stored)
	}
}

func TestSetCredentialsRejectsBlanks(t *testing.T) {
	service, cleanup := setup(t)
	defer cleanup()

	require.Error(t, service.SetCredentials(context.Background(), "", "hunter2"))
	require.Error(t, service.SetCredentials(context.Background(), "forecaster1", ""))
}
