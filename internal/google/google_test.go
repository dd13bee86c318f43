package google

import (
	"path/filepath"
	"testing"
	"time"

	"respreport/internal/models"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestSheetRange(t *testing.T) {
	require.Equal(t, "'response_report'!A1:F", sheetRange("response_report", 1))
	require.Equal(t, "'Bob''s report'!A5:F", sheetRange("Bob's report", 5))
}

func TestValuesRoundTrip(t *testing.T) {
	table := &models.Table{Rows: []models.Row{
		{"Security Basics", "05.03.2024", "Max", "Mustermann", "xy000ab12", "Zusage"},
	}}

	got, err := models.TableFromCells(fromValues(toValues(table.Cells())))
	require.NoError(t, err)
	require.Equal(t, table.Rows, got.Rows)
}

func TestFromValues_EmptyRangeIsAbsent(t *testing.T) {
	got, err := models.TableFromCells(fromValues(nil))
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestTokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens", "google.json")

	tok, err := LoadToken(path)
	require.NoError(t, err)
	require.Nil(t, tok)

	want := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, SaveToken(path, want))

	tok, err = LoadToken(path)
	require.NoError(t, err)
	require.Equal(t, want.AccessToken, tok.AccessToken)
	require.Equal(t, want.RefreshToken, tok.RefreshToken)
	require.True(t, want.Expiry.Equal(tok.Expiry))
}

func TestOAuthConfig_FromClientCredentials(t *testing.T) {
	cfg, err := OAuthConfig("id", "secret")
	require.NoError(t, err)
	require.Equal(t, "id", cfg.ClientID)
	require.Contains(t, cfg.Scopes, "https://www.googleapis.com/auth/spreadsheets")
}
