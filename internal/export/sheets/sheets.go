// Package sheets mirrors ledger transactions into a Google spreadsheet. The
// mirror is append-only: upserts append the current version of a row and
// deletes append a reversal row, so the sheet doubles as an audit trail.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"github.com/Pehalba/AdmFinanceira/internal/core"
)

// Appender is the slice of the client the export worker needs.
type Appender interface {
	AppendTransaction(ctx context.Context, t core.Transaction) (string, error)
	AppendReversal(ctx context.Context, t core.Transaction) (string, error)
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ Appender = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID plus GOOGLE_CREDENTIALS_JSON,
// GOOGLE_CREDENTIALS_FILE, or GOOGLE_APPLICATION_CREDENTIALS for auth.
// Optional: GOOGLE_SHEET_NAME (default "Transactions").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Transactions"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	credentialsJSON := strings.TrimSpace(os.Getenv("GOOGLE_CREDENTIALS_JSON"))
	credentialsFile := strings.TrimSpace(os.Getenv("GOOGLE_CREDENTIALS_FILE"))
	if credentialsJSON == "" && credentialsFile == "" {
		credentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var raw []byte
	var err error
	switch {
	case credentialsJSON != "":
		raw = []byte(credentialsJSON)
	case credentialsFile != "":
		raw, err = os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
	default:
		return nil, errors.New("missing credentials (set GOOGLE_CREDENTIALS_JSON, GOOGLE_CREDENTIALS_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(raw),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// AppendTransaction appends the current version of one transaction as a row.
func (c *Client) AppendTransaction(ctx context.Context, t core.Transaction) (string, error) {
	return c.appendRow(ctx, t, t.SignedDelta())
}

// AppendReversal appends a row that cancels a deleted transaction: same
// identifiers, negated amount.
func (c *Client) AppendReversal(ctx context.Context, t core.Transaction) (string, error) {
	return c.appendRow(ctx, t, t.SignedDelta().Neg())
}

func (c *Client) appendRow(ctx context.Context, t core.Transaction, delta core.Money) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	amount := float64(delta.Cents) / 100.0
	row := []any{
		t.ID,
		t.UID,
		t.Date.Format("2006-01-02"),
		string(t.MonthKey),
		string(t.Type),
		amount,
		t.Description,
		t.AccountName,
		t.CategoryName,
		time.Now().Format(time.RFC3339),
	}

	rng := fmt.Sprintf("%s!A:J", c.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}

	slog.InfoContext(ctx, "Appended transaction row to sheet",
		"transaction_id", t.ID,
		"sheets_ref", ref,
		"amount", amount)

	return ref, nil
}
