// Package google mirrors backup snapshots to a Google Sheets
// spreadsheet, one sheet per entity type.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"bucks/internal/core"
	"bucks/internal/format"
	"bucks/internal/mirror"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc            *gsheet.Service
	spreadsheetID  string
	fundsSheet     string
	movementsSheet string
}

// Ensure interface conformance
var _ mirror.Writer = (*Client)(nil)

// NewFromEnv creates a Sheets mirror using environment variables.
// Required: BACKUP_SPREADSHEET_ID
// Optional: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE,
// or GOOGLE_APPLICATION_CREDENTIALS for auth.
// Optional sheet names: BACKUP_FUNDS_SHEET_NAME (default "Funds"),
// BACKUP_MOVEMENTS_SHEET_NAME (default "Movements").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("BACKUP_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing BACKUP_SPREADSHEET_ID")
	}

	fundsSheet := strings.TrimSpace(os.Getenv("BACKUP_FUNDS_SHEET_NAME"))
	if fundsSheet == "" {
		fundsSheet = "Funds"
	}
	movementsSheet := strings.TrimSpace(os.Getenv("BACKUP_MOVEMENTS_SHEET_NAME"))
	if movementsSheet == "" {
		movementsSheet = "Movements"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:            svc,
		spreadsheetID:  spreadsheetID,
		fundsSheet:     fundsSheet,
		movementsSheet: movementsSheet,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))

	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return service, nil
}

// WriteSnapshot replaces the funds and movements sheets with the
// snapshot contents.
func (c *Client) WriteSnapshot(ctx context.Context, s mirror.Snapshot) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	fundRows := [][]any{fundHeader()}
	for _, f := range s.Funds {
		fundRows = append(fundRows, fundRow(f, s.Currency, s.DateFormat))
	}
	if err := c.replaceSheet(ctx, c.fundsSheet, fundRows); err != nil {
		return fmt.Errorf("mirror funds: %w", err)
	}

	movementRows := [][]any{movementHeader()}
	for _, m := range s.Movements {
		movementRows = append(movementRows, movementRow(m, s.Currency, s.DateFormat))
	}
	if err := c.replaceSheet(ctx, c.movementsSheet, movementRows); err != nil {
		return fmt.Errorf("mirror movements: %w", err)
	}

	slog.InfoContext(ctx, "Mirrored backup snapshot",
		"spreadsheet_id", c.spreadsheetID,
		"funds", len(s.Funds),
		"movements", len(s.Movements),
		"exported_at", s.ExportedAt)
	return nil
}

func (c *Client) replaceSheet(ctx context.Context, sheetName string, rows [][]any) error {
	clearRange := fmt.Sprintf("%s!A:K", sheetName)
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	writeRange := fmt.Sprintf("%s!A1", sheetName)
	vr := &gsheet.ValueRange{Values: rows}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, writeRange, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", writeRange, err)
	}
	return nil
}

func fundHeader() []any {
	return []any{"ID", "Title", "Type", "Category", "Cash", "Serial", "Network", "IBAN", "Bank", "Brand", "Created"}
}

// Cells render through the user's display presets so the sheet reads
// like the app does.
func fundRow(f core.Fund, currency, dateFormat int) []any {
	return []any{
		f.ID, f.Title, f.Type.String(), f.Category.String(),
		format.Cash(f.Cash, currency),
		format.Serial(f.SerialNumber), f.Network.String(), f.IBAN, f.Bank.String(), f.Brand,
		format.DateTime(f.CreatedAt, dateFormat),
	}
}

func movementHeader() []any {
	return []any{"ID", "FundIn", "FundOut", "Title", "Description", "Amount", "Date"}
}

func movementRow(m core.Movement, currency, dateFormat int) []any {
	return []any{
		m.ID, refCell(m.FundInID), refCell(m.FundOutID),
		m.Title, m.Description,
		format.Cash(m.Amount, currency),
		format.DateTime(m.Date, dateFormat),
	}
}

func refCell(id *int64) any {
	if id == nil {
		return ""
	}
	return *id
}
