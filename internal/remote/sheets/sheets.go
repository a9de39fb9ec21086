// Package sheets is a Google Sheets backed remote store. Each entity type
// lives on its own sheet, one record per row keyed by id, so a spreadsheet
// doubles as the shared document store between devices.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"fintrack/internal/core"
	syncport "fintrack/internal/sync"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string

	transactionsSheet string
	categoriesSheet   string
	personsSheet      string
}

// Ensure interface conformance
var _ syncport.RemoteStore = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional sheet names: GOOGLE_TRANSACTIONS_SHEET_NAME (default
// "Transactions"), GOOGLE_CATEGORIES_SHEET_NAME (default "Categories"),
// GOOGLE_PERSONS_SHEET_NAME (default "Persons").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	txSheet := strings.TrimSpace(os.Getenv("GOOGLE_TRANSACTIONS_SHEET_NAME"))
	if txSheet == "" {
		txSheet = "Transactions"
	}
	catSheet := strings.TrimSpace(os.Getenv("GOOGLE_CATEGORIES_SHEET_NAME"))
	if catSheet == "" {
		catSheet = "Categories"
	}
	personSheet := strings.TrimSpace(os.Getenv("GOOGLE_PERSONS_SHEET_NAME"))
	if personSheet == "" {
		personSheet = "Persons"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:               svc,
		spreadsheetID:     spreadsheetID,
		transactionsSheet: txSheet,
		categoriesSheet:   catSheet,
		personsSheet:      personSheet,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account
// credentials from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE,
// or GOOGLE_APPLICATION_CREDENTIALS.
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

	slog.InfoContext(ctx, "Google Sheets service created")
	return service, nil
}

// upsertRow writes values into the row whose first column equals id, or
// appends a new row when no such row exists.
func (c *Client) upsertRow(ctx context.Context, sheet string, id int64, values []any) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:A", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read id column of %s: %w", sheet, err)
	}

	row := len(resp.Values) + 1
	for i, existing := range resp.Values {
		existingID, ok := parseInt64(safeGet(toStrings(existing), 0))
		if ok && existingID == id {
			row = i + 1
			break
		}
	}

	dataRange := fmt.Sprintf("%s!A%d", sheet, row)
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write row %d of %s: %w", row, sheet, err)
	}
	return nil
}

func (c *Client) readRows(ctx context.Context, sheet string) ([][]any, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:L", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sheet, err)
	}
	return resp.Values, nil
}

func (c *Client) PushTransaction(ctx context.Context, tx core.Transaction) (time.Time, error) {
	if err := c.upsertRow(ctx, c.transactionsSheet, tx.ID, transactionRow(tx)); err != nil {
		return time.Time{}, err
	}
	ackedAt := time.Now().UTC()
	slog.InfoContext(ctx, "Pushed transaction to sheet", "record_id", tx.ID)
	return ackedAt, nil
}

func (c *Client) PushCategory(ctx context.Context, cat core.Category) (time.Time, error) {
	if err := c.upsertRow(ctx, c.categoriesSheet, cat.ID, categoryRow(cat)); err != nil {
		return time.Time{}, err
	}
	ackedAt := time.Now().UTC()
	slog.InfoContext(ctx, "Pushed category to sheet", "record_id", cat.ID)
	return ackedAt, nil
}

func (c *Client) PushPerson(ctx context.Context, p core.Person) (time.Time, error) {
	if err := c.upsertRow(ctx, c.personsSheet, p.ID, personRow(p)); err != nil {
		return time.Time{}, err
	}
	ackedAt := time.Now().UTC()
	slog.InfoContext(ctx, "Pushed person to sheet", "record_id", p.ID)
	return ackedAt, nil
}

func (c *Client) PullTransactions(ctx context.Context, isExpense bool, since time.Time) ([]core.Transaction, error) {
	rows, err := c.readRows(ctx, c.transactionsSheet)
	if err != nil {
		return nil, err
	}

	var out []core.Transaction
	for i, row := range rows {
		tx, err := parseTransactionRow(toStrings(row))
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed transaction row",
				"sheet", c.transactionsSheet, "row", i+1, "error", err)
			continue
		}
		if tx.IsExpense == isExpense && tx.UpdatedAt.After(since) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (c *Client) PullCategories(ctx context.Context, since time.Time) ([]core.Category, error) {
	rows, err := c.readRows(ctx, c.categoriesSheet)
	if err != nil {
		return nil, err
	}

	var out []core.Category
	for i, row := range rows {
		cat, err := parseCategoryRow(toStrings(row))
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed category row",
				"sheet", c.categoriesSheet, "row", i+1, "error", err)
			continue
		}
		if cat.UpdatedAt.After(since) {
			out = append(out, cat)
		}
	}
	return out, nil
}

func (c *Client) PullPersons(ctx context.Context, since time.Time) ([]core.Person, error) {
	rows, err := c.readRows(ctx, c.personsSheet)
	if err != nil {
		return nil, err
	}

	var out []core.Person
	for i, row := range rows {
		p, err := parsePersonRow(toStrings(row))
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed person row",
				"sheet", c.personsSheet, "row", i+1, "error", err)
			continue
		}
		if p.UpdatedAt.After(since) {
			out = append(out, p)
		}
	}
	return out, nil
}
