package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	ports "controle/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client is a sheets.Table backed by a Google spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	ranges        ports.Ranges

	// sheet ids are needed to delete rows; titles rarely change so they are
	// looked up once.
	mu       sync.Mutex
	sheetIDs map[string]int64
}

// Ensure interface conformance
var _ ports.Table = (*Client)(nil)

// Options configures New.
type Options struct {
	SpreadsheetID      string
	ServiceAccountJSON string
	ServiceAccountFile string
	Ranges             ports.Ranges
}

// NewFromEnv creates a Sheets client from GOOGLE_SPREADSHEET_ID and the
// service account variables.
func NewFromEnv(ctx context.Context, ranges ports.Ranges) (*Client, error) {
	return New(ctx, Options{
		SpreadsheetID:      os.Getenv("GOOGLE_SPREADSHEET_ID"),
		ServiceAccountJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		ServiceAccountFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
		Ranges:             ranges,
	})
}

func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	ranges := opts.Ranges
	if ranges == nil {
		ranges = ports.DefaultRanges()
	}
	if err := ranges.Validate(); err != nil {
		return nil, err
	}

	svc, err := newSheetsService(ctx, opts.ServiceAccountJSON, opts.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newWithService(svc, spreadsheetID, ranges), nil
}

func newWithService(svc *gsheet.Service, spreadsheetID string, ranges ports.Ranges) *Client {
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		ranges:        ranges,
		sheetIDs:      make(map[string]int64),
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Uses the inline JSON, the file, or GOOGLE_APPLICATION_CREDENTIALS, in that order.
func newSheetsService(ctx context.Context, serviceAccountJSON, serviceAccountFile string) (*gsheet.Service, error) {
	serviceAccountJSON = strings.TrimSpace(serviceAccountJSON)
	serviceAccountFile = strings.TrimSpace(serviceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

func (c *Client) ReadRows(ctx context.Context, rng ports.RangeID) ([][]string, error) {
	a1, err := c.ranges.A1(rng)
	if err != nil {
		return nil, err
	}
	if c.svc == nil {
		return nil, ports.Unavailable("read", rng, errors.New("sheets service not initialized"))
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, a1).Context(ctx).Do()
	if err != nil {
		return nil, ports.Unavailable("read", rng, err)
	}
	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		out[i] = toStrings(row)
	}
	return out, nil
}

func (c *Client) AppendRows(ctx context.Context, rng ports.RangeID, rows [][]string) error {
	a1, err := c.ranges.A1(rng)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	if c.svc == nil {
		return ports.Unavailable("append", rng, errors.New("sheets service not initialized"))
	}
	vr := &gsheet.ValueRange{Values: toValues(rows)}
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, a1, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return ports.Unavailable("append", rng, err)
	}
	return nil
}

func (c *Client) UpdateRow(ctx context.Context, rng ports.RangeID, index int, row []string) error {
	if _, err := c.ranges.A1(rng); err != nil {
		return err
	}
	if index < 2 {
		return ports.RowNotFound(rng, index)
	}
	if c.svc == nil {
		return ports.Unavailable("update", rng, errors.New("sheets service not initialized"))
	}
	first, last := c.ranges.Columns(rng)
	a1 := rowA1(c.ranges.Sheet(rng), first, last, index)
	vr := &gsheet.ValueRange{Values: toValues([][]string{row})}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, a1, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return ports.Unavailable("update", rng, err)
	}
	return nil
}

func (c *Client) DeleteRow(ctx context.Context, rng ports.RangeID, index int) error {
	if _, err := c.ranges.A1(rng); err != nil {
		return err
	}
	if index < 2 {
		return ports.RowNotFound(rng, index)
	}
	if c.svc == nil {
		return ports.Unavailable("delete", rng, errors.New("sheets service not initialized"))
	}
	sheetID, err := c.sheetID(ctx, c.ranges.Sheet(rng))
	if err != nil {
		return ports.Unavailable("delete", rng, err)
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:         sheetID,
					Dimension:       "ROWS",
					StartIndex:      int64(index - 1),
					EndIndex:        int64(index),
					ForceSendFields: []string{"SheetId"},
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return ports.Unavailable("delete", rng, err)
	}
	return nil
}

// sheetID resolves a sheet title to its numeric id.
func (c *Client) sheetID(ctx context.Context, title string) (int64, error) {
	c.mu.Lock()
	if id, ok := c.sheetIDs[title]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet metadata: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			c.sheetIDs[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	id, ok := c.sheetIDs[title]
	if !ok {
		return 0, fmt.Errorf("sheet %q not found", title)
	}
	return id, nil
}
