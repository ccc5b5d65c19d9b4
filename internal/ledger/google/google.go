package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"scadenze/internal/cache"
	"scadenze/internal/core"
	"scadenze/internal/ledger"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	defaultSheetName     = "Scadenze"
	defaultCacheDuration = 2 * time.Minute
	indexCacheSize       = 1024
)

// valuesAPI is the subset of the Sheets values API the ledger needs.
type valuesAPI interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error)
	Update(ctx context.Context, spreadsheetID, rng string, values [][]interface{}) error
}

type sheetsValues struct {
	svc *gsheet.Service
}

func (v sheetsValues) Get(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error) {
	resp, err := v.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (v sheetsValues) Update(ctx context.Context, spreadsheetID, rng string, values [][]interface{}) error {
	vr := &gsheet.ValueRange{Values: values}
	_, err := v.svc.Spreadsheets.Values.Update(spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// Client is a ledger collaborator backed by one Google Sheets tab with the
// columns Date, Label, Amount, Origin, Display.
type Client struct {
	values        valuesAPI
	spreadsheetID string
	sheet         string

	// appendMu makes check-then-append atomic within the process.
	appendMu sync.Mutex

	mu                 sync.Mutex
	cachedRows         []movementRow
	cachedRowCount     int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration

	// index remembers rows this process has seen, keyed by period and origin.
	index *cache.LRUCache[core.Movement]
}

// Ensure interface conformance
var (
	_ ledger.Ledger         = (*Client)(nil)
	_ ledger.MovementLister = (*Client)(nil)
)

// Config holds the Sheets ledger settings.
type Config struct {
	SpreadsheetID string
	SheetName     string
	CacheTTL      time.Duration
}

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Optional: GOOGLE_SHEET_NAME (default "Scadenze"), SHEETS_CACHE_TTL.
func NewFromEnv(ctx context.Context) (*Client, error) {
	ttl, _ := time.ParseDuration(strings.TrimSpace(os.Getenv("SHEETS_CACHE_TTL")))
	return New(ctx, Config{
		SpreadsheetID: os.Getenv("GOOGLE_SPREADSHEET_ID"),
		SheetName:     os.Getenv("GOOGLE_SHEET_NAME"),
		CacheTTL:      ttl,
	})
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(sheetsValues{svc: svc}, cfg), nil
}

func newClient(values valuesAPI, cfg Config) *Client {
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = defaultSheetName
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheDuration
	}
	return &Client{
		values:             values,
		spreadsheetID:      strings.TrimSpace(cfg.SpreadsheetID),
		sheet:              sheet,
		cacheValidDuration: ttl,
		index:              cache.NewLRUCache[core.Movement](indexCacheSize, ttl),
	}
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

	slog.InfoContext(ctx, "Google Sheets service created", "credentials_size", len(credentialsJSON))
	return service, nil
}

// CreateMovement appends a row unless one already exists for the same
// (label, date, origin). The sheet is re-read before every append.
func (c *Client) CreateMovement(ctx context.Context, m core.Movement) (core.MovementRef, error) {
	if c.values == nil {
		return "", errors.New("sheets service not initialized")
	}
	c.appendMu.Lock()
	defer c.appendMu.Unlock()

	c.InvalidateRowCache()
	rows, rowCount, err := c.rows(ctx)
	if err != nil {
		return "", err
	}
	if existing := findRow(rows, m.Label, m.Date, m.Origin); existing != nil {
		c.remember(*existing)
		return "", ledger.ErrDuplicateMovement
	}

	nextRow := rowCount + 1
	if rowCount == 0 {
		header := fmt.Sprintf("%s!A1:E1", c.sheet)
		if err := c.values.Update(ctx, c.spreadsheetID, header, [][]interface{}{headerRow}); err != nil {
			return "", fmt.Errorf("write header in sheet %s: %w", c.sheet, err)
		}
		nextRow = 2
	}

	rng := fmt.Sprintf("%s!A%d:E%d", c.sheet, nextRow, nextRow)
	values := [][]interface{}{{
		m.Date.String(),
		m.Label,
		m.Amount.StringFixed(2),
		string(m.Origin),
		core.FormatEUR(m.Amount),
	}}
	if err := c.values.Update(ctx, c.spreadsheetID, rng, values); err != nil {
		return "", fmt.Errorf("append movement in sheet %s: %w", c.sheet, err)
	}

	m.Ref = core.MovementRef(rng)
	c.InvalidateRowCache()
	c.remember(m)

	slog.InfoContext(ctx, "Movement appended to Google Sheets",
		"label", m.Label,
		"date", m.Date.String(),
		"sheets_ref", rng)
	return m.Ref, nil
}

// FindMovement answers from the index first, then from a cached snapshot of the sheet.
func (c *Client) FindMovement(ctx context.Context, label string, date core.Date, origin core.Origin) (*core.Movement, error) {
	if m, ok := c.index.Get(indexKey(label, date, origin)); ok {
		return &m, nil
	}
	rows, _, err := c.rows(ctx)
	if err != nil {
		return nil, err
	}
	if existing := findRow(rows, label, date, origin); existing != nil {
		c.remember(*existing)
		m := *existing
		return &m, nil
	}
	return nil, nil
}

// ListMovements returns the rows for label in sheet order.
func (c *Client) ListMovements(ctx context.Context, label string) ([]core.Movement, error) {
	rows, _, err := c.rows(ctx)
	if err != nil {
		return nil, err
	}
	var out []core.Movement
	for _, r := range rows {
		if r.Label == label {
			out = append(out, r.Movement)
		}
	}
	return out, nil
}

// InvalidateRowCache forces the next read to fetch the sheet again.
func (c *Client) InvalidateRowCache() {
	c.mu.Lock()
	c.cachedRows = nil
	c.cacheExpiresAt = time.Time{}
	c.mu.Unlock()
}

// rows returns the parsed movements and the number of used rows.
func (c *Client) rows(ctx context.Context) ([]movementRow, int, error) {
	c.mu.Lock()
	if time.Now().Before(c.cacheExpiresAt) {
		rows, count := c.cachedRows, c.cachedRowCount
		c.mu.Unlock()
		return rows, count, nil
	}
	c.mu.Unlock()

	if c.values == nil {
		return nil, 0, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:E", c.sheet)
	values, err := c.values.Get(ctx, c.spreadsheetID, rng)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", rng, err)
	}
	rows := parseMovementRows(ctx, c.sheet, values)

	c.mu.Lock()
	c.cachedRows = rows
	c.cachedRowCount = len(values)
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	c.mu.Unlock()
	return rows, len(values), nil
}

func (c *Client) remember(m core.Movement) {
	c.index.Set(indexKey(m.Label, m.Date, m.Origin), m)
}

// CleanExpired drops expired index entries; it lets a cache.Manager own the cleanup loop.
func (c *Client) CleanExpired() int {
	return c.index.CleanExpired()
}

func indexKey(label string, date core.Date, origin core.Origin) string {
	return core.PeriodKey{Label: label, ExpectedDate: date}.ID() + "|" + string(origin)
}

func findRow(rows []movementRow, label string, date core.Date, origin core.Origin) *core.Movement {
	for i := range rows {
		r := &rows[i].Movement
		if r.Label == label && r.Date.Equal(date) && r.Origin == origin {
			return r
		}
	}
	return nil
}
