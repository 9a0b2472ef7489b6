// Package sheets mirrors period summaries into a Google spreadsheet, one tab
// per owner and month.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"budgeteer/internal/core"
	"budgeteer/internal/log"
)

const maxTitleLength = 100

var header = []any{"Category", "Budget", "Spent", "Remaining", "Over"}

type Config struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
}

type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *log.Logger
	now           func() time.Time
}

// New authenticates with a service account. Inline JSON wins over the file.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Exporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	creds, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newExporter(svc, cfg.SpreadsheetID, logger), nil
}

func newExporter(svc *gsheet.Service, spreadsheetID string, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = log.Discard()
	}
	return &Exporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		logger:        logger.WithComponent(log.ComponentExport),
		now:           time.Now,
	}
}

func loadCredentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

func (e *Exporter) Name() string { return "sheets" }

// tabTitle is "{owner} {YYYY-MM}", with the owner shortened so the title
// fits the sheet name limit.
func tabTitle(ownerID string, p core.Period) string {
	suffix := " " + p.String()
	owner := strings.Map(func(r rune) rune {
		switch r {
		case '\'', '!', ':', '[', ']', '*', '?', '/', '\\':
			return '_'
		}
		return r
	}, ownerID)
	if limit := maxTitleLength - len(suffix); len(owner) > limit {
		owner = owner[:limit]
	}
	return owner + suffix
}

// rows lays the summary out as header, one line per category, a totals
// line and a generated-at footer. Amounts are currency units.
func rows(s core.PeriodSummary, generatedAt time.Time) [][]any {
	out := make([][]any, 0, len(s.Rows)+4)
	out = append(out, header)
	for _, r := range s.Rows {
		out = append(out, []any{r.Name, r.Budget.Decimal().InexactFloat64(), r.Spent.Decimal().InexactFloat64(), r.Remaining.Decimal().InexactFloat64(), r.Over()})
	}
	out = append(out,
		[]any{"Total", s.Totals.Budget.Decimal().InexactFloat64(), s.Totals.Spent.Decimal().InexactFloat64(), s.Totals.Remaining.Decimal().InexactFloat64(), ""},
		[]any{},
		[]any{"Generated", generatedAt.UTC().Format(time.RFC3339)},
	)
	return out
}

// Export replaces the tab contents with the summary, creating the tab on
// first use.
func (e *Exporter) Export(ctx context.Context, ownerID string, s core.PeriodSummary) error {
	title := tabTitle(ownerID, s.Period)
	if err := e.ensureTab(ctx, title); err != nil {
		return err
	}

	rng := fmt.Sprintf("'%s'!A1:E", title)
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", title, err)
	}
	vr := &gsheet.ValueRange{Values: rows(s, e.now())}
	if _, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, fmt.Sprintf("'%s'!A1", title), vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", title, err)
	}

	e.logger.DebugContext(ctx, "Summary exported to sheet",
		log.FieldOwnerID, ownerID, log.FieldExporter, e.Name(), log.FieldCount, len(s.Rows))
	return nil
}

func (e *Exporter) ensureTab(ctx context.Context, title string) error {
	ss, err := e.svc.Spreadsheets.Get(e.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return nil
		}
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	if _, err := e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	return nil
}
