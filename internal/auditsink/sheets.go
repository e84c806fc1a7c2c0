package auditsink

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"leads-backend/internal/models"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsSink writes audit rows to a Google Sheet using a service account
type SheetsSink struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string

	mu      sync.Mutex
	rowOf   map[int]int // lead id -> 1-based sheet row of its latest entry
	indexed bool
}

func NewSheetsSink(ctx context.Context, spreadsheetID, sheetName, credentialsFile string) (*SheetsSink, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets: new service: %w", err)
	}
	return &SheetsSink{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		rowOf:         make(map[int]int),
	}, nil
}

func (s *SheetsSink) Write(ctx context.Context, row models.AuditRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureIndex(ctx); err != nil {
		return err
	}

	vr := &sheets.ValueRange{Values: [][]interface{}{toInterfaces(row.Values())}}

	if n, ok := s.rowOf[row.LeadID]; ok && row.Action == models.AuditUpdated {
		rng := fmt.Sprintf("%s!A%d:%s%d", s.sheetName, n, lastColumn(), n)
		_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).
			ValueInputOption("RAW").
			Context(ctx).
			Do()
		return err
	}

	resp, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, s.sheetName+"!A:"+lastColumn(), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return err
	}
	if resp.Updates != nil {
		if n, ok := rowFromRange(resp.Updates.UpdatedRange); ok {
			s.rowOf[row.LeadID] = n
		}
	}
	return nil
}

// ensureIndex reads column A once so UPDATED rows land on the latest
// existing row of the lead, and writes the header to an empty sheet.
func (s *SheetsSink) ensureIndex(ctx context.Context) error {
	if s.indexed {
		return nil
	}
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!A:A").Context(ctx).Do()
	if err != nil {
		return err
	}
	if len(resp.Values) == 0 {
		header := &sheets.ValueRange{Values: [][]interface{}{toInterfaces(models.AuditColumns)}}
		if _, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, s.sheetName+"!A1", header).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return err
		}
	}
	for i, r := range resp.Values {
		if len(r) == 0 {
			continue
		}
		if id, err := strconv.Atoi(fmt.Sprint(r[0])); err == nil {
			s.rowOf[id] = i + 1
		}
	}
	s.indexed = true
	return nil
}

func toInterfaces(vals []string) []interface{} {
	out := make([]interface{}, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

func lastColumn() string {
	return string(rune('A' + len(models.AuditColumns) - 1))
}

// rowFromRange extracts the first row number from "Leads!A12:R12"
func rowFromRange(rng string) (int, bool) {
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		rng = rng[i+1:]
	}
	start := -1
	for i, c := range rng {
		if c >= '0' && c <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			n, err := strconv.Atoi(rng[start:i])
			return n, err == nil
		}
	}
	if start >= 0 {
		n, err := strconv.Atoi(rng[start:])
		return n, err == nil
	}
	return 0, false
}
