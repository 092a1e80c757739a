package ingest

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/DeafMist/press-radar/internal/models"
)

// Sheets reads press releases from a Google Sheets range whose first row
// is the header.
type Sheets struct {
	SpreadsheetID string
	Range         string
	Columns       Columns
	values        *sheets.SpreadsheetsValuesService
}

// NewSheets builds a read-only Sheets source authenticated with a service
// account credentials file. Extra client options (endpoint, HTTP client)
// are appended after the credentials.
func NewSheets(ctx context.Context, spreadsheetID, readRange, credentialsFile string, opts ...option.ClientOption) (*Sheets, error) {
	if spreadsheetID == "" {
		return nil, errors.New("spreadsheet id is required")
	}
	clientOpts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsReadonlyScope)}
	if credentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credentialsFile))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Sheets{
		SpreadsheetID: spreadsheetID,
		Range:         readRange,
		Columns:       DefaultColumns(),
		values:        sheets.NewSpreadsheetsValuesService(svc),
	}, nil
}

func (s *Sheets) Name() string {
	return "sheets:" + s.SpreadsheetID
}

func (s *Sheets) Fetch(ctx context.Context) ([]models.RawRecord, error) {
	resp, err := s.values.Get(s.SpreadsheetID, s.Range).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read range %q: %w", s.Range, err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, 0, len(row))
		for _, v := range row {
			cells = append(cells, fmt.Sprint(v))
		}
		rows = append(rows, cells)
	}
	return FromRows(rows[0], rows[1:], s.Columns)
}
