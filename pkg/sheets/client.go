// Package sheets reads profile rows from a Google Sheet and writes
// enrichment results back with batched cell updates.
package sheets

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/resilience"
)

// CellUpdate is one staged write: a data row (0-based, header excluded), a
// 0-based column index, and the new value.
type CellUpdate struct {
	Row    int
	Column int
	Value  string
}

// Sheet is a loaded worksheet: its identity, header column mapping, and the
// parsed profile rows. The in-memory profiles are the authoritative copy for
// the duration of a run.
type Sheet struct {
	SpreadsheetID string
	Name          string
	ID            int64
	// Columns maps lower-cased header names to 0-based column indices.
	// The research and draft columns are always present, appended past the
	// header when the sheet lacks them.
	Columns  map[string]int
	Profiles []*model.Profile
}

// Column returns the column index for a header name.
func (s *Sheet) Column(name string) int {
	return s.Columns[strings.ToLower(name)]
}

// Client is the persistent-store surface used by the pipeline.
type Client interface {
	Load(ctx context.Context, spreadsheetID, sheetName string) (*Sheet, error)
	BatchUpdate(ctx context.Context, sheet *Sheet, updates []CellUpdate) error
}

// namedFields are headers mapped onto Profile struct fields; everything else
// is passthrough.
var namedFields = map[string]func(p *model.Profile, v string){
	"name":      func(p *model.Profile, v string) { p.Name = v },
	"company":   func(p *model.Profile, v string) { p.Company = v },
	"role":      func(p *model.Profile, v string) { p.Role = v },
	"location":  func(p *model.Profile, v string) { p.Location = v },
	"phone":     func(p *model.Profile, v string) { p.Phone = v },
	"email":     func(p *model.Profile, v string) { p.Email = v },
	"education": func(p *model.Profile, v string) { p.Education = v },
	"topic":     func(p *model.Profile, v string) { p.Topic = v },
	"subtopic":  func(p *model.Profile, v string) { p.Subtopic = v },
	"research":  func(p *model.Profile, v string) { p.Research = v },
	"draft":     func(p *model.Profile, v string) { p.Draft = v },
}

type apiClient struct {
	svc *sheetsapi.Service
}

// NewClient creates a Sheets client. Credentials come from the given file,
// or Application Default Credentials when path is empty.
func NewClient(ctx context.Context, credentialsPath string) (Client, error) {
	opts := []option.ClientOption{option.WithScopes(sheetsapi.SpreadsheetsScope)}
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}
	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "sheets: create service")
	}
	return &apiClient{svc: svc}, nil
}

func (c *apiClient) Load(ctx context.Context, spreadsheetID, sheetName string) (*Sheet, error) {
	meta, err := c.svc.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, classify(eris.Wrap(err, "sheets: get spreadsheet"), err)
	}

	sheet := &Sheet{SpreadsheetID: spreadsheetID, Name: sheetName, ID: -1}
	for _, s := range meta.Sheets {
		if s.Properties != nil && s.Properties.Title == sheetName {
			sheet.ID = s.Properties.SheetId
			break
		}
	}
	if sheet.ID < 0 {
		return nil, eris.Errorf("sheets: worksheet %q not found", sheetName)
	}

	resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, sheetName+"!A1:Z").Context(ctx).Do()
	if err != nil {
		return nil, classify(eris.Wrap(err, "sheets: read rows"), err)
	}
	if len(resp.Values) == 0 {
		sheet.Columns = ensureResultColumns(nil)
		return sheet, nil
	}

	header := make([]string, len(resp.Values[0]))
	for i, v := range resp.Values[0] {
		header[i] = strings.ToLower(strings.TrimSpace(toString(v)))
	}
	sheet.Columns = ensureResultColumns(header)
	sheet.Profiles = parseRows(header, resp.Values[1:])
	return sheet, nil
}

// parseRows converts raw value rows into profiles, padding short rows.
func parseRows(header []string, rows [][]any) []*model.Profile {
	profiles := make([]*model.Profile, 0, len(rows))
	for i, raw := range rows {
		p := &model.Profile{Row: i, Extra: map[string]string{}}
		for col, name := range header {
			var v string
			if col < len(raw) {
				v = strings.TrimSpace(toString(raw[col]))
			}
			if set, ok := namedFields[name]; ok {
				set(p, v)
			} else if name != "" && v != "" {
				p.Extra[name] = v
			}
		}
		profiles = append(profiles, p)
	}
	return profiles
}

// ensureResultColumns maps header names to indices, appending research and
// draft columns past the header when the sheet lacks them.
func ensureResultColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header)+2)
	for i, name := range header {
		if name != "" {
			cols[name] = i
		}
	}
	next := len(header)
	for _, required := range []string{"research", "draft"} {
		if _, ok := cols[required]; !ok {
			cols[required] = next
			next++
		}
	}
	return cols
}

func (c *apiClient) BatchUpdate(ctx context.Context, sheet *Sheet, updates []CellUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	reqs := make([]*sheetsapi.Request, 0, len(updates))
	for _, u := range updates {
		reqs = append(reqs, &sheetsapi.Request{
			UpdateCells: &sheetsapi.UpdateCellsRequest{
				Range: &sheetsapi.GridRange{
					SheetId: sheet.ID,
					// +1 skips the header row.
					StartRowIndex:    int64(u.Row) + 1,
					EndRowIndex:      int64(u.Row) + 2,
					StartColumnIndex: int64(u.Column),
					EndColumnIndex:   int64(u.Column) + 1,
				},
				Rows: []*sheetsapi.RowData{{
					Values: []*sheetsapi.CellData{{
						UserEnteredValue: &sheetsapi.ExtendedValue{StringValue: googleapi.String(u.Value)},
					}},
				}},
				Fields: "userEnteredValue",
			},
		})
	}

	_, err := c.svc.Spreadsheets.BatchUpdate(sheet.SpreadsheetID, &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: reqs,
	}).Context(ctx).Do()
	if err != nil {
		return classify(eris.Wrap(err, "sheets: batch update"), err)
	}
	return nil
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// classify maps googleapi errors onto the transient/permanent taxonomy.
func classify(wrapped, original error) error {
	var apiErr *googleapi.Error
	if errors.As(original, &apiErr) {
		return resilience.ClassifyHTTPStatus(wrapped, apiErr.Code)
	}
	return wrapped
}
