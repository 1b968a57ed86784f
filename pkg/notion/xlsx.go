package notion

import (
	"context"
	"strconv"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// curatedHeaders maps lowered spreadsheet headers to curated database
// columns. Unknown columns are ignored.
var curatedHeaders = map[string]string{
	"name":            PropName,
	"business name":   PropName,
	"phone":           PropPhone,
	"whatsapp":        PropWhatsApp,
	"email":           PropEmail,
	"website":         PropWebsite,
	"location":        PropLocation,
	"area":            PropLocation,
	"address":         PropAddress,
	"specializations": PropSpecializations,
	"daily rate idr":  PropDailyRate,
	"daily rate":      PropDailyRate,
}

// ImportXLSX reads a curated-worker spreadsheet and creates one page per
// unique row in the Notion database. Rows are deduplicated by phone when
// a phone column exists, and every created page starts with Status =
// "Active". Returns the number of pages created.
func ImportXLSX(ctx context.Context, c Client, dbID string, path string) (int, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return 0, eris.Wrapf(err, "notion: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return 0, eris.Errorf("notion: xlsx %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	if len(sheet.Rows) < 2 {
		return 0, nil // header only or empty
	}

	headers := make([]string, len(sheet.Rows[0].Cells))
	for i, cell := range sheet.Rows[0].Cells {
		headers[i] = strings.ToLower(strings.TrimSpace(cell.String()))
	}

	seen := make(map[string]struct{})
	created := 0

	for _, row := range sheet.Rows[1:] {
		if ctx.Err() != nil {
			return created, eris.Wrap(ctx.Err(), "notion: import xlsx cancelled")
		}

		values := mapRow(headers, row)
		if values[PropName] == "" {
			continue
		}

		if phone := values[PropPhone]; phone != "" {
			if _, exists := seen[phone]; exists {
				continue
			}
			seen[phone] = struct{}{}
		}

		req := &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(dbID),
			},
			Properties: buildWorkerProperties(values),
		}

		if _, err := c.CreatePage(ctx, req); err != nil {
			return created, eris.Wrap(err, "notion: create worker page")
		}
		created++
	}

	return created, nil
}

// mapRow pairs recognized headers with trimmed cell values.
func mapRow(headers []string, row *xlsx.Row) map[string]string {
	values := make(map[string]string)
	for i, h := range headers {
		prop, ok := curatedHeaders[h]
		if !ok || i >= len(row.Cells) {
			continue
		}
		if v := strings.TrimSpace(row.Cells[i].String()); v != "" {
			values[prop] = v
		}
	}
	return values
}

// buildWorkerProperties converts mapped row values into curated page
// properties with the right Notion types per column.
func buildWorkerProperties(values map[string]string) notionapi.Properties {
	props := notionapi.Properties{
		PropName: notionapi.TitleProperty{
			Type: notionapi.PropertyTypeTitle,
			Title: []notionapi.RichText{
				{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: values[PropName]}},
			},
		},
		PropStatus: notionapi.StatusProperty{
			Status: notionapi.Status{Name: "Active"},
		},
	}

	for _, prop := range []string{PropPhone, PropWhatsApp} {
		if v := values[prop]; v != "" {
			props[prop] = notionapi.PhoneNumberProperty{
				Type:        notionapi.PropertyTypePhoneNumber,
				PhoneNumber: v,
			}
		}
	}

	if v := values[PropEmail]; v != "" {
		props[PropEmail] = notionapi.EmailProperty{
			Type:  notionapi.PropertyTypeEmail,
			Email: v,
		}
	}

	if v := values[PropWebsite]; v != "" {
		if !strings.Contains(v, "://") {
			v = "https://" + v
		}
		props[PropWebsite] = notionapi.URLProperty{
			Type: notionapi.PropertyTypeURL,
			URL:  v,
		}
	}

	for _, prop := range []string{PropLocation, PropAddress} {
		if v := values[prop]; v != "" {
			props[prop] = notionapi.RichTextProperty{
				Type: notionapi.PropertyTypeRichText,
				RichText: []notionapi.RichText{
					{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: v}},
				},
			}
		}
	}

	if v := values[PropSpecializations]; v != "" {
		var opts []notionapi.Option
		for _, tag := range strings.Split(v, ",") {
			if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
				opts = append(opts, notionapi.Option{Name: tag})
			}
		}
		if len(opts) > 0 {
			props[PropSpecializations] = notionapi.MultiSelectProperty{
				Type:        notionapi.PropertyTypeMultiSelect,
				MultiSelect: opts,
			}
		}
	}

	if v := values[PropDailyRate]; v != "" {
		if rate, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64); err == nil && rate > 0 {
			props[PropDailyRate] = notionapi.NumberProperty{
				Type:   notionapi.PropertyTypeNumber,
				Number: rate,
			}
		}
	}

	return props
}
