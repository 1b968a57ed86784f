package notion

import (
	"context"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cassidypignatello/bali-renovation-os/internal/worker"
)

// Curated database column names.
const (
	PropName            = "Name"
	PropPhone           = "Phone"
	PropWhatsApp        = "WhatsApp"
	PropEmail           = "Email"
	PropWebsite         = "Website"
	PropLocation        = "Location"
	PropAddress         = "Address"
	PropSpecializations = "Specializations"
	PropDailyRate       = "Daily Rate IDR"
	PropStatus          = "Status"
	PropLastSynced      = "Last Synced"
)

// QueryActiveWorkers fetches every curated worker page with Status =
// "Active" and converts it into a record. The curated database is a few
// hundred rows at most, so result pages are fetched sequentially. Pages
// missing a name are skipped with a warning rather than failing the sync.
func QueryActiveWorkers(ctx context.Context, c Client, dbID string) ([]*worker.Record, error) {
	activeFilter := notionapi.PropertyFilter{
		Property: PropStatus,
		Status: &notionapi.StatusFilterCondition{
			Equals: "Active",
		},
	}

	var records []*worker.Record
	req := &notionapi.DatabaseQueryRequest{Filter: activeFilter}
	for {
		resp, err := c.QueryDatabase(ctx, dbID, req)
		if err != nil {
			return nil, eris.Wrap(err, "notion: query active workers")
		}

		for _, p := range resp.Results {
			rec, err := PageToWorker(p)
			if err != nil {
				zap.L().Warn("notion: skipping malformed worker page",
					zap.String("page_id", string(p.ID)),
					zap.Error(err),
				)
				continue
			}
			records = append(records, rec)
		}

		if !resp.HasMore {
			break
		}
		req = &notionapi.DatabaseQueryRequest{
			Filter:      activeFilter,
			StartCursor: resp.NextCursor,
		}
	}

	return records, nil
}

// PageToWorker converts a curated database page into a worker record.
func PageToWorker(p notionapi.Page) (*worker.Record, error) {
	rec := &worker.Record{
		SourceTier: worker.TierManualCurated,
		IsActive:   true,
		Extra: map[string]any{
			"notion_page_id": string(p.ID),
		},
	}

	if prop, ok := p.Properties[PropName]; ok {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			rec.BusinessName = plainText(tp.Title)
		}
	}
	if rec.BusinessName == "" {
		return nil, eris.New("missing Name property")
	}

	if prop, ok := p.Properties[PropPhone]; ok {
		if pp, ok := prop.(*notionapi.PhoneNumberProperty); ok {
			rec.Phone = pp.PhoneNumber
		}
	}

	if prop, ok := p.Properties[PropWhatsApp]; ok {
		if pp, ok := prop.(*notionapi.PhoneNumberProperty); ok {
			rec.WhatsApp = pp.PhoneNumber
		}
	}

	if prop, ok := p.Properties[PropEmail]; ok {
		if ep, ok := prop.(*notionapi.EmailProperty); ok {
			rec.Email = ep.Email
		}
	}

	if prop, ok := p.Properties[PropWebsite]; ok {
		if up, ok := prop.(*notionapi.URLProperty); ok {
			rec.Website = up.URL
		}
	}

	if prop, ok := p.Properties[PropLocation]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			rec.Location = plainText(rtp.RichText)
		}
	}

	if prop, ok := p.Properties[PropAddress]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			rec.Address = plainText(rtp.RichText)
		}
	}

	if prop, ok := p.Properties[PropSpecializations]; ok {
		if msp, ok := prop.(*notionapi.MultiSelectProperty); ok {
			for _, opt := range msp.MultiSelect {
				rec.AddSpecialization(opt.Name)
			}
		}
	}

	if prop, ok := p.Properties[PropDailyRate]; ok {
		if np, ok := prop.(*notionapi.NumberProperty); ok && np.Number > 0 {
			rate := int64(np.Number)
			rec.DailyRateIDR = &rate
		}
	}

	return rec, nil
}

// MarkSynced stamps the page's Last Synced date after a successful pull.
func MarkSynced(ctx context.Context, c Client, pageID string, at time.Time) error {
	date := notionapi.Date(at)
	req := &notionapi.PageUpdateRequest{
		Properties: notionapi.Properties{
			PropLastSynced: notionapi.DateProperty{
				Type: notionapi.PropertyTypeDate,
				Date: &notionapi.DateObject{Start: &date},
			},
		},
	}
	if _, err := c.UpdatePage(ctx, pageID, req); err != nil {
		return eris.Wrapf(err, "notion: mark synced %s", pageID)
	}
	return nil
}

// plainText concatenates the plain content of a rich text array.
func plainText(rts []notionapi.RichText) string {
	var out string
	for _, rt := range rts {
		out += rt.PlainText
	}
	return out
}
