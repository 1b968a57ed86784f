package notion

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeTempXLSX(t *testing.T, rows [][]string) string {
	t.Helper()

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Workers")
	require.NoError(t, err)

	for _, row := range rows {
		r := sheet.AddRow()
		for _, v := range row {
			r.AddCell().SetString(v)
		}
	}

	path := filepath.Join(t.TempDir(), "workers.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestImportXLSX(t *testing.T) {
	path := writeTempXLSX(t, [][]string{
		{"Name", "Phone", "Location", "Specializations", "Daily Rate IDR"},
		{"Wayan Pool Service", "+62 812 1111 2222", "Canggu", "pool, general", "750000"},
		{"Bali Kitchen Works", "+62 813 3333 4444", "Seminyak", "kitchen", ""},
		{"Duplicate Phone Co", "+62 812 1111 2222", "Ubud", "", ""}, // dropped
		{"", "+62 899 0000 0000", "", "", ""},                       // no name, dropped
	})

	mc := new(MockClient)
	ctx := context.Background()

	var created []*notionapi.PageCreateRequest
	mc.On("CreatePage", ctx, mock.AnythingOfType("*notionapi.PageCreateRequest")).
		Run(func(args mock.Arguments) {
			created = append(created, args.Get(1).(*notionapi.PageCreateRequest))
		}).
		Return(&notionapi.Page{ID: "new-page"}, nil).Twice()

	count, err := ImportXLSX(ctx, mc, "db-curated", path)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	mc.AssertExpectations(t)

	require.Len(t, created, 2)
	first := created[0].Properties

	tp, ok := first[PropName].(notionapi.TitleProperty)
	require.True(t, ok)
	assert.Equal(t, "Wayan Pool Service", tp.Title[0].Text.Content)

	pp, ok := first[PropPhone].(notionapi.PhoneNumberProperty)
	require.True(t, ok)
	assert.Equal(t, "+62 812 1111 2222", pp.PhoneNumber)

	sp, ok := first[PropStatus].(notionapi.StatusProperty)
	require.True(t, ok)
	assert.Equal(t, "Active", sp.Status.Name)

	msp, ok := first[PropSpecializations].(notionapi.MultiSelectProperty)
	require.True(t, ok)
	require.Len(t, msp.MultiSelect, 2)
	assert.Equal(t, "pool", msp.MultiSelect[0].Name)

	np, ok := first[PropDailyRate].(notionapi.NumberProperty)
	require.True(t, ok)
	assert.InDelta(t, 750000, np.Number, 0.1)

	second := created[1].Properties
	assert.NotContains(t, second, PropDailyRate)
}

func TestImportXLSXEmptySheet(t *testing.T) {
	path := writeTempXLSX(t, [][]string{
		{"Name", "Phone"},
	})

	mc := new(MockClient)
	count, err := ImportXLSX(context.Background(), mc, "db-curated", path)
	require.NoError(t, err)
	assert.Zero(t, count)
	mc.AssertExpectations(t)
}

func TestImportXLSXMissingFile(t *testing.T) {
	mc := new(MockClient)
	_, err := ImportXLSX(context.Background(), mc, "db-curated", "/nonexistent.xlsx")
	assert.Error(t, err)
}

func TestImportXLSXContextCancelled(t *testing.T) {
	path := writeTempXLSX(t, [][]string{
		{"Name"},
		{"Wayan Pool Service"},
	})

	mc := new(MockClient)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	count, err := ImportXLSX(ctx, mc, "db-curated", path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
	assert.Zero(t, count)
}

func TestImportXLSXWebsiteScheme(t *testing.T) {
	path := writeTempXLSX(t, [][]string{
		{"Name", "Website"},
		{"CV Sinar", "sinar.example.com"},
	})

	mc := new(MockClient)
	ctx := context.Background()

	mc.On("CreatePage", ctx, mock.MatchedBy(func(req *notionapi.PageCreateRequest) bool {
		up, ok := req.Properties[PropWebsite].(notionapi.URLProperty)
		return ok && up.URL == "https://sinar.example.com"
	})).Return(&notionapi.Page{ID: "new-page"}, nil).Once()

	count, err := ImportXLSX(ctx, mc, "db-curated", path)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	mc.AssertExpectations(t)
}
