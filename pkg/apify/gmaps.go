package apify

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cassidypignatello/bali-renovation-os/internal/geo"
	"github.com/cassidypignatello/bali-renovation-os/internal/match"
	"github.com/cassidypignatello/bali-renovation-os/internal/worker"
)

// GmapsActorID is the Google Maps scraper actor this pipeline runs.
const GmapsActorID = "compass/crawler-google-places"

// Per-run cost caps. Apify bills per crawled place, so both the result
// count per search and the number of searches are bounded.
const (
	MaxResultsPerSearch = 20
	MaxSearchesPerRun   = 5
)

// searchQueries maps each specialization to the Indonesian/English query
// mix that surfaces Bali contractors for it.
var searchQueries = map[string][]string{
	"pool": {
		"Kontraktor Kolam Renang Canggu",
		"Pool Construction Bali",
		"Swimming Pool Builder Seminyak",
	},
	"bathroom": {
		"Renovasi Kamar Mandi Bali",
		"Bathroom Renovation Canggu",
		"Kontraktor Kamar Mandi Denpasar",
	},
	"kitchen": {
		"Renovasi Dapur Bali",
		"Kitchen Renovation Seminyak",
		"Kitchen Set Denpasar",
	},
	match.GeneralSpecialization: {
		"Kontraktor Bangunan Bali",
		"Construction Company Canggu",
		"Renovation Contractor Bali",
	},
}

// SearchQueries returns the query list for the specialization, falling
// back to the general contractor queries for unknown tags.
func SearchQueries(specialization string) []string {
	if qs, ok := searchQueries[strings.ToLower(specialization)]; ok {
		return qs
	}
	return searchQueries[match.GeneralSpecialization]
}

// SearchInput is the actor input. Image, review and question crawling are
// disabled: each adds per-place cost and nothing downstream reads them.
type SearchInput struct {
	SearchStrings            []string `json:"searchStringsArray"`
	LocationQuery            string   `json:"locationQuery"`
	MaxCrawledPlacesPerQuery int      `json:"maxCrawledPlacesPerSearch"`
	Language                 string   `json:"language"`
	PlaceMinimumStars        string   `json:"placeMinimumStars,omitempty"`
	Website                  string   `json:"website"`
	SkipClosedPlaces         bool     `json:"skipClosedPlaces"`
	SearchMatching           string   `json:"searchMatching"`
	MaxImages                int      `json:"maxImages"`
	MaxReviews               int      `json:"maxReviews"`
	MaxQuestions             int      `json:"maxQuestions"`
	ScrapeContacts           bool     `json:"scrapeContacts"`
	ScrapeDirectories        bool     `json:"scrapeDirectories"`
	ScrapeTableReservation   bool     `json:"scrapeTableReservationProvider"`
	IncludeWebResults        bool     `json:"includeWebResults"`
}

// NewSearchInput builds a cost-capped actor input for the specialization.
// minRating filters at the source; 0 disables the filter.
func NewSearchInput(specialization, location string, maxResults int, minRating float64) SearchInput {
	queries := SearchQueries(specialization)
	if len(queries) > MaxSearchesPerRun {
		queries = queries[:MaxSearchesPerRun]
	}
	if maxResults <= 0 || maxResults > MaxResultsPerSearch {
		maxResults = MaxResultsPerSearch
	}
	if location == "" {
		location = "Bali, Indonesia"
	}

	in := SearchInput{
		SearchStrings:            queries,
		LocationQuery:            location,
		MaxCrawledPlacesPerQuery: maxResults,
		Language:                 "en",
		Website:                  "withWebsite",
		SkipClosedPlaces:         true,
		SearchMatching:           "all",
	}
	if minRating > 0 {
		in.PlaceMinimumStars = strconv.FormatFloat(minRating, 'f', -1, 64)
	}
	return in
}

// Place is one dataset item from the Google Maps actor.
type Place struct {
	Title        string   `json:"title"`
	TotalScore   float64  `json:"totalScore"`
	ReviewsCount int      `json:"reviewsCount"`
	Street       string   `json:"street"`
	City         string   `json:"city"`
	State        string   `json:"state"`
	CountryCode  string   `json:"countryCode"`
	Website      string   `json:"website"`
	Phone        string   `json:"phone"`
	CategoryName string   `json:"categoryName"`
	Categories   []string `json:"categories"`
	URL          string   `json:"url"`
	ImagesCount  int      `json:"imagesCount"`
	Location     *LatLng  `json:"location"`
}

// LatLng is the nested coordinate pair on a dataset item.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// specializationKeywords classifies a place from its title and category
// text. A place can carry several tags; none at all means general.
var specializationKeywords = map[string][]string{
	"pool":     {"pool", "kolam renang", "kolam", "swimming"},
	"bathroom": {"bathroom", "kamar mandi", "sanitary", "plumbing", "toilet"},
	"kitchen":  {"kitchen", "dapur", "kitchen set", "cabinet"},
}

// InferSpecializations derives specialization tags from the place's title
// and categories.
func InferSpecializations(p *Place) []string {
	text := strings.ToLower(p.Title + " " + p.CategoryName + " " + strings.Join(p.Categories, " "))

	var tags []string
	for _, tag := range []string{"pool", "bathroom", "kitchen"} {
		for _, kw := range specializationKeywords[tag] {
			if strings.Contains(text, kw) {
				tags = append(tags, tag)
				break
			}
		}
	}
	if len(tags) == 0 {
		tags = []string{match.GeneralSpecialization}
	}
	return tags
}

// placeID extracts the Google place ID from the maps URL's
// query_place_id parameter.
func placeID(url string) string {
	const marker = "query_place_id="
	i := strings.Index(url, marker)
	if i < 0 {
		return ""
	}
	id := url[i+len(marker):]
	if j := strings.Index(id, "&"); j >= 0 {
		id = id[:j]
	}
	return id
}

// TransformPlace converts a dataset item into a worker record. The area
// comes from the listed city when present, otherwise from the nearest
// known Bali area centroid, otherwise "Bali".
func TransformPlace(p *Place, now time.Time) *worker.Record {
	rec := &worker.Record{
		BusinessName:     strings.TrimSpace(p.Title),
		Phone:            strings.TrimSpace(p.Phone),
		Website:          p.Website,
		GmapsPlaceID:     placeID(p.URL),
		GmapsURL:         p.URL,
		GmapsReviewCount: p.ReviewsCount,
		GmapsPhotosCount: p.ImagesCount,
		GmapsCategories:  p.Categories,
		Specializations:  InferSpecializations(p),
		SourceTier:       worker.TierGoogleMaps,
		IsActive:         true,
	}

	if p.TotalScore > 0 {
		score := p.TotalScore
		rec.GmapsRating = &score
	}

	var parts []string
	for _, s := range []string{p.Street, p.City, p.State} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	rec.Address = strings.Join(parts, ", ")

	var lat, lng float64
	if p.Location != nil {
		lat, lng = p.Location.Lat, p.Location.Lng
	}
	if lat != 0 || lng != 0 {
		rec.Latitude = &lat
		rec.Longitude = &lng
	}

	switch {
	case strings.TrimSpace(p.City) != "":
		rec.Location = strings.TrimSpace(p.City)
	case rec.Latitude != nil:
		if area := geo.NearestArea(lat, lng); area != "" {
			rec.Location = area
		} else {
			rec.Location = "Bali"
		}
	default:
		rec.Location = "Bali"
	}

	scraped := now.UTC()
	rec.LastScrapedAt = &scraped
	return rec
}

// GmapsScraper runs the Google Maps actor and converts its dataset into
// worker records.
type GmapsScraper struct {
	client       Client
	maxResults   int
	maxSearches  int
	minRating    float64
	pollInterval time.Duration
	runTimeout   time.Duration
	now          func() time.Time
}

// GmapsOption configures the scraper.
type GmapsOption func(*GmapsScraper)

// WithMaxResults caps crawled places per search query.
func WithMaxResults(n int) GmapsOption {
	return func(s *GmapsScraper) { s.maxResults = n }
}

// WithMinRating filters places below the star threshold at the source.
func WithMinRating(r float64) GmapsOption {
	return func(s *GmapsScraper) { s.minRating = r }
}

// WithMaxSearches caps search queries per run, below the hard limit.
func WithMaxSearches(n int) GmapsOption {
	return func(s *GmapsScraper) {
		if n > 0 && n < MaxSearchesPerRun {
			s.maxSearches = n
		}
	}
}

// WithPolling sets the run poll interval and overall timeout.
func WithPolling(interval, timeout time.Duration) GmapsOption {
	return func(s *GmapsScraper) {
		s.pollInterval = interval
		s.runTimeout = timeout
	}
}

// NewGmapsScraper creates a scraper on top of the Apify client.
func NewGmapsScraper(client Client, opts ...GmapsOption) *GmapsScraper {
	s := &GmapsScraper{
		client:       client,
		maxResults:   MaxResultsPerSearch,
		maxSearches:  MaxSearchesPerRun,
		minRating:    4.0,
		pollInterval: 2 * time.Second,
		runTimeout:   5 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scrape runs one actor run for the specialization and returns the
// transformed records.
func (s *GmapsScraper) Scrape(ctx context.Context, specialization, location string) ([]*worker.Record, error) {
	input := NewSearchInput(specialization, location, s.maxResults, s.minRating)
	if s.maxSearches > 0 && len(input.SearchStrings) > s.maxSearches {
		input.SearchStrings = input.SearchStrings[:s.maxSearches]
	}

	run, err := RunAndWait(ctx, s.client, GmapsActorID, input,
		WithPollInterval(s.pollInterval),
		WithRunTimeout(s.runTimeout))
	if err != nil {
		return nil, err
	}

	var places []*Place
	if err := s.client.DatasetItems(ctx, run.DefaultDatasetID, &places); err != nil {
		return nil, err
	}

	now := s.now()
	records := make([]*worker.Record, 0, len(places))
	for _, p := range places {
		if strings.TrimSpace(p.Title) == "" {
			continue
		}
		records = append(records, TransformPlace(p, now))
	}

	zap.L().Info("google maps scrape complete",
		zap.String("specialization", specialization),
		zap.String("location", location),
		zap.Int("places", len(places)),
		zap.Int("records", len(records)))

	return records, nil
}
