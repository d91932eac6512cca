package push

import (
	"fmt"
	"strings"
	"time"
)

// Timestamp accepts the loose formats the scrapers emit (RFC3339 with or
// without sub-seconds, space-separated, or bare dates) and renders RFC3339.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalJSON parses the first layout that matches.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}

// MarshalJSON renders RFC3339, which the downstream API expects.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.UTC().Format(time.RFC3339) + `"`), nil
}

// BookV1 is the payload published on scraper-book-v1.
type BookV1 struct {
	// Work details
	WorkInternalID string     `json:"work_internal_id" validate:"required"`
	WorkID         int64      `json:"work_id"          validate:"required"`
	PublishDate    *Timestamp `json:"publish_date"`
	OriginalTitle  *string    `json:"original_title"`
	Author         string     `json:"author"     validate:"required"`
	AuthorURL      string     `json:"author_url" validate:"required"`

	// Work statistics
	NumRatings      *int64  `json:"num_ratings"`
	NumReviews      *int64  `json:"num_reviews"`
	AvgRating       float64 `json:"avg_rating"`
	RatingHistogram []int64 `json:"rating_histogram"`

	// Book information
	BookID          int64     `json:"book_id"    validate:"required,gt=0"`
	BookURL         string    `json:"book_url"   validate:"required"`
	BookTitle       string    `json:"book_title" validate:"required"`
	BookDescription *string   `json:"book_description"`
	NumPages        *int      `json:"num_pages"`
	Language        *string   `json:"language"`
	ISBN            *string   `json:"isbn"`
	ISBN13          *string   `json:"isbn13"`
	ASIN            *string   `json:"asin"`
	Series          *string   `json:"series"`
	Genres          []string  `json:"genres"`
	ScrapeTime      Timestamp `json:"scrape_time" validate:"required"`
}

// UserReviewV1 is the payload published on scraper-user-review-v1.
type UserReviewV1 struct {
	UserID     int64     `json:"user_id" validate:"required,gt=0"`
	BookID     int64     `json:"book_id" validate:"required,gt=0"`
	UserRating int       `json:"user_rating" validate:"gte=0,lte=5"`
	DateRead   Timestamp `json:"date_read"   validate:"required"`
	ScrapeTime Timestamp `json:"scrape_time" validate:"required"`
}

// ProfileV1 is the payload published on scraper-profile-v1.
type ProfileV1 struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}
