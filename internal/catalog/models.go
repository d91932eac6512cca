package catalog

import "github.com/dfennessey/book-recommender-indexer/internal/push"

// bookRequest is the PUT /books/{id} body. The book ID travels in the URL, so
// it is not repeated here.
type bookRequest struct {
	WorkInternalID  string          `json:"work_internal_id"`
	WorkID          int64           `json:"work_id"`
	PublishDate     *push.Timestamp `json:"publish_date"`
	OriginalTitle   *string         `json:"original_title"`
	Author          string          `json:"author"`
	AuthorURL       string          `json:"author_url"`
	NumRatings      *int64          `json:"num_ratings"`
	NumReviews      *int64          `json:"num_reviews"`
	AvgRating       float64         `json:"avg_rating"`
	RatingHistogram []int64         `json:"rating_histogram"`
	BookURL         string          `json:"book_url"`
	BookTitle       string          `json:"book_title"`
	BookDescription *string         `json:"book_description"`
	NumPages        *int            `json:"num_pages"`
	Language        *string         `json:"language"`
	ISBN            *string         `json:"isbn"`
	ISBN13          *string         `json:"isbn13"`
	ASIN            *string         `json:"asin"`
	Series          *string         `json:"series"`
	Genres          []string        `json:"genres"`
	ScrapeTime      push.Timestamp  `json:"scrape_time"`
}

func newBookRequest(book push.BookV1) bookRequest {
	genres := book.Genres
	if genres == nil {
		genres = []string{}
	}
	return bookRequest{
		WorkInternalID:  book.WorkInternalID,
		WorkID:          book.WorkID,
		PublishDate:     book.PublishDate,
		OriginalTitle:   book.OriginalTitle,
		Author:          book.Author,
		AuthorURL:       book.AuthorURL,
		NumRatings:      book.NumRatings,
		NumReviews:      book.NumReviews,
		AvgRating:       book.AvgRating,
		RatingHistogram: book.RatingHistogram,
		BookURL:         book.BookURL,
		BookTitle:       book.BookTitle,
		BookDescription: book.BookDescription,
		NumPages:        book.NumPages,
		Language:        book.Language,
		ISBN:            book.ISBN,
		ISBN13:          book.ISBN13,
		ASIN:            book.ASIN,
		Series:          book.Series,
		Genres:          genres,
		ScrapeTime:      book.ScrapeTime,
	}
}

type reviewItem struct {
	UserID     int64          `json:"user_id"`
	BookID     int64          `json:"book_id"`
	UserRating int            `json:"user_rating"`
	DateRead   push.Timestamp `json:"date_read"`
	ScrapeTime push.Timestamp `json:"scrape_time"`
}

type reviewBatchRequest struct {
	UserReviews []reviewItem `json:"user_reviews"`
}

type reviewBatchResponse struct {
	Indexed int `json:"indexed"`
}

type bookExistsRequest struct {
	BookIDs []int64 `json:"book_ids"`
}

type bookExistsResponse struct {
	BookIDs []int64 `json:"book_ids"`
}

type userBooksResponse struct {
	BookIDs []int64 `json:"book_ids"`
}

type bookPopularityResponse struct {
	UserCount int64 `json:"user_count"`
}
