package httpapi

import (
	"time"

	"github.com/AntonStoeckl/library-lending-go/app/features/query/loanhistory"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

const imagesPathPrefix = "/images/"

type bookDTO struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Genre           string    `json:"genre"`
	PublicationYear int       `json:"publication_year"`
	Image           string    `json:"image"`
	ImageURL        string    `json:"image_url"`
	IsBorrowed      bool      `json:"is_borrowed"`
	Version         uint      `json:"version"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toBookDTO(book lending.Book) bookDTO {
	dto := bookDTO{
		ID:              book.ID.String(),
		Title:           book.Title,
		Author:          book.Author,
		Genre:           book.Genre,
		PublicationYear: book.PublicationYear,
		Image:           book.ImageRef,
		IsBorrowed:      book.IsBorrowed,
		Version:         book.Version,
		CreatedAt:       book.CreatedAt,
		UpdatedAt:       book.UpdatedAt,
	}

	if book.ImageRef != "" {
		dto.ImageURL = imagesPathPrefix + book.ImageRef
	}

	return dto
}

func toBookDTOs(books []lending.Book) []bookDTO {
	dtos := make([]bookDTO, 0, len(books))
	for _, book := range books {
		dtos = append(dtos, toBookDTO(book))
	}

	return dtos
}

type loanEntryDTO struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	ReturnedAt *time.Time `json:"returned_at"`
	ReturnedBy *string    `json:"returned_by"`
}

type loanHistoryDTO struct {
	BookID     string         `json:"book_id"`
	BookExists bool           `json:"book_exists"`
	Count      int            `json:"count"`
	Entries    []loanEntryDTO `json:"entries"`
}

func toLoanHistoryDTO(history loanhistory.LoanHistory) loanHistoryDTO {
	entries := make([]loanEntryDTO, 0, len(history.Entries))

	for _, entry := range history.Entries {
		dto := loanEntryDTO{
			ID:         entry.ID.String(),
			UserID:     entry.UserID.String(),
			BorrowedAt: entry.BorrowedAt,
			ReturnedAt: entry.ReturnedAt,
		}

		if entry.ReturnedBy != nil {
			returnedBy := entry.ReturnedBy.String()
			dto.ReturnedBy = &returnedBy
		}

		entries = append(entries, dto)
	}

	return loanHistoryDTO{
		BookID:     history.BookID.String(),
		BookExists: history.BookExists,
		Count:      history.Count,
		Entries:    entries,
	}
}
