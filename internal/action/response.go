package action

import (
	"encoding/json"
	"errors"
	"net/http"
)

const (
	DefaultLimit = 10
	DefaultPage  = 1
	MaxLimit     = 100
	// MaxPage keeps (page-1)*limit well inside a 32-bit offset.
	MaxPage = 1_000_000
)

// Result is the response body of every mutation.
type Result struct {
	Success bool         `json:"success"`
	Error   *string      `json:"error"`
	Fields  []FieldError `json:"fields,omitempty"`
	Data    any          `json:"data"`
}

// Ok wraps data in a successful Result.
func Ok(data any) Result {
	return Result{Success: true, Data: data}
}

// Failure converts any error into the uniform failed Result.
func Failure(err error) Result {
	msg := err.Error()
	res := Result{Success: false, Error: &msg}
	var ve *ValidationError
	if errors.As(err, &ve) {
		res.Fields = ve.Fields
	}
	return res
}

// Page is the pagination envelope returned by every list read. It is always
// well formed, including on failure.
type Page[T any] struct {
	Data       []T    `json:"data"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	TotalPages int    `json:"total_pages"`
	Error      string `json:"error,omitempty"`
}

// NewPage builds a page and derives total_pages = ceil(total/limit).
func NewPage[T any](data []T, total, page, limit int) Page[T] {
	if data == nil {
		data = []T{}
	}
	return Page[T]{Data: data, Total: total, Page: page, Limit: limit, TotalPages: TotalPages(total, limit)}
}

// FailedPage is the degraded envelope rendered as an empty state.
func FailedPage[T any](err error) Page[T] {
	return Page[T]{Data: []T{}, Total: 0, Page: DefaultPage, Limit: DefaultLimit, TotalPages: 0, Error: err.Error()}
}

func TotalPages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// Pagination is a normalized page/limit pair.
type Pagination struct {
	Page  int
	Limit int
}

// NewPagination applies defaults to missing or out-of-range values.
func NewPagination(page, limit int) Pagination {
	if page < 1 {
		page = DefaultPage
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Pagination{Page: page, Limit: limit}
}

func (p Pagination) Offset() int { return (p.Page - 1) * p.Limit }

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteResult writes res with a status derived from err (nil for success).
func WriteResult(w http.ResponseWriter, successStatus int, data any, err error) {
	if err != nil {
		WriteJSON(w, Status(err), Failure(err))
		return
	}
	WriteJSON(w, successStatus, Ok(data))
}
