package errorutil

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every NotFoundError
var ErrNotFound = errors.New("place not found")

// NotFoundError reports a place query that neither geocoding nor the
// by-name lookup could resolve
type NotFoundError struct {
	Query string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("place %q not found", e.Query)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Kind groups errors by how the presentation layer should treat them
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidQuery
	KindNotFound
	KindTimeout
	KindHTTP
	KindNetwork
	KindInvalidResponse
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindInvalidQuery:
		return "invalid_query"
	case KindNotFound:
		return "not_found"
	case KindTimeout:
		return "timeout"
	case KindHTTP:
		return "http_error"
	case KindNetwork:
		return "network_error"
	case KindInvalidResponse:
		return "invalid_response"
	case KindStorage:
		return "storage_unavailable"
	default:
		return "unknown"
	}
}

// KindOf classifies err into the error taxonomy
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var (
		queryErr   *QueryError
		timeoutErr *TimeoutError
		httpErr    *HTTPError
		netErr     *NetworkError
		invalidErr *InvalidResponseError
		storageErr *StorageError
	)

	switch {
	case errors.As(err, &queryErr):
		return KindInvalidQuery
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.As(err, &timeoutErr):
		return KindTimeout
	case errors.As(err, &httpErr):
		return KindHTTP
	case errors.As(err, &netErr):
		return KindNetwork
	case errors.As(err, &invalidErr):
		return KindInvalidResponse
	case errors.As(err, &storageErr):
		return KindStorage
	}
	return KindUnknown
}

// UserMessage returns a human-readable cause. "Not found" and invalid input
// point the user at their query; everything else suggests trying again later.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindInvalidQuery:
		var queryErr *QueryError
		errors.As(err, &queryErr)
		return queryErr.Reason
	case KindNotFound:
		return "Place not found. Check the spelling and try again."
	case KindTimeout:
		return "The weather service did not respond in time. Please try again shortly."
	case KindHTTP:
		var httpErr *HTTPError
		errors.As(err, &httpErr)
		if httpErr.StatusCode == 401 || httpErr.StatusCode == 403 {
			return "The weather service rejected the request. Please try again later."
		}
		return "The weather service is temporarily unavailable. Please try again later."
	case KindNetwork:
		return "Could not reach the weather service. Check the connection and try again."
	case KindInvalidResponse:
		return "The weather service returned unexpected data. Please try again later."
	default:
		return "Could not load weather data."
	}
}
