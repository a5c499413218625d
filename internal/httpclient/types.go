package httpclient

import (
	"fmt"
	"net/http"
	"regexp"
)

// HTTPError represents an HTTP error
type HTTPError struct {
	StatusCode int
	Message    string
	URL        string
}

// Error returns the error message
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(statusCode int, url, message string) error {
	return &HTTPError{
		StatusCode: statusCode,
		URL:        url,
		Message:    message,
	}
}

// Response is a fully read HTTP response body with its headers
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

var nextLinkPattern = regexp.MustCompile(`<([^>]+)>\s*;\s*rel="?next"?`)

// NextLink returns the target of the rel="next" entry of the Link header,
// or the empty string when there is none
func (r *Response) NextLink() string {
	for _, link := range r.Header.Values("Link") {
		if m := nextLinkPattern.FindStringSubmatch(link); m != nil {
			return m[1]
		}
	}
	return ""
}
