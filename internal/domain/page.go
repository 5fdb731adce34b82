package domain

import "net/http"

// Page is a fetched HTML document
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	Cookies    []*http.Cookie
}
