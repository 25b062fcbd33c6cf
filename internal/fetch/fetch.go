// Package fetch retrieves raw page markup. Two strategies exist: a static
// net/http fetcher and a headless-browser renderer. Fetch errors are
// transport-level faults only; a reachable page that looks bad is returned
// as data for classification, never as an error.
package fetch

import (
	"context"

	"github.com/justscrape/justscrape/internal/model"
)

// Page is the raw outcome of one fetch attempt.
type Page struct {
	URL        string
	HTML       string
	StatusCode int
	Method     model.Method

	// EncodingOK is false when the body could not be safely decoded to
	// text. The retrieval still succeeded at the transport level, so this
	// surfaces through classification rather than as an error.
	EncodingOK bool
}

// Fetcher retrieves raw markup for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
	Method() model.Method
}
