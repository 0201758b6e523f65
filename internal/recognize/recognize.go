// Package recognize runs optical recognition over rendered page images and
// returns positioned text blocks.
package recognize

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgallion1/scoreslice/internal/layout"
)

// ErrUnavailable marks a page the recognizer could not read. The page is
// classified from an empty block set instead of failing the document.
var ErrUnavailable = errors.New("recognition unavailable")

// RetryableError wraps transient recognizer failures.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return fmt.Sprintf("retryable: %v", e.Err) }
func (e *RetryableError) Unwrap() error { return e.Err }

// Image is one rendered page, PNG encoded.
type Image struct {
	Page   int
	Data   []byte
	Width  int
	Height int
}

// Recognizer turns a page image into text blocks.
type Recognizer interface {
	Recognize(ctx context.Context, img Image) ([]layout.TextBlock, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, img Image) ([]layout.TextBlock, error)

func (f RecognizerFunc) Recognize(ctx context.Context, img Image) ([]layout.TextBlock, error) {
	return f(ctx, img)
}
