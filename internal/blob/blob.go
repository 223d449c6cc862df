// Package blob defines the object store that holds record bodies. A body is
// stored under a key and addressed afterwards by the locator returned from
// Upload.
package blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned when no object exists for a locator.
var ErrNotFound = errors.New("blob not found")

// Object describes a stored body for the orphan reconciler.
type Object struct {
	Key        string
	ModifiedAt time.Time
}

// Store persists record bodies. Delete is idempotent.
type Store interface {
	Upload(ctx context.Context, key, text string) (locator string, err error)
	Get(ctx context.Context, locator string) (string, error)
	Update(ctx context.Context, key, text string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]Object, error)
}

// Locator formats scheme://container/key.
func Locator(scheme, container, key string) string {
	return scheme + "://" + container + "/" + key
}

// ParseLocator splits a locator built by Locator.
func ParseLocator(locator string) (scheme, container, key string, err error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", "", "", fmt.Errorf("parse locator: %w", err)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Scheme == "" || u.Host == "" || key == "" {
		return "", "", "", fmt.Errorf("parse locator: incomplete %q", locator)
	}
	return u.Scheme, u.Host, key, nil
}
