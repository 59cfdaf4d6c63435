// Package catalog turns the configured image selector into the ordered list of
// images a run will process.
package catalog

import "context"

// Wildcard selects every image of the pool.
const Wildcard = "*"

// Lister enumerates the images of the bound pool.
type Lister interface {
	ListImages(ctx context.Context) ([]string, error)
}

// IsWildcard reports whether selector is exactly ["*"].
func IsWildcard(selector []string) bool {
	return len(selector) == 1 && selector[0] == Wildcard
}

// Resolve returns the images named by selector. The wildcard returns the
// lister's enumeration order unchanged; explicit names are returned verbatim
// and are not checked against the pool.
func Resolve(ctx context.Context, l Lister, selector []string) ([]string, error) {
	if IsWildcard(selector) {
		return l.ListImages(ctx)
	}
	return append([]string(nil), selector...), nil
}
