// Package extractors provides format-specific document extractors and a
// registry that dispatches on the declared format. An undeclared or
// unsupported format fails closed with domain.ErrUnsupportedFormat.
package extractors
