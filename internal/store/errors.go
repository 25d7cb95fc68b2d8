package store

import "errors"

var errShortMetadata = errors.New("store: truncated metadata encoding")
