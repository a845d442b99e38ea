package database

import "errors"

// ErrCorruptStore is returned when the results store exists but cannot be decoded.
var ErrCorruptStore = errors.New("results store is corrupt")
