package models

import "errors"

var (
	ErrEmptyContentPool = errors.New("no active content items found")
	ErrNoContent        = errors.New("no content available for recipient")
)
