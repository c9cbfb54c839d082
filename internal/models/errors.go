package models

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrAssetMissing      = errors.New("watermark asset missing")
	ErrDecode            = errors.New("decode error")
	ErrEncoding          = errors.New("encoding error")
	ErrPersistence       = errors.New("persistence error")
	ErrReportNotFound    = errors.New("report not found")
	ErrImageNotFound     = errors.New("report image not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNoImagesStored    = errors.New("no images stored")
)
