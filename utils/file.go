package utils

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"face-match-system/photos"
)

var (
	ErrNoPhoto          = errors.New("no photo uploaded")
	ErrPhotoTooLarge    = errors.New("photo exceeds the upload limit")
	ErrUnsupportedImage = errors.New("only .png, .jpg and .jpeg format allowed")
)

var allowedImages = map[string][]string{
	".jpg":  {"image/jpeg", "image/jpg"},
	".jpeg": {"image/jpeg", "image/jpg"},
	".png":  {"image/png"},
}

// ReadPhoto validates an uploaded image by extension, declared content type and size,
// then reads it into memory. A nil header yields ErrNoPhoto.
func ReadPhoto(fileHeader *multipart.FileHeader, limit int64) (*photos.Upload, error) {
	if fileHeader == nil {
		return nil, ErrNoPhoto
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	types, ok := allowedImages[ext]
	if !ok {
		return nil, ErrUnsupportedImage
	}
	contentType := strings.ToLower(strings.TrimSpace(fileHeader.Header.Get("Content-Type")))
	if !contains(types, contentType) {
		return nil, ErrUnsupportedImage
	}
	if limit > 0 && fileHeader.Size > limit {
		return nil, ErrPhotoTooLarge
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	var r io.Reader = file
	if limit > 0 {
		r = io.LimitReader(file, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, ErrPhotoTooLarge
	}
	if len(data) == 0 {
		return nil, ErrNoPhoto
	}

	return &photos.Upload{
		Data:        data,
		ContentType: contentType,
		Filename:    fileHeader.Filename,
	}, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
