package photos

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

// InlineStore keeps photos as base64 text directly on the match row.
type InlineStore struct{}

func NewInlineStore() *InlineStore {
	return &InlineStore{}
}

func (InlineStore) Put(_ context.Context, _ string, photo *Upload) (string, error) {
	if photo == nil || len(photo.Data) == 0 {
		return "", fmt.Errorf("empty photo")
	}
	return base64.StdEncoding.EncodeToString(photo.Data), nil
}

// Get accepts bare base64 as well as data URLs ("data:image/png;base64,...").
func (InlineStore) Get(_ context.Context, ref string) ([]byte, error) {
	if i := strings.Index(ref, ";base64,"); strings.HasPrefix(ref, "data:image/") && i >= 0 {
		ref = ref[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRef, err)
	}
	if len(data) == 0 {
		return nil, ErrInvalidRef
	}
	return data, nil
}

// Delete is a no-op; the bytes live on the match row.
func (InlineStore) Delete(context.Context, string) error {
	return nil
}
