package scoring

import "context"

// Provider turns image bytes into one comparable attractiveness score.
// Implementations return *Error on failure.
type Provider interface {
	Score(ctx context.Context, photo []byte) (float64, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, photo []byte) (float64, error)

func (f ProviderFunc) Score(ctx context.Context, photo []byte) (float64, error) {
	return f(ctx, photo)
}
