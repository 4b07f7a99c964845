package driven

import "context"

// EmbeddingService turns text into vectors. The reconciler asks it for a
// title vector and a chunk vector for every record it writes, and search
// uses it to embed the query for the vector half of a hybrid search.
type EmbeddingService interface {
	// Embed returns the vector for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the vector length, or 0 when the provider decides.
	// A non-zero value must equal the index vector dimensions.
	Dimensions() int

	// ModelName is the model or deployment the vectors come from.
	ModelName() string

	// Ping checks that the provider answers.
	Ping(ctx context.Context) error

	Close() error
}
