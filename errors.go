package deteval

import "errors"

// Sentinel errors for conditions callers may need to handle differently.
var (
	// ErrInvalidConfig indicates a threshold outside [0, 1] or an unknown
	// matching mode.
	ErrInvalidConfig = errors.New("deteval: invalid config")

	// ErrEmptyDataset indicates the dataset contains no images.
	ErrEmptyDataset = errors.New("deteval: empty dataset")

	// ErrDuplicateImage indicates two images share an ID.
	ErrDuplicateImage = errors.New("deteval: duplicate image id")
)
