package ai

import "github.com/priyadarshi7/ZenLearn/pkg/models"

// Aliases of the provider failure classes so callers only import this package.
var (
	ErrProviderUnavailable = models.ErrProviderUnavailable
	ErrInferenceTimeout    = models.ErrInferenceTimeout
	ErrInvalidResponse     = models.ErrInvalidResponse
)
