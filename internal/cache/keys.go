package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("zenlearn:job:%s", jobID)
}

func RateLimitKey(clientKey string) string {
	return fmt.Sprintf("zenlearn:ratelimit:%s", clientKey)
}
