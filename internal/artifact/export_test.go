package artifact

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

func (s *Store) ReactionExists(jobID uuid.UUID) bool {
	_, err := os.Stat(filepath.Join(s.reactionsDir, ReactionName(jobID)))
	return err == nil
}
