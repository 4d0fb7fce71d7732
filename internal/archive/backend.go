package archive

import "github.com/wrenhollow/continuity/internal/models"

// Backend is an off-site mirror for archive day files. Writes are
// best-effort: a Backend failure never blocks or fails the local
// write in Archiver.Archive.
type Backend interface {
	Put(date string, day *models.ArchiveDay) error
}
