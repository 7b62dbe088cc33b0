package deps

import (
	"time"

	"github.com/shelfmark/shelfmark/internal/backup"
	"github.com/shelfmark/shelfmark/internal/bookmarks"
	"github.com/shelfmark/shelfmark/internal/logger"
)

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string

	Service          *bookmarks.Service // repository interface the UI drives
	Store            bookmarks.Store    // raw store, for export/import engines
	Backup           *backup.Manager    // mirrored backup subsystem
	LargeImportBytes int64              // imports above this stream instead of parsing
}
