package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hextactics.gg/internal/persistence/indexdb"
	"hextactics.gg/internal/sim/catalogs"
	"hextactics.gg/internal/sim/lobby"
	"hextactics.gg/internal/sim/tuning"
)

type runtimeIndex interface {
	lobby.Recorder
	Close() error
	UpsertCatalog(configDir string, units *catalogs.UnitCatalog, tune tuning.Tuning) error
	RecordArchive(matchID, path string)
	Stats() indexdb.Stats
}

func openRuntimeIndex(dataDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("HT_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "matches.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported HT_INDEX_BACKEND: %s", backend)
	}
}
