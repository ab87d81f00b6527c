package main

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"hextactics.gg/internal/persistence/archive"
	persistlog "hextactics.gg/internal/persistence/log"
	"hextactics.gg/internal/sim/lobby"
)

// fanoutRecorder feeds turn and result records to the JSONL logs, the index
// and the archive writer. The lobby calls it under a match lock, so archive
// writes are handed to a goroutine.
type fanoutRecorder struct {
	log      *zap.Logger
	turns    *persistlog.TurnLog
	results  *persistlog.ResultLog
	idx      runtimeIndex
	dataDir  string
	seed     int64
	archives bool

	archCh      chan lobby.ResultRecord
	wg          sync.WaitGroup
	dropArchive atomic.Uint64
	archived    atomic.Uint64
}

type recorderConfig struct {
	Logger  *zap.Logger
	DataDir string
	Seed    int64
	// ArchiveOnFinish writes a history archive for every match that started.
	ArchiveOnFinish bool
	Index           runtimeIndex
}

func newFanoutRecorder(ctx context.Context, cfg recorderConfig) *fanoutRecorder {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &fanoutRecorder{
		log:      logger,
		turns:    persistlog.NewTurnLog(cfg.DataDir),
		results:  persistlog.NewResultLog(cfg.DataDir),
		idx:      cfg.Index,
		dataDir:  cfg.DataDir,
		seed:     cfg.Seed,
		archives: cfg.ArchiveOnFinish,
		archCh:   make(chan lobby.ResultRecord, 64),
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.archiveLoop(ctx)
	}()
	return r
}

func (r *fanoutRecorder) RecordTurn(rec lobby.TurnRecord) {
	if err := r.turns.WriteTurn(rec); err != nil {
		r.log.Warn("turn log", zap.String("match_id", rec.MatchID), zap.Error(err))
	}
	if r.idx != nil {
		r.idx.RecordTurn(rec)
	}
}

func (r *fanoutRecorder) RecordResult(rec lobby.ResultRecord) {
	if err := r.turns.EndMatch(rec.MatchID); err != nil {
		r.log.Warn("close turn log", zap.String("match_id", rec.MatchID), zap.Error(err))
	}
	if err := r.results.WriteResult(rec); err != nil {
		r.log.Warn("result log", zap.String("match_id", rec.MatchID), zap.Error(err))
	}
	if r.idx != nil {
		r.idx.RecordResult(rec)
	}
	if !r.archives || len(rec.History) == 0 {
		return
	}
	select {
	case r.archCh <- rec:
	default:
		r.dropArchive.Add(1)
		r.log.Warn("archive queue full", zap.String("match_id", rec.MatchID))
	}
}

func (r *fanoutRecorder) archiveLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// Drain what is already queued before exiting.
			for {
				select {
				case rec := <-r.archCh:
					r.writeArchive(rec)
				default:
					return
				}
			}
		case rec := <-r.archCh:
			r.writeArchive(rec)
		}
	}
}

func (r *fanoutRecorder) writeArchive(rec lobby.ResultRecord) {
	path, ok, err := archive.ArchiveMatch(r.dataDir, rec, r.seed)
	if err != nil {
		r.log.Warn("archive match", zap.String("match_id", rec.MatchID), zap.Error(err))
		return
	}
	if !ok {
		return
	}
	r.archived.Add(1)
	if r.idx != nil {
		r.idx.RecordArchive(rec.MatchID, path)
	}
}

// Close waits for the archive writer (its context must already be done) and
// closes the logs.
func (r *fanoutRecorder) Close() {
	r.wg.Wait()
	_ = r.turns.Close()
	_ = r.results.Close()
}
