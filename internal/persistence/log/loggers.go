package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"hextactics.gg/internal/sim/lobby"
)

var ErrBadMatchID = errors.New("match id is not a valid file name")

// stream is one append-only JSONL file behind a zstd encoder. Every append
// flushes the encoder. Reopening a file appends a new zstd frame, which
// readers see as one stream.
type stream struct {
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

func openStream(path string) (*stream, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &stream{f: f, enc: enc, w: bufio.NewWriterSize(enc, 32*1024)}, nil
}

func (s *stream) append(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return err
	}
	if err := s.w.Flush(); err != nil {
		return err
	}
	return s.enc.Flush()
}

func (s *stream) close() error {
	err := s.w.Flush()
	if cerr := s.enc.Close(); err == nil {
		err = cerr
	}
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// TurnFile is where the turn log of matchID lives under dir.
func TurnFile(dir, matchID string) string {
	return filepath.Join(dir, matchID+".jsonl.zst")
}

// TurnLog keeps one file per match: turns/<match_id>.jsonl.zst, one line per
// finished turn. A match's file stays open until EndMatch.
type TurnLog struct {
	dir string

	mu   sync.Mutex
	open map[string]*stream
}

func NewTurnLog(dataDir string) *TurnLog {
	return &TurnLog{dir: filepath.Join(dataDir, "turns"), open: map[string]*stream{}}
}

func (l *TurnLog) Dir() string { return l.dir }

func (l *TurnLog) WriteTurn(rec lobby.TurnRecord) error {
	if rec.MatchID == "" || filepath.Base(rec.MatchID) != rec.MatchID || rec.MatchID == "." || rec.MatchID == ".." {
		return fmt.Errorf("%w: %q", ErrBadMatchID, rec.MatchID)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.open[rec.MatchID]
	if s == nil {
		var err error
		if s, err = openStream(TurnFile(l.dir, rec.MatchID)); err != nil {
			return err
		}
		l.open[rec.MatchID] = s
	}
	return s.append(rec)
}

// EndMatch closes the file of matchID. Later turns for it reopen and append.
func (l *TurnLog) EndMatch(matchID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.open[matchID]
	if s == nil {
		return nil
	}
	delete(l.open, matchID)
	return s.close()
}

// OpenMatches lists the match ids with an open file, sorted.
func (l *TurnLog) OpenMatches() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.open))
	for id := range l.open {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (l *TurnLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var errs []error
	for id, s := range l.open {
		if err := s.close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
		delete(l.open, id)
	}
	return errors.Join(errs...)
}

// ResultLog appends one line per ended match to
// results/results-YYYY-MM-DD.jsonl.zst (UTC days).
type ResultLog struct {
	dir string
	now func() time.Time

	mu  sync.Mutex
	day string
	cur *stream
}

func NewResultLog(dataDir string) *ResultLog {
	return &ResultLog{dir: filepath.Join(dataDir, "results"), now: time.Now}
}

func (l *ResultLog) WriteResult(rec lobby.ResultRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	day := l.now().UTC().Format("2006-01-02")
	if day != l.day || l.cur == nil {
		if l.cur != nil {
			if err := l.cur.close(); err != nil {
				return err
			}
			l.cur = nil
		}
		s, err := openStream(filepath.Join(l.dir, "results-"+day+".jsonl.zst"))
		if err != nil {
			return err
		}
		l.cur, l.day = s, day
	}
	return l.cur.append(rec)
}

func (l *ResultLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cur == nil {
		return nil
	}
	err := l.cur.close()
	l.cur = nil
	return err
}

// ReadLines decompresses a log file and calls fn for each JSONL line.
func ReadLines(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := fn(sc.Bytes()); err != nil {
			return err
		}
	}
	return sc.Err()
}
