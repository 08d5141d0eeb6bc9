// Package rescache persists solved (n, r, state) results so repeated large-n
// queries survive process restarts. One append-only text file per (n, r)
// pair:
//
//	n=<horizon>
//	r=<account count>
//
//	account1, ..., account<r>, expectation, best_action
//	<int>, ..., <int>, <float>, <index or "null">
//
// Ratings and the expectation are stored in integer-rating units for exact
// reproducibility. The first writer for a state wins; later appends for the
// same state are silent no-ops. Malformed rows and header mismatches are
// warnings, never fatal: the affected states are simply recomputed.
package rescache

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash"
	"github.com/rs/zerolog/log"

	"github.com/pyran19/multi-account/dp"
	"github.com/pyran19/multi-account/state"
)

const headerLines = 4

// Record is one persisted result.
type Record struct {
	Expectation float64
	Action      dp.Action
}

// Store is a directory of per-(n, r) result files. Parsed files are held in
// memory (keyed by an xxhash of the canonical state, exact-match verified)
// so lookups after the first do not reread the file. Append is a critical
// section: the store lock is held across the read-check and the file write.
type Store struct {
	dir    string
	mu     sync.Mutex
	tables map[string]*table
}

type row struct {
	key state.Key
	rec Record
}

type table struct {
	rows map[uint64][]row
}

func (t *table) get(k state.Key) (Record, bool) {
	for _, r := range t.rows[xxhash.Sum64(k.Bytes())] {
		if r.key == k {
			return r.rec, true
		}
	}
	return Record{}, false
}

func (t *table) put(k state.Key, rec Record) {
	h := xxhash.Sum64(k.Bytes())
	t.rows[h] = append(t.rows[h], row{key: k, rec: rec})
}

// NewStore returns a store rooted at dir. The directory is created lazily on
// first append.
func NewStore(dir string) *Store {
	return &Store{dir: dir, tables: make(map[string]*table)}
}

func (s *Store) path(n, r int) string {
	return filepath.Join(s.dir, fmt.Sprintf("n%d_acc%d.txt", n, r))
}

// Lookup searches the (n, r) file for an exact match on the canonical state.
func (s *Store) Lookup(n, r int, st state.State) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.load(n, r)
	if err != nil {
		return Record{}, false, err
	}
	rec, ok := t.get(st.Key())
	return rec, ok, nil
}

// Append records a freshly computed result, unless the state is already
// present (first writer wins).
func (s *Store) Append(n, r int, st state.State, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.load(n, r)
	if err != nil {
		return err
	}
	if _, ok := t.get(st.Key()); ok {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	path := s.path(n, r)
	_, statErr := os.Stat(path)
	newFile := errors.Is(statErr, fs.ErrNotExist)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open cache file: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	if newFile {
		fmt.Fprintf(&sb, "n=%d\nr=%d\n\n", n, r)
		cols := make([]string, 0, r+2)
		for i := 1; i <= r; i++ {
			cols = append(cols, fmt.Sprintf("account%d", i))
		}
		cols = append(cols, "expectation", "best_action")
		sb.WriteString(strings.Join(cols, ", "))
		sb.WriteByte('\n')
	}
	sb.WriteString(formatRow(st, rec))
	sb.WriteByte('\n')

	if _, err := f.WriteString(sb.String()); err != nil {
		return fmt.Errorf("append cache record: %w", err)
	}
	t.put(st.Key(), rec)
	return nil
}

func formatRow(st state.State, rec Record) string {
	fields := make([]string, 0, st.Accounts()+2)
	for _, v := range st.Ratings() {
		fields = append(fields, strconv.Itoa(v))
	}
	fields = append(fields, strconv.FormatFloat(rec.Expectation, 'g', -1, 64))
	if rec.Action.IsStop() {
		fields = append(fields, "null")
	} else {
		fields = append(fields, strconv.Itoa(int(rec.Action)))
	}
	return strings.Join(fields, ", ")
}

// load parses the (n, r) file once per process; runs with s.mu held.
func (s *Store) load(n, r int) (*table, error) {
	key := fmt.Sprintf("%d/%d", n, r)
	if t, ok := s.tables[key]; ok {
		return t, nil
	}
	t := &table{rows: make(map[uint64][]row)}
	path := s.path(n, r)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.tables[key] = t
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open cache file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineno := 0
	headerOK := true
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		switch lineno {
		case 1:
			if line != fmt.Sprintf("n=%d", n) {
				log.Warn().Str("file", path).Str("line", line).
					Msg("cache header horizon mismatch; ignoring file contents")
				headerOK = false
			}
		case 2:
			if line != fmt.Sprintf("r=%d", r) {
				log.Warn().Str("file", path).Str("line", line).
					Msg("cache header account count mismatch; ignoring file contents")
				headerOK = false
			}
		case 3, headerLines:
			// blank line and column header
		default:
			if !headerOK || line == "" {
				continue
			}
			k, rec, ok := parseRow(line, r)
			if !ok {
				log.Warn().Str("file", path).Int("line", lineno).
					Msg("malformed cache row ignored")
				continue
			}
			if _, dup := t.get(k); dup {
				continue
			}
			t.put(k, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	s.tables[key] = t
	return t, nil
}

func parseRow(line string, r int) (state.Key, Record, bool) {
	fields := strings.Split(line, ",")
	if len(fields) != r+2 {
		return state.Key{}, Record{}, false
	}
	ratings := make([]int, r)
	for i := 0; i < r; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(fields[i]))
		if err != nil {
			return state.Key{}, Record{}, false
		}
		ratings[i] = v
	}
	st, err := state.New(ratings)
	if err != nil {
		return state.Key{}, Record{}, false
	}
	exp, err := strconv.ParseFloat(strings.TrimSpace(fields[r]), 64)
	if err != nil {
		return state.Key{}, Record{}, false
	}
	rec := Record{Expectation: exp}
	switch act := strings.ToLower(strings.TrimSpace(fields[r+1])); act {
	case "", "null", "none":
		rec.Action = dp.Stop
	default:
		idx, err := strconv.Atoi(act)
		if err != nil || idx < 0 || idx >= r {
			return state.Key{}, Record{}, false
		}
		rec.Action = dp.Action(idx)
	}
	return st.Key(), rec, true
}
