package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jacqueswww/logproof/internal/tsfmt"
)

// wireHistoryEntry mirrors HistoryEntry but with the §6 timestamp wire
// format (microsecond-suffixed ISO-8601 strings) instead of Go's default
// RFC3339Nano encoding.
type wireHistoryEntry struct {
	Hash     string   `json:"hash"`
	FromDate string   `json:"from_date"`
	ToDate   string   `json:"to_date"`
	FromPos  int64    `json:"from_pos"`
	ToPos    int64    `json:"to_pos"`
	RootHash *string  `json:"root_hash"`
	Proofs   []string `json:"proofs,omitempty"`
}

type wirePathState struct {
	LastTS  string             `json:"last_ts"`
	LastPos int64              `json:"last_pos"`
	History []wireHistoryEntry `json:"history"`
}

// FileName returns the dated journal file name for day, per §6:
// "<checkpoint_path>/<YYYY-MM-DD>_checkpoints.json".
func FileName(checkpointPath string, day time.Time) string {
	return filepath.Join(checkpointPath, fmt.Sprintf("%s_checkpoints.json", tsfmt.DatePath(day)))
}

// Load reads today's dated journal file under checkpointPath. If the file
// does not exist, Load returns an empty, ready-to-use Journal: this is the
// normal case for a newly-started day, not an error.
func Load(checkpointPath string, now time.Time) (*Journal, error) {
	path := FileName(checkpointPath, now)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("journal: read %s: %w", path, err)
	}

	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("journal: parse %s: %w", path, err)
	}

	j := New()
	for key, msg := range raw {
		if key == "roots" {
			var roots []string
			if err := json.Unmarshal(msg, &roots); err != nil {
				return nil, fmt.Errorf("journal: parse roots in %s: %w", path, err)
			}
			for _, r := range roots {
				// Publication is not persisted, so a loaded root stays
				// unpublished until it is published again in this run.
				j.AddRoot(r)
			}
			continue
		}

		var wps wirePathState
		if err := json.Unmarshal(msg, &wps); err != nil {
			return nil, fmt.Errorf("journal: parse path %q in %s: %w", key, path, err)
		}
		state, err := decodePathState(wps)
		if err != nil {
			return nil, fmt.Errorf("journal: decode path %q in %s: %w", key, path, err)
		}
		j.Paths[key] = state
		for _, h := range state.History {
			if h.Sealed() {
				j.AddRoot(h.RootHash)
			}
		}
	}

	return j, nil
}

// Save serializes the journal and writes it to today's dated file under
// checkpointPath, creating the directory if needed.
//
// Save writes to a temporary file in the same directory and renames it into
// place, so a concurrent reader (or a crash mid-write) never observes a
// partially-written journal. This is the filesystem analogue of the
// teacher's etag-guarded blob commits: the write is only ever visible whole.
func Save(checkpointPath string, now time.Time, j *Journal) error {
	if err := os.MkdirAll(checkpointPath, 0o755); err != nil {
		return fmt.Errorf("journal: mkdir %s: %w", checkpointPath, err)
	}

	out := make(map[string]any, len(j.Paths)+1)
	for path, state := range j.Paths {
		out[path] = encodePathState(state)
	}
	roots := make([]string, 0, len(j.Roots))
	for r := range j.Roots {
		roots = append(roots, r)
	}
	sort.Strings(roots)
	out["roots"] = roots

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("journal: encode: %w", err)
	}

	target := FileName(checkpointPath, now)
	tmp, err := os.CreateTemp(checkpointPath, ".checkpoints-*.json.tmp")
	if err != nil {
		return fmt.Errorf("journal: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("journal: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("journal: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("journal: rename into place: %w", err)
	}
	return nil
}

func encodePathState(s *PathState) wirePathState {
	wps := wirePathState{
		LastTS:  tsfmt.Format(s.LastTS),
		LastPos: s.LastPos,
		History: make([]wireHistoryEntry, len(s.History)),
	}
	for i, h := range s.History {
		wps.History[i] = encodeHistoryEntry(h)
	}
	return wps
}

func encodeHistoryEntry(h HistoryEntry) wireHistoryEntry {
	whe := wireHistoryEntry{
		Hash:     h.Hash,
		FromDate: tsfmt.Format(h.FromDate),
		ToDate:   tsfmt.Format(h.ToDate),
		FromPos:  h.FromPos,
		ToPos:    h.ToPos,
	}
	if h.Sealed() {
		rh := h.RootHash
		whe.RootHash = &rh
		whe.Proofs = h.Proofs
	}
	return whe
}

func decodePathState(wps wirePathState) (*PathState, error) {
	lastTS, err := tsfmt.Parse(wps.LastTS)
	if err != nil {
		return nil, err
	}
	state := &PathState{
		LastTS:  lastTS,
		LastPos: wps.LastPos,
		History: make([]HistoryEntry, len(wps.History)),
	}
	for i, whe := range wps.History {
		h, err := decodeHistoryEntry(whe)
		if err != nil {
			return nil, err
		}
		state.History[i] = h
	}
	return state, nil
}

func decodeHistoryEntry(whe wireHistoryEntry) (HistoryEntry, error) {
	fromDate, err := tsfmt.Parse(whe.FromDate)
	if err != nil {
		return HistoryEntry{}, err
	}
	toDate, err := tsfmt.Parse(whe.ToDate)
	if err != nil {
		return HistoryEntry{}, err
	}
	h := HistoryEntry{
		Hash:     whe.Hash,
		FromDate: fromDate,
		ToDate:   toDate,
		FromPos:  whe.FromPos,
		ToPos:    whe.ToPos,
		Proofs:   whe.Proofs,
	}
	if whe.RootHash != nil {
		h.RootHash = *whe.RootHash
	}
	return h, nil
}
