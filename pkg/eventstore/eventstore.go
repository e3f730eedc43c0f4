package eventstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/types"
)

// bucketSize is the number of events grouped into one bucket directory.
const bucketSize = 1000

// Store is the append-only per-topic event log on the filesystem.
//
// Layout: <dataRoot>/<tenant>/<namespace>/<topic>/<YYYY-MM-DD>/<bucket>/<topic>-<seq>.json
// where <bucket> is the zero-padded group (sequence-1)/1000. Within a topic
// sequences are strictly increasing, so date directories sort in the same
// order as sequences.
type Store struct {
	dataRoot string
	logger   zerolog.Logger
}

// NewStore creates an event store rooted at dataRoot, creating it on demand.
func NewStore(dataRoot string) (*Store, error) {
	if err := os.MkdirAll(dataRoot, 0755); err != nil {
		return nil, errdefs.IO(err, "create data root %s", dataRoot)
	}
	return &Store{
		dataRoot: dataRoot,
		logger:   log.WithComponent("eventstore"),
	}, nil
}

// DataRoot returns the root directory events are written under.
func (s *Store) DataRoot() string { return s.dataRoot }

// bucketDir returns the zero-padded bucket directory name for a sequence.
func bucketDir(sequence int64) string {
	return fmt.Sprintf("%04d", (sequence-1)/bucketSize)
}

func (s *Store) topicDir(tenant, namespace, topic string) string {
	return filepath.Join(s.dataRoot, tenant, namespace, topic)
}

// eventPath returns the full path an event is written to.
func (s *Store) eventPath(tenant, namespace, topic string, sequence int64, day time.Time) string {
	return filepath.Join(
		s.topicDir(tenant, namespace, topic),
		day.UTC().Format("2006-01-02"),
		bucketDir(sequence),
		fmt.Sprintf("%s-%d.json", topic, sequence),
	)
}

// Append durably writes one event file. The caller (publish pipeline) holds
// the topic lock and has already assigned the sequence.
func (s *Store) Append(tenant, namespace, topic string, ev *types.Event) error {
	id, err := ParseEventID(ev.ID)
	if err != nil {
		return err
	}

	path := s.eventPath(tenant, namespace, topic, id.Sequence, ev.Timestamp)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errdefs.IO(err, "create event directory for %s", ev.ID)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return errdefs.IO(err, "marshal event %s", ev.ID)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errdefs.IO(err, "write event %s", ev.ID)
	}

	s.logger.Debug().Str("event_id", ev.ID).Str("path", path).Msg("event appended")
	return nil
}

// ReadSince returns events for the topic with sequence strictly greater than
// since, in ascending sequence order. limit <= 0 means unbounded.
func (s *Store) ReadSince(tenant, namespace, topic string, since int64, limit int) ([]*types.Event, error) {
	return s.read(tenant, namespace, topic, func(seq int64) bool { return seq > since }, "", limit)
}

// ReadDate returns the events written on the given UTC date (YYYY-MM-DD), in
// ascending sequence order. limit <= 0 means unbounded.
func (s *Store) ReadDate(tenant, namespace, topic, date string, limit int) ([]*types.Event, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, errdefs.Invalid(errdefs.CodeInvalidDate, "invalid date %q, want YYYY-MM-DD", date)
	}
	return s.read(tenant, namespace, topic, func(int64) bool { return true }, date, limit)
}

// GetByID reads a single event by its decoded id.
func (s *Store) GetByID(id EventID) (*types.Event, error) {
	evs, err := s.read(id.Tenant, id.Namespace, id.Topic,
		func(seq int64) bool { return seq == id.Sequence }, "", 1)
	if err != nil {
		return nil, err
	}
	if len(evs) == 0 {
		return nil, errdefs.NotFound(errdefs.CodeInvalidEvent, "event %s not found", id.String())
	}
	return evs[0], nil
}

// read walks the topic's date and bucket directories in ascending order,
// collecting events whose sequence passes keep. When date is non-empty only
// that date directory is visited.
func (s *Store) read(tenant, namespace, topic string, keep func(int64) bool, date string, limit int) ([]*types.Event, error) {
	root := s.topicDir(tenant, namespace, topic)

	var days []string
	if date != "" {
		days = []string{date}
	} else {
		entries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, errdefs.IO(err, "read topic directory %s", root)
		}
		for _, e := range entries {
			if e.IsDir() {
				days = append(days, e.Name())
			}
		}
		sort.Strings(days)
	}

	var out []*types.Event
	for _, day := range days {
		dayDir := filepath.Join(root, day)
		buckets, err := os.ReadDir(dayDir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errdefs.IO(err, "read date directory %s", dayDir)
		}
		// Bucket names are zero-padded but widen past 9999, so sort them
		// numerically like the per-file sort below.
		type bucketEntry struct {
			n    int64
			name string
		}
		var ordered []bucketEntry
		for _, bucket := range buckets {
			if !bucket.IsDir() {
				continue
			}
			n, err := strconv.ParseInt(bucket.Name(), 10, 64)
			if err != nil {
				continue
			}
			ordered = append(ordered, bucketEntry{n: n, name: bucket.Name()})
		}
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].n < ordered[j].n })

		for _, bucket := range ordered {
			bucketPath := filepath.Join(dayDir, bucket.name)
			files, err := os.ReadDir(bucketPath)
			if err != nil {
				return nil, errdefs.IO(err, "read bucket directory %s", bucketPath)
			}

			// Sequences within a bucket can straddle a digit-length
			// boundary, so sort numerically, not lexically.
			type entry struct {
				seq  int64
				name string
			}
			var matches []entry
			for _, f := range files {
				seq, ok := sequenceFromFilename(topic, f.Name())
				if !ok || !keep(seq) {
					continue
				}
				matches = append(matches, entry{seq: seq, name: f.Name()})
			}
			sort.Slice(matches, func(i, j int) bool { return matches[i].seq < matches[j].seq })

			for _, m := range matches {
				ev, err := s.readFile(filepath.Join(bucketPath, m.name))
				if err != nil {
					return nil, err
				}
				out = append(out, ev)
				if limit > 0 && len(out) >= limit {
					return out, nil
				}
			}
		}
	}
	return out, nil
}

func (s *Store) readFile(path string) (*types.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errdefs.IO(err, "read event file %s", path)
	}
	var ev types.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, errdefs.IO(err, "decode event file %s", path)
	}
	return &ev, nil
}

// sequenceFromFilename extracts the sequence from "<topic>-<seq>.json".
func sequenceFromFilename(topic, name string) (int64, bool) {
	if !strings.HasSuffix(name, ".json") {
		return 0, false
	}
	base := strings.TrimSuffix(name, ".json")
	prefix := topic + "-"
	if !strings.HasPrefix(base, prefix) {
		return 0, false
	}
	seq, err := strconv.ParseInt(base[len(prefix):], 10, 64)
	if err != nil || seq <= 0 {
		return 0, false
	}
	return seq, true
}
