package eventbus

import (
	"encoding/json"

	bolt "go.etcd.io/bbolt"

	gkgerrors "github.com/gkg/knowledgegraph/internal/errors"
)

var lastEventBucket = []byte("last_event_per_project")

// ReplayStore durably persists the most recent event seen for each project
// key, so an SSE subscriber reconnecting after a server restart can be
// replayed its last known state (spec.md §7) even though the in-process Bus
// itself holds no history.
type ReplayStore struct {
	db *bolt.DB
}

// OpenReplayStore opens (creating if absent) the bbolt file backing the
// replay store.
func OpenReplayStore(path string) (*ReplayStore, error) {
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, gkgerrors.New(gkgerrors.ErrCodeFileNotFound, "failed to open event replay store", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(lastEventBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, gkgerrors.New(gkgerrors.ErrCodeInternal, "failed to initialize event replay bucket", err)
	}
	return &ReplayStore{db: db}, nil
}

// Close releases the underlying bbolt file.
func (s *ReplayStore) Close() error {
	return s.db.Close()
}

// replayKey is the project scope an event replays under: the project hash
// if set, else the workspace path for workspace-scoped events.
func replayKey(ev Event) string {
	if ev.ProjectHash != "" {
		return "project:" + ev.ProjectHash
	}
	return "workspace:" + ev.WorkspacePath
}

// Record persists ev as the latest event for its project/workspace scope.
func (s *ReplayStore) Record(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return gkgerrors.New(gkgerrors.ErrCodeInternal, "failed to marshal event for replay", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(lastEventBucket).Put([]byte(replayKey(ev)), data)
	})
}

// LastForProject returns the most recently recorded event for a project
// hash, if any.
func (s *ReplayStore) LastForProject(projectHash string) (Event, bool, error) {
	return s.get("project:" + projectHash)
}

// LastForWorkspace returns the most recently recorded event for a
// workspace path, if any.
func (s *ReplayStore) LastForWorkspace(workspacePath string) (Event, bool, error) {
	return s.get("workspace:" + workspacePath)
}

func (s *ReplayStore) get(key string) (Event, bool, error) {
	var ev Event
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(lastEventBucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &ev)
	})
	if err != nil {
		return Event{}, false, gkgerrors.New(gkgerrors.ErrCodeInternal, "failed to read replay event", err)
	}
	return ev, found, nil
}

// RecordingBus wraps a Bus so every Publish is also durably recorded,
// giving callers one call site for both live fan-out and replay durability.
type RecordingBus struct {
	*Bus
	store *ReplayStore
}

// NewRecordingBus pairs a Bus with a ReplayStore.
func NewRecordingBus(bus *Bus, store *ReplayStore) *RecordingBus {
	return &RecordingBus{Bus: bus, store: store}
}

// Publish records ev durably before fanning it out to live subscribers. A
// replay-store write failure never blocks delivery to live subscribers —
// it is the durability path, not the primary one.
func (r *RecordingBus) Publish(ev Event) error {
	err := r.store.Record(ev)
	r.Bus.Publish(ev)
	return err
}
