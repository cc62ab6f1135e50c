package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	gkgerrors "github.com/gkg/knowledgegraph/internal/errors"
	"github.com/gkg/knowledgegraph/internal/model"
)

// manifestVersion is bumped when the on-disk JSON shape changes.
const manifestVersion = 1

// HashPath derives the 16-hex-character data-directory name for a
// canonicalized path (spec §4.1: SHA-256-derived, truncated).
func HashPath(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])[:16]
}

// manifest is the on-disk JSON document at gkg_manifest.json.
type manifest struct {
	Version    int                        `json:"version"`
	Workspaces map[string]*workspaceEntry `json:"workspaces"` // keyed by DataDirName
}

type workspaceEntry struct {
	Path             string                  `json:"path"`
	DataDirName      string                  `json:"data_dir_name"`
	FrameworkVersion string                  `json:"framework_version"`
	Projects         map[string]*projectEntry `json:"projects"` // keyed by Hash
}

type projectEntry struct {
	Path          string    `json:"path"`
	Hash          string    `json:"hash"`
	Status        string    `json:"status"`
	LastIndexedAt time.Time `json:"last_indexed_at,omitzero"`
	ErrorMessage  string    `json:"error_message,omitempty"`
}

func newManifest() *manifest {
	return &manifest{Version: manifestVersion, Workspaces: make(map[string]*workspaceEntry)}
}

func loadManifestFile(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return newManifest(), nil
	}
	if err != nil {
		return nil, gkgerrors.New(gkgerrors.ErrCodeFilePermission, "failed to read workspace manifest", err)
	}
	if len(data) == 0 {
		return newManifest(), nil
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to parse workspace manifest", err)
	}
	if m.Workspaces == nil {
		m.Workspaces = make(map[string]*workspaceEntry)
	}
	return &m, nil
}

func saveManifestFile(path string, m *manifest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return gkgerrors.New(gkgerrors.ErrCodeDiskFull, "failed to create manifest directory", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return gkgerrors.New(gkgerrors.ErrCodeInternal, "failed to marshal workspace manifest", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return gkgerrors.New(gkgerrors.ErrCodeFilePermission, "failed to write workspace manifest", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return gkgerrors.New(gkgerrors.ErrCodeFilePermission, "failed to replace workspace manifest", err)
	}
	return nil
}

// aggregateStatus derives a Workspace's status from its Projects' statuses
// (spec §4.2):
//   - no projects, or all unindexed -> unindexed
//   - any project indexing -> indexing
//   - any project error, and at least one indexed -> partial
//   - all projects error -> error
//   - all projects indexed -> indexed
func aggregateStatus(projects map[string]*projectEntry) model.WorkspaceStatus {
	if len(projects) == 0 {
		return model.StatusUnindexed
	}
	var indexed, errored, indexing, unindexed int
	for _, p := range projects {
		switch model.WorkspaceStatus(p.Status) {
		case model.StatusIndexed:
			indexed++
		case model.StatusError:
			errored++
		case model.StatusIndexing:
			indexing++
		default:
			unindexed++
		}
	}
	switch {
	case indexing > 0:
		return model.StatusIndexing
	case errored == len(projects):
		return model.StatusError
	case errored > 0 && indexed > 0:
		return model.StatusPartial
	case indexed == len(projects):
		return model.StatusIndexed
	case unindexed == len(projects):
		return model.StatusUnindexed
	default:
		return model.StatusPartial
	}
}
