// Package store persists planning snapshots as automerge documents in sqlite.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/automerge/automerge-go"

	"github.com/astromechza/plansync/pkg/planning"
)

const (
	formatKey   = "format"
	masterKey   = "master"
	projectsKey = "projects"

	formatVersion = int64(1)
)

var ErrUnsupportedFormat = errors.New("unsupported snapshot format")

// EncodeSnapshot writes snapshot into doc and commits it. Keys whose content is
// unchanged are left alone, and nothing is committed when no key changed. It reports
// whether a commit was made.
func EncodeSnapshot(doc *automerge.Doc, snapshot planning.Snapshot) (bool, error) {
	changed := false

	format, err := readInt(doc, formatKey)
	if err != nil {
		return false, err
	}
	if format != formatVersion {
		if err := doc.Path(formatKey).Set(formatVersion); err != nil {
			return false, fmt.Errorf("failed to set format: %w", err)
		}
		changed = true
	}

	master := snapshot.Master
	if master == nil {
		master = planning.NewPlanHistory()
	}
	rawMaster, err := json.Marshal(master)
	if err != nil {
		return false, fmt.Errorf("failed to marshal master: %w", err)
	}
	current, err := readString(doc, masterKey)
	if err != nil {
		return false, err
	}
	if current != string(rawMaster) {
		if err := doc.Path(masterKey).Set(string(rawMaster)); err != nil {
			return false, fmt.Errorf("failed to set master: %w", err)
		}
		changed = true
	}

	projects := make(map[string]interface{}, len(snapshot.Projects))
	for id, project := range snapshot.Projects {
		raw, err := json.Marshal(project)
		if err != nil {
			return false, fmt.Errorf("failed to marshal project %s: %w", id, err)
		}
		projects[id.String()] = string(raw)
	}
	currentProjects, err := readMap(doc, projectsKey)
	if err != nil {
		return false, err
	}
	if !sameProjects(currentProjects, projects) {
		if err := doc.Path(projectsKey).Set(projects); err != nil {
			return false, fmt.Errorf("failed to set projects: %w", err)
		}
		changed = true
	}

	if !changed {
		return false, nil
	}
	if _, err := doc.Commit(fmt.Sprintf("snapshot v%d", master.Version), automerge.CommitOptions{AllowEmpty: true}); err != nil {
		return false, fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return true, nil
}

// DecodeSnapshot reads the snapshot held by doc. A document that was never written
// decodes to an empty snapshot.
func DecodeSnapshot(doc *automerge.Doc) (planning.Snapshot, error) {
	snapshot := planning.Snapshot{
		Master:   planning.NewPlanHistory(),
		Projects: map[planning.ProjectID]*planning.Project{},
	}

	format, err := readInt(doc, formatKey)
	if err != nil {
		return snapshot, err
	}
	switch format {
	case 0:
		return snapshot, nil
	case formatVersion:
	default:
		return snapshot, fmt.Errorf("failed to decode snapshot: %w: %d", ErrUnsupportedFormat, format)
	}

	rawMaster, err := readString(doc, masterKey)
	if err != nil {
		return snapshot, err
	}
	if rawMaster != "" {
		if err := json.Unmarshal([]byte(rawMaster), snapshot.Master); err != nil {
			return snapshot, fmt.Errorf("failed to unmarshal master: %w", err)
		}
	}

	projects, err := readMap(doc, projectsKey)
	if err != nil {
		return snapshot, err
	}
	for key, raw := range projects {
		id, err := planning.ParseProjectID(key)
		if err != nil {
			return snapshot, fmt.Errorf("failed to parse project id %q: %w", key, err)
		}
		encoded, ok := raw.(string)
		if !ok {
			return snapshot, fmt.Errorf("failed to decode project %s: content is %T", id, raw)
		}
		project := planning.NewProject()
		if err := json.Unmarshal([]byte(encoded), project); err != nil {
			return snapshot, fmt.Errorf("failed to unmarshal project %s: %w", id, err)
		}
		if err := project.Validate(); err != nil {
			return snapshot, fmt.Errorf("failed to decode project %s: %w", id, err)
		}
		snapshot.Projects[id] = project
	}
	return snapshot, nil
}

// MasterVersion returns the master history version recorded in doc, or zero.
func MasterVersion(doc *automerge.Doc) (uint64, error) {
	raw, err := readString(doc, masterKey)
	if err != nil || raw == "" {
		return 0, err
	}
	var master struct {
		Version uint64 `json:"version"`
	}
	if err := json.Unmarshal([]byte(raw), &master); err != nil {
		return 0, fmt.Errorf("failed to unmarshal master: %w", err)
	}
	return master.Version, nil
}

func readValue(doc *automerge.Doc, key string) (interface{}, error) {
	value, err := doc.Path(key).Get()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value.Interface(), nil
}

func readInt(doc *automerge.Doc, key string) (int64, error) {
	raw, err := readValue(doc, key)
	if err != nil || raw == nil {
		return 0, err
	}
	switch v := raw.(type) {
	case int64:
		return v, nil
	case uint64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("failed to read %s: unexpected %T", key, raw)
	}
}

func readString(doc *automerge.Doc, key string) (string, error) {
	raw, err := readValue(doc, key)
	if err != nil || raw == nil {
		return "", err
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("failed to read %s: unexpected %T", key, raw)
	}
	return s, nil
}

func readMap(doc *automerge.Doc, key string) (map[string]interface{}, error) {
	raw, err := readValue(doc, key)
	if err != nil || raw == nil {
		return nil, err
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("failed to read %s: unexpected %T", key, raw)
	}
	return m, nil
}

func sameProjects(current, next map[string]interface{}) bool {
	if len(current) != len(next) {
		return false
	}
	for id, raw := range next {
		if current[id] != raw {
			return false
		}
	}
	return true
}
