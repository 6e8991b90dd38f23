// Package viz renders debug images of stored snapshot histories and plan results.
package viz

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/automerge/automerge-go"
	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/astromechza/plansync/pkg/store"
)

// ChangeLabel describes the document state as of one change.
type ChangeLabel func(docAt *automerge.Doc) string

// SnapshotLabel labels a change with the master version and project count it holds.
func SnapshotLabel(docAt *automerge.Doc) string {
	snapshot, err := store.DecodeSnapshot(docAt)
	if err != nil {
		return "undecodable: " + err.Error()
	}
	return fmt.Sprintf("master v%d, %d projects", snapshot.Master.Version, len(snapshot.Projects))
}

// RenderChanges draws the change DAG of doc, one node per change, in format.
func RenderChanges(doc *automerge.Doc, label ChangeLabel, format graphviz.Format, w io.Writer) error {
	g := graphviz.New()
	graph, err := g.Graph()
	if err != nil {
		return fmt.Errorf("failed to setup graph: %w", err)
	}
	defer func() {
		_ = graph.Close()
		_ = g.Close()
	}()

	changes, err := doc.Changes()
	if err != nil {
		return fmt.Errorf("failed to generate changes: %w", err)
	}

	nodes := make(map[string]*cgraph.Node, len(changes))
	edges := 0
	for _, change := range changes {
		docAt, err := doc.Fork(change.Hash())
		if err != nil {
			return fmt.Errorf("failed to checkout %s: %w", change.Hash(), err)
		}
		n, err := graph.CreateNode(change.Hash().String())
		if err != nil {
			return fmt.Errorf("failed to create node: %w", err)
		}
		n.SetLabel(fmt.Sprintf("%s %s@%d\n%s", change.Hash().String()[:8], change.ActorID(), change.ActorSeq(), label(docAt)))
		nodes[n.Name()] = n

		for _, hash := range change.Dependencies() {
			parent, ok := nodes[hash.String()]
			if !ok {
				continue
			}
			edges++
			if _, err := graph.CreateEdge(strconv.Itoa(edges), parent, n); err != nil {
				return fmt.Errorf("failed to create edge: %w", err)
			}
		}
	}

	if err := g.Render(graph, format, w); err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}
	return nil
}

// RenderToTemp writes an SVG of the snapshot history of doc to the temp dir and
// returns its path.
func RenderToTemp(doc *automerge.Doc) (string, error) {
	var buff bytes.Buffer
	if err := RenderChanges(doc, SnapshotLabel, graphviz.SVG, &buff); err != nil {
		return "", err
	}
	tf := filepath.Join(os.TempDir(), fmt.Sprintf("plansync-%d.svg", time.Now().UnixNano()))
	if err := os.WriteFile(tf, buff.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", tf, err)
	}
	return tf, nil
}
