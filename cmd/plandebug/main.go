package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/automerge/automerge-go"
	"github.com/goccy/go-graphviz"

	"github.com/astromechza/plansync/pkg/planning"
	"github.com/astromechza/plansync/pkg/store"
	"github.com/astromechza/plansync/pkg/viz"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{})))

	pngVar := flag.String("png", "", "also render the master plan result of the latest snapshot to this png file")
	dbVar := flag.String("db", "", "read the document from this sqlite database instead of a file")
	storeVar := flag.String("store", "", "the store to read from the database, the stores are listed when empty")
	flag.Parse()

	var doc *automerge.Doc
	if *dbVar != "" {
		var err error
		if doc, err = loadFromDatabase(*dbVar, *storeVar); err != nil || doc == nil {
			return err
		}
	} else {
		if flag.NArg() != 1 {
			return fmt.Errorf("expected one position argument: the file to read")
		}
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			return fmt.Errorf("failed to open input file: %w", err)
		}
		defer f.Close()
		buff, err := io.ReadAll(f)
		if err != nil {
			return fmt.Errorf("failed to read input file: %w", err)
		}
		if doc, err = automerge.Load(buff); err != nil {
			return fmt.Errorf("failed to load doc: %w", err)
		}
	}
	slog.Info("loaded heads", "heads", doc.Heads())

	changes, err := doc.Changes()
	if err != nil {
		return fmt.Errorf("failed to generate changes: %w", err)
	}
	for i, change := range changes {
		docAt, err := doc.Fork(change.Hash())
		if err != nil {
			return fmt.Errorf("failed to checkout %s: %w", change.Hash(), err)
		}
		version, err := store.MasterVersion(docAt)
		if err != nil {
			slog.Warn("change holds no readable master", "hash", change.Hash(), "err", err)
		}
		slog.Info("change", "i", fmt.Sprintf("%4d", i), "hash", change.Hash(), "actor", change.ActorID(), "dep", change.Dependencies(), "master_version", version)
	}

	snapshot, err := store.DecodeSnapshot(doc)
	if err != nil {
		return err
	}
	manager := planning.NewPlanManager()
	manager.Restore(snapshot)
	for _, id := range manager.ProjectIDs() {
		project, _ := manager.Project(id)
		slog.Info("project", "id", id, "steps", len(project.Steps), "position", project.Position, "ongoing", project.Ongoing.Len())
	}

	if *pngVar != "" {
		out, err := os.Create(*pngVar)
		if err != nil {
			return fmt.Errorf("failed to create png: %w", err)
		}
		defer out.Close()
		if err := viz.RenderResultPNG(manager.MasterResult(), out); err != nil {
			return err
		}
		slog.Info("rendered", "path", *pngVar)
	}

	return viz.RenderChanges(doc, viz.SnapshotLabel, graphviz.XDOT, os.Stdout)
}

// loadFromDatabase reads one store from a planserver database. With no store id it
// only lists the stores and returns a nil doc.
func loadFromDatabase(path, id string) (*automerge.Doc, error) {
	ctx := context.Background()
	st, err := store.OpenSQLite(path, slog.Default())
	if err != nil {
		return nil, err
	}
	defer st.Close()
	if id == "" {
		ids, err := st.StoreIDs(ctx)
		if err != nil {
			return nil, err
		}
		for _, storeID := range ids {
			slog.Info("store", "id", storeID)
		}
		return nil, nil
	}
	return st.Load(ctx, id)
}
