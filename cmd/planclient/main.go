package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/astromechza/plansync/pkg/geom"
	"github.com/astromechza/plansync/pkg/planning"
	"github.com/astromechza/plansync/pkg/uisync"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	addrVar := flag.String("addr", "127.0.0.1:8080", "the address to request on")
	machineVar := flag.String("machine", fmt.Sprintf("bot-%d", os.Getpid()), "the machine id to observe as")
	implementVar := flag.Int("implement-every", 5, "implement the project after this many roads, 0 to never implement")
	flag.Parse()

	u := url.URL{Scheme: "ws", Host: *addrVar}
	u = *u.JoinPath("machines", *machineVar, "planning")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := uisync.Dial(ctx, u.String(), slog.Default())
	if err != nil {
		return err
	}
	defer c.Close()
	slog.Info("connected", "url", u.String())

	wg := new(sync.WaitGroup)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		if err := c.Run(ctx); err != nil {
			slog.Error("connection failed", "err", err)
		}
	}()

	b := &bot{client: c, implementEvery: *implementVar}
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.drawRandomlyContinuously(ctx)
	}()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-exit:
		slog.Info("Signal caught", "sig", sig)
	case <-ctx.Done():
	}
	cancel()
	wg.Wait()
	return nil
}

type bot struct {
	client         *uisync.Client
	implementEvery int
	project        planning.ProjectID
	hasProject     bool
	drawn          int
}

func (b *bot) drawRandomlyContinuously(ctx context.Context) {
	for {
		t := time.NewTimer(time.Second + time.Second*time.Duration(rand.Intn(3)))
		select {
		case <-t.C:
			if err := b.drawRoad(ctx); err != nil {
				slog.Error("failed to draw", "err", err)
				continue
			}
			if err := b.sync(ctx); err != nil {
				slog.Error("failed to sync", "err", err)
			}
		case <-ctx.Done():
			t.Stop()
			slog.Info("stopping scheduled drawing")
			return
		}
	}
}

func randomPoint() geom.Point {
	return geom.Point{X: rand.Float64() * 500, Y: rand.Float64() * 500}
}

// drawRoad drags a road with a few hover moves before each committed point, the way
// an editor streams a gesture.
func (b *bot) drawRoad(ctx context.Context) error {
	if !b.hasProject {
		id, err := b.client.NewProject(ctx)
		if err != nil {
			return err
		}
		b.project, b.hasProject = id, true
		slog.Info("created project", "project", id)
	}

	gesture := planning.NewGestureID()
	intent := planning.NewRoadIntent(uint8(1+rand.Intn(2)), uint8(rand.Intn(2)))
	if _, err := b.client.Do(ctx, uisync.Request{Op: uisync.OpStartNewGesture, Project: b.project, Gesture: gesture, Intent: &intent, Point: randomPoint()}); err != nil {
		return err
	}
	for i := 0; i < 1+rand.Intn(3); i++ {
		for hover := 0; hover < 3; hover++ {
			if _, err := b.client.Do(ctx, uisync.Request{Op: uisync.OpAddControlPoint, Project: b.project, Gesture: gesture, Point: randomPoint(), AddToEnd: true}); err != nil {
				return err
			}
		}
		if _, err := b.client.Do(ctx, uisync.Request{Op: uisync.OpAddControlPoint, Project: b.project, Gesture: gesture, Point: randomPoint(), AddToEnd: true, Commit: true}); err != nil {
			return err
		}
	}
	if _, err := b.client.Do(ctx, uisync.Request{Op: uisync.OpFinishGesture}); err != nil {
		return err
	}
	b.drawn++
	slog.Info("drew road", "project", b.project, "gesture", gesture, "intent", intent)

	if b.implementEvery > 0 && b.drawn%b.implementEvery == 0 {
		if _, err := b.client.Do(ctx, uisync.Request{Op: uisync.OpImplementProject, Project: b.project}); err != nil {
			slog.Warn("project not implemented", "project", b.project, "err", err)
			_, err = b.client.Do(ctx, uisync.Request{Op: uisync.OpUndo, Project: b.project})
			return err
		}
		slog.Info("implemented project", "project", b.project)
		b.hasProject = false
	}
	return nil
}

func (b *bot) sync(ctx context.Context) error {
	if err := b.client.QueryPlans(ctx); err != nil {
		return err
	}
	if b.hasProject {
		if err := b.client.QueryPreview(ctx, b.project); err != nil {
			return err
		}
	}
	b.client.Mirror(func(mirror *planning.Mirror) {
		attrs := []any{"master_version", mirror.MasterVersion, "master_gestures", len(mirror.Master), "projects", len(mirror.Projects)}
		if result, ok := mirror.Results[b.project]; ok && b.hasProject {
			actions := mirror.Actions[b.project]
			attrs = append(attrs,
				"prototypes", len(result.Prototypes),
				"constructs", actions.Count(planning.ActionConstruct),
				"morphs", actions.Count(planning.ActionMorph),
				"destructs", actions.Count(planning.ActionDestruct),
			)
		}
		slog.Info("synced", attrs...)
	})
	return nil
}
