//go:build integration

package integration

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/spacepal/spacepal/internal/daemon"
	"github.com/spacepal/spacepal/internal/dock"
	"github.com/spacepal/spacepal/internal/domain"
	"github.com/spacepal/spacepal/internal/infra"
	"github.com/spacepal/spacepal/internal/rules"
	"github.com/spacepal/spacepal/internal/spaces"
	"github.com/spacepal/spacepal/internal/usecase"
)

// scriptedFeed lets the test drive space events by hand.
type scriptedFeed struct {
	events chan domain.SpaceEvent
}

func newScriptedFeed() *scriptedFeed {
	return &scriptedFeed{events: make(chan domain.SpaceEvent, 16)}
}

func (f *scriptedFeed) Events() <-chan domain.SpaceEvent { return f.events }
func (f *scriptedFeed) Refresh() error                   { return nil }
func (f *scriptedFeed) Close() error                     { return nil }

func (f *scriptedFeed) enterSpace(id string, number int) {
	f.events <- domain.SpaceEvent{
		Kind:  domain.SpaceEventChanged,
		Space: domain.SpaceDescriptor{ID: id, Number: number},
	}
}

// spyWindows records window operations per app.
type spyWindows struct {
	mu    sync.Mutex
	calls []string
}

func (w *spyWindows) record(op, bundleID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, op+":"+bundleID)
}

func (w *spyWindows) snapshot() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.calls...)
}

func (w *spyWindows) HideApp(_ context.Context, bundleID, _ string) error {
	w.record("hide", bundleID)
	return nil
}

func (w *spyWindows) UnhideApp(_ context.Context, bundleID, _ string) error {
	w.record("unhide", bundleID)
	return nil
}

func (w *spyWindows) MinimizeAll(_ context.Context, bundleID, _ string) error {
	w.record("minimize", bundleID)
	return nil
}

func (w *spyWindows) RestoreAll(_ context.Context, bundleID, _ string) error {
	w.record("restore", bundleID)
	return nil
}

func (w *spyWindows) ActivateApp(_ context.Context, bundleID, _ string) error {
	w.record("activate", bundleID)
	return nil
}

func (w *spyWindows) FrontmostBundleID(context.Context) string { return "" }

func (w *spyWindows) PostKeyEvent(_ context.Context, _ int, _ uint32, _ bool) error {
	w.record("key", "")
	return nil
}

// everythingRuns reports every app as running.
type everythingRuns struct{}

func (everythingRuns) IsRunning(string, string) bool          { return true }
func (everythingRuns) ResolveBundleID(string) (string, error) { return "", nil }

// spyDockPrefs records every flushed tile array.
type spyDockPrefs struct {
	mu     sync.Mutex
	writes [][][]byte
}

func (p *spyDockPrefs) ReadRawTiles() ([][]byte, error) { return nil, nil }

func (p *spyDockPrefs) WriteRawTiles(tiles [][]byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes = append(p.writes, tiles)
	return nil
}

func (p *spyDockPrefs) writeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.writes)
}

func (p *spyDockPrefs) lastWrite() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.writes) == 0 {
		return nil
	}
	return p.writes[len(p.writes)-1]
}

// spyDockProcess counts restarts.
type spyDockProcess struct {
	mu       sync.Mutex
	restarts int
}

func (p *spyDockProcess) Restart(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restarts++
	return nil
}

func (p *spyDockProcess) restartCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.restarts
}

var _ = Describe("Space change pipeline", func() {
	var (
		prefs       *infra.SQLitePrefStore
		ruleStore   *rules.Store
		dockStore   *dock.Store
		feed        *scriptedFeed
		windows     *spyWindows
		dockPrefs   *spyDockPrefs
		dockProcess *spyDockProcess
		cancel      context.CancelFunc
		done        chan struct{}
	)

	BeforeEach(func() {
		logger := zap.NewNop()

		var err error
		prefs, err = infra.NewPrefStoreAtPath(filepath.Join(GinkgoT().TempDir(), "prefs.db"))
		Expect(err).NotTo(HaveOccurred())

		ruleStore = rules.NewStore(prefs, logger)
		dockStore = dock.NewStore(prefs, logger)

		feed = newScriptedFeed()
		windows = &spyWindows{}
		dockPrefs = &spyDockPrefs{}
		dockProcess = &spyDockProcess{}

		registry := spaces.NewRegistry(feed, logger)
		executor := usecase.NewExecutor(windows, windows, everythingRuns{}, logger)
		engine := usecase.NewRuleEngine(ruleStore, executor, registry.CurrentSpaceID, logger)
		switcher := usecase.NewDockSwitcherWithTiming(
			dockStore, dockPrefs, dockProcess, logger,
			10*time.Millisecond, 0)

		ruleStore.SetChangeHook(engine.Reevaluate)
		dockStore.SetDefaultChangeHook(switcher.InvalidateLastApplied)

		d := daemon.NewDaemon(feed, registry, engine, switcher, logger)

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan struct{})
		go func() {
			defer close(done)
			_ = d.Run(ctx)
		}()
	})

	AfterEach(func() {
		cancel()
		Eventually(done).Should(BeClosed())
		Expect(prefs.Close()).To(Succeed())
	})

	Describe("app rules", func() {
		It("hides the app away from its space and shows it on return", func() {
			rule := domain.AppRule{
				ID:          "r1",
				AppBundleID: "com.example.notes",
				AppName:     "Notes",
				Enabled:     true,
				Groups: []domain.RuleGroup{
					{
						ID:             "g1",
						TargetSpaceIDs: []string{"s1"},
						Actions:        []domain.ActionItem{domain.SimpleAction(domain.ActionShow)},
					},
				},
				ElseActions: []domain.ActionItem{domain.SimpleAction(domain.ActionHide)},
			}
			Expect(ruleStore.Add(rule)).To(Succeed())

			feed.enterSpace("s2", 2)
			Eventually(windows.snapshot).Should(ContainElement("hide:com.example.notes"))

			feed.enterSpace("s1", 1)
			Eventually(windows.snapshot).Should(ContainElement("unhide:com.example.notes"))
		})

		It("applies an edited rule to the current space without a space change", func() {
			feed.enterSpace("s1", 1)
			Consistently(windows.snapshot, 50*time.Millisecond).Should(BeEmpty())

			rule := domain.AppRule{
				ID:          "r1",
				AppBundleID: "com.example.mail",
				AppName:     "Mail",
				Enabled:     true,
				Groups: []domain.RuleGroup{
					{
						ID:             "g1",
						TargetSpaceIDs: []string{"s1"},
						Actions:        []domain.ActionItem{domain.SimpleAction(domain.ActionMinimize)},
					},
				},
			}
			Expect(ruleStore.Add(rule)).To(Succeed())

			Eventually(windows.snapshot).Should(ContainElement("minimize:com.example.mail"))
		})
	})

	Describe("dock switching", func() {
		var workSet, playSet domain.DockSet

		BeforeEach(func() {
			workSet = domain.DockSet{
				ID:   "work",
				Name: "Work",
				Tiles: []domain.DockTile{
					{ID: "t1", Label: "Mail", RawData: []byte("mail-tile")},
				},
			}
			playSet = domain.DockSet{
				ID:   "play",
				Name: "Play",
				Tiles: []domain.DockTile{
					{ID: "t2", Label: "Music", RawData: []byte("music-tile")},
				},
			}
			Expect(dockStore.AddSet(workSet)).To(Succeed())
			Expect(dockStore.AddSet(playSet)).To(Succeed())
			Expect(dockStore.AssignSpace("s2", "play")).To(Succeed())
			Expect(dockStore.AssignSpace("s4", "play")).To(Succeed())
		})

		It("applies only the final set after a burst of space changes", func() {
			feed.enterSpace("s1", 1)
			feed.enterSpace("s2", 2)

			Eventually(dockPrefs.writeCount).Should(Equal(1))
			Consistently(dockPrefs.writeCount, 100*time.Millisecond).Should(Equal(1))
			Expect(dockPrefs.lastWrite()).To(Equal([][]byte{[]byte("music-tile")}))
			Expect(dockProcess.restartCount()).To(Equal(1))
		})

		It("does not restart the dock when the assigned set is already applied", func() {
			feed.enterSpace("s2", 2)
			Eventually(dockProcess.restartCount).Should(Equal(1))

			// s4 is assigned to the same set, so nothing needs flushing.
			feed.enterSpace("s4", 4)
			Consistently(dockPrefs.writeCount, 100*time.Millisecond).Should(Equal(1))
			Expect(dockProcess.restartCount()).To(Equal(1))
		})

		It("always re-applies the default set", func() {
			// s3 and s5 have no assignment; the default (work) applies on
			// both, even back to back.
			feed.enterSpace("s3", 3)
			Eventually(dockProcess.restartCount).Should(Equal(1))

			feed.enterSpace("s5", 5)
			Eventually(dockProcess.restartCount).Should(Equal(2))
			Expect(dockPrefs.lastWrite()).To(Equal([][]byte{[]byte("mail-tile")}))
		})
	})
})
