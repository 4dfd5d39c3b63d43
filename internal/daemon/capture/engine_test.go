package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensync-io/opensync/internal/models"
	"github.com/opensync-io/opensync/internal/notecard"
	"github.com/opensync-io/opensync/internal/storage"
	"github.com/opensync-io/opensync/internal/store"
)

// flightLog renders a log with RPM above zero for six one-minute rows.
func flightLog() []byte {
	var b strings.Builder
	b.WriteString(`#airframe_info, log_version="1.00", airframe_name="Cessna 182T"` + "\n")
	b.WriteString("#yyy-mm-dd, hh:mm:ss, rpm\n")
	b.WriteString("Lcl Date, Lcl Time, E1 RPM\n")
	rpm := []int{0, 2500, 2500, 2500, 2500, 2500, 2500, 0, 0, 0}
	for i, r := range rpm {
		fmt.Fprintf(&b, "2022-09-17, 10:%02d:00, %d\n", i, r)
	}
	return []byte(b.String())
}

type fakeFile struct {
	size int64
	data []byte
}

type fakeFeed struct {
	files       map[string]*fakeFile
	downloads   []string
	lists       int
	versions    int
	downloadErr error
	versionErr  error
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{files: map[string]*fakeFile{}}
}

func (f *fakeFeed) put(name string, size int64, data []byte) {
	f.files[name] = &fakeFile{size: size, data: data}
}

func (f *fakeFeed) LogDir() string { return "/data_log" }

func (f *fakeFeed) Version(ctx context.Context) (string, error) {
	f.versions++
	return "test", f.versionErr
}

func (f *fakeFeed) List(ctx context.Context, dir string) ([]storage.File, error) {
	f.lists++
	var out []storage.File
	for name, file := range f.files {
		out = append(out, storage.File{Handle: dir + "/" + name, Name: name, Size: file.size})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeFeed) Download(ctx context.Context, handle string) ([]byte, error) {
	f.downloads = append(f.downloads, handle)
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return f.files[filepath.Base(handle)].data, nil
}

type fakeStore struct {
	records map[string]*models.ProcessedRecord
	inserts int
	updates int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]*models.ProcessedRecord{}}
}

func (s *fakeStore) FindByName(ctx context.Context, name string) (*models.ProcessedRecord, error) {
	rec, ok := s.records[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

func (s *fakeStore) Insert(ctx context.Context, rec *models.ProcessedRecord) error {
	if _, ok := s.records[rec.DisplayName]; ok {
		return errors.New("duplicate")
	}
	s.inserts++
	s.records[rec.DisplayName] = rec
	return nil
}

func (s *fakeStore) Update(ctx context.Context, rec *models.ProcessedRecord, name string) error {
	s.updates++
	s.records[name] = rec
	return nil
}

type fakeRelay struct {
	notified []string
	err      error
}

func (r *fakeRelay) Notify(ctx context.Context, rec *models.ProcessedRecord, raw []byte) error {
	r.notified = append(r.notified, rec.DisplayName)
	return r.err
}

type testEngine struct {
	*Engine
	feed  *fakeFeed
	store *fakeStore
	relay *fakeRelay
	clock time.Time
}

func newTestEngine(t *testing.T, configure func(*Options)) *testEngine {
	t.Helper()
	te := &testEngine{
		feed:  newFakeFeed(),
		store: newFakeStore(),
		relay: &fakeRelay{},
		clock: time.Date(2022, 9, 17, 12, 0, 0, 0, time.UTC),
	}
	opts := Options{Feed: te.feed, Store: te.store, Relay: te.relay, PollPeriod: time.Hour}
	if configure != nil {
		configure(&opts)
	}
	te.Engine = New(opts)
	te.Engine.now = func() time.Time { return te.clock }
	return te
}

func (te *testEngine) tick() {
	te.clock = te.clock.Add(10 * time.Second)
	te.poll(context.Background())
}

const logName = "log_220917_124302_KJYO.csv"

func TestStableFileProcessedOnSecondPoll(t *testing.T) {
	te := newTestEngine(t, nil)
	te.feed.put(logName, 1000, flightLog())

	te.tick()
	assert.Equal(t, []string{logName}, te.Pending())
	assert.Empty(t, te.feed.downloads)
	assert.Empty(t, te.store.records)

	te.tick()
	assert.Empty(t, te.Pending())
	assert.Len(t, te.feed.downloads, 1)
	require.Contains(t, te.store.records, logName)
	assert.Equal(t, []string{logName}, te.relay.notified)

	rec := te.store.records[logName]
	assert.Equal(t, "KJYO", rec.Origin)
	assert.InDelta(t, 0.1, rec.Summary.Hobbs(), 1e-9)
	assert.Equal(t, "Cessna 182T", rec.Summary.AirframeInfo["airframe_name"])
}

func TestGrowingFileDownloadedEagerly(t *testing.T) {
	te := newTestEngine(t, nil)
	te.feed.put(logName, 1000, flightLog())

	te.tick()
	assert.Empty(t, te.feed.downloads)

	te.feed.files[logName].size = 1500
	te.tick()
	assert.Len(t, te.feed.downloads, 1)
	assert.Equal(t, []string{logName}, te.Pending())
	assert.Empty(t, te.store.records)

	te.tick()
	assert.Len(t, te.feed.downloads, 1, "the buffered copy is summarized")
	assert.Empty(t, te.Pending())
	assert.Contains(t, te.store.records, logName)
}

func TestStableAfterDelaysProcessing(t *testing.T) {
	te := newTestEngine(t, func(o *Options) { o.StableAfter = 25 * time.Second })
	te.feed.put(logName, 1000, flightLog())

	te.tick()
	te.tick()
	te.tick()
	assert.Equal(t, []string{logName}, te.Pending(), "only 20s since first seen")

	te.tick()
	assert.Empty(t, te.Pending())
	assert.Contains(t, te.store.records, logName)
}

func TestProcessedFileIsSkipped(t *testing.T) {
	te := newTestEngine(t, nil)
	te.feed.put(logName, 1000, flightLog())
	te.tick()
	te.tick()
	require.Equal(t, 1, te.store.inserts)

	te.tick()
	te.tick()
	assert.Empty(t, te.Pending())
	assert.Len(t, te.feed.downloads, 1)

	rec, err := te.ProcessFile(context.Background(), logName, flightLog())
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, 1, te.store.inserts)
	assert.Zero(t, te.store.updates)
}

func TestForceReprocessesOncePerRun(t *testing.T) {
	te := newTestEngine(t, func(o *Options) { o.Force = true })
	te.store.records[logName] = models.NewProcessedRecord(logName)
	te.feed.put(logName, 1000, flightLog())

	te.tick()
	te.tick()
	assert.Equal(t, 1, te.store.updates)

	te.tick()
	te.tick()
	assert.Equal(t, 1, te.store.updates)
	assert.Empty(t, te.Pending())
}

func TestTransportErrorLeavesFilePending(t *testing.T) {
	te := newTestEngine(t, nil)
	te.feed.put("log_1_1_A.csv", 1000, flightLog())
	te.feed.put("log_1_2_B.csv", 1000, flightLog())
	te.tick()

	te.feed.files["log_1_1_A.csv"].size = 2000
	te.feed.files["log_1_2_B.csv"].size = 2000
	te.feed.downloadErr = &storage.TransportError{Op: "download", Err: errors.New("connection refused")}
	te.tick()

	assert.Len(t, te.feed.downloads, 1, "the tick stops at the first failure")
	assert.Equal(t, []string{"log_1_1_A.csv", "log_1_2_B.csv"}, te.Pending())
	assert.Nil(t, te.pending["log_1_1_A.csv"].data)
	assert.Equal(t, int64(1000), te.pending["log_1_1_A.csv"].size)

	te.feed.downloadErr = nil
	versions := te.feed.versions
	te.tick()
	assert.Equal(t, versions+1, te.feed.versions, "reconnects after a transport error")
	assert.Len(t, te.feed.downloads, 3)
}

func TestStableDownloadFailureKeepsEntry(t *testing.T) {
	te := newTestEngine(t, nil)
	te.feed.put(logName, 1000, flightLog())
	te.tick()

	te.feed.downloadErr = &storage.TransportError{Op: "download", Err: errors.New("timeout")}
	te.tick()
	assert.Equal(t, []string{logName}, te.Pending())
	assert.Empty(t, te.store.records)

	te.feed.downloadErr = nil
	te.tick()
	assert.Empty(t, te.Pending())
	assert.Contains(t, te.store.records, logName)
}

func TestSDCardUnavailable(t *testing.T) {
	te := newTestEngine(t, nil)
	te.feed.versionErr = &storage.TransportError{Op: "version", Err: errors.New("no route to host")}
	te.feed.put(logName, 1000, flightLog())

	te.tick()
	te.tick()
	assert.Zero(t, te.feed.lists)
	assert.Empty(t, te.Pending())
}

func TestNonLogFilesIgnored(t *testing.T) {
	te := newTestEngine(t, nil)
	te.feed.put("airframe_info.xml", 10, nil)
	te.feed.put("log_220917.csv", 10, nil)
	te.tick()
	assert.Empty(t, te.Pending())
}

func TestParseErrorIsPersistedNotRelayed(t *testing.T) {
	te := newTestEngine(t, nil)
	te.feed.put(logName, 100, []byte("not a g1000 log\n"))
	te.tick()
	te.tick()

	require.Contains(t, te.store.records, logName)
	rec := te.store.records[logName]
	assert.NotEmpty(t, rec.Error)
	assert.Nil(t, rec.Summary)
	assert.Empty(t, te.relay.notified)
	assert.Empty(t, te.Pending())

	te.tick()
	te.tick()
	assert.Len(t, te.feed.downloads, 1, "failed logs are not retried")
}

func TestRelayFailureKeepsRecord(t *testing.T) {
	te := newTestEngine(t, nil)
	te.relay.err = &notecard.DeviceError{Req: "web.post", Err: "no network"}
	te.feed.put(logName, 1000, flightLog())
	te.tick()
	te.tick()

	assert.Equal(t, []string{logName}, te.relay.notified)
	assert.Contains(t, te.store.records, logName)
}

type panicRelay struct{}

func (panicRelay) Notify(context.Context, *models.ProcessedRecord, []byte) error {
	panic("relay bug")
}

func TestPanicIsContained(t *testing.T) {
	te := newTestEngine(t, func(o *Options) { o.Relay = panicRelay{} })
	te.feed.put(logName, 1000, flightLog())
	te.feed.put("log_220917_150000_KHGR.csv", 1000, flightLog())
	te.tick()

	assert.NotPanics(t, te.tick)
	assert.Len(t, te.store.records, 2)
}

type fakeArchive map[string][]byte

func (a fakeArchive) Save(name string, data []byte) (string, error) {
	a[name] = data
	return "/archive/" + name, nil
}

func TestArchiveRecordsDataPath(t *testing.T) {
	archive := fakeArchive{}
	te := newTestEngine(t, func(o *Options) { o.Archive = archive })

	rec, err := te.ProcessFile(context.Background(), "/tmp/"+logName, flightLog())
	require.NoError(t, err)
	assert.Equal(t, "/archive/"+logName, rec.DataPath)
	assert.Equal(t, logName, rec.DisplayName)
	assert.Equal(t, flightLog(), archive[logName])
}

func TestOriginFromName(t *testing.T) {
	tests := map[string]string{
		"log_220917_124302_KJYO.csv":   "KJYO",
		"log_220917_122052______.csv":  UnknownOrigin,
		"flight.csv":                   UnknownOrigin,
		"log_220917_143703_KHGR_2.csv": "KHGR_2",
	}
	for name, want := range tests {
		assert.Equal(t, want, originFromName(name), name)
	}
}

func TestProcessFilesDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"log_220917_143703_KHGR.csv", "log_220917_124302_KJYO.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), flightLog(), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	te := newTestEngine(t, nil)
	require.NoError(t, te.ProcessFiles(context.Background(), []string{dir}))
	assert.Equal(t, []string{"log_220917_124302_KJYO.csv", "log_220917_143703_KHGR.csv"}, te.relay.notified)
}

func TestDrainSkipsEntriesWithoutData(t *testing.T) {
	te := newTestEngine(t, nil)
	te.pending["log_1_1_A.csv"] = &pendingEntry{size: 10, data: flightLog()}
	te.pending["log_1_2_B.csv"] = &pendingEntry{size: 10}

	te.drain(context.Background())
	assert.Empty(t, te.Pending())
	assert.Contains(t, te.store.records, "log_1_1_A.csv")
	assert.NotContains(t, te.store.records, "log_1_2_B.csv")
	assert.Equal(t, StateShuttingDown, te.State())
}

type fakePower struct {
	expireAfter int // Check calls before reporting expiry; 0 never expires
	battery     bool
	checks      int
}

func (p *fakePower) Check() bool {
	p.checks++
	return p.expireAfter > 0 && p.checks >= p.expireAfter
}

func (p *fakePower) BatteryAvailable(ctx context.Context) bool { return p.battery }

func TestRunShutsDownOnPowerLossBeforeNextPoll(t *testing.T) {
	pw := &fakePower{expireAfter: 3, battery: true}
	te := newTestEngine(t, func(o *Options) { o.Power = pw })
	te.powerPeriod = 5 * time.Millisecond
	te.pending[logName] = &pendingEntry{size: 10, data: flightLog()}

	err := te.Run(context.Background())
	assert.ErrorIs(t, err, ErrPowerLost)
	assert.Equal(t, 1, te.feed.lists, "only the initial poll ran")
	assert.Equal(t, StateTerminated, te.State())
	assert.Contains(t, te.store.records, logName, "pending files are drained")
}

func TestRunWithoutBatteryTerminatesWithoutDrain(t *testing.T) {
	pw := &fakePower{expireAfter: 3, battery: false}
	te := newTestEngine(t, func(o *Options) { o.Power = pw })
	te.powerPeriod = 5 * time.Millisecond
	te.pending[logName] = &pendingEntry{size: 10, data: flightLog()}

	err := te.Run(context.Background())
	assert.ErrorIs(t, err, ErrPowerLost)
	assert.Equal(t, 3, pw.checks, "ran until the grace period expired")
	assert.Empty(t, te.store.records)
	assert.Equal(t, StateTerminated, te.State())
}

func TestRunWithoutBatteryWaitsForGrace(t *testing.T) {
	// Power is lost but the grace period never expires.
	pw := &fakePower{battery: false}
	te := newTestEngine(t, func(o *Options) { o.Power = pw })
	te.powerPeriod = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, te.Run(ctx))
	assert.Greater(t, pw.checks, 1)
	assert.Equal(t, StateTerminated, te.State())
}

func TestRunCancelDrains(t *testing.T) {
	te := newTestEngine(t, nil)
	te.pending[logName] = &pendingEntry{size: 10, data: flightLog()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, te.Run(ctx))
	assert.Contains(t, te.store.records, logName)
	assert.Equal(t, StateTerminated, te.State())
}

func TestRunWakesEarly(t *testing.T) {
	wake := make(chan struct{}, 1)
	te := newTestEngine(t, func(o *Options) { o.Wake = wake })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- te.Run(ctx) }()

	wake <- struct{}{}
	require.Eventually(t, func() bool { return len(wake) == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 2, te.feed.lists)
}

type fakeLink struct {
	status    *notecard.Status
	locations int
}

func (l *fakeLink) ReportStatus(ctx context.Context) (*notecard.Status, error) {
	return l.status, nil
}

func (l *fakeLink) Location(ctx context.Context) (float64, float64, bool, error) {
	l.locations++
	return 39.6, -77.7, true, nil
}

func TestCardTimeSetsClock(t *testing.T) {
	var set []time.Time
	link := &fakeLink{status: &notecard.Status{}}
	te := newTestEngine(t, func(o *Options) {
		o.Link = link
		o.SetClock = func(t time.Time) error {
			set = append(set, t)
			return nil
		}
	})

	te.tick()
	assert.Empty(t, set, "unknown card time is ignored")

	link.status.CardTime = te.clock.Add(10*time.Second + time.Second)
	te.tick()
	assert.Empty(t, set, "1s drift is tolerated")

	link.status.CardTime = te.clock.Add(time.Minute)
	te.tick()
	assert.Equal(t, []time.Time{link.status.CardTime}, set)
}

func TestStandalonePollsLocationOnly(t *testing.T) {
	link := &fakeLink{}
	te := newTestEngine(t, func(o *Options) {
		o.Link = link
		o.Standalone = true
	})
	te.feed.put(logName, 10, flightLog())

	te.tick()
	assert.Equal(t, 1, link.locations)
	assert.Zero(t, te.feed.lists)
}
