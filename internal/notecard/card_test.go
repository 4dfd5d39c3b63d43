package notecard

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCard is a scripted Notecard.
type fakeCard struct {
	mode          string
	connectAfter  int
	statusCalls   int
	syncPolls     int
	syncRemaining int
	postPayload   string
	failPostAt    int // 1-based web.post index that reports an error
	posts         int
	responses     map[string]Response
	reqs          []Request

	delay        time.Duration
	delaysOnPost []time.Duration
}

func newFakeCard() *fakeCard {
	return &fakeCard{mode: "periodic", delay: DefaultSegmentDelay, responses: map[string]Response{}}
}

func (f *fakeCard) Transaction(_ context.Context, req Request) (Response, error) {
	cp := Request{}
	for k, v := range req {
		cp[k] = v
	}
	f.reqs = append(f.reqs, cp)

	switch req.Name() {
	case "hub.get":
		return Response{"mode": f.mode}, nil
	case "hub.set":
		if m, ok := req["mode"].(string); ok {
			f.mode = m
		}
		return Response{}, nil
	case "hub.status":
		f.statusCalls++
		return Response{"connected": f.statusCalls > f.connectAfter}, nil
	case "hub.sync.status":
		if req["sync"] == true {
			f.syncRemaining = f.syncPolls
		}
		rsp := Response{"sync": f.syncRemaining > 0}
		f.syncRemaining--
		return rsp, nil
	case "web.post":
		f.posts++
		f.delaysOnPost = append(f.delaysOnPost, f.delay)
		if f.posts == f.failPostAt {
			return Response{"err": "fragment checksum mismatch"}, nil
		}
		rsp := Response{"result": float64(200)}
		if f.postPayload != "" {
			rsp["payload"] = f.postPayload
		}
		return rsp, nil
	}
	if rsp, ok := f.responses[req.Name()]; ok {
		return rsp, nil
	}
	return Response{}, nil
}

func (f *fakeCard) SegmentDelay() time.Duration     { return f.delay }
func (f *fakeCard) SetSegmentDelay(d time.Duration) { f.delay = d }

func (f *fakeCard) names() []string {
	out := make([]string, len(f.reqs))
	for i, r := range f.reqs {
		out[i] = r.Name()
	}
	return out
}

func (f *fakeCard) requests(name string) []Request {
	var out []Request
	for _, r := range f.reqs {
		if r.Name() == name {
			out = append(out, r)
		}
	}
	return out
}

type fakeClock struct {
	t      time.Time
	sleeps int
}

func newTestCard(f *fakeCard) (*Card, *fakeClock) {
	clk := &fakeClock{t: time.Date(2022, 9, 17, 12, 0, 0, 0, time.UTC)}
	c := New(f)
	c.now = func() time.Time { return clk.t }
	c.sleep = func(ctx context.Context, d time.Duration) error {
		clk.sleeps++
		clk.t = clk.t.Add(d)
		return ctx.Err()
	}
	return c, clk
}

func TestWebPostSingleTransaction(t *testing.T) {
	f := newFakeCard()
	c, _ := newTestCard(f)

	payload := bytes.Repeat([]byte("a"), 100)
	res, err := c.WebPost(context.Background(), "SavvyAnalysis", payload, PostOptions{Name: "123/"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Fragments)

	assert.Equal(t, []string{"hub.get", "hub.set", "hub.status", "web.post", "hub.set"}, f.names())
	post := f.requests("web.post")[0]
	assert.Equal(t, base64.StdEncoding.EncodeToString(payload), post["payload"])
	assert.Equal(t, "123/", post["name"])
	assert.NotContains(t, post, "total")
	assert.NotContains(t, post, "offset")
	assert.NotContains(t, post, "status")
	assert.NotContains(t, post, "verify")
	assert.Equal(t, "periodic", f.mode)
}

func TestWebPostFragmentation(t *testing.T) {
	tests := []struct {
		name      string
		length    int
		chunk     int
		fragments int
		split     bool
	}{
		{name: "empty payload", length: 0, chunk: 16, fragments: 1},
		{name: "equal to chunk", length: 16, chunk: 16, fragments: 1},
		{name: "one byte over", length: 17, chunk: 16, fragments: 2, split: true},
		{name: "exact multiple", length: 64, chunk: 16, fragments: 4, split: true},
		{name: "default chunk", length: 10000, chunk: 0, fragments: 3, split: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeCard()
			c, _ := newTestCard(f)

			payload := make([]byte, tt.length)
			for i := range payload {
				payload[i] = byte(i * 7)
			}
			res, err := c.WebPost(context.Background(), "route", payload, PostOptions{ChunkSize: tt.chunk})
			require.NoError(t, err)

			posts := f.requests("web.post")
			require.Len(t, posts, tt.fragments)
			assert.Equal(t, tt.fragments, res.Fragments)

			if !tt.split {
				assert.NotContains(t, posts[0], "verify")
				return
			}

			var joined []byte
			for i, p := range posts {
				fragment, err := base64.StdEncoding.DecodeString(p["payload"].(string))
				require.NoError(t, err)
				sum := md5.Sum(fragment)

				assert.Equal(t, hex.EncodeToString(sum[:]), p["status"])
				assert.Equal(t, len(joined), p["offset"])
				assert.Equal(t, tt.length, p["total"])
				assert.Equal(t, true, p["verify"])
				assert.Equal(t, "route", p["route"], "fragment %d", i)
				joined = append(joined, fragment...)
			}
			assert.Equal(t, payload, joined)
		})
	}
}

func TestWebPostDecodesResponsePayload(t *testing.T) {
	f := newFakeCard()
	f.postPayload = base64.StdEncoding.EncodeToString([]byte(`{"status":"OK"}`))
	c, _ := newTestCard(f)

	res, err := c.WebPost(context.Background(), "route", []byte("x"), PostOptions{})
	require.NoError(t, err)
	assert.Equal(t, `{"status":"OK"}`, string(res.Body))
	assert.Equal(t, float64(200), res.Response["result"])
}

func TestWebPostDeviceErrorAbortsAndRestores(t *testing.T) {
	f := newFakeCard()
	f.failPostAt = 2
	c, _ := newTestCard(f)

	_, err := c.WebPost(context.Background(), "route", make([]byte, 100), PostOptions{ChunkSize: 10})
	var devErr *DeviceError
	require.True(t, errors.As(err, &devErr))
	assert.Equal(t, "web.post", devErr.Req)
	assert.Equal(t, "fragment checksum mismatch", devErr.Err)

	assert.Len(t, f.requests("web.post"), 2)
	assert.Equal(t, "periodic", f.mode)
	assert.Equal(t, DefaultSegmentDelay, f.delay)
}

func TestWebPostUsesShortSegmentDelay(t *testing.T) {
	f := newFakeCard()
	c, _ := newTestCard(f)

	_, err := c.WebPost(context.Background(), "route", make([]byte, 30), PostOptions{ChunkSize: 10})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{UploadSegmentDelay, UploadSegmentDelay, UploadSegmentDelay}, f.delaysOnPost)
	assert.Equal(t, DefaultSegmentDelay, f.delay)
}

func TestWithSegmentDelayRejectsShortDelay(t *testing.T) {
	c, _ := newTestCard(newFakeCard())
	called := false
	err := c.WithSegmentDelay(10*time.Millisecond, func() error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestWithModeRestoresOnFailure(t *testing.T) {
	f := newFakeCard()
	c, _ := newTestCard(f)

	boom := errors.New("boom")
	err := c.WithMode(context.Background(), ModeContinuous, false, 0, func(ctx context.Context) error {
		assert.Equal(t, "continuous", f.mode)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "periodic", f.mode)
	assert.Equal(t, []string{"hub.get", "hub.set", "hub.set"}, f.names())
}

func TestWithModeAlreadyInMode(t *testing.T) {
	f := newFakeCard()
	f.mode = "continuous"
	c, _ := newTestCard(f)

	err := c.WithMode(context.Background(), ModeContinuous, false, 0, func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.Empty(t, f.requests("hub.set"))
}

func TestWithModeWaitsForConnection(t *testing.T) {
	f := newFakeCard()
	f.connectAfter = 2
	c, clk := newTestCard(f)

	ran := false
	err := c.WithMode(context.Background(), ModeContinuous, true, time.Minute, func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 3, f.statusCalls)
	assert.Equal(t, 2, clk.sleeps)
}

func TestWithModeConnectionTimeout(t *testing.T) {
	f := newFakeCard()
	f.connectAfter = 1000
	c, _ := newTestCard(f)

	ran := false
	err := c.WithMode(context.Background(), ModeContinuous, true, 12*time.Second, func(ctx context.Context) error {
		ran = true
		return nil
	})
	var timeoutErr *ConnectionTimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.False(t, ran)
	assert.Equal(t, "periodic", f.mode)
	assert.Equal(t, 3, f.statusCalls)
}

func TestWithModeCancelledWhileWaiting(t *testing.T) {
	f := newFakeCard()
	f.connectAfter = 1000
	c, _ := newTestCard(f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.WithMode(ctx, ModeContinuous, true, 0, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "periodic", f.mode)
}

func TestSyncAndWait(t *testing.T) {
	f := newFakeCard()
	f.syncPolls = 3
	c, clk := newTestCard(f)

	require.NoError(t, c.SyncAndWait(context.Background(), 0))
	first := f.requests("hub.sync.status")[0]
	assert.Equal(t, true, first["sync"])
	assert.Len(t, f.requests("hub.sync.status"), 4)
	assert.Equal(t, 3, clk.sleeps)
}

func TestSyncAndWaitTimeoutIsSoft(t *testing.T) {
	f := newFakeCard()
	f.syncPolls = 1000
	c, clk := newTestCard(f)

	require.NoError(t, c.SyncAndWait(context.Background(), 3*time.Second))
	assert.Equal(t, 4, clk.sleeps)
}

func TestReportStatusRequestsPendingSync(t *testing.T) {
	f := newFakeCard()
	f.syncPolls = 1
	f.syncRemaining = 1
	f.responses["card.wireless"] = Response{"net": map[string]any{"bars": float64(3)}}
	f.responses["card.voltage"] = Response{"value": 4.2}
	f.responses["card.motion"] = Response{"count": float64(7)}
	f.responses["card.time"] = Response{"time": float64(1663416052), "zone": "EDT,America/New_York"}
	f.responses["card.location"] = Response{"lat": 39.07, "lon": -77.55}
	c, _ := newTestCard(f)

	st, err := c.ReportStatus(context.Background())
	require.NoError(t, err)

	assert.True(t, st.SyncPending)
	assert.Len(t, f.requests("hub.sync"), 1)
	assert.Equal(t, 3, st.Bars)
	assert.InDelta(t, 4.2, st.Voltage, 1e-9)
	assert.Equal(t, 7, st.Motion)
	assert.Equal(t, time.Unix(1663416052, 0).UTC(), st.CardTime)
	assert.True(t, st.HasLocation)
	assert.Equal(t, []string{
		"hub.status", "hub.sync.status", "hub.sync", "card.wireless",
		"card.voltage", "card.motion", "card.time", "card.location",
	}, f.names())
}

func TestTimeUnknown(t *testing.T) {
	f := newFakeCard()
	f.responses["card.time"] = Response{"time": float64(1663416052), "zone": "UTC,Unknown"}
	c, _ := newTestCard(f)

	got, err := c.Time(context.Background())
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestStartup(t *testing.T) {
	f := newFakeCard()
	f.responses["card.version"] = Response{"version": "notecard-5.3.1"}
	f.responses["env.get"] = Response{"body": map[string]any{
		"opensync_poll_period": "30s",
		"opensync_force":       "true",
		"unrelated":            "x",
	}}
	c, _ := newTestCard(f)

	env, err := c.Startup(context.Background(), "com.example:opensync")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"poll_period": "30s", "force": "true"}, env)

	set := f.requests("hub.set")[0]
	assert.Equal(t, "periodic", set["mode"])
	assert.Equal(t, "com.example:opensync", set["product"])
	assert.Equal(t, "Open Sync Has Started", f.requests("hub.log")[0]["text"])
}

func TestEnableTrackingStopsOnDeviceError(t *testing.T) {
	f := newFakeCard()
	f.responses["card.location.track"] = Response{"err": "no GPS"}
	c, _ := newTestCard(f)

	err := c.EnableTracking(context.Background())
	var devErr *DeviceError
	require.True(t, errors.As(err, &devErr))
	assert.Equal(t, []string{"card.location.mode", "card.location.track"}, f.names())
}
