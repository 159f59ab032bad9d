package station

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_EvictFinished(t *testing.T) {
	ts := newTestServer(t, 20*time.Millisecond, nil)
	id := ts.start(t, "herpes_zoster_002")
	ts.wait(t, id)

	assert.Zero(t, ts.mgr.Evict(time.Hour), "recently finished sessions stay")
	assert.Equal(t, 1, ts.mgr.Len())

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, ts.mgr.Evict(time.Millisecond))
	assert.Zero(t, ts.mgr.Len())
	_, ok := ts.mgr.Get(id)
	assert.False(t, ok)
}

func TestManager_EvictKeepsRunning(t *testing.T) {
	ts := newTestServer(t, time.Minute, nil)
	ts.start(t, "herpes_zoster_002")

	assert.Zero(t, ts.mgr.Evict(0))
	assert.Equal(t, 1, ts.mgr.Len())
}

func TestManager_StartUnknownCase(t *testing.T) {
	ts := newTestServer(t, time.Minute, nil)

	_, err := ts.mgr.Start(context.Background(), "appendicitis")
	var fatal *FatalDataError
	require.ErrorAs(t, err, &fatal)
	assert.Zero(t, ts.mgr.Len())
}
