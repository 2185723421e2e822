package matching

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSweeper_InvalidSpec(t *testing.T) {
	f := newFixture()

	c, err := f.svc.StartSweeper("every now and then")

	assert.Error(t, err)
	assert.Nil(t, c)
}

func TestStartSweeper_Schedules(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.svc.Join(context.Background(), anon("a"), []string{"chess"}))

	c, err := f.svc.StartSweeper("@every 1h")
	require.NoError(t, err)
	defer c.Stop()

	entries := c.Entries()
	require.Len(t, entries, 1)
	assert.WithinDuration(t, time.Now().Add(time.Hour), entries[0].Next, time.Minute)
	assert.True(t, f.svc.IsQueued("a"))
}
