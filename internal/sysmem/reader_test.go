package sysmem_test

import (
	"os/exec"
	"testing"
	"time"

	"github.com/programme-lv/membench/internal/sysmem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentRSSIsPositive(t *testing.T) {
	reader := sysmem.NewReader()
	rss, err := reader.CurrentRSS()
	require.NoError(t, err)
	assert.Greater(t, rss, int64(1024*1024), "a running Go test binary is larger than 1 MiB")
}

func TestProcessRSSOfMissingProcess(t *testing.T) {
	reader := sysmem.NewReader()
	// Far beyond any realistic pid_max.
	_, err := reader.ProcessRSS(1 << 30)
	assert.Error(t, err)
}

func TestAggregateWithoutChildrenMatchesCurrent(t *testing.T) {
	reader := sysmem.NewReader()

	current, err := reader.CurrentRSS()
	require.NoError(t, err)
	aggregate, err := reader.AggregateRSS(false)
	require.NoError(t, err)

	assert.InDelta(t, current, aggregate, 16*1024*1024,
		"back-to-back parent-only readings should be close")
}

func TestDescendantsTracksChildLifecycle(t *testing.T) {
	reader := sysmem.NewReader()

	cmd := exec.Command("sleep", "5")
	require.NoError(t, cmd.Start())
	childPid := cmd.Process.Pid

	require.Eventually(t, func() bool {
		for _, pid := range reader.Descendants() {
			if pid == childPid {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "live child should be enumerated")

	require.NoError(t, cmd.Process.Kill())
	_ = cmd.Wait()

	// Once reaped, the child must contribute nothing.
	require.Eventually(t, func() bool {
		for _, pid := range reader.Descendants() {
			if pid == childPid {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond, "exited child should disappear")

	parentOnly, err := reader.AggregateRSS(false)
	require.NoError(t, err)
	withChildren, err := reader.AggregateRSS(true)
	require.NoError(t, err)
	assert.InDelta(t, parentOnly, withChildren, 16*1024*1024,
		"no stale contribution from dead children")
}

func TestAggregateIncludesLiveChild(t *testing.T) {
	reader := sysmem.NewReader()

	cmd := exec.Command("sleep", "5")
	require.NoError(t, cmd.Start())
	defer func() {
		cmd.Process.Kill()
		cmd.Wait()
	}()

	require.Eventually(t, func() bool {
		childRSS, err := reader.ProcessRSS(cmd.Process.Pid)
		return err == nil && childRSS > 0
	}, 2*time.Second, 10*time.Millisecond)

	parentOnly, err := reader.AggregateRSS(false)
	require.NoError(t, err)
	withChildren, err := reader.AggregateRSS(true)
	require.NoError(t, err)
	assert.Greater(t, withChildren, parentOnly,
		"aggregate over the tree must include the live child")
}
