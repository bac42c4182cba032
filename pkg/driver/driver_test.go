package driver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devdnl/dnxcore/pkg/driver"
	"github.com/devdnl/dnxcore/pkg/kernerr"
)

func stubDescriptor() driver.Descriptor {
	return driver.Descriptor{
		Name: "stub",
		Ops: driver.Ops{
			Init: func(major, minor int, path string, _ any) (driver.State, kernerr.Error) {
				return &struct{ path string }{path: path}, nil
			},
			Stat: func(driver.State) (driver.Stat, kernerr.Error) {
				return driver.Stat{Kind: driver.KindChar}, nil
			},
		},
	}
}

func TestInstanceListHasNoDuplicates(t *testing.T) {
	fw := driver.New()
	require.NoError(t, fw.Register(stubDescriptor()))

	key, err := fw.Init("stub", 0, 0, "/dev/stub0", nil)
	require.NoError(t, err)

	_, err = fw.Init("stub", 0, 0, "/dev/stub0", nil)
	assert.ErrorIs(t, err, kernerr.Busy)

	instances := fw.Instances()
	require.Len(t, instances, 1)
	assert.Equal(t, key, instances[0])
}

func TestReleaseFailsWhileHandlesAreOpen(t *testing.T) {
	fw := driver.New()
	require.NoError(t, fw.Register(stubDescriptor()))

	key, err := fw.Init("stub", 0, 0, "/dev/stub0", nil)
	require.NoError(t, err)
	require.NoError(t, fw.Open(key, driver.OpenRead))

	assert.ErrorIs(t, fw.Release(key), kernerr.Busy)

	require.NoError(t, fw.Close(key, false))
	assert.NoError(t, fw.Release(key))
}

func TestUnsupportedOpReturnsNotSupported(t *testing.T) {
	fw := driver.New()
	require.NoError(t, fw.Register(stubDescriptor()))
	key, err := fw.Init("stub", 0, 0, "/dev/stub0", nil)
	require.NoError(t, err)

	_, rerr := fw.Read(key, make([]byte, 1), 0, driver.OpenRead)
	assert.ErrorIs(t, rerr, kernerr.NotSupported)
}
