package ioctlnum_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/devdnl/dnxcore/pkg/ioctlnum"
)

func declaredConstants() map[string]ioctlnum.Number {
	return map[string]ioctlnum.Number{
		"DeviceGetMinor":     ioctlnum.IoctlDeviceGetMinor,
		"DeviceGetMajor":     ioctlnum.IoctlDeviceGetMajor,
		"DeviceSyncCache":    ioctlnum.IoctlDeviceSyncCache,
		"ConsoleSetBaudrate": ioctlnum.IoctlConsoleSetBaudrate,
		"ConsoleGetBaudrate": ioctlnum.IoctlConsoleGetBaudrate,
		"ConsoleFlushRx":     ioctlnum.IoctlConsoleFlushRx,
		"StorageGetGeometry": ioctlnum.IoctlStorageGetGeometry,
		"StorageTrim":        ioctlnum.IoctlStorageTrim,
		"NetworkGetLinkStatus": ioctlnum.IoctlNetworkGetLinkStatus,
	}
}

func TestDeclaredConstantsAreUnique(t *testing.T) {
	seen := make(map[ioctlnum.Number]string)
	for name, num := range declaredConstants() {
		if existing, dup := seen[num]; dup {
			t.Fatalf("%s and %s collide on request number %#x", name, existing, uint32(num))
		}
		seen[num] = name
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		group  ioctlnum.Group
		dir    ioctlnum.Direction
		size   uint16
		number uint8
	}{
		{ioctlnum.GroupConsole, ioctlnum.DirWrite, 4, 0},
		{ioctlnum.GroupStorage, ioctlnum.DirRead, 24, 7},
		{ioctlnum.GroupGeneric, ioctlnum.DirNone, 0, 255},
	}

	for _, c := range cases {
		encoded := ioctlnum.Encode(c.group, c.dir, c.size, c.number)
		group, dir, size, number := ioctlnum.Decode(encoded)
		assert.Equal(t, c.group, group)
		assert.Equal(t, c.dir, dir)
		assert.Equal(t, c.size, size)
		assert.Equal(t, c.number, number)
	}
}

func TestDeclaredConstantsDecodeToTheirGroup(t *testing.T) {
	group, _, _, _ := ioctlnum.Decode(ioctlnum.IoctlConsoleSetBaudrate)
	assert.Equal(t, ioctlnum.GroupConsole, group)

	group, _, _, _ = ioctlnum.Decode(ioctlnum.IoctlStorageGetGeometry)
	assert.Equal(t, ioctlnum.GroupStorage, group)
}
