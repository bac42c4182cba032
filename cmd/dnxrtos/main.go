// Command dnxrtos boots a kernel context in-process: the simulated board.
// It registers the console and memdrv drivers, mounts the static
// filesystem table, registers the sample programs, and runs the init
// daemon's bootstrap-then-pump sequence.
package main

import (
	"log"
	"os"
	"time"

	"github.com/devdnl/dnxcore/apps/date"
	"github.com/devdnl/dnxcore/apps/echo"
	"github.com/devdnl/dnxcore/drivers/console"
	"github.com/devdnl/dnxcore/drivers/memdrv"
	"github.com/devdnl/dnxcore/pkg/boot"
	"github.com/devdnl/dnxcore/pkg/klog"
)

const (
	heapSize    = 1 << 20 // 1 MiB static heap
	logCapacity = 16 << 10
)

func main() {
	k := boot.NewKernel(heapSize, logCapacity)

	if err := k.InitConsole("/dev/console", console.New(os.Stdin, os.Stdout)); err != nil {
		log.Fatalf("console init failed: %s", err)
	}

	specs, csvErr := boot.DefaultMountTable()
	if csvErr != nil {
		log.Fatalf("mount table parse failed: %s", csvErr)
	}
	if err := k.MountAll(specs); err != nil {
		log.Fatalf("mount failed: %s", err)
	}

	collaborators := []boot.Collaborator{
		{
			Name: "memdrv",
			Up: func(k *boot.Kernel) error {
				if err := k.Drivers.Register(memdrv.New()); err != nil {
					return err
				}
				key, err := k.Drivers.Init(memdrv.Name, 0, 0, "/dev/mem0", memdrv.Config{Size: 64 << 10})
				if err != nil {
					return err
				}
				k.Devfs.Bind("/dev/mem0", key)
				return nil
			},
		},
	}
	if err := k.BringUpCollaborators(collaborators); err != nil {
		k.Log.Log(klog.LevelWarn, "one or more collaborators failed: %s", err)
	}

	k.Apps.Register(echo.Entry())
	k.Apps.Register(date.Entry(time.Now))

	status, err := k.Run("echo", nil)
	if err != nil {
		log.Fatalf("init daemon failed: %s", err)
	}
	os.Exit(status)
}
