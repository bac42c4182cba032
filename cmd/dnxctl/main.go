// Command dnxctl is the operator-facing CLI against a kernel context: it
// boots one in-process (there is no transport to a real running board),
// applies the requested subcommand, and prints the result.
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/devdnl/dnxcore/drivers/console"
	"github.com/devdnl/dnxcore/pkg/boot"
	"github.com/devdnl/dnxcore/pkg/ioctlnum"
)

const (
	heapSize    = 1 << 20
	logCapacity = 16 << 10
)

func newDemoKernel() (*boot.Kernel, error) {
	k := boot.NewKernel(heapSize, logCapacity)
	if err := k.InitConsole("/dev/console", console.New(os.Stdin, os.Stdout)); err != nil {
		return nil, err
	}
	specs, err := boot.DefaultMountTable()
	if err != nil {
		return nil, err
	}
	if err := k.MountAll(specs); err != nil {
		return nil, err
	}
	return k, nil
}

func main() {
	app := &cli.App{
		Name:  "dnxctl",
		Usage: "Inspect and drive a dnx-RTOS kernel context",
		Commands: []*cli.Command{
			{
				Name:      "mount",
				Usage:     "Mount a filesystem",
				ArgsUsage: "FSNAME SOURCE TARGET",
				Action:    cmdMount,
			},
			{
				Name:      "unmount",
				Usage:     "Unmount a mount point",
				ArgsUsage: "TARGET",
				Action:    cmdUnmount,
			},
			{
				Name:   "ps",
				Usage:  "List the application registry table",
				Action: cmdPS,
			},
			{
				Name:   "devls",
				Usage:  "List devfs bindings",
				Action: cmdDevls,
			},
			{
				Name:      "ioctl",
				Usage:     "Send a raw ioctl request number to a device path",
				ArgsUsage: "DEVICE_PATH REQUEST_HEX",
				Action:    cmdIoctl,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("dnxctl: %s", err)
	}
}

func cmdMount(c *cli.Context) error {
	if c.Args().Len() != 3 {
		return fmt.Errorf("mount requires FSNAME SOURCE TARGET")
	}
	k, err := newDemoKernel()
	if err != nil {
		return err
	}
	if err := k.VFS.Mount(c.Args().Get(0), c.Args().Get(1), c.Args().Get(2)); err != nil {
		return err
	}
	fmt.Printf("mounted %s at %s\n", c.Args().Get(0), c.Args().Get(2))
	return nil
}

func cmdUnmount(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("unmount requires TARGET")
	}
	k, err := newDemoKernel()
	if err != nil {
		return err
	}
	if err := k.VFS.Unmount(c.Args().Get(0)); err != nil {
		return err
	}
	fmt.Printf("unmounted %s\n", c.Args().Get(0))
	return nil
}

func cmdPS(c *cli.Context) error {
	k, err := newDemoKernel()
	if err != nil {
		return err
	}
	for _, e := range k.Apps.List() {
		fmt.Printf("%s\tstack=%d\n", e.Name, e.StackHint)
	}
	return nil
}

func cmdDevls(c *cli.Context) error {
	k, err := newDemoKernel()
	if err != nil {
		return err
	}
	for _, key := range k.Drivers.Instances() {
		path, _ := k.Drivers.DevicePath(key)
		fmt.Printf("%s\t%s (major=%d minor=%d)\n", path, key.Name, key.Major, key.Minor)
	}
	return nil
}

func cmdIoctl(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return fmt.Errorf("ioctl requires DEVICE_PATH REQUEST_HEX")
	}
	req, err := strconv.ParseUint(c.Args().Get(1), 0, 32)
	if err != nil {
		return fmt.Errorf("invalid request number: %w", err)
	}

	k, kerr := newDemoKernel()
	if kerr != nil {
		return kerr
	}

	f, ferr := k.VFS.Open(c.Args().Get(0), 0, 0)
	if ferr != nil {
		return ferr
	}
	defer k.VFS.Close(f)

	result, ierr := k.VFS.Ioctl(f, ioctlnum.Number(req), nil)
	if ierr != nil {
		return ierr
	}
	fmt.Printf("result: %v\n", result)
	return nil
}
