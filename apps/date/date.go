// Package date is a small registry sample program: it reads nothing from
// stdin and writes the current time to stdout, then a Status-OK sentinel.
// The clock is injected rather than read from time.Now directly, so the
// program's behavior is reproducible in tests.
package date

import (
	"time"

	"github.com/devdnl/dnxcore/pkg/appreg"
	"github.com/devdnl/dnxcore/pkg/ksync"
	"github.com/devdnl/dnxcore/pkg/stdio"
)

// Name is the registry name this program is registered under.
const Name = "date"

// StackHint is the task stack size requested for instances of this
// program.
const StackHint = 1024

// Entry builds the appreg.Entry this program registers as, sourcing the
// current time from now (pass time.Now in production, a fixed clock in
// tests).
func Entry(now func() time.Time) appreg.Entry {
	return appreg.Entry{
		Name:      Name,
		StackHint: StackHint,
		Func: func(ctx *appreg.ProcContext) {
			defer ctx.Terminate(0)

			text := now().UTC().Format(time.RFC3339) + "\n"
			for i := 0; i < len(text); i++ {
				if err := ctx.Stdio.Putch(text[i], ksync.MaxDelay); err != nil {
					_ = ctx.Stdio.Putch(stdio.StatusError, ksync.MaxDelay)
					return
				}
			}
			_ = ctx.Stdio.Putch(stdio.StatusOK, ksync.MaxDelay)
		},
	}
}
