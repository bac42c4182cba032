// Package echo is a minimal registry sample program: it reads exactly one
// byte from stdin, writes it back to stdout, then exits with Status-OK.
package echo

import (
	"github.com/devdnl/dnxcore/pkg/appreg"
	"github.com/devdnl/dnxcore/pkg/ksync"
	"github.com/devdnl/dnxcore/pkg/stdio"
)

// Name is the registry name this program is registered under.
const Name = "echo"

// StackHint is the task stack size requested for instances of this
// program.
const StackHint = 2048

// Run is the entry function registered in the application registry.
func Run(ctx *appreg.ProcContext) {
	defer ctx.Terminate(0)

	b, err := ctx.Stdio.Getch(ksync.MaxDelay)
	if err != nil {
		_ = ctx.Stdio.Putch(stdio.StatusError, ksync.MaxDelay)
		return
	}
	if werr := ctx.Stdio.Putch(b, ksync.MaxDelay); werr != nil {
		_ = ctx.Stdio.Putch(stdio.StatusError, ksync.MaxDelay)
		return
	}
	_ = ctx.Stdio.Putch(stdio.StatusOK, ksync.MaxDelay)
}

// Entry builds the appreg.Entry this program registers as.
func Entry() appreg.Entry {
	return appreg.Entry{Name: Name, Func: Run, StackHint: StackHint}
}
