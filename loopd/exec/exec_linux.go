package exec

import (
	"syscall"
)

// sysProcAttr makes the child die when we do, including when the daemon is
// stopped hard without any cleanup. The daemon is deliberately not a
// subreaper: it only ever waits on its direct child, so reparented
// grandchildren would pile up as zombies.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Pdeathsig: syscall.SIGTERM}
}
