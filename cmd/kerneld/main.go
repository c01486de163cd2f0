// Command kerneld is the host daemon: it wires together the capability,
// memory, IPC, and audit subsystems behind the wire protocol of §4.10,
// accepting one client connection per thread of control. Grounded on
// original_source's agents/guardian daemon shape and biscuit's
// kernel/chentry.go top-level wiring of allocators/address
// spaces/dispatch tables at boot.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"corekernel/audit"
	"corekernel/cap"
	"corekernel/defs"
	"corekernel/dispatch"
	"corekernel/initrd"
	"corekernel/ipc"
	"corekernel/klog"
	"corekernel/limits"
	"corekernel/mem"
	"corekernel/paging"
	"corekernel/thread"
	"corekernel/vm"
	"corekernel/wire"
)

// kernel bundles every subsystem one running daemon owns.
type kernel struct {
	log *klog.Logger

	frames   *mem.FrameAllocator
	registry *cap.Registry
	limits   *limits.System
	threads  *thread.Registry
	regions  *ipc.RegionRegistry
	initrd   *initrd.Image
	audit    *audit.Log
	disp     *dispatch.Dispatcher

	// spacesMu guards spaces, the pid->AddressSpace process table. wire's
	// Server serves each connection on its own goroutine, so handle runs
	// concurrently for distinct threads; spacesMu sits above every lock
	// named in §5's fixed global order (address-space > VMA map >
	// page-table walk > frame allocator > endpoint > notification), since
	// a caller must find an AddressSpace here before taking any of those.
	spacesMu sync.RWMutex
	spaces   map[defs.Pid_t]*vm.AddressSpace
}

func (k *kernel) addressSpace(pid defs.Pid_t) *vm.AddressSpace {
	k.spacesMu.RLock()
	defer k.spacesMu.RUnlock()
	return k.spaces[pid]
}

func (k *kernel) setAddressSpace(pid defs.Pid_t, as *vm.AddressSpace) {
	k.spacesMu.Lock()
	defer k.spacesMu.Unlock()
	k.spaces[pid] = as
}

func newKernel(log *klog.Logger, nframes int, auditPath string) (*kernel, error) {
	al, err := audit.Open(auditPath, "kerneld", 64<<20, 30*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	k := &kernel{
		log:      log,
		frames:   mem.NewFrameAllocator(nframes),
		registry: cap.NewRegistry(),
		limits:   limits.Default(),
		threads:  thread.NewRegistry(),
		regions:  ipc.NewRegionRegistry(),
		initrd:   initrd.New(),
		audit:    al,
		disp:     dispatch.New(),
		spaces:   make(map[defs.Pid_t]*vm.AddressSpace),
	}
	k.registerSyscalls()
	return k, nil
}

// Syscall numbers within each range named in the external-interface
// table. Only the operations a hosted simulator can give real semantics
// to are wired; the remainder of each range is reserved for the ring
// opcodes and daemon RPCs that drive them indirectly (see DESIGN.md).
const (
	sysCapDerive   = dispatch.RangeCapabilityStart     // 16
	sysCapRevoke   = dispatch.RangeCapabilityStart + 1 // 17
	sysCapIdentify = dispatch.RangeCapabilityStart + 2 // 18
	sysCapGrant    = dispatch.RangeCapabilityStart + 3 // 19
	sysCapDrop     = dispatch.RangeCapabilityStart + 4 // 20

	sysMemMap   = dispatch.RangeMemoryStart     // 32
	sysMemUnmap = dispatch.RangeMemoryStart + 1 // 33
	sysMemAlloc = dispatch.RangeMemoryStart + 3 // 35
	sysMemFree  = dispatch.RangeMemoryStart + 4 // 36

	sysThreadCreate = dispatch.RangeThreadStart     // 64
	sysThreadExit   = dispatch.RangeThreadStart + 1 // 65
	sysThreadYield  = dispatch.RangeThreadStart + 2 // 66
	sysThreadJoin   = dispatch.RangeThreadStart + 4 // 68

	sysProcGetpid  = dispatch.RangeProcessStart + 3 // 83
	sysProcGetppid = dispatch.RangeProcessStart + 4 // 84

	sysSysGetTime = dispatch.RangeSystemStart // 240
	sysSysDebug   = dispatch.RangeSystemStart + 1
)

func (k *kernel) registerSyscalls() {
	k.registerSystemSyscalls()
	k.registerCapabilitySyscalls()
	k.registerMemorySyscalls()
	k.registerThreadSyscalls()
	k.registerProcessSyscalls()
}

func (k *kernel) registerSystemSyscalls() {
	k.disp.Register(sysSysGetTime, func(a dispatch.Args) dispatch.Result {
		return dispatch.Result{Value: time.Now().UnixNano(), Err: defs.EOK}
	})
	k.disp.Register(sysSysDebug, func(a dispatch.Args) dispatch.Result {
		k.log.Debugf("debug syscall: params=%v", a.Params)
		return dispatch.Result{Err: defs.EOK}
	})
}

func (k *kernel) registerCapabilitySyscalls() {
	k.disp.Register(sysCapDerive, func(a dispatch.Args) dispatch.Result {
		if a.Thread == nil {
			return dispatch.Result{Err: defs.EInvalidArgument}
		}
		slot, err := a.Thread.CSpace.Derive(a.CapSlot, cap.Rights(a.Params[0]))
		if err != defs.EOK {
			return dispatch.Result{Err: err}
		}
		return dispatch.Result{Value: int64(slot), Err: defs.EOK}
	})
	k.disp.Register(sysCapRevoke, func(a dispatch.Args) dispatch.Result {
		if a.Thread == nil {
			return dispatch.Result{Err: defs.EInvalidArgument}
		}
		return dispatch.Result{Err: a.Thread.CSpace.Revoke(a.CapSlot)}
	})
	k.disp.Register(sysCapIdentify, func(a dispatch.Args) dispatch.Result {
		if a.Thread == nil {
			return dispatch.Result{Err: defs.EInvalidArgument}
		}
		c, err := a.Thread.CSpace.Lookup(a.CapSlot)
		if err != defs.EOK {
			return dispatch.Result{Err: err}
		}
		return dispatch.Result{Value: int64(c.Object.Id), Err: defs.EOK}
	})
	k.disp.Register(sysCapGrant, func(a dispatch.Args) dispatch.Result {
		if a.Thread == nil {
			return dispatch.Result{Err: defs.EInvalidArgument}
		}
		dstThread, ok := k.threads.Lookup(defs.Tid_t(a.Params[0]))
		if !ok {
			return dispatch.Result{Err: defs.ENotFound}
		}
		move := a.Params[2] != 0
		slot, err := a.Thread.CSpace.Grant(a.CapSlot, dstThread.CSpace, cap.Rights(a.Params[1]), move)
		if err != defs.EOK {
			return dispatch.Result{Err: err}
		}
		return dispatch.Result{Value: int64(slot), Err: defs.EOK}
	})
	k.disp.Register(sysCapDrop, func(a dispatch.Args) dispatch.Result {
		if a.Thread == nil {
			return dispatch.Result{Err: defs.EInvalidArgument}
		}
		return dispatch.Result{Err: a.Thread.CSpace.Drop(a.CapSlot)}
	})
}

func (k *kernel) registerMemorySyscalls() {
	allocOrMap := func(a dispatch.Args) dispatch.Result {
		if a.AS == nil {
			return dispatch.Result{Err: defs.EInvalidArgument}
		}
		size := a.Size
		if size == 0 || size%mem.PageSize != 0 {
			return dispatch.Result{Err: defs.EInvalidArgument}
		}
		start := mem.VA(a.VA)
		prot := paging.ProtRead | paging.ProtWrite | paging.ProtUser
		if a.Flags&1 != 0 {
			prot |= paging.ProtExec
		}
		vma := &vm.VMA{Start: start, End: start + mem.VA(size), Prot: prot, Backing: vm.BackAnonymous}
		if err := a.AS.Map(vma); err != defs.EOK {
			return dispatch.Result{Err: err}
		}
		return dispatch.Result{Value: int64(start), Err: defs.EOK}
	}
	freeOrUnmap := func(a dispatch.Args) dispatch.Result {
		if a.AS == nil {
			return dispatch.Result{Err: defs.EInvalidArgument}
		}
		return dispatch.Result{Err: a.AS.Unmap(mem.VA(a.VA), a.Size)}
	}
	// map and alloc share anon-mapping semantics in this simulator, since
	// there is no file-backed mmap source distinct from the alloc path.
	k.disp.Register(sysMemAlloc, allocOrMap)
	k.disp.Register(sysMemMap, allocOrMap)
	k.disp.Register(sysMemFree, freeOrUnmap)
	k.disp.Register(sysMemUnmap, freeOrUnmap)
}

func (k *kernel) registerThreadSyscalls() {
	k.disp.Register(sysThreadCreate, func(a dispatch.Args) dispatch.Result {
		if !k.limits.Threads.Take() {
			return dispatch.Result{Err: defs.EOutOfMemory}
		}
		id := k.registry.Mint(defs.ObjThread)
		var pid defs.Pid_t
		if a.Thread != nil {
			pid = a.Thread.Pid
		} else {
			// No caller thread means this is the first thread of a fresh
			// process: mint it an address space too.
			asid := k.registry.Mint(defs.ObjAddressSpace)
			pid = defs.Pid_t(asid.Id)
			as, err := vm.New(asid, k.frames)
			if err != defs.EOK {
				return dispatch.Result{Err: err}
			}
			k.setAddressSpace(pid, as)
		}
		t := thread.New(defs.Tid_t(id.Id), pid, cap.NewCSpace())
		k.threads.Add(t)
		k.audit.Append(fmt.Sprintf("thread_create tid=%d", t.ID))
		return dispatch.Result{Value: int64(t.ID), Err: defs.EOK}
	})
	k.disp.Register(sysThreadExit, func(a dispatch.Args) dispatch.Result {
		if a.Thread == nil {
			return dispatch.Result{Err: defs.EInvalidArgument}
		}
		a.Thread.MarkDead()
		k.threads.Remove(a.Thread.ID)
		k.limits.Threads.Give()
		k.audit.Append(fmt.Sprintf("thread_exit tid=%d", a.Thread.ID))
		return dispatch.Result{Err: defs.EOK}
	})
	k.disp.Register(sysThreadYield, func(a dispatch.Args) dispatch.Result {
		return dispatch.Result{Err: defs.EOK}
	})
	k.disp.Register(sysThreadJoin, func(a dispatch.Args) dispatch.Result {
		target, ok := k.threads.Lookup(defs.Tid_t(a.Params[0]))
		if !ok {
			return dispatch.Result{Err: defs.ENotFound}
		}
		if target.Alive() {
			return dispatch.Result{Err: defs.EWouldBlock}
		}
		return dispatch.Result{Err: defs.EOK}
	})
}

func (k *kernel) registerProcessSyscalls() {
	k.disp.Register(sysProcGetpid, func(a dispatch.Args) dispatch.Result {
		if a.Thread == nil {
			return dispatch.Result{Err: defs.EInvalidArgument}
		}
		return dispatch.Result{Value: int64(a.Thread.Pid), Err: defs.EOK}
	})
	k.disp.Register(sysProcGetppid, func(a dispatch.Args) dispatch.Result {
		return dispatch.Result{Value: 0, Err: defs.EOK}
	})
}

func (k *kernel) loadInitrd(path, format string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var ierr defs.Err_t
	switch format {
	case "cpio":
		ierr = k.initrd.ParseCPIO(f)
	case "tar":
		ierr = k.initrd.ParseTAR(f)
	default:
		return fmt.Errorf("unknown initrd format %q", format)
	}
	if ierr != defs.EOK {
		return fmt.Errorf("parse initrd: %v", ierr)
	}
	k.log.Infof("loaded initrd %s (%s), %d entries", path, format, k.initrd.EntryCount())
	return nil
}

func (k *kernel) handle(req wire.Request) wire.Response {
	t, _ := k.threads.Lookup(defs.Tid_t(req.ThreadID))
	var as *vm.AddressSpace
	if t != nil {
		as = k.addressSpace(t.Pid)
	}
	res := k.disp.Dispatch(req.Syscall, dispatch.Args{
		Thread:  t,
		AS:      as,
		CapSlot: cap.Slot(req.CapSlot),
		VA:      req.VA,
		Size:    req.Size,
		Params:  req.Params,
	})
	if res.Trace != "" {
		k.audit.Append(fmt.Sprintf("handler_panic syscall=%d %s", req.Syscall, res.Trace))
		k.log.Errorf("recovered handler panic: %s", res.Trace)
	}
	if res.Err != defs.EOK {
		return wire.Response{Status: "error", Err: int(res.Err), Message: res.Err.String()}
	}
	return wire.Response{Status: "ok", Value: res.Value}
}

func main() {
	var (
		socketPath string
		auditPath  string
		nframes    = frameCount(1 << 16)
		initrdPath string
		initrdFmt  string
		logLevel   string
	)

	root := &cobra.Command{
		Use:   "kerneld",
		Short: "Run the capability-kernel host daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			lvl := klog.LevelInfo
			switch logLevel {
			case "debug":
				lvl = klog.LevelDebug
			case "warn":
				lvl = klog.LevelWarn
			case "error":
				lvl = klog.LevelError
			}
			log := klog.New(os.Stderr, lvl)

			k, err := newKernel(log, int(nframes), auditPath)
			if err != nil {
				return err
			}
			defer k.audit.Close()

			if initrdPath != "" {
				if err := k.loadInitrd(initrdPath, initrdFmt); err != nil {
					return err
				}
			}

			srv := wire.NewServer(socketPath, k.handle)
			if err := srv.Listen(); err != nil {
				return err
			}
			log.Infof("listening on %s", socketPath)

			go func() {
				if err := srv.Serve(); err != nil {
					log.Errorf("serve: %v", err)
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			log.Infof("shutting down")
			return srv.Close()
		},
	}

	root.Flags().StringVar(&socketPath, "socket", "/run/kerneld.sock", "daemon Unix socket path")
	root.Flags().StringVar(&auditPath, "audit-log", "/var/log/kerneld/audit.log", "audit log path")
	frameFlags := pflag.NewFlagSet("kerneld-extra", pflag.ContinueOnError)
	frameFlags.VarP(&nframes, "frames", "", "number of simulated physical frames (accepts Ki/Mi suffixes)")
	root.Flags().AddFlagSet(frameFlags)
	root.Flags().StringVar(&initrdPath, "initrd", "", "initial-ramdisk image to load")
	root.Flags().StringVar(&initrdFmt, "initrd-format", "cpio", "initrd format: cpio or tar")
	root.Flags().StringVar(&logLevel, "log-level", "info", "debug|info|warn|error")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "kerneld:", err)
		os.Exit(1)
	}
}
