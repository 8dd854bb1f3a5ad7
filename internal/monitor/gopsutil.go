package monitor

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/hostwatch/collector/internal/telemetry"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// gopsutilProcessTable reads the process table through gopsutil.
type gopsutilProcessTable struct{}

func (gopsutilProcessTable) PIDs(ctx context.Context) ([]int32, error) {
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}
	return pids, nil
}

// Inspect fails only when the process name cannot be read, which means
// the process is gone. Kernel threads have no executable or command line;
// those come back empty.
func (gopsutilProcessTable) Inspect(ctx context.Context, pid int32) (ProcessInfo, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return ProcessInfo{}, err
	}
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return ProcessInfo{}, fmt.Errorf("reading name: %w", err)
	}
	exe, _ := p.ExeWithContext(ctx)
	args, _ := p.CmdlineSliceWithContext(ctx)
	return ProcessInfo{
		PID:  pid,
		Name: name,
		Exe:  exe,
		Args: args,
	}, nil
}

// gopsutilConnectionTable reads the TCP table (IPv4 and IPv6) through
// gopsutil, which resolves each socket inode to its owning process.
type gopsutilConnectionTable struct{}

func (gopsutilConnectionTable) Connections(ctx context.Context) ([]Connection, error) {
	stats, err := psnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return nil, fmt.Errorf("reading tcp table: %w", err)
	}

	conns := make([]Connection, 0, len(stats))
	for _, s := range stats {
		pid := s.Pid
		if pid <= 0 {
			pid = telemetry.UnresolvedPID
		}
		conns = append(conns, Connection{
			Local:  formatAddr(s.Laddr),
			Remote: formatAddr(s.Raddr),
			State:  s.Status,
			PID:    pid,
		})
	}
	return conns, nil
}

func formatAddr(a psnet.Addr) string {
	ip := a.IP
	if ip == "" {
		ip = "0.0.0.0"
	}
	return net.JoinHostPort(ip, strconv.FormatUint(uint64(a.Port), 10))
}
