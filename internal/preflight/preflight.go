// Package preflight verifies the host environment before services start:
// writable data directories, free disk space, and reachability of the
// connectivity probe endpoint.
package preflight

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"savesync/internal/config"
)

// minFreeBytes is the floor below which queue growth becomes risky.
const minFreeBytes = 64 << 20

// Result captures the outcome of one check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Run executes every check and returns their results. A failed check does
// not stop the remaining ones.
func Run(ctx context.Context, cfg *config.Config) []Result {
	results := []Result{
		checkDirectory("data directory", cfg.Paths.DataDir),
		checkDirectory("log directory", cfg.Paths.LogDir),
		checkDiskSpace(cfg.Paths.DataDir),
	}
	if cfg.Features.NetworkMonitoring {
		results = append(results, checkProbeEndpoint(ctx, cfg))
	}
	return results
}

// Passed reports whether every result succeeded.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

func checkDirectory(label, dir string) Result {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{Name: label, Detail: fmt.Sprintf("create %s: %v", dir, err)}
	}
	if err := unix.Access(dir, unix.W_OK); err != nil {
		return Result{Name: label, Detail: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	return Result{Name: label, Passed: true, Detail: dir}
}

func checkDiskSpace(dir string) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return Result{Name: "disk space", Detail: fmt.Sprintf("statfs %s: %v", dir, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < minFreeBytes {
		return Result{
			Name:   "disk space",
			Detail: fmt.Sprintf("only %d MiB free under %s", free>>20, dir),
		}
	}
	return Result{Name: "disk space", Passed: true, Detail: fmt.Sprintf("%d MiB free", free>>20)}
}

func checkProbeEndpoint(ctx context.Context, cfg *config.Config) Result {
	timeout := time.Duration(cfg.Network.PingTimeoutMS) * time.Millisecond
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, cfg.Network.PingURL, nil)
	if err != nil {
		return Result{Name: "probe endpoint", Detail: fmt.Sprintf("build request: %v", err)}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{Name: "probe endpoint", Detail: fmt.Sprintf("unreachable: %v", err)}
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 500 {
		return Result{Name: "probe endpoint", Detail: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	return Result{Name: "probe endpoint", Passed: true, Detail: cfg.Network.PingURL}
}
