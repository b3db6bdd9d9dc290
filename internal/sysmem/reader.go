package sysmem

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Reader queries resident set sizes through /proc. All values are in bytes.
type Reader struct {
	pageSize int64
	procRoot string
}

func NewReader() *Reader {
	return &Reader{
		pageSize: int64(os.Getpagesize()),
		procRoot: "/proc",
	}
}

// CurrentRSS returns the resident set size of the calling process.
func (r *Reader) CurrentRSS() (int64, error) {
	rss, err := r.ProcessRSS(os.Getpid())
	if err == nil {
		return rss, nil
	}
	// getrusage reports the high-water mark, not the current value, but it
	// keeps the reader working on unixes without a /proc filesystem.
	var usage unix.Rusage
	if rerr := unix.Getrusage(unix.RUSAGE_SELF, &usage); rerr == nil {
		return usage.Maxrss * 1024, nil
	}
	return 0, fmt.Errorf("read current rss: %w", err)
}

// ProcessRSS returns the resident set size of an arbitrary process. A process
// that has exited yields an error; callers aggregating over children are
// expected to skip it.
func (r *Reader) ProcessRSS(pid int) (int64, error) {
	statm := fmt.Sprintf("%s/%d/statm", r.procRoot, pid)
	data, err := os.ReadFile(statm)
	if err == nil {
		fields := strings.Fields(string(data))
		if len(fields) >= 2 {
			pages, perr := strconv.ParseInt(fields[1], 10, 64)
			if perr == nil {
				return pages * r.pageSize, nil
			}
		}
		return 0, fmt.Errorf("malformed %s: %q", statm, string(data))
	}
	if rss, serr := r.rssFromStatus(pid); serr == nil {
		return rss, nil
	}
	return 0, fmt.Errorf("read rss of pid %d: %w", pid, err)
}

func (r *Reader) rssFromStatus(pid int) (int64, error) {
	data, err := os.ReadFile(fmt.Sprintf("%s/%d/status", r.procRoot, pid))
	if err != nil {
		return 0, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		kb, perr := strconv.ParseInt(fields[1], 10, 64)
		if perr != nil {
			break
		}
		return kb * 1024, nil
	}
	return 0, fmt.Errorf("no VmRSS line in status of pid %d", pid)
}

// AggregateRSS returns the caller's RSS, plus the RSS of every live
// descendant process when includeChildren is set. Descendants that exit
// between enumeration and the per-process query contribute zero; such races
// are routine while child processes are winding down.
func (r *Reader) AggregateRSS(includeChildren bool) (int64, error) {
	total, err := r.CurrentRSS()
	if err != nil {
		return 0, err
	}
	if !includeChildren {
		return total, nil
	}
	for _, pid := range r.Descendants() {
		rss, err := r.ProcessRSS(pid)
		if err != nil {
			continue
		}
		total += rss
	}
	return total, nil
}

// Descendants enumerates the pids of all live descendants of the calling
// process by walking parent links from a single /proc scan. The snapshot is
// best-effort: processes may appear or vanish while it is taken.
func (r *Reader) Descendants() []int {
	entries, err := os.ReadDir(r.procRoot)
	if err != nil {
		return nil
	}

	childrenOf := make(map[int][]int)
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		ppid, err := r.parentOf(pid)
		if err != nil {
			continue
		}
		childrenOf[ppid] = append(childrenOf[ppid], pid)
	}

	var descendants []int
	frontier := []int{os.Getpid()}
	for len(frontier) > 0 {
		pid := frontier[0]
		frontier = frontier[1:]
		for _, child := range childrenOf[pid] {
			descendants = append(descendants, child)
			frontier = append(frontier, child)
		}
	}
	return descendants
}

// parentOf reads the ppid from /proc/<pid>/stat. The comm field may contain
// spaces and parentheses, so parsing starts after the last ')'.
func (r *Reader) parentOf(pid int) (int, error) {
	data, err := os.ReadFile(fmt.Sprintf("%s/%d/stat", r.procRoot, pid))
	if err != nil {
		return 0, err
	}
	stat := string(data)
	idx := strings.LastIndexByte(stat, ')')
	if idx < 0 || idx+2 >= len(stat) {
		return 0, fmt.Errorf("malformed stat for pid %d", pid)
	}
	fields := strings.Fields(stat[idx+2:])
	if len(fields) < 2 {
		return 0, fmt.Errorf("malformed stat for pid %d", pid)
	}
	return strconv.Atoi(fields[1])
}
