package system

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// HostStats is one reading of the coprocessor's load.
type HostStats struct {
	CPUPercent       float64 `json:"cpu_percent"`
	MemTotalBytes    uint64  `json:"mem_total_bytes"`
	MemUsedBytes     uint64  `json:"mem_used_bytes"`
	TemperatureMilli int64   `json:"temperature_millic,omitempty"`
}

type cpuTimes struct {
	idle  uint64
	total uint64
}

// HostSampler reads /proc and the thermal zone. CPU usage is measured
// between consecutive Sample calls, so the first reading reports 0.
type HostSampler struct {
	procRoot string
	sysRoot  string

	mu   sync.Mutex
	prev cpuTimes
	last HostStats
}

func NewHostSampler() *HostSampler {
	return NewHostSamplerAt("/proc", "/sys")
}

func NewHostSamplerAt(procRoot, sysRoot string) *HostSampler {
	return &HostSampler{procRoot: procRoot, sysRoot: sysRoot}
}

func (s *HostSampler) Sample() (HostStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := readFile(filepath.Join(s.procRoot, "stat"), parseCPUTimes)
	if err != nil {
		return s.last, err
	}
	mem, err := readFile(filepath.Join(s.procRoot, "meminfo"), parseMemInfo)
	if err != nil {
		return s.last, err
	}

	stats := HostStats{
		CPUPercent:    cpuPercent(s.prev, cur),
		MemTotalBytes: mem[0],
		MemUsedBytes:  mem[1],
	}
	// Boards without a thermal zone just report no temperature.
	if temp, err := readFile(filepath.Join(s.sysRoot, "class/thermal/thermal_zone0/temp"), parseMilliC); err == nil {
		stats.TemperatureMilli = temp
	}

	s.prev = cur
	s.last = stats
	return stats, nil
}

// Last returns the most recent successful sample.
func (s *HostSampler) Last() HostStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func readFile[T any](path string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	v, err := parse(f)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

func parseCPUTimes(r io.Reader) (cpuTimes, error) {
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 5 {
			return cpuTimes{}, fmt.Errorf("unexpected cpu line: %q", line)
		}
		var t cpuTimes
		for i, p := range parts[1:] {
			v, err := strconv.ParseUint(p, 10, 64)
			if err != nil {
				return cpuTimes{}, fmt.Errorf("parse cpu stat %q: %w", p, err)
			}
			// idle and iowait
			if i == 3 || i == 4 {
				t.idle += v
			}
			t.total += v
		}
		return t, nil
	}
	if err := s.Err(); err != nil {
		return cpuTimes{}, err
	}
	return cpuTimes{}, errors.New("cpu aggregate line not found")
}

// parseMemInfo returns total and used bytes.
func parseMemInfo(r io.Reader) ([2]uint64, error) {
	vals := map[string]uint64{}
	s := bufio.NewScanner(r)
	for s.Scan() {
		parts := strings.Fields(s.Text())
		if len(parts) < 2 {
			continue
		}
		v, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			continue
		}
		vals[strings.TrimSuffix(parts[0], ":")] = v * 1024
	}
	if err := s.Err(); err != nil {
		return [2]uint64{}, err
	}
	total, avail := vals["MemTotal"], vals["MemAvailable"]
	if total == 0 {
		return [2]uint64{}, errors.New("MemTotal missing")
	}
	if avail > total {
		avail = total
	}
	return [2]uint64{total, total - avail}, nil
}

func parseMilliC(r io.Reader) (int64, error) {
	data, err := io.ReadAll(io.LimitReader(r, 64))
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
}

func cpuPercent(prev, cur cpuTimes) float64 {
	if prev.total == 0 || cur.total <= prev.total {
		return 0
	}
	totalDelta := float64(cur.total - prev.total)
	var idleDelta float64
	if cur.idle > prev.idle {
		idleDelta = float64(cur.idle - prev.idle)
	}
	usage := (totalDelta - idleDelta) / totalDelta * 100
	if usage < 0 {
		return 0
	}
	if usage > 100 {
		return 100
	}
	return usage
}
