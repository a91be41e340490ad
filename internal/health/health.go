package health

import (
	"context"
	"fmt"
	"time"

	"liveview/relay/internal/codes"
)

// RegistryLoadLimit is the share of the code space in use above which
// the registry check fails.
const RegistryLoadLimit = 0.95

type CheckResult struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency_ms"`
	Error   string        `json:"error,omitempty"`
}

type HealthStatus struct {
	OK        bool          `json:"ok"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

func (h HealthStatus) String() string {
	status := "OK"
	if !h.OK {
		status = "FAIL"
	}
	s := fmt.Sprintf("Health: %s\n", status)
	for _, c := range h.Checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		s += fmt.Sprintf("  %s %s (%dms)", mark, c.Name, c.Latency.Milliseconds())
		if c.Error != "" {
			s += fmt.Sprintf(" - %s", c.Error)
		}
		s += "\n"
	}
	return s
}

// Registry is the view of the code registry the checks need.
type Registry interface {
	Len() int
}

// Transport is the view of the connection hub the checks need.
type Transport interface {
	Closed() bool
}

// CheckAll runs all health checks and returns combined status
func CheckAll(ctx context.Context, reg Registry, tr Transport) HealthStatus {
	checks := []CheckResult{
		checkRegistry(ctx, reg),
		checkTransport(ctx, tr),
	}

	allOK := true
	for _, c := range checks {
		if !c.OK {
			allOK = false
		}
	}

	return HealthStatus{
		OK:        allOK,
		Checks:    checks,
		CheckedAt: time.Now().UTC(),
	}
}

func checkRegistry(_ context.Context, reg Registry) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "code_registry"}

	live := reg.Len()
	result.Latency = time.Since(start)
	if load := float64(live) / codes.Capacity; load >= RegistryLoadLimit {
		result.Error = fmt.Sprintf("%d of %d codes in use", live, codes.Capacity)
		return result
	}

	result.OK = true
	return result
}

func checkTransport(ctx context.Context, tr Transport) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "transport"}

	if err := ctx.Err(); err != nil {
		result.Error = err.Error()
		result.Latency = time.Since(start)
		return result
	}
	if tr.Closed() {
		result.Error = "hub closed"
		result.Latency = time.Since(start)
		return result
	}

	result.Latency = time.Since(start)
	result.OK = true
	return result
}
