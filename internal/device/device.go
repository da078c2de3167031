package device

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"scriber/internal/services"
)

const selectStage = "selecting_device"

// Kind enumerates the supported compute devices.
type Kind string

const (
	KindAuto Kind = "auto"
	KindCPU  Kind = "cpu"
	KindCUDA Kind = "cuda"
	KindMPS  Kind = "mps"
)

// Policy is a parsed device request. Index applies to CUDA only.
type Policy struct {
	Kind  Kind
	Index int
}

// ParsePolicy converts a config or per-job device string into a Policy.
// Accepted forms: "", "auto", "cpu", "cuda", "cuda:N", "mps".
func ParsePolicy(value string) (Policy, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(KindAuto):
		return Policy{Kind: KindAuto}, nil
	case string(KindCPU):
		return Policy{Kind: KindCPU}, nil
	case string(KindCUDA):
		return Policy{Kind: KindCUDA}, nil
	case string(KindMPS):
		return Policy{Kind: KindMPS}, nil
	}
	if rest, ok := strings.CutPrefix(normalized, "cuda:"); ok {
		index, err := strconv.Atoi(rest)
		if err != nil || index < 0 {
			return Policy{}, services.Wrap(services.ErrDeviceError, selectStage, "parse policy",
				fmt.Sprintf("invalid cuda index in %q", value), nil)
		}
		return Policy{Kind: KindCUDA, Index: index}, nil
	}
	return Policy{}, services.Wrap(services.ErrDeviceError, selectStage, "parse policy",
		fmt.Sprintf("unknown device %q", value), nil)
}

// String renders the policy in the form ParsePolicy accepts.
func (p Policy) String() string {
	if p.Kind == KindCUDA && p.Index > 0 {
		return fmt.Sprintf("cuda:%d", p.Index)
	}
	return string(p.Kind)
}

// Probes report accelerator availability. Swapped out in tests.
type Probes struct {
	CUDA func(ctx context.Context) bool
	MPS  func() bool
}

// DefaultProbes detect CUDA via nvidia-smi and MPS via the host platform.
func DefaultProbes() Probes {
	return Probes{
		CUDA: func(ctx context.Context) bool {
			path, err := exec.LookPath("nvidia-smi")
			if err != nil {
				return false
			}
			return exec.CommandContext(ctx, path, "-L").Run() == nil
		},
		MPS: func() bool {
			return runtime.GOOS == "darwin" && runtime.GOARCH == "arm64"
		},
	}
}

// Selection is the resolved device for a transcription run.
type Selection struct {
	Device        string // whisper CLI device argument
	Accelerator   bool
	HalfPrecision bool
	Warnings      []string
}

// Select resolves a policy against the host. An explicitly requested
// accelerator that is unavailable downgrades to CPU with a warning,
// never an error. Half precision is honored on accelerators only.
func Select(ctx context.Context, policy Policy, halfPrecision bool, probes Probes) Selection {
	cudaAvailable := probes.CUDA != nil && probes.CUDA(ctx)
	mpsAvailable := probes.MPS != nil && probes.MPS()

	switch policy.Kind {
	case KindCPU:
		return cpuSelection(nil)
	case KindCUDA:
		if cudaAvailable {
			return acceleratorSelection(policy.String(), halfPrecision)
		}
		return cpuSelection([]string{"cuda requested but unavailable, using cpu"})
	case KindMPS:
		if mpsAvailable {
			return acceleratorSelection("mps", halfPrecision)
		}
		return cpuSelection([]string{"mps requested but unavailable, using cpu"})
	default: // auto: cuda, then mps, then cpu
		if cudaAvailable {
			return acceleratorSelection("cuda", halfPrecision)
		}
		if mpsAvailable {
			return acceleratorSelection("mps", halfPrecision)
		}
		return cpuSelection(nil)
	}
}

// CPUFallback returns the selection used after an accelerator fails
// mid-transcription.
func CPUFallback(failed string) Selection {
	return cpuSelection([]string{fmt.Sprintf("%s failed during transcription, retrying on cpu", failed)})
}

func cpuSelection(warnings []string) Selection {
	return Selection{Device: "cpu", Warnings: warnings}
}

func acceleratorSelection(device string, halfPrecision bool) Selection {
	return Selection{Device: device, Accelerator: true, HalfPrecision: halfPrecision}
}
