package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/hive-corporation/nightwatch/internal/core/domain"
)

// abusedTLDs is the dictionary handed to the fuzzer's tld swap stage.
const abusedTLDs = "com,net,org,info,biz,xyz,top,site,online,icu,club,vip,buzz,work,live"

// CommandRunner abstracts process execution so the parser is testable
// without a fuzzer binary.
type CommandRunner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// DNSTwistFuzzer shells out to the permutation fuzzer and parses its JSON
// output.
type DNSTwistFuzzer struct {
	path   string
	runner CommandRunner
}

func NewDNSTwistFuzzer(path string) *DNSTwistFuzzer {
	return &DNSTwistFuzzer{path: path, runner: execRunner{}}
}

// NewDNSTwistFuzzerWithRunner is for tests.
func NewDNSTwistFuzzerWithRunner(path string, runner CommandRunner) *DNSTwistFuzzer {
	return &DNSTwistFuzzer{path: path, runner: runner}
}

func (f *DNSTwistFuzzer) Run(ctx context.Context, dom string) ([]domain.FuzzResult, error) {
	out, err := f.runner.Output(ctx, f.path,
		"--registered",
		"--format=json",
		"--tld="+abusedTLDs,
		dom,
	)
	if err != nil {
		return nil, fmt.Errorf("fuzzer failed for %s: %w", dom, err)
	}

	var results []domain.FuzzResult
	if err := json.Unmarshal(out, &results); err != nil {
		return nil, fmt.Errorf("failed to decode fuzzer output for %s: %w", dom, err)
	}

	// The seed itself comes back as the "*original" entry; drop it.
	filtered := results[:0]
	for _, r := range results {
		if r.Domain != dom && r.Domain != "" {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}
