// Package common provides shared utilities across the application.
package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// StalenessResult contains the result of a staleness check.
type StalenessResult struct {
	// IsStale indicates whether the output must be rebuilt.
	IsStale bool
	// Reason provides a human-readable explanation for the staleness decision.
	Reason string
}

// CheckArtifactStaleness decides whether an output file can be reused given
// its direct inputs, from filesystem timestamps alone. The command-hash
// clause is layered on by the execution engine.
//
// Rules:
//   - output missing: stale
//   - any input strictly newer than the output: stale
//   - an input missing: stale (the rebuild surfaces the real failure)
//   - otherwise: fresh
//
// Plain non-existence is never an error. Any other metadata failure is
// returned as an error for the caller to report; nothing is guessed.
func CheckArtifactStaleness(output string, inputs []string) (StalenessResult, error) {
	outInfo, err := os.Stat(output)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return StalenessResult{
				IsStale: true,
				Reason:  fmt.Sprintf("output %s does not exist", output),
			}, nil
		}
		return StalenessResult{}, err
	}

	outTime := outInfo.ModTime()

	for _, input := range inputs {
		inInfo, err := os.Stat(input)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return StalenessResult{
					IsStale: true,
					Reason:  fmt.Sprintf("input %s does not exist", input),
				}, nil
			}
			return StalenessResult{}, err
		}

		// Strictly newer counts as stale; equal timestamps are fresh so
		// coarse-grained filesystems do not rebuild forever.
		if inInfo.ModTime().After(outTime) {
			return StalenessResult{
				IsStale: true,
				Reason: fmt.Sprintf(
					"input %s (%s) is newer than output %s (%s)",
					input, inInfo.ModTime().Format(time.RFC3339),
					output, outTime.Format(time.RFC3339),
				),
			}, nil
		}
	}

	return StalenessResult{
		IsStale: false,
		Reason:  fmt.Sprintf("output %s is newer than all %d input(s)", output, len(inputs)),
	}, nil
}
