// Package testutil provides test utilities including deterministic sample
// payloads and a scriptable stub encoder, so transcode sessions can be
// exercised without a real ffmpeg on the machine.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Payload returns size bytes whose value depends on their position, so a
// test can verify both the content and the offset of any served slice.
func Payload(size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte(i*7 + i>>8)
	}
	return b
}

// StubEncoder describes a shell script that stands in for the encoder
// binary. It ignores its arguments and emits Payload on stdout according
// to the knobs below.
type StubEncoder struct {
	// Payload is what the script writes to stdout.
	Payload []byte

	// ChunkSize splits the payload into timed chunks when Delay is set.
	// Zero emits the payload in one shot.
	ChunkSize int

	// Delay is slept between chunks.
	Delay time.Duration

	// InitialDelay is slept before the first byte, for exercising clients
	// that arrive ahead of any encoder output.
	InitialDelay time.Duration

	// ExitCode is the script's exit status after emitting the payload.
	ExitCode int

	// HangAfter keeps the script alive without output after the payload,
	// for exercising wait timeouts. The process must be killed.
	HangAfter bool
}

// Write materializes the payload and script under dir and returns the
// script path, ready to be used as an encoder binary.
func (s StubEncoder) Write(t *testing.T, dir string) string {
	t.Helper()

	payloadPath := filepath.Join(dir, "payload.bin")
	require.NoError(t, os.WriteFile(payloadPath, s.Payload, 0644))

	var sb strings.Builder
	sb.WriteString("#!/bin/sh\n")

	if s.InitialDelay > 0 {
		fmt.Fprintf(&sb, "sleep %.3f\n", s.InitialDelay.Seconds())
	}

	switch {
	case s.ChunkSize > 0 && len(s.Payload) > 0:
		chunks := (len(s.Payload) + s.ChunkSize - 1) / s.ChunkSize
		fmt.Fprintf(&sb, "i=0\nwhile [ $i -lt %d ]; do\n", chunks)
		fmt.Fprintf(&sb, "  dd if=%q bs=%d skip=$i count=1 2>/dev/null\n", payloadPath, s.ChunkSize)
		if s.Delay > 0 {
			fmt.Fprintf(&sb, "  sleep %.3f\n", s.Delay.Seconds())
		}
		sb.WriteString("  i=$((i+1))\ndone\n")
	case len(s.Payload) > 0:
		fmt.Fprintf(&sb, "cat %q\n", payloadPath)
	}

	if s.HangAfter {
		// exec keeps it a single process, so killing the child's pid
		// releases the stdout pipe.
		sb.WriteString("exec sleep 600\n")
	} else {
		fmt.Fprintf(&sb, "exit %d\n", s.ExitCode)
	}

	scriptPath := filepath.Join(dir, "stub-encoder.sh")
	require.NoError(t, os.WriteFile(scriptPath, []byte(sb.String()), 0755))
	return scriptPath
}
