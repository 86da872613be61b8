// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// LogEntry is one parsed JSON log line.
type LogEntry struct {
	Level   string
	Message string
	Attrs   map[string]any
}

// Attr returns a possibly nested attribute using a dotted path such as
// "error.type".
func (e LogEntry) Attr(path string) (any, bool) {
	var cur any = e.Attrs
	for part := range strings.SplitSeq(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// SyncBuffer is a bytes.Buffer safe for concurrent writers.
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// Bytes returns a copy of the contents.
func (b *SyncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}

func (b *SyncBuffer) String() string {
	return string(b.Bytes())
}

// Reset discards the contents.
func (b *SyncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// ParseJSONLogEntries parses JSON lines. Time keys are dropped.
func ParseJSONLogEntries(data []byte) ([]LogEntry, error) {
	var entries []LogEntry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var raw map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil {
			return nil, fmt.Errorf("parse log line: %w", err)
		}
		e := LogEntry{Attrs: make(map[string]any, len(raw))}
		for k, v := range raw {
			switch k {
			case "time":
			case "level":
				e.Level, _ = v.(string)
			case "msg":
				e.Message, _ = v.(string)
			default:
				e.Attrs[k] = v
			}
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

// TestHelper captures the JSON output of a debug-level [Logger].
type TestHelper struct {
	Logger *Logger
	Buffer *SyncBuffer
}

// NewTestHelper creates a helper. Extra options are applied after the
// defaults, so they can change the level but should keep JSON output.
func NewTestHelper(t testing.TB, opts ...Option) *TestHelper {
	t.Helper()
	buf := &SyncBuffer{}
	all := append([]Option{WithJSONHandler(), WithOutput(buf), WithLevel(LevelDebug)}, opts...)
	l, err := New(all...)
	require.NoError(t, err)
	return &TestHelper{Logger: l, Buffer: buf}
}

// Logs returns every entry written so far.
func (th *TestHelper) Logs() ([]LogEntry, error) {
	return ParseJSONLogEntries(th.Buffer.Bytes())
}

// Entries is [TestHelper.Logs] failing t on parse errors.
func (th *TestHelper) Entries(t testing.TB) []LogEntry {
	t.Helper()
	entries, err := th.Logs()
	require.NoError(t, err)
	return entries
}

// ContainsLog reports whether an entry has message msg.
func (th *TestHelper) ContainsLog(msg string) bool {
	entries, err := th.Logs()
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.Message == msg {
			return true
		}
	}
	return false
}

// CountLevel counts entries at a level name such as "WARN" or "FATAL".
func (th *TestHelper) CountLevel(level string) int {
	entries, err := th.Logs()
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

// Reset clears captured output.
func (th *TestHelper) Reset() {
	th.Buffer.Reset()
}

// AssertLog fails t unless an entry matches level, msg and every attribute
// in attrs. Attribute keys may be dotted paths; values compare by their
// printed form, so 415 matches the JSON number 415.
func (th *TestHelper) AssertLog(t testing.TB, level, msg string, attrs map[string]any) {
	t.Helper()
	for _, e := range th.Entries(t) {
		if e.Level != level || e.Message != msg {
			continue
		}
		if matchAttrs(e, attrs) {
			return
		}
	}
	require.Fail(t, "log entry not found", "level=%s msg=%q attrs=%v\n%s", level, msg, attrs, th.Buffer.String())
}

func matchAttrs(e LogEntry, attrs map[string]any) bool {
	for k, want := range attrs {
		got, ok := e.Attr(k)
		if !ok {
			return false
		}
		if f, isFloat := got.(float64); isFloat && f == float64(int64(f)) {
			got = int64(f)
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
