package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// VerifyResult holds the outcome of an audit log verification.
type VerifyResult struct {
	Valid         bool   `json:"valid"`
	Lines         int    `json:"lines"`
	TruncatedTail bool   `json:"truncated_tail,omitempty"`
	Error         string `json:"error,omitempty"`
	ErrorLine     int    `json:"error_line,omitempty"`
}

// Verify reads a JSONL audit log and validates every line's stamp.
// A final line that fails to parse is crash evidence (the writer was
// cut off mid-line) and is reported as TruncatedTail without
// invalidating the lines before it. Any earlier malformed line, or any
// parseable line whose stamp does not match, marks the log invalid.
func Verify(path string) VerifyResult {
	lines, err := readLines(path)
	if err != nil {
		return VerifyResult{Error: fmt.Sprintf("open: %v", err)}
	}

	result := VerifyResult{Valid: true}
	for i, line := range lines {
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			if i == len(lines)-1 {
				result.TruncatedTail = true
				return result
			}
			return VerifyResult{
				Error:     fmt.Sprintf("parse error: %v", err),
				ErrorLine: i + 1,
			}
		}
		if !entry.Valid() {
			return VerifyResult{
				Error:     fmt.Sprintf("stamp mismatch on %q: recorded %s, computed %s", entry.Event, entry.Hash, Stamp(entry.Event, entry.Details, entry.Timestamp)),
				ErrorLine: i + 1,
			}
		}
		result.Lines++
	}
	return result
}

// Read parses every well-formed entry in the log. A trailing partial
// line is skipped, matching the crash-tolerant reader contract.
func Read(path string) ([]Entry, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, fmt.Errorf("audit: read log: %w", err)
	}

	entries := make([]Entry, 0, len(lines))
	for i, line := range lines {
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			if i == len(lines)-1 {
				break
			}
			return nil, fmt.Errorf("audit: parse line %d: %w", i+1, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Tail returns the last n entries, oldest first. n <= 0 returns all.
func Tail(path string, n int) ([]Entry, error) {
	entries, err := Read(path)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}

func readLines(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
