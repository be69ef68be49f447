package backfill

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
)

// sessionLine is a single line of a gateway session JSONL file.
type sessionLine struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	Message   json.RawMessage `json:"message"`
}

// ParseSessionFile reads a gateway session JSONL file into a raw history
// batch ordered by timestamp. Lines that are not message events, or that do
// not parse, are skipped; the normalizer handles the rest of the mess.
func ParseSessionFile(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	type parsed struct {
		msg map[string]any
		ts  time.Time
	}

	var items []parsed

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	for scanner.Scan() {
		var line sessionLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		if line.Type != "message" || len(line.Message) == 0 {
			continue
		}

		var msg map[string]any
		if err := json.Unmarshal(line.Message, &msg); err != nil {
			continue
		}

		ts, _ := time.Parse(time.RFC3339Nano, line.Timestamp)
		if !ts.IsZero() {
			if _, ok := msg["timestamp"]; !ok {
				msg["timestamp"] = ts.UnixMilli()
			}
		}
		items = append(items, parsed{msg: msg, ts: ts})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ts.Before(items[j].ts)
	})

	history := make([]map[string]any, len(items))
	for i, it := range items {
		history[i] = it.msg
	}
	return history, nil
}
