package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// BlockType enumerates the kinds of report content.
type BlockType string

// Supported block types.
const (
	BlockText  BlockType = "text"
	BlockKPI   BlockType = "kpi"
	BlockTable BlockType = "table"
	BlockChart BlockType = "chart"
)

// ParseBlockType validates s as a BlockType.
func ParseBlockType(s string) (BlockType, error) {
	switch bt := BlockType(s); bt {
	case BlockText, BlockKPI, BlockTable, BlockChart:
		return bt, nil
	default:
		return "", fmt.Errorf("unknown block type %q", s)
	}
}

// Block is one immutable unit of report content. Content depends on Type:
// markdown for text, a value string for kpi, JSON rows for table and a
// base64 encoded image for chart.
type Block struct {
	ID        int       `json:"id"`
	Type      BlockType `json:"type"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// UnmarshalJSON accepts both createdAt and the older created_at spelling.
func (b *Block) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         int       `json:"id"`
		Type       BlockType `json:"type"`
		Title      string    `json:"title"`
		Content    string    `json:"content"`
		CreatedAt  string    `json:"createdAt"`
		CreatedAt2 string    `json:"created_at"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	b.ID = raw.ID
	b.Type = raw.Type
	b.Title = raw.Title
	b.Content = raw.Content

	ts := raw.CreatedAt
	if ts == "" {
		ts = raw.CreatedAt2
	}

	if ts == "" {
		b.CreatedAt = time.Time{}
		return nil
	}

	t, err := ParseTimestamp(ts)
	if err != nil {
		return fmt.Errorf("block %d: %w", raw.ID, err)
	}

	b.CreatedAt = t

	return nil
}

// timestampLayouts lists accepted encodings, zoned first. Naive timestamps
// are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses RFC 3339 timestamps as well as naive ISO 8601 ones.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
