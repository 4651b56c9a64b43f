package stats

import (
	"fmt"
	"sort"
	"sync"
)

type Stage string

const (
	StageLocate  Stage = "locate"
	StageFetch   Stage = "fetch"
	StageDedup   Stage = "dedup"
	StageExtract Stage = "extract"
	StagePublish Stage = "publish"
)

type EventType string

const (
	EventTypeLocated   EventType = "located"
	EventTypeFetched   EventType = "fetched"
	EventTypeDuplicate EventType = "duplicate"
	EventTypeRejected  EventType = "rejected"
	EventTypeExtracted EventType = "extracted"
	EventTypeUploaded  EventType = "uploaded"
	EventTypePromoted  EventType = "promoted"
	EventTypeError     EventType = "error"
)

type Event struct {
	Stage  Stage
	Type   EventType
	Key    string
	Count  int
	Err    error
	Detail string
}

type Summary struct {
	Extracted int
	Uploaded  int
	Promoted  int
	Duplicate bool
	Rejected  bool
	Errors    int
	LastError error
}

func (s Summary) LogAttrs() []any {
	attrs := []any{
		"extracted", s.Extracted,
		"uploaded", s.Uploaded,
		"promoted", s.Promoted,
		"duplicate", s.Duplicate,
		"rejected", s.Rejected,
		"errors", s.Errors,
	}
	if s.LastError != nil {
		attrs = append(attrs, "lastError", s.LastError.Error())
	}
	return attrs
}

// Collector accumulates pipeline events. The pipeline is sequential, but the
// mutex keeps Snapshot safe to call from anywhere.
type Collector struct {
	mu      sync.Mutex
	summary Summary
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Record(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch evt.Type {
	case EventTypeExtracted:
		c.summary.Extracted += evt.Count
	case EventTypeUploaded:
		c.summary.Uploaded += evt.Count
	case EventTypePromoted:
		c.summary.Promoted += evt.Count
	case EventTypeDuplicate:
		c.summary.Duplicate = true
	case EventTypeRejected:
		c.summary.Rejected = true
	case EventTypeError:
		c.summary.Errors++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	}
}

func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	summary := c.summary
	c.mu.Unlock()
	return summary
}

// PrettyPrintTop prints the top N most frequent items in a map.
func PrettyPrintTop(m map[string]int, limit int) {
	type pair struct {
		Key   string
		Value int
	}

	var pairs []pair
	for k, v := range m {
		pairs = append(pairs, pair{k, v})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Value != pairs[j].Value {
			return pairs[i].Value > pairs[j].Value
		}
		return pairs[i].Key < pairs[j].Key
	})

	for i := 0; i < limit && i < len(pairs); i++ {
		fmt.Printf("%d. %s (%d)\n", i+1, pairs[i].Key, pairs[i].Value)
	}
}
