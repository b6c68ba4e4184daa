package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/anne-gert/TimeKeeper/internal/event"
	"github.com/anne-gert/TimeKeeper/internal/timeline"
)

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	periods := []timeline.Period{
		{Start: 0, End: 3600, Timer: event.Key(1)},
		{Start: 86400, End: 90000, Timer: event.Key(2)},
	}

	if err := CSV(&buf, periods, time.UTC); err != nil {
		t.Fatalf("CSV() error = %v", err)
	}

	expected := strings.Join([]string{
		"date,timer,start,end,duration_seconds",
		"1970-01-01,1,1970-01-01T00:00:00Z,1970-01-01T01:00:00Z,3600",
		"1970-01-02,2,1970-01-02T00:00:00Z,1970-01-02T01:00:00Z,3600",
	}, "\n") + "\n"

	if got := buf.String(); got != expected {
		t.Fatalf("csv mismatch:\nexpected: %q\nactual:   %q", expected, got)
	}
}

func TestCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := CSV(&buf, nil, time.UTC); err != nil {
		t.Fatalf("CSV() error = %v", err)
	}
	if got := buf.String(); got != "date,timer,start,end,duration_seconds\n" {
		t.Fatalf("empty csv should still carry the header, got %q", got)
	}
}

func TestCSVNegativeDuration(t *testing.T) {
	var buf bytes.Buffer
	periods := []timeline.Period{{Start: 100, End: 85, Timer: event.Key(1)}}
	if err := CSV(&buf, periods, time.UTC); err != nil {
		t.Fatalf("CSV() error = %v", err)
	}
	if !strings.Contains(buf.String(), ",-15\n") {
		t.Fatalf("negative duration not preserved: %q", buf.String())
	}
}
