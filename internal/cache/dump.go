package cache

import (
	"fmt"
	"io"
)

// Dump writes a human-readable representation of the cache
func (c *MonthCache) Dump(w io.Writer) {
	fmt.Fprintf(w, "=== Month Cache Dump ===\n\n")
	fmt.Fprintf(w, "Location: %s\n", c.loc)

	keys := c.Keys()
	fmt.Fprintf(w, "Cached Months:\n")
	if len(keys) == 0 {
		fmt.Fprintf(w, "  (none)\n")
	}

	for _, key := range keys {
		c.mu.RLock()
		days := c.entries[key]
		c.mu.RUnlock()

		events := 0
		for _, d := range days {
			events += len(d.Events)
		}
		total := 0
		if span, err := MonthRange(key, c.loc); err == nil {
			total = span.Days()
		}
		fmt.Fprintf(w, "  %s: %d of %d days with data, %d events (cached %s)\n",
			key, len(days), total, events, c.createdAt(key).Format("2006-01-02 15:04:05"))

		// Oldest first reads like a calendar
		for i := len(days) - 1; i >= 0; i-- {
			d := days[i]
			summary := d.Summary.Text()
			if summary == "" {
				summary = "(no activity)"
			}
			fmt.Fprintf(w, "    %s  %s\n", d.Date.Format("2006-01-02"), summary)
		}
	}

	fmt.Fprintf(w, "\n=== End Month Cache Dump ===\n")
}
