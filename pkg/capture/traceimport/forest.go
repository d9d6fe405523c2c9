package traceimport

import (
	"fmt"
	"io"
	"sort"

	"github.com/otelconform/otelconform/pkg/validate"
)

const exceptionEventName = "exception"

// buildForest links parsed records into parent/child trees. Start order is
// ranked by start time across all records, so sibling order in the result
// reflects when spans began rather than the order they were exported.
func buildForest(records []record, warn io.Writer) []*validate.ActualSpan {
	order := make([]int, len(records))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return records[order[a]].StartTime.Before(records[order[b]].StartTime)
	})

	nodes := make(map[string]*validate.ActualSpan, len(records))
	for rank, idx := range order {
		rec := records[idx]
		nodes[spanKey(rec.TraceID, rec.SpanID)] = &validate.ActualSpan{
			Name:       rec.Name,
			Attributes: rec.Attributes,
			Events:     rec.Events,
			Status:     rec.Status,
			Exception:  recordedException(rec.Events),
			StartOrder: rank,
		}
	}

	var roots []*validate.ActualSpan
	for _, idx := range order {
		rec := records[idx]
		node := nodes[spanKey(rec.TraceID, rec.SpanID)]

		if rec.ParentID == "" {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[spanKey(rec.TraceID, rec.ParentID)]
		if !ok {
			if warn != nil {
				fmt.Fprintf(warn, "warning: span %s has parent %s not in input, treating as root\n", rec.SpanID, rec.ParentID)
			}
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}
	return roots
}

func spanKey(traceID, spanID string) string {
	return traceID + ":" + spanID
}

// recordedException pulls the exception details out of the first exception
// event, if any. The event itself stays in the span's event list.
func recordedException(events []validate.ActualEvent) *validate.Exception {
	for _, e := range events {
		if e.Name != exceptionEventName {
			continue
		}
		exc := &validate.Exception{}
		if v, ok := e.Attributes["exception.type"].(string); ok {
			exc.Type = v
		}
		if v, ok := e.Attributes["exception.message"].(string); ok {
			exc.Message = v
		}
		return exc
	}
	return nil
}
