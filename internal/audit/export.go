package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"time"

	"github.com/clientportal/portal/internal/store"
)

var csvHeader = []string{"created_at", "user_id", "action", "resource_type", "resource_id", "ip_address", "user_agent", "details"}

// WriteCSV renders entries as CSV with a header row.
func WriteCSV(rows []store.ActivityEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, e := range rows {
		details := ""
		if len(e.Details) > 0 {
			raw, err := json.Marshal(e.Details)
			if err != nil {
				return nil, err
			}
			details = string(raw)
		}
		record := []string{
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.UserID,
			e.Action,
			e.ResourceType,
			e.ResourceID,
			e.IPAddress,
			e.UserAgent,
			details,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
