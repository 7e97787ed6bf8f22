package report

import "time"

// ResultColumn describes one column of a result set. Type is the database
// type name reported by the driver.
type ResultColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// PagedResult is one page of report rows plus the unpaged total. Rows are
// positional and aligned with Schema.
type PagedResult struct {
	TemplateID  string         `json:"template_id"`
	Schema      []ResultColumn `json:"schema"`
	Rows        [][]any        `json:"rows"`
	TotalCount  int64          `json:"total_count"`
	PageNumber  int            `json:"page_number"`
	PageSize    int            `json:"page_size"`
	TotalPages  int            `json:"total_pages"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// ColumnNames returns the schema column names in order.
func (r *PagedResult) ColumnNames() []string {
	names := make([]string, len(r.Schema))
	for i, c := range r.Schema {
		names[i] = c.Name
	}
	return names
}

// Records returns the rows keyed by column name, for encoders that work on
// maps.
func (r *PagedResult) Records() []map[string]any {
	out := make([]map[string]any, len(r.Rows))
	for i, row := range r.Rows {
		rec := make(map[string]any, len(r.Schema))
		for j, c := range r.Schema {
			if j < len(row) {
				rec[c.Name] = row[j]
			}
		}
		out[i] = rec
	}
	return out
}

// CachedResult is a PagedResult as held by the result cache. CachedAt
// bounds how stale a sliding entry may become.
type CachedResult struct {
	Result   *PagedResult `json:"result"`
	CachedAt time.Time    `json:"cached_at"`
}
