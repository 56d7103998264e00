package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Value/Scan implementations below let the blob-shaped types
// (WeeklyScheduleRecord, DayPlan, ScheduleDiff) round-trip through a
// single JSONB column, matching the "single blob keyed by user+period"
// persistence spec §4.6/§6 calls for.

func (r WeeklyScheduleRecord) Value() (driver.Value, error) { return json.Marshal(r) }

func (r *WeeklyScheduleRecord) Scan(src interface{}) error { return scanJSON(src, r) }

func (p DayPlan) Value() (driver.Value, error) { return json.Marshal(p) }

func (p *DayPlan) Scan(src interface{}) error { return scanJSON(src, p) }

func (d ScheduleDiff) Value() (driver.Value, error) { return json.Marshal(d) }

func (d *ScheduleDiff) Scan(src interface{}) error { return scanJSON(src, d) }

func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported scan source type %T", src)
	}
}
