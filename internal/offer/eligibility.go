package offer

import (
	"slices"
	"time"

	"github.com/noah-isme/backend-kasir/internal/table"
)

// Reason names the first eligibility filter an offer failed. Empty means eligible.
type Reason string

const (
	ReasonVisitsMin Reason = "menu_code.visits.min"
	ReasonVisitsMax Reason = "menu_code.visits.max"
	ReasonPhone     Reason = "phone"
	ReasonPlatform  Reason = "platform"
	ReasonOrderType Reason = "order_type"
	ReasonStartDate Reason = "start_date"
	ReasonEndDate   Reason = "end_date"
	ReasonStartTime Reason = "start_time"
	ReasonEndTime   Reason = "end_time"
	ReasonDays      Reason = "days"
	ReasonLimits    Reason = "limits"
	ReasonMinOrder  Reason = "min_order"
)

const (
	dateLayout     = "02-01-2006"
	dateTimeLayout = "02-01-2006 15:04:05"
)

// Context is the session state offers are filtered against.
type Context struct {
	TableID string
	Phone   string
	Visits  map[string]int
	At      time.Time
	// Subtotal is the undiscounted grand subtotal of the cart.
	Subtotal float64
}

// Eligible runs the filters in order and returns the first failing reason.
func (d Definition) Eligible(c Context) Reason {
	f := d.Filters

	visits := 0
	for code, n := range c.Visits {
		if slices.Contains(f.MenuCode.List, code) {
			visits += n
		}
	}
	minVisits, maxVisits := boundOf(f.MenuCode.Visits.Min), boundOf(f.MenuCode.Visits.Max)
	if minVisits != Unbounded && visits < minVisits {
		return ReasonVisitsMin
	}
	if maxVisits != Unbounded && visits > maxVisits {
		return ReasonVisitsMax
	}

	if len(f.Phone) > 0 && !slices.Contains(f.Phone, c.Phone) {
		return ReasonPhone
	}
	if len(f.Platform) > 0 && !slices.Contains(f.Platform, int(table.PlatformOf(c.TableID))) {
		return ReasonPlatform
	}
	if len(f.OrderType) > 0 && !slices.Contains(f.OrderType, int(table.OrderTypeOf(c.TableID))) {
		return ReasonOrderType
	}

	loc := time.FixedZone("", f.TimezoneOffset*60)
	at := c.At.In(loc)

	if f.StartDate != "" {
		start, err := time.ParseInLocation(dateLayout, f.StartDate, loc)
		if err != nil || at.Before(start) {
			return ReasonStartDate
		}
	}
	if f.EndDate != "" {
		end, err := time.ParseInLocation(dateTimeLayout, f.EndDate+" 23:59:59", loc)
		if err != nil || at.After(end) {
			return ReasonEndDate
		}
	}
	today := at.Format(dateLayout)
	if f.StartTime != "" {
		start, err := time.ParseInLocation(dateTimeLayout, today+" "+f.StartTime, loc)
		if err != nil || at.Before(start) {
			return ReasonStartTime
		}
	}
	if f.EndTime != "" {
		end, err := time.ParseInLocation(dateTimeLayout, today+" "+f.EndTime, loc)
		if err != nil || at.After(end) {
			return ReasonEndTime
		}
	}
	// Sunday is day 1.
	if len(f.Days) > 0 && !slices.Contains(f.Days, int(at.Weekday())+1) {
		return ReasonDays
	}

	if limit := boundOf(f.Limits); limit != Unbounded && d.Used >= limit {
		return ReasonLimits
	}
	if c.Subtotal < d.Conditions.MinOrder {
		return ReasonMinOrder
	}
	return ""
}
