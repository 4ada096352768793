// Package table decodes the channel conventions packed into a table identifier.
//
// A table id is an uppercase prefix followed by digits. For house channels the
// first letter is the outlet, the second the platform (M manual, K digital,
// A app, W website) and an optional suffix selects the order type (TA take
// away, HD home delivery, RO room). No suffix means dine-in.
package table

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Platform is the ordering surface encoded in a table id.
type Platform int

const (
	PlatformUnknown Platform = 0
	PlatformManual  Platform = 1
	PlatformDigital Platform = 2
	PlatformApp     Platform = 3
	PlatformWebsite Platform = 4
)

// OrderType is the fulfilment mode encoded in a table id.
type OrderType int

const (
	OrderTypeUnknown  OrderType = 0
	OrderTypeDineIn   OrderType = 1
	OrderTypeTakeAway OrderType = 2
	OrderTypeDelivery OrderType = 3
	OrderTypeRoom     OrderType = 4
)

// Table is the id and type code pair configured on a cart.
type Table struct {
	ID   string `json:"id" validate:"required,tableid"`
	Type int    `json:"type" validate:"gte=1,lte=40"`
}

// CustomTable names a merchant-defined table type (31..40).
type CustomTable struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

var (
	platformPatterns = []struct {
		re       *regexp.Regexp
		platform Platform
	}{
		{regexp.MustCompile(`^[A-Z]M(|TA|HD)[0-9]+$`), PlatformManual},
		{regexp.MustCompile(`^[A-Z]K(|TA|HD|RO)[0-9]+$`), PlatformDigital},
		{regexp.MustCompile(`^[A-Z]A(TA|HD)[0-9]+$`), PlatformApp},
		{regexp.MustCompile(`^[A-Z]W(TA|HD)[0-9]+$`), PlatformWebsite},
	}
	orderTypePatterns = []struct {
		re        *regexp.Regexp
		orderType OrderType
	}{
		{regexp.MustCompile(`^[A-Z](M|K|A)[0-9]+$`), OrderTypeDineIn},
		{regexp.MustCompile(`^[A-Z](M|K|A|W)TA[0-9]+$`), OrderTypeTakeAway},
		{regexp.MustCompile(`^[A-Z](M|K|A|W)HD[0-9]+$`), OrderTypeDelivery},
		{regexp.MustCompile(`^[A-Z]KRO[0-9]+$`), OrderTypeRoom},
	}

	houseDineIn   = regexp.MustCompile(`^[A-Z](M|K|A)[0-9]+$`)
	houseDelivery = regexp.MustCompile(`^[A-Z](M|K|A|W)HD[0-9]+$`)
	houseTakeAway = regexp.MustCompile(`^[A-Z](M|K|A|W)TA[0-9]+$`)
	houseRoom     = regexp.MustCompile(`^[A-Z](K|A|W)RO[0-9]+$`)
	platformKeep  = regexp.MustCompile(`^(K|A)[0-9]+$`)

	groupDigital = regexp.MustCompile(`^[A-Z]K(|TA|HD|RO)[0-9]+$`)
	groupApp     = regexp.MustCompile(`^[A-Z]A(|TA|HD|RO)[0-9]+$`)
	groupWebsite = regexp.MustCompile(`^[A-Z]W(TA|HD|RO)[0-9]+$`)

	aggregators = []struct {
		re   *regexp.Regexp
		name string
	}{
		{regexp.MustCompile(`^ZO[0-9]+$`), "Zomato"},
		{regexp.MustCompile(`^FP[0-9]+$`), "Foodpanda"},
		{regexp.MustCompile(`^SW[0-9]+$`), "Swiggy"},
		{regexp.MustCompile(`^UE[0-9]+$`), "Uber Eats"},
	}
)

// PlatformOf returns the platform encoded in id, or PlatformUnknown.
func PlatformOf(id string) Platform {
	for _, p := range platformPatterns {
		if p.re.MatchString(id) {
			return p.platform
		}
	}
	return PlatformUnknown
}

// OrderTypeOf returns the order type encoded in id, or OrderTypeUnknown.
func OrderTypeOf(id string) OrderType {
	for _, p := range orderTypePatterns {
		if p.re.MatchString(id) {
			return p.orderType
		}
	}
	return OrderTypeUnknown
}

func isHouse(tableType int) bool {
	return (tableType >= 1 && tableType <= 5) || (tableType >= 7 && tableType <= 11)
}

func isCustom(tableType int) bool {
	return tableType >= 31 && tableType <= 40
}

// ViewID strips the outlet letter, and the platform letter unless it is K or A.
func (t Table) ViewID() string {
	id := t.ID
	if !isHouse(t.Type) || id == "" {
		return id
	}
	id = id[1:]
	if !platformKeep.MatchString(id) && id != "" {
		id = id[1:]
	}
	return id
}

// Label is the human-readable name of the table's channel.
func (t Table) Label(custom []CustomTable) string {
	switch {
	case isHouse(t.Type):
		switch {
		case houseDineIn.MatchString(t.ID):
			switch t.Type {
			case 1, 3, 7:
				return "Table"
			case 4:
				return "Seat"
			case 5:
				return "Car"
			default:
				return "Queue"
			}
		case houseDelivery.MatchString(t.ID):
			return "Home Delivery"
		case houseTakeAway.MatchString(t.ID):
			return "Take Away"
		case houseRoom.MatchString(t.ID):
			return "Room"
		}
	case t.Type == 6:
		for _, a := range aggregators {
			if a.re.MatchString(t.ID) {
				return a.name
			}
		}
	case isCustom(t.Type):
		for _, c := range custom {
			if c.ID == t.Type {
				return cases.Title(language.Und).String(strings.TrimSpace(c.Name))
			}
		}
		return "Custom"
	}
	return ""
}

// Group is the label of the channel family the table belongs to.
func (t Table) Group() string {
	switch {
	case isHouse(t.Type):
		switch {
		case groupDigital.MatchString(t.ID):
			return "Digital"
		case groupApp.MatchString(t.ID):
			return "App"
		case groupWebsite.MatchString(t.ID):
			return "Website"
		}
		return "POS"
	case t.Type == 6:
		return "3rd Party"
	case isCustom(t.Type):
		return "Custom"
	}
	return ""
}
