package entity

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	domainErrors "github.com/richstorm00/saas-starter/internal/domain/errors"
)

// Key aliases accepted when reading records written by older code paths.
// The first alias of each list is the canonical key.
var (
	PlanKeys              = []string{FieldPlan, "planId", "plan_name", "planName"}
	StatusKeys            = []string{FieldStatus}
	PeriodEndKeys         = []string{FieldCurrentPeriodEnd, "current_period_end", "endDate"}
	PeriodStartKeys       = []string{FieldCurrentPeriodStart, "current_period_start", "startDate"}
	CancelAtPeriodEndKeys = []string{FieldCancelAtPeriodEnd, "cancel_at_period_end"}
	PriceIDKeys           = []string{FieldPriceID, "price_id", "planId"}
	SubscriptionIDKeys    = []string{FieldSubscriptionID, "subscription_id", "id"}
	CustomerIDKeys        = []string{FieldCustomerID, "customer_id", KeyStripeCustomerID}
	LastPaymentStatusKeys = []string{FieldLastPaymentStatus, "last_payment_status"}
	LastPaymentDateKeys   = []string{FieldLastPaymentDate, "last_payment_date"}
	CanceledAtKeys        = []string{FieldCanceledAt, "canceled_at"}
	CreatedAtKeys         = []string{FieldCreatedAt, "created_at"}
	UpdatedAtKeys         = []string{FieldUpdatedAt, "updated_at"}
	VerifiedAtKeys        = []string{FieldVerifiedAt, "verified_at"}
)

// MigrateRecord converts a raw stored subscription object of any known shape
// into a canonical record. A missing or unparseable period end is
// ErrInvalidSubscriptionData.
func MigrateRecord(raw map[string]interface{}) (*SubscriptionRecord, error) {
	if raw == nil {
		return nil, domainErrors.ErrInvalidSubscriptionData
	}

	endValue, ok := lookup(raw, PeriodEndKeys)
	if !ok {
		return nil, fmt.Errorf("%w: currentPeriodEnd is missing", domainErrors.ErrInvalidSubscriptionData)
	}
	periodEnd, ok := ParseUnix(endValue)
	if !ok {
		return nil, fmt.Errorf("%w: currentPeriodEnd %v is not a timestamp", domainErrors.ErrInvalidSubscriptionData, endValue)
	}

	rec := &SubscriptionRecord{
		Plan:             LookupString(raw, PlanKeys...),
		Status:           SubscriptionStatus(LookupString(raw, StatusKeys...)),
		CurrentPeriodEnd: periodEnd,
		PriceID:          LookupString(raw, PriceIDKeys...),
		SubscriptionID:   LookupString(raw, SubscriptionIDKeys...),
		CustomerID:       LookupString(raw, CustomerIDKeys...),
	}
	if rec.Plan == "" {
		rec.Plan = DefaultPlanName
	}
	if rec.Status == "" {
		rec.Status = StatusActive
	}

	if v, ok := lookup(raw, PeriodStartKeys); ok {
		if start, ok := ParseUnix(v); ok {
			rec.CurrentPeriodStart = start
		}
	}
	if v, ok := lookup(raw, CancelAtPeriodEndKeys); ok {
		rec.CancelAtPeriodEnd = parseBool(v)
	}

	rec.LastPaymentStatus = PaymentStatus(LookupString(raw, LastPaymentStatusKeys...))
	rec.LastPaymentDate = lookupTime(raw, LastPaymentDateKeys)
	rec.CanceledAt = lookupTime(raw, CanceledAtKeys)
	rec.CreatedAt = lookupTime(raw, CreatedAtKeys)
	rec.UpdatedAt = lookupTime(raw, UpdatedAtKeys)
	rec.VerifiedAt = lookupTime(raw, VerifiedAtKeys)

	return rec, nil
}

// LookupString returns the first non-empty string-like value among keys.
func LookupString(raw map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func lookup(raw map[string]interface{}, keys []string) (interface{}, bool) {
	for _, key := range keys {
		if v, ok := raw[key]; ok && v != nil {
			if s, isString := v.(string); isString && s == "" {
				continue
			}
			return v, true
		}
	}
	return nil, false
}

func lookupTime(raw map[string]interface{}, keys []string) *time.Time {
	v, ok := lookup(raw, keys)
	if !ok {
		return nil
	}
	sec, ok := ParseUnix(v)
	if !ok {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

// ParseUnix reads a timestamp stored as Unix seconds, Unix milliseconds,
// a numeric string or an RFC 3339 string.
func ParseUnix(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return normalizeUnix(n), true
	case int:
		return normalizeUnix(int64(n)), true
	case int32:
		return normalizeUnix(int64(n)), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return normalizeUnix(int64(n)), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return normalizeUnix(i), true
		}
		if f, err := n.Float64(); err == nil {
			return normalizeUnix(int64(f)), true
		}
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return normalizeUnix(i), true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return normalizeUnix(int64(f)), true
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.Unix(), true
		}
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t.Unix(), true
		}
	case time.Time:
		return n.Unix(), true
	}
	return 0, false
}

// Values above this are taken to be milliseconds.
const millisThreshold = 1e12

func normalizeUnix(v int64) int64 {
	if v > millisThreshold {
		return v / 1000
	}
	return v
}

func parseBool(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(b)
		return err == nil && parsed
	}
	return false
}
