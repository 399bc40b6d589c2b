package installment

// =============================================================================
// SCHEDULE GENERATOR - Chronological due dates for a plan
// =============================================================================

// GenerateDates produces count due dates starting at start.
//
//	DAILY    start + i days
//	WEEKLY   start + 7i days
//	MONTHLY  start + i months, day clamped to the month's last day
//	ANNUAL   start + i years, Feb 29 clamped to Feb 28
//	CUSTOM   no dates; the caller adds them one at a time
//
// Each date is computed from start rather than from the previous date, so a
// Jan 31 plan yields Feb 28, Mar 31, Apr 30 instead of drifting to the 28th.
func GenerateDates(freq Frequency, start Date, count int) ([]Date, error) {
	if !freq.Valid() {
		return nil, invalidArg("frequency", "unknown frequency %q", string(freq))
	}
	if freq == FrequencyCustom {
		return []Date{}, nil
	}
	if count <= 0 {
		return nil, invalidArg("count", "must be positive, got %d", count)
	}
	if start.IsZero() {
		return nil, invalidArg("start_date", "missing start date")
	}

	dates := make([]Date, count)
	for i := 0; i < count; i++ {
		switch freq {
		case FrequencyDaily:
			dates[i] = start.AddDays(i)
		case FrequencyWeekly:
			dates[i] = start.AddDays(7 * i)
		case FrequencyMonthly:
			dates[i] = start.AddMonthsClamped(i)
		case FrequencyAnnual:
			dates[i] = start.AddYearsClamped(i)
		}
	}
	return dates, nil
}

// GenerateDatesFromString is GenerateDates for an ISO start date.
func GenerateDatesFromString(freq Frequency, start string, count int) ([]Date, error) {
	d, err := ParseDate(start)
	if err != nil {
		return nil, err
	}
	return GenerateDates(freq, d, count)
}
