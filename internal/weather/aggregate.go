package weather

import "time"

// AggregateReadings combines provider readings into a single Snapshot.
// Numeric parameters are averaged over the providers that reported them;
// the condition is selected by majority (earliest reading wins ties);
// sunrise and sunset come from the first reading that has them.
func AggregateReadings(fetchedAt time.Time, readings []ProviderReading) Snapshot {
	if len(readings) == 0 {
		return NewSnapshot(fetchedAt, nil)
	}

	sums := make(map[Parameter]float64)
	counts := make(map[Parameter]int)

	conditionCounts := make(map[Condition]int)
	var conditionOrder []Condition
	var sunrise, sunset string

	for _, r := range readings {
		for p, v := range r.Measurements {
			sums[p] += v
			counts[p]++
		}

		if r.Condition != "" && r.Condition != ConditionUnknown {
			if conditionCounts[r.Condition] == 0 {
				conditionOrder = append(conditionOrder, r.Condition)
			}
			conditionCounts[r.Condition]++
		}

		if sunrise == "" {
			sunrise = r.Sunrise
		}
		if sunset == "" {
			sunset = r.Sunset
		}
	}

	values := make(map[Parameter]Value, len(Parameters))
	for p, sum := range sums {
		values[p] = NumberValue(p, sum/float64(counts[p]))
	}

	// Pick majority condition.
	bestCond := ConditionUnknown
	bestCount := 0
	for _, cond := range conditionOrder {
		if conditionCounts[cond] > bestCount {
			bestCount = conditionCounts[cond]
			bestCond = cond
		}
	}
	values[ParamCondition] = TextValue(string(bestCond))

	if v, err := ClockValue(sunrise); err == nil {
		values[ParamSunrise] = v
	}
	if v, err := ClockValue(sunset); err == nil {
		values[ParamSunset] = v
	}

	return NewSnapshot(fetchedAt, values)
}
