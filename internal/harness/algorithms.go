package harness

import (
	"math"
	"sort"

	"github.com/metno/rove/internal/qc"
)

// The five algorithms here are the simplest correct version of each
// named check. Production deployments register richer implementations
// from a numerics library at startup; the engine only sees the
// SeriesAlgo/SpatialAlgo signatures.

// ClimatologyCheck flags values outside a fixed, generous physical
// bound for the variable. It has no dependencies and is typically the
// root of a chain.
func ClimatologyCheck(min, max float64) SeriesAlgo {
	return func(obs qc.SeriesObs, _ map[qc.TestID]qc.Result) ([]qc.SeriesFlagged, error) {
		out := make([]qc.SeriesFlagged, len(obs.Points))
		for i, p := range obs.Points {
			out[i] = qc.SeriesFlagged{Time: p.Time}
			switch {
			case p.Missing:
				out[i].Flag = qc.DataMissing
			case p.Value < min || p.Value > max:
				out[i].Flag = qc.Fail
			default:
				out[i].Flag = qc.Pass
			}
		}
		return out, nil
	}
}

// DipCheck flags a single-point spike: a value whose deviation from
// both neighbors exceeds threshold while its neighbors are close to
// each other. Depends on ClimatologyCheck-shaped parents to skip
// points already known missing/invalid.
func DipCheck(parentID qc.TestID, threshold float64) SeriesAlgo {
	return func(obs qc.SeriesObs, parents map[qc.TestID]qc.Result) ([]qc.SeriesFlagged, error) {
		parentFlags, err := parentSeriesFlags(parents, parentID)
		if err != nil {
			return nil, err
		}

		n := len(obs.Points)
		out := make([]qc.SeriesFlagged, n)
		for i, p := range obs.Points {
			out[i] = qc.SeriesFlagged{Time: p.Time, Flag: qc.Pass}
			if flag, ok := parentFlags[p.Time.Unix()]; ok && (flag == qc.Fail || flag == qc.DataMissing || flag == qc.Invalid) {
				out[i].Flag = flag
				continue
			}
			if p.Missing {
				out[i].Flag = qc.DataMissing
				continue
			}
			if i == 0 || i == n-1 {
				out[i].Flag = qc.Inconclusive
				continue
			}
			prev, next := obs.Points[i-1], obs.Points[i+1]
			if prev.Missing || next.Missing {
				out[i].Flag = qc.Inconclusive
				continue
			}
			neighborDelta := math.Abs(next.Value - prev.Value)
			dipDelta := math.Abs(p.Value-prev.Value) + math.Abs(p.Value-next.Value)
			if dipDelta > threshold && neighborDelta < threshold/2 {
				out[i].Flag = qc.Fail
			}
		}
		return out, nil
	}
}

// StepCheck flags a jump between consecutive values exceeding
// threshold — a step that dip check's two-sided test would not
// catch because the series does not return to the prior level.
func StepCheck(parentID qc.TestID, threshold float64) SeriesAlgo {
	return func(obs qc.SeriesObs, parents map[qc.TestID]qc.Result) ([]qc.SeriesFlagged, error) {
		parentFlags, err := parentSeriesFlags(parents, parentID)
		if err != nil {
			return nil, err
		}

		out := make([]qc.SeriesFlagged, len(obs.Points))
		for i, p := range obs.Points {
			out[i] = qc.SeriesFlagged{Time: p.Time, Flag: qc.Pass}
			if flag, ok := parentFlags[p.Time.Unix()]; ok && (flag == qc.Fail || flag == qc.DataMissing || flag == qc.Invalid) {
				out[i].Flag = flag
				continue
			}
			if p.Missing {
				out[i].Flag = qc.DataMissing
				continue
			}
			if i == 0 {
				out[i].Flag = qc.Inconclusive
				continue
			}
			prev := obs.Points[i-1]
			if prev.Missing {
				out[i].Flag = qc.Inconclusive
				continue
			}
			if math.Abs(p.Value-prev.Value) > threshold {
				out[i].Flag = qc.Fail
			}
		}
		return out, nil
	}
}

// BuddyCheck flags a station whose value deviates from the mean of
// its geographic neighbors (within radiusDegrees) by more than
// stdDevFactor standard deviations of that neighborhood. Stations
// with fewer than minBuddies neighbors are Isolated, not failed —
// sparse networks should not manufacture false positives.
func BuddyCheck(radiusDegrees, stdDevFactor float64, minBuddies int) SpatialAlgo {
	return func(obs qc.SpatialObs, _ map[string]qc.SeriesObs, _ map[qc.TestID]qc.Result) ([]qc.SpatialFlagged, error) {
		out := make([]qc.SpatialFlagged, len(obs.Stations))
		for i, s := range obs.Stations {
			out[i] = qc.SpatialFlagged{Location: s.Location, StationID: s.StationID, Flag: qc.Pass}
			if s.Missing {
				out[i].Flag = qc.DataMissing
				continue
			}

			var neighborValues []float64
			for j, other := range obs.Stations {
				if j == i || other.Missing {
					continue
				}
				if haversineDegrees(s.Location, other.Location) <= radiusDegrees {
					neighborValues = append(neighborValues, other.Value)
				}
			}
			if len(neighborValues) < minBuddies {
				out[i].Flag = qc.Isolated
				continue
			}

			mean, stdDev := meanStdDev(neighborValues)
			if stdDev == 0 {
				continue
			}
			if math.Abs(s.Value-mean) > stdDevFactor*stdDev {
				out[i].Flag = qc.Fail
			}
		}
		return out, nil
	}
}

// SpatialConsistencyCheck flags stations whose value is a statistical
// outlier against the median absolute deviation of the whole slice —
// cheaper than a full buddy check and useful as its first-pass parent.
func SpatialConsistencyCheck(madFactor float64) SpatialAlgo {
	return func(obs qc.SpatialObs, _ map[string]qc.SeriesObs, _ map[qc.TestID]qc.Result) ([]qc.SpatialFlagged, error) {
		values := make([]float64, 0, len(obs.Stations))
		for _, s := range obs.Stations {
			if !s.Missing {
				values = append(values, s.Value)
			}
		}
		median := medianOf(values)
		mad := medianAbsoluteDeviation(values, median)

		out := make([]qc.SpatialFlagged, len(obs.Stations))
		for i, s := range obs.Stations {
			out[i] = qc.SpatialFlagged{Location: s.Location, StationID: s.StationID, Flag: qc.Pass}
			if s.Missing {
				out[i].Flag = qc.DataMissing
				continue
			}
			if mad == 0 {
				continue
			}
			if math.Abs(s.Value-median)/mad > madFactor {
				out[i].Flag = qc.Fail
			}
		}
		return out, nil
	}
}

func haversineDegrees(a, b qc.GeoPoint) float64 {
	dLat := float64(a.Lat - b.Lat)
	dLon := float64(a.Lon - b.Lon)
	return math.Sqrt(dLat*dLat + dLon*dLon)
}

func meanStdDev(values []float64) (mean, stdDev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	var sqDiff float64
	for _, v := range values {
		d := v - mean
		sqDiff += d * d
	}
	stdDev = math.Sqrt(sqDiff / float64(len(values)))
	return mean, stdDev
}

func medianOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func medianAbsoluteDeviation(values []float64, median float64) float64 {
	if len(values) == 0 {
		return 0
	}
	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - median)
	}
	return medianOf(deviations)
}
