package testsupport

import (
	"fmt"
	"time"

	"ifgstack/internal/filter"
)

// SampleRecords builds n consecutive 12-day Sentinel-1 pairs on track 42,
// keyed by date pair, starting 2018-01-01.
func SampleRecords(n int) map[string]filter.IfgRecord {
	base := time.Date(2018, 1, 1, 4, 0, 0, 0, time.UTC)
	records := make(map[string]filter.IfgRecord, n)
	for i := range n {
		start := base.AddDate(0, 0, 12*i)
		stop := start.AddDate(0, 0, 12)
		key := start.Format("20060102") + "_" + stop.Format("20060102")
		records[key] = filter.IfgRecord{
			Product: fmt.Sprintf("S1-IFG_RM_M1S1_TN042_%s-%s_s1-resorb-%04x-v2.0.0",
				start.Format("20060102T150405"), stop.Format("20060102T150405"), i),
			StartDT:       start.Format("20060102"),
			StopDT:        stop.Format("20060102"),
			Bperp:         float64(10*i) - 12.345,
			Sensor:        "S1",
			SensorName:    "SAR-C Sentinel1",
			Platform:      filter.Platforms{[]string{"Sentinel-1A", "Sentinel-1B"}[i%2]},
			Width:         1200,
			Length:        900,
			Wavelength:    0.05546576,
			HeadingDeg:    -167.5,
			CenterLineUTC: filter.UTCTime{Time: start.Add(30 * time.Second)},
			Xlim:          []int{0, 1200},
			Ylim:          []int{0, 900},
			Rxlim:         []int{598, 602},
			Rylim:         []int{447, 453},
		}
	}
	return records
}

// SampleOutput wraps SampleRecords as collaborator output.
func SampleOutput(n int) *filter.Output {
	records := SampleRecords(n)
	out := &filter.Output{IfgInfo: records, IfgCoverage: map[string]float64{}}
	for key, rec := range records {
		out.CenterLinesUTC = append(out.CenterLinesUTC, rec.CenterLineUTC)
		out.IfgCoverage[key] = 0.97
	}
	return out
}
