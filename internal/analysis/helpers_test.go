package analysis_test

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/headline-goat/ab-report/internal/experiment"
)

var exposedAt = time.Date(2017, 8, 1, 0, 0, 0, 0, time.UTC)

func visitor(id, group, segment string, revenue float64, convertedDay int) experiment.VisitorRecord {
	r := experiment.VisitorRecord{
		VisitorID: id,
		Group:     group,
		Segment:   segment,
		ExposedAt: exposedAt,
		Revenue:   revenue,
	}
	if convertedDay > 0 {
		t := time.Date(2017, 8, convertedDay, 10, 30, 0, 0, time.UTC)
		r.Converted = true
		r.ConvertedAt = &t
	}
	return r
}

// randomRecords builds a valid exposure table from a seed.
func randomRecords(seed int64, n int, groups []string) []experiment.VisitorRecord {
	rng := rand.New(rand.NewSource(seed))
	segments := []string{"SP", "RJ", "MG", "RS"}

	records := make([]experiment.VisitorRecord, n)
	for i := range records {
		day := 0
		revenue := 0.0
		if rng.Intn(4) == 0 {
			day = 1 + rng.Intn(31)
			revenue = float64(rng.Intn(100000)) / 100
		}
		records[i] = visitor(
			fmt.Sprintf("v%05d", i),
			groups[rng.Intn(len(groups))],
			segments[rng.Intn(len(segments))],
			revenue,
			day,
		)
	}
	return records
}
