package segmentation

import (
	"context"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/invengine/internal/analytics/stats"
	"github.com/andresuchdata/invengine/internal/config"
	"github.com/andresuchdata/invengine/internal/dataset"
	"github.com/andresuchdata/invengine/internal/domain"
)

const cumulativeTolerance = 1e-9

// Segmenter assigns ABC (volume) and XYZ (variability) classes.
type Segmenter struct {
	cfg config.SegmentationConfig
}

func NewSegmenter(cfg config.SegmentationConfig) *Segmenter {
	return &Segmenter{cfg: cfg}
}

type itemVolume struct {
	itemID     string
	qty        []float64
	total      float64
	weeksSales int
}

// Segment classifies every item, either once per location or once across
// all locations under domain.AllLocations. Results are ordered by scope and
// then by descending volume.
func (s *Segmenter) Segment(ctx context.Context, ds *dataset.Dataset, byLocation bool, workers int) ([]domain.SegmentationResult, error) {
	if !byLocation {
		return s.segmentScope(domain.AllLocations, collect(ds, "")), nil
	}

	locations := ds.Locations()
	perLocation := make([][]domain.SegmentationResult, len(locations))

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, loc := range locations {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perLocation[i] = s.segmentScope(loc, collect(ds, loc))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []domain.SegmentationResult
	for _, rs := range perLocation {
		out = append(out, rs...)
	}
	return out, nil
}

// collect gathers each item's weekly quantities within one location, or
// across all locations when loc is empty.
func collect(ds *dataset.Dataset, loc string) []itemVolume {
	byItem := make(map[string]*itemVolume)
	var order []string
	for _, k := range ds.Keys() {
		if loc != "" && k.LocationID != loc {
			continue
		}
		iv, ok := byItem[k.ItemID]
		if !ok {
			iv = &itemVolume{itemID: k.ItemID}
			byItem[k.ItemID] = iv
			order = append(order, k.ItemID)
		}
		for _, p := range ds.Series(k) {
			iv.qty = append(iv.qty, p.QtySold)
			iv.total += p.QtySold
			if p.QtySold > 0 {
				iv.weeksSales++
			}
		}
	}

	out := make([]itemVolume, 0, len(order))
	for _, id := range order {
		out = append(out, *byItem[id])
	}
	return out
}

func (s *Segmenter) segmentScope(scope string, items []itemVolume) []domain.SegmentationResult {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].total != items[j].total {
			return items[i].total > items[j].total
		}
		return items[i].itemID < items[j].itemID
	})

	var scopeTotal float64
	for _, it := range items {
		scopeTotal += it.total
	}

	results := make([]domain.SegmentationResult, 0, len(items))
	var cumulative float64
	for _, it := range items {
		var share float64
		if scopeTotal > 0 {
			share = it.total / scopeTotal
		}
		cumulative += share

		mean := stats.Mean(it.qty)
		std := stats.SampleStd(it.qty)
		cv := coefficientOfVariation(mean, std)

		abc := s.abcClass(cumulative)
		xyz := s.xyzClass(cv)
		results = append(results, domain.SegmentationResult{
			ItemID:         it.itemID,
			LocationID:     scope,
			ABCClass:       abc,
			XYZClass:       xyz,
			Segment:        domain.NewSegment(abc, xyz),
			TotalQty:       stats.Round(it.total, 2),
			AvgQty:         stats.Round(zeroIfNaN(mean), 2),
			StdQty:         stats.Round(zeroIfNaN(std), 2),
			CV:             stats.Round(cv, 4),
			WeeksWithData:  len(it.qty),
			WeeksWithSales: it.weeksSales,
			VolumePct:      stats.Round(share*100, 4),
			CumulativePct:  stats.Round(cumulative*100, 4),
		})
	}
	return results
}

// abcClass uses the cumulative share including the item itself. A zero
// volume scope leaves every share at zero, so all items land in A.
func (s *Segmenter) abcClass(cumulative float64) domain.ABCClass {
	switch {
	case cumulative <= 1-s.cfg.ABCAPercentile+cumulativeTolerance:
		return domain.ClassA
	case cumulative <= 1-s.cfg.ABCBPercentile+cumulativeTolerance:
		return domain.ClassB
	default:
		return domain.ClassC
	}
}

func (s *Segmenter) xyzClass(cv float64) domain.XYZClass {
	switch {
	case cv < s.cfg.XYZXCV:
		return domain.ClassX
	case cv < s.cfg.XYZYCV:
		return domain.ClassY
	default:
		return domain.ClassZ
	}
}

func coefficientOfVariation(mean, std float64) float64 {
	if math.IsNaN(mean) || mean == 0 || math.IsNaN(std) {
		return 0
	}
	cv := std / mean
	if math.IsNaN(cv) || math.IsInf(cv, 0) {
		return 0
	}
	return cv
}

func zeroIfNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
