package pipeline

import (
	"context"
	"hash/fnv"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/curator-cli/internal/model"
)

// Resolve applies QC2 (agreement) to the filtered events: events are grouped
// by item id and each group resolves to accepted or disputed.
//
//   - one surviving vote accepts the item with that vote's label; agreement
//     is only evaluated when there are two or more voters;
//   - two or more votes accept only when every label is identical — no
//     majority vote, no weighting; consensus must be unanimous;
//   - anything else is disputed, with every contributing vote preserved.
//
// Output is sorted by item id ascending, votes by annotator id, so version
// content is a pure function of the surviving events regardless of the order
// they were read.
func Resolve(events []model.AnnotationEvent) []model.Resolution {
	groups := groupByItem(events)

	resolutions := make([]model.Resolution, 0, len(groups))
	for _, g := range groups {
		resolutions = append(resolutions, resolveGroup(g))
	}

	sort.Slice(resolutions, func(i, j int) bool {
		return resolutions[i].ItemID < resolutions[j].ItemID
	})
	return resolutions
}

// ResolveParallel partitions items across workers and resolves partitions
// concurrently. Grouping is commutative per item, so the merged, re-sorted
// result is identical to Resolve's. Useful for large inputs; partitions <= 1
// falls back to the serial path.
func ResolveParallel(ctx context.Context, events []model.AnnotationEvent, partitions int) ([]model.Resolution, error) {
	if partitions <= 1 {
		return Resolve(events), nil
	}

	buckets := make([][]model.AnnotationEvent, partitions)
	for _, ev := range events {
		h := fnv.New32a()
		h.Write([]byte(ev.ItemID))
		idx := int(h.Sum32()) % partitions
		buckets[idx] = append(buckets[idx], ev)
	}

	results := make([][]model.Resolution, partitions)
	g, _ := errgroup.WithContext(ctx)
	for i := range buckets {
		g.Go(func() error {
			results[i] = Resolve(buckets[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []model.Resolution
	for _, part := range results {
		merged = append(merged, part...)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ItemID < merged[j].ItemID
	})
	return merged, nil
}

func groupByItem(events []model.AnnotationEvent) map[string]*model.ItemGroup {
	groups := make(map[string]*model.ItemGroup)
	for _, ev := range events {
		g, ok := groups[ev.ItemID]
		if !ok {
			g = &model.ItemGroup{ItemID: ev.ItemID}
			groups[ev.ItemID] = g
		}
		g.Events = append(g.Events, ev)
	}
	return groups
}

func resolveGroup(g *model.ItemGroup) model.Resolution {
	events := make([]model.AnnotationEvent, len(g.Events))
	copy(events, g.Events)
	sort.Slice(events, func(i, j int) bool {
		if events[i].AnnotatorID != events[j].AnnotatorID {
			return events[i].AnnotatorID < events[j].AnnotatorID
		}
		return events[i].AnnotationTime.Before(events[j].AnnotationTime)
	})

	votes := make([]model.Vote, len(events))
	unanimous := true
	for i, ev := range events {
		votes[i] = model.Vote{
			AnnotatorID: ev.AnnotatorID,
			Label:       ev.Label,
			Confidence:  ev.Confidence,
		}
		if ev.Label != events[0].Label {
			unanimous = false
		}
	}

	res := model.Resolution{
		ItemID: g.ItemID,
		Text:   events[0].Text,
		Votes:  votes,
	}
	if unanimous {
		res.Outcome = model.OutcomeAccepted
		res.Label = events[0].Label
	} else {
		res.Outcome = model.OutcomeDisputed
	}
	return res
}
