package scheduler

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/groundops/staff-sizer/backend/internal/domain"
)

// DetectClusters 找出分区内可以整体排班的航班聚簇，并选出互不重叠的一组。
// 不在 clusterRoles 中的岗位不做聚簇。
func DetectClusters(ctx context.Context, slots []Slot, role domain.Role, clusterRoles []domain.Role, maxGap time.Duration) ([]Cluster, error) {
	if !slices.Contains(clusterRoles, role) {
		return nil, nil
	}

	runs, err := FindRuns(ctx, slots, maxGap)
	if err != nil {
		return nil, err
	}
	return SelectClusters(runs), nil
}

// FindRuns 按起飞时间排序后，把相邻间隔都不超过 maxGap 的航班切成若干段，返回至少包含两个航班的段。
//
// 任意一个合法聚簇（每一步间隔都不超过 maxGap 的子集）都完整地落在某一段里，
// 而段本身就是所在段中最大的聚簇，各段之间又互不重叠。
// 所以按大小优先的贪心挑选时，被选中的恰好是这些段，不需要枚举所有子集。
func FindRuns(ctx context.Context, slots []Slot, maxGap time.Duration) ([]Cluster, error) {
	sorted := slices.Clone(slots)
	sortSlots(sorted)

	runs := make([]Cluster, 0)
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if i < len(sorted) && sorted[i].Departure.Sub(sorted[i-1].Departure) <= maxGap {
			continue
		}
		if i-start >= 2 {
			runs = append(runs, Cluster(slices.Clone(sorted[start:i])))
		}
		start = i
	}

	return runs, ctx.Err()
}

// SelectClusters 按贪心的方式挑选互不重叠的聚簇：大的优先，
// 同样大小时起飞早的优先，再按航班号序列的字典序。结果不一定是最优覆盖。
func SelectClusters(clusters []Cluster) []Cluster {
	ordered := slices.Clone(clusters)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		if !a[0].Departure.Equal(b[0].Departure) {
			return a[0].Departure.Before(b[0].Departure)
		}
		return slices.Compare(slotIDs(a), slotIDs(b)) < 0
	})

	selected := make([]Cluster, 0)
	claimed := make(map[string]struct{})
	for _, c := range ordered {
		overlap := false
		for _, s := range c {
			if _, ok := claimed[s.FlightID]; ok {
				overlap = true
				break
			}
		}
		if overlap {
			continue
		}

		selected = append(selected, c)
		for _, s := range c {
			claimed[s.FlightID] = struct{}{}
		}
	}

	return selected
}

// RequiredWorkers 返回一个聚簇需要的人数：少于 3 个航班时 1 人，否则为航班数的 60% 向上取整
func RequiredWorkers(flightCount int) int {
	if flightCount < 3 {
		return 1
	}
	return (flightCount*3 + 4) / 5
}

// MaterializeCluster 把聚簇拆成若干不可分割块，每人一块。
// 航班按起飞时间轮流分给每个块，块编号从 firstSeq 开始。
func MaterializeCluster(cluster Cluster, firstSeq int) []WorkItem {
	if len(cluster) == 0 {
		return nil
	}

	sorted := slices.Clone(cluster)
	sortSlots(sorted)

	n := RequiredWorkers(len(sorted))
	items := make([]WorkItem, n)
	for i := range items {
		items[i].BlockID = fmt.Sprintf("block_%d", firstSeq+i)
	}

	for i, s := range sorted {
		item := &items[i%n]
		s.BlockID = item.BlockID
		item.Slots = append(item.Slots, s)
	}

	return items
}
