package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/groundops/staff-sizer/backend/internal/domain"
)

// 比较工时时容忍的浮点误差
const hoursEpsilon = 1e-9

type weekKey struct {
	worker string
	year   int
	week   int
}

type bookingKey struct {
	worker  string
	airport string
	role    domain.Role
	day     string
}

// streak 记录人员最近一次上班的日期和连续上班的天数
type streak struct {
	lastDay time.Time
	count   int
}

// State 是一次排班运行中所有分区共享的人员状态，只能被一个排班流程独占使用
type State struct {
	groups  map[string][]int // "BCN-SP" -> 已有人员的序号，升序
	hours   map[weekKey]float64
	lastEnd map[string]time.Time
	streaks map[string]streak
	booked  map[bookingKey]struct{}
}

func NewState() *State {
	return &State{
		groups:  make(map[string][]int),
		hours:   make(map[weekKey]float64),
		lastEnd: make(map[string]time.Time),
		streaks: make(map[string]streak),
		booked:  make(map[bookingKey]struct{}),
	}
}

func workerGroup(airport string, role domain.Role) string {
	return fmt.Sprintf("%s-%s", airport, role.Prefix())
}

func workerID(group string, seq int) string {
	return group + strconv.Itoa(seq)
}

// Workers 返回所有已创建的人员编号，按机场、岗位前缀、序号排序
func (s *State) Workers() []string {
	groups := make([]string, 0, len(s.groups))
	for g := range s.groups {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	workers := make([]string, 0)
	for _, g := range groups {
		for _, seq := range s.groups[g] {
			workers = append(workers, workerID(g, seq))
		}
	}
	return workers
}

// WeekHours 返回人员在某个 ISO 周内已经累计的工时
func (s *State) WeekHours(worker string, year, week int) float64 {
	return s.hours[weekKey{worker: worker, year: year, week: week}]
}

// WeeklyHours 返回所有人员每周的工时，按人员编号和周排序
func (s *State) WeeklyHours() []domain.WorkerWeekHours {
	return sortedWeekHours(s.hours)
}

// WeeklyHoursOf 根据已保存的分配结果重新统计人员周工时
func WeeklyHoursOf(assignments []*domain.Assignment) []domain.WorkerWeekHours {
	hours := make(map[weekKey]float64)
	for _, a := range assignments {
		year, week := a.Shift.Start.ISOWeek()
		hours[weekKey{worker: a.WorkerID, year: year, week: week}] += a.Shift.DurationHours
	}
	return sortedWeekHours(hours)
}

func sortedWeekHours(hours map[weekKey]float64) []domain.WorkerWeekHours {
	result := make([]domain.WorkerWeekHours, 0, len(hours))
	for k, h := range hours {
		result = append(result, domain.WorkerWeekHours{
			WorkerID: k.worker,
			Year:     k.year,
			Week:     k.week,
			Hours:    h,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.WorkerID != b.WorkerID {
			return a.WorkerID < b.WorkerID
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Week < b.Week
	})
	return result
}

// projectStreak 计算人员在 day 上班后的连续上班天数：
// 紧接着上一次上班的日期则加一，同一天不变，否则重新从 1 开始
func (s *State) projectStreak(worker string, day time.Time) int {
	st, ok := s.streaks[worker]
	if !ok {
		return 1
	}
	switch {
	case day.Equal(st.lastDay.AddDate(0, 0, 1)):
		return st.count + 1
	case day.Equal(st.lastDay):
		return st.count
	default:
		return 1
	}
}

// fits 检查人员能否承担某个候选班次，可以时返回承担之后的连续上班天数
func (s *State) fits(worker string, c *domain.ShiftCandidate, p *Parameters) (int, bool) {
	day := dateOf(c.Start)

	if _, ok := s.booked[bookingKey{worker: worker, airport: c.Airport, role: c.Role, day: day.Format(time.DateOnly)}]; ok {
		return 0, false
	}

	year, week := c.Start.ISOWeek()
	if s.WeekHours(worker, year, week)+c.DurationHours > p.MaxWeeklyHours+hoursEpsilon {
		return 0, false
	}

	if last, ok := s.lastEnd[worker]; ok && c.Start.Before(last.Add(p.minRest())) {
		return 0, false
	}

	n := s.projectStreak(worker, day)
	if n > p.MaxConsecutiveDays {
		return 0, false
	}

	return n, true
}

// findWorker 按序号从小到大找第一个能承担该班次的同机场同岗位人员
func (s *State) findWorker(c *domain.ShiftCandidate, p *Parameters) (string, int, bool) {
	group := workerGroup(c.Airport, c.Role)
	for _, seq := range s.groups[group] {
		id := workerID(group, seq)
		if n, ok := s.fits(id, c, p); ok {
			return id, n, true
		}
	}
	return "", 0, false
}

// newWorker 创建一个新的人员，序号为该机场该岗位已有最大序号加一
func (s *State) newWorker(airport string, role domain.Role) string {
	group := workerGroup(airport, role)
	seqs := s.groups[group]
	next := 1
	if len(seqs) > 0 {
		next = seqs[len(seqs)-1] + 1
	}
	s.groups[group] = append(seqs, next)
	return workerID(group, next)
}

// record 把班次记到人员名下
func (s *State) record(worker string, c *domain.ShiftCandidate, streakCount int) {
	day := dateOf(c.Start)
	year, week := c.Start.ISOWeek()

	s.hours[weekKey{worker: worker, year: year, week: week}] += c.DurationHours
	s.booked[bookingKey{worker: worker, airport: c.Airport, role: c.Role, day: day.Format(time.DateOnly)}] = struct{}{}
	s.lastEnd[worker] = c.End
	s.streaks[worker] = streak{lastDay: day, count: streakCount}
}

// ParseWorkerID 把形如 BCN-SP12 的人员编号拆成机场、岗位和序号
func ParseWorkerID(id string) (string, domain.Role, int, error) {
	i := strings.LastIndex(id, "-")
	if i <= 0 || i == len(id)-1 {
		return "", "", 0, fmt.Errorf("人员编号 %q 格式错误", id)
	}
	airport, rest := id[:i], id[i+1:]

	j := strings.IndexFunc(rest, func(r rune) bool { return r >= '0' && r <= '9' })
	if j <= 0 {
		return "", "", 0, fmt.Errorf("人员编号 %q 格式错误", id)
	}

	role, ok := domain.RoleByPrefix(rest[:j])
	if !ok {
		return "", "", 0, fmt.Errorf("人员编号 %q 的岗位前缀未知", id)
	}

	seq, err := strconv.Atoi(rest[j:])
	if err != nil {
		return "", "", 0, fmt.Errorf("人员编号 %q 的序号错误: %w", id, err)
	}

	return airport, role, seq, nil
}
