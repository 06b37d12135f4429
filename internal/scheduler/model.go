package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/groundops/staff-sizer/backend/internal/domain"
)

// ErrInconsistent 表示排班过程中出现了不应该出现的状态，整次排班作废
var ErrInconsistent = errors.New("排班内部状态不一致")

// 排班参数
type Parameters struct {
	// 单个班次扣除休息后的最长有效工时
	MaxShiftHours float64 `json:"maxShiftHours" yaml:"maxShiftHours" validate:"gt=0,lte=24"`
	// 同一班次内相邻航班起飞时间必须严格大于这个间隔
	MinSeparationMinutes float64 `json:"minSeparationMinutes" yaml:"minSeparationMinutes" validate:"gt=0"`
	// 聚簇内相邻航班起飞时间的最大间隔
	ClusterGapMinutes float64 `json:"clusterGapMinutes" yaml:"clusterGapMinutes" validate:"gt=0"`
	MaxWeeklyHours    float64 `json:"maxWeeklyHours" yaml:"maxWeeklyHours" validate:"gt=0,gtefield=MaxShiftHours"`
	MinRestHours      float64 `json:"minRestHours" yaml:"minRestHours" validate:"gte=0"`
	MaxConsecutiveDays int    `json:"maxConsecutiveDays" yaml:"maxConsecutiveDays" validate:"gte=1"`
	// 可以按聚簇整体排班的岗位
	ClusterRoles []domain.Role `json:"clusterRoles" yaml:"clusterRoles" validate:"dive,required"`
	// 并行生成候选班次的 goroutine 数量，不影响结果
	Workers int `json:"workers" yaml:"workers" validate:"gte=1"`
}

func DefaultParameters() Parameters {
	return Parameters{
		MaxShiftHours:        9,
		MinSeparationMinutes: 20,
		ClusterGapMinutes:    20,
		MaxWeeklyHours:       40,
		MinRestHours:         12,
		MaxConsecutiveDays:   6,
		ClusterRoles:         []domain.Role{domain.RoleSpvPax, domain.RoleCheckIn, domain.RoleSpvRamp, domain.RoleDriver},
		Workers:              4,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (p *Parameters) Validate() error {
	if err := validate.Struct(p); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			fe := validationErrors[0]
			return fmt.Errorf("排班参数 %s 不满足约束 %s%s", fe.Field(), fe.Tag(), paramSuffix(fe.Param()))
		}
		return err
	}

	for _, role := range p.ClusterRoles {
		if !role.Valid() {
			return fmt.Errorf("排班参数 ClusterRoles: %w: %q", domain.ErrUnknownRole, role)
		}
	}

	return nil
}

func paramSuffix(param string) string {
	if param == "" {
		return ""
	}
	return "=" + param
}

func (p *Parameters) maxShift() time.Duration {
	return hoursToDuration(p.MaxShiftHours)
}

func (p *Parameters) minSeparation() time.Duration {
	return minutesToDuration(p.MinSeparationMinutes)
}

func (p *Parameters) clusterGap() time.Duration {
	return minutesToDuration(p.ClusterGapMinutes)
}

func (p *Parameters) minRest() time.Duration {
	return hoursToDuration(p.MinRestHours)
}

// Slot 是某个航班在某个岗位上的一段在岗时间
type Slot struct {
	FlightID  string
	Role      domain.Role
	Airport   string
	Departure time.Time
	Window    domain.PresenceWindow
	BlockID   string // 属于某个不可分割块时非空
}

// Cluster 是同一分区内起飞时间相互紧挨着的一组航班，按起飞时间排序
type Cluster []Slot

// WorkItem 是生成候选班次时的最小单位：单个航班，或者聚簇拆分出来的不可分割块
type WorkItem struct {
	BlockID string
	Slots   []Slot
}

func (w WorkItem) IsBlock() bool {
	return w.BlockID != ""
}

// Partition 是 (岗位, 机场, 日期) 三元组，排班以分区为单位进行
type Partition struct {
	Role    domain.Role
	Airport string
	Day     time.Time
	Slots   []Slot // 按起飞时间排序
}

func (p *Partition) DayString() string {
	return p.Day.Format(time.DateOnly)
}

func (p *Partition) FlightIDs() []string {
	return slotIDs(p.Slots)
}

func (p *Partition) String() string {
	return fmt.Sprintf("%s/%s/%s", p.Role, p.Airport, p.DayString())
}

// PartitionResult 是单个分区的排班结果
type PartitionResult struct {
	Role        domain.Role
	Airport     string
	Day         time.Time
	BlockCount  int
	Candidates  []*domain.ShiftCandidate
	Assignments []*domain.Assignment
	Uncovered   []string
}

type Result struct {
	Partitions  []*PartitionResult
	Assignments []*domain.Assignment
	WeeklyHours []domain.WorkerWeekHours
}

func (r *Result) CandidateCount() int {
	n := 0
	for _, p := range r.Partitions {
		n += len(p.Candidates)
	}
	return n
}

// WorkerCount 返回本次排班用到的人员数量
func (r *Result) WorkerCount() int {
	seen := make(map[string]struct{})
	for _, a := range r.Assignments {
		seen[a.WorkerID] = struct{}{}
	}
	return len(seen)
}

func (r *Result) Uncovered() []*domain.UncoveredFlights {
	uncovered := make([]*domain.UncoveredFlights, 0)
	for _, p := range r.Partitions {
		if len(p.Uncovered) == 0 {
			continue
		}
		uncovered = append(uncovered, &domain.UncoveredFlights{
			Role:      p.Role,
			Airport:   p.Airport,
			Day:       p.Day.Format(time.DateOnly),
			FlightIDs: p.Uncovered,
		})
	}
	return uncovered
}
