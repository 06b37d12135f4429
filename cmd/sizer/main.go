package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/groundops/staff-sizer/backend/internal/config"
	"github.com/groundops/staff-sizer/backend/internal/domain"
	"github.com/groundops/staff-sizer/backend/internal/ingest"
	"github.com/groundops/staff-sizer/backend/internal/report"
	"github.com/groundops/staff-sizer/backend/internal/scheduler"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "sizer",
	Short: "离线执行地勤排班测算",
	Long: `sizer 读取航班计划表和岗位规则表，在不连接数据库的情况下执行一次排班测算，
并输出每个人员的班次以及按周汇总的工时。

排班参数的默认值来自 SIZING_ 开头的环境变量，可以用 --params 指定 YAML 文件覆盖。`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if viper.GetBool("verbose") {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(paramsCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SIZER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("params", "", "YAML 格式的排班参数文件")
	rootCmd.PersistentFlags().Int("workers", 0, "并行生成候选班次的 goroutine 数量，0 表示使用配置")
	rootCmd.PersistentFlags().Bool("json", false, "以 JSON 格式输出")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "输出调试日志")
	cobra.CheckErr(viper.BindPFlag("params", rootCmd.PersistentFlags().Lookup("params")))
	cobra.CheckErr(viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers")))
	cobra.CheckErr(viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json")))
	cobra.CheckErr(viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")))
}

// loadParameters 依次应用环境变量、参数文件和命令行参数
func loadParameters() (*scheduler.Parameters, error) {
	cfg, err := config.LoadSizingConfig()
	if err != nil {
		return nil, err
	}
	if path := viper.GetString("params"); path != "" {
		cfg.ParametersFile = path
	}

	params, err := cfg.Parameters()
	if err != nil {
		return nil, err
	}

	if workers := viper.GetInt("workers"); workers != 0 {
		params.Workers = workers
		if err := params.Validate(); err != nil {
			return nil, err
		}
	}

	return params, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func paramsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "params",
		Short: "输出生效的排班参数",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := loadParameters()
			if err != nil {
				return err
			}
			return printJSON(params)
		},
	}
}

func readInputs(flightsPath, rulesPath string) ([]*domain.FlightRecord, *ingest.RuleSet, error) {
	rulesFile, err := os.Open(rulesPath)
	if err != nil {
		return nil, nil, err
	}
	defer rulesFile.Close()

	rules, err := ingest.ReadRulesCSV(rulesFile)
	if err != nil {
		return nil, nil, err
	}

	flightsFile, err := os.Open(flightsPath)
	if err != nil {
		return nil, nil, err
	}
	defer flightsFile.Close()

	records, err := ingest.ReadFlightsCSV(flightsFile)
	if err != nil {
		return nil, nil, err
	}

	return records, rules, nil
}

func parseRoles(names []string, rules *ingest.RuleSet) ([]domain.Role, error) {
	if len(names) == 0 {
		return rules.Roles(), nil
	}

	roles := make([]domain.Role, 0, len(names))
	for _, name := range names {
		role, err := domain.ParseRole(name)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, nil
}

type runOutput struct {
	Parameters   *scheduler.Parameters      `json:"parameters"`
	Roles        []domain.Role              `json:"roles"`
	FlightCount  int                        `json:"flightCount"`
	WorkerCount  int                        `json:"workerCount"`
	Assignments  []*domain.Assignment       `json:"assignments"`
	Uncovered    []*domain.UncoveredFlights `json:"uncovered"`
	HoursSummary []report.WeekHours         `json:"hoursSummary"`
}

func runCmd() *cobra.Command {
	var flightsPath, rulesPath string
	var roleNames []string
	var showCandidates bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "执行一次排班测算",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := loadParameters()
			if err != nil {
				return err
			}

			records, rules, err := readInputs(flightsPath, rulesPath)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return errors.New("航班计划表中没有有效的航班")
			}

			roles, err := parseRoles(roleNames, rules)
			if err != nil {
				return err
			}

			s, err := scheduler.New(params, roles, ingest.BuildFlights(records, rules))
			if err != nil {
				return err
			}

			result, err := s.Schedule(cmd.Context())
			if err != nil {
				return err
			}

			summary, err := report.HoursSummary(result.WeeklyHours)
			if err != nil {
				return err
			}

			if viper.GetBool("json") {
				return printJSON(runOutput{
					Parameters:   params,
					Roles:        roles,
					FlightCount:  len(records),
					WorkerCount:  result.WorkerCount(),
					Assignments:  result.Assignments,
					Uncovered:    result.Uncovered(),
					HoursSummary: summary,
				})
			}

			out := cmd.OutOrStdout()
			if showCandidates {
				report.RenderCandidates(out, result.Partitions)
			}
			report.RenderAssignments(out, result.Assignments)
			if uncovered := result.Uncovered(); len(uncovered) > 0 {
				report.RenderUncovered(out, uncovered)
			}
			report.RenderHoursSummary(out, summary)

			fmt.Fprintf(out, "\n航班 %d 个，候选班次 %d 个，分配班次 %d 个，人员 %d 人\n",
				len(records), result.CandidateCount(), len(result.Assignments), result.WorkerCount())
			return nil
		},
	}

	cmd.Flags().StringVar(&flightsPath, "flights", "", "航班计划表 CSV 文件")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "岗位规则表 CSV 文件")
	cmd.Flags().StringSliceVar(&roleNames, "roles", nil, "需要排班的岗位，按给出的顺序排班；默认使用规则表中的岗位")
	cmd.Flags().BoolVar(&showCandidates, "show-candidates", false, "输出每个分区的候选班次")
	cobra.CheckErr(cmd.MarkFlagRequired("flights"))
	cobra.CheckErr(cmd.MarkFlagRequired("rules"))

	return cmd
}
