package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/groundops/staff-sizer/backend/internal/domain"
	"github.com/groundops/staff-sizer/backend/internal/scheduler"
	"gopkg.in/yaml.v3"
)

// SizingConfig 是排班测算的默认参数，可以被参数文件和请求中的参数覆盖
type SizingConfig struct {
	MaxShiftHours        float64       `env:"MAX_SHIFT_HOURS" envDefault:"9"`
	MinSeparationMinutes float64       `env:"MIN_SEPARATION_MINUTES" envDefault:"20"`
	ClusterGapMinutes    float64       `env:"CLUSTER_GAP_MINUTES" envDefault:"20"`
	MaxWeeklyHours       float64       `env:"MAX_WEEKLY_HOURS" envDefault:"40"`
	MinRestHours         float64       `env:"MIN_REST_HOURS" envDefault:"12"`
	MaxConsecutiveDays   int           `env:"MAX_CONSECUTIVE_DAYS" envDefault:"6"`
	ClusterRoles         []domain.Role `env:"CLUSTER_ROLES" envDefault:"SPV PAX,CHECKIN,SPV RAMP,DRIV" envSeparator:","`
	Workers              int           `env:"WORKERS" envDefault:"4"`
	ParametersFile       string        `env:"PARAMETERS_FILE"` // YAML 格式，存在时覆盖上面的值
	RunTimeout           int           `env:"RUN_TIMEOUT" envDefault:"120"`
}

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"150"` // 排班测算可能比较耗时
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
		MaxBodyBytes    int64  `env:"MAX_BODY_BYTES" envDefault:"10485760"`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN                string `env:"DSN,required"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	InitialAdmin struct {
		Username string `env:"USERNAME" envDefault:"admin"`
		Password string `env:"PASSWORD,required"`
		FullName string `env:"FULL_NAME" envDefault:"管理员"`
		Email    string `env:"EMAIL,required"`
	} `envPrefix:"INITIAL_ADMIN_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"336"` // 小时，14 天
		Secret     string `env:"SECRET,required"`
	} `envPrefix:"JWT_"`
	Seed struct {
		Planner struct {
			Password string `env:"PASSWORD,required"`
		} `envPrefix:"PLANNER_"`
	} `envPrefix:"SEED_"`
	Email struct {
		UserDomain string `env:"USER_DOMAIN,required"`
		SMTP       struct {
			Username    string `env:"USERNAME,required"`
			Password    string `env:"PASSWORD,required"`
			Host        string `env:"HOST,required"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN            string `env:"DSN,required"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host                string `env:"HOST" envDefault:"localhost"`
		Port                int    `env:"PORT" envDefault:"6379"`
		Password            string `env:"PASSWORD,required"`
		ConnectTimeout      int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationExpiration int    `env:"OPERATION_EXPIRATION" envDefault:"10"`
		CacheExpiration     int    `env:"CACHE_EXPIRATION" envDefault:"3600"`
	} `envPrefix:"REDIS_"`
	OTP struct {
		Expiration int `env:"EXPIRATION" envDefault:"900"` // 15 分钟
	} `envPrefix:"OTP_"`
	NewUser struct {
		PasswordLength int `env:"PASSWORD_LENGTH" envDefault:"12"`
	} `envPrefix:"NEW_USER_"`
	Sizing SizingConfig `envPrefix:"SIZING_"`
}

// firstError 只返回第一个错误使得日志更清晰
func firstError(err error) error {
	aggErr := env.AggregateError{}
	if ok := errors.As(err, &aggErr); ok && len(aggErr.Errors) > 0 {
		return aggErr.Errors[0]
	}
	return err
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, firstError(err)
	}

	return cfg, nil
}

// LoadSizingConfig 只加载 SIZING_ 开头的配置，离线命令行工具不需要数据库等其他配置
func LoadSizingConfig() (*SizingConfig, error) {
	cfg := &SizingConfig{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "SIZING_"}); err != nil {
		return nil, firstError(err)
	}

	return cfg, nil
}

// Parameters 把配置转换成排班参数。
// 配置了参数文件时，文件中出现的字段覆盖环境变量中的值。
func (c *SizingConfig) Parameters() (*scheduler.Parameters, error) {
	p := &scheduler.Parameters{
		MaxShiftHours:        c.MaxShiftHours,
		MinSeparationMinutes: c.MinSeparationMinutes,
		ClusterGapMinutes:    c.ClusterGapMinutes,
		MaxWeeklyHours:       c.MaxWeeklyHours,
		MinRestHours:         c.MinRestHours,
		MaxConsecutiveDays:   c.MaxConsecutiveDays,
		ClusterRoles:         append([]domain.Role(nil), c.ClusterRoles...),
		Workers:              c.Workers,
	}

	if c.ParametersFile != "" {
		data, err := os.ReadFile(c.ParametersFile)
		if err != nil {
			return nil, fmt.Errorf("无法读取排班参数文件: %w", err)
		}
		if err := yaml.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("排班参数文件格式错误: %w", err)
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}
