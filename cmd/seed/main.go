package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/groundops/staff-sizer/backend/internal/config"
	"github.com/groundops/staff-sizer/backend/internal/repository"
	"github.com/groundops/staff-sizer/backend/internal/seed"
	"github.com/groundops/staff-sizer/backend/internal/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var createdBy int64
	var flightsPath, rulesPath, startDay string

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机排班员, 2: 用样例航班计划插入测算结果, 3: 用随机航班插入测算结果)")
	flag.IntVar(&n, "n", 5, "要插入的排班员数量，或随机航班的天数")
	flag.Int64Var(&createdBy, "created-by", 1, "测算发起人的用户 ID")
	flag.StringVar(&flightsPath, "flights", seed.DefaultFlightsPath, "航班计划表路径")
	flag.StringVar(&rulesPath, "rules", seed.DefaultRulesPath, "岗位规则表路径")
	flag.StringVar(&startDay, "start", "2025-04-07", "随机航班的开始日期")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", "error", err)
		os.Exit(1)
	}

	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)

	switch op {
	case 0:
		logger.Error("未指定操作")
	case 1:
		if n <= 0 {
			logger.Error("请输入合法的用户数量")
			return
		}

		cnt := 0
		for range n {
			user, err := utils.GenerateRandomUser(cfg.Seed.Planner.Password, cfg.Email.UserDomain)
			if err != nil {
				logger.Error("无法生成随机用户", "error", err)
				continue
			}

			if err := repo.CreateUser(user); err != nil {
				logger.Error("无法插入用户", "error", err)
				continue
			}

			cnt++
		}

		logger.Info("插入排班员成功", "count", cnt)
	case 2, 3:
		params, err := cfg.Sizing.Parameters()
		if err != nil {
			logger.Error("排班参数错误", "error", err)
			return
		}

		if op == 2 {
			_, err = seed.SeedSampleRun(repo, params, createdBy, flightsPath, rulesPath)
		} else {
			var start time.Time
			start, err = time.Parse(time.DateOnly, startDay)
			if err != nil {
				logger.Error("开始日期格式错误", "start", startDay)
				return
			}
			_, err = seed.SeedRandomRun(repo, params, createdBy, rulesPath, start, n, 12)
		}
		if err != nil {
			logger.Error("插入测算结果失败", "error", err)
			return
		}
	default:
		logger.Error("指定的操作非法")
	}
}
