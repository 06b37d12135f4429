package utils

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/groundops/staff-sizer/backend/internal/domain"
	"github.com/mozillazg/go-pinyin"
	"golang.org/x/crypto/bcrypt"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "霞", "飞", "玲", "超",
	"华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌", "欣",
}

func GenerateRandomChineseName() string {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	name := ""
	for range rand.Intn(2) + 1 {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

const digits = "0123456789"

// GenerateUsernameFromChineseName 取每个字拼音的一个前缀，再补 1~3 位数字
func GenerateUsernameFromChineseName(chineseName string) string {
	username := ""
	for _, py := range pinyin.LazyConvert(chineseName, nil) {
		username += py[:rand.Intn(len(py))+1]
	}
	for range rand.Intn(3) + 1 {
		username += string(digits[rand.Intn(len(digits))])
	}
	return username
}

// GenerateRandomUser 生成一个排班员，seed 命令使用
func GenerateRandomUser(password string, emailDomainName string) (*domain.User, error) {
	fullName := GenerateRandomChineseName()
	username := GenerateUsernameFromChineseName(fullName)
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	return &domain.User{
		Username:     username,
		PasswordHash: string(passwordHash),
		FullName:     fullName,
		Email:        username + "@" + emailDomainName,
		Role:         domain.UserRolePlanner,
	}, nil
}

func GenerateRandomOTP() string {
	return fmt.Sprintf("%06d", rand.Intn(1000000))
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*")

func GenerateRandomPassword(length int) string {
	password := make([]rune, length)
	for i := range password {
		password[i] = letters[rand.Intn(len(letters))]
	}
	return string(password)
}

var (
	sampleAirports       = []string{"BCN", "MAD", "PMI", "AGP"}
	sampleOperationTypes = []string{"TURNAROUND", "DEPARTURE", "ARRIVAL"}
	sampleAirlines       = []string{"VY", "IB", "UX", "FR"}
)

// GenerateRandomFlightRecords 在 start 开始的 days 天内随机生成航班计划，
// 每天每个机场 perDay 个航班，起飞时间落在 05:00~22:55 之间且是 5 分钟的整数倍
func GenerateRandomFlightRecords(start time.Time, days int, perDay int) []*domain.FlightRecord {
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	records := make([]*domain.FlightRecord, 0, days*perDay*len(sampleAirports))

	n := 0
	for d := range days {
		day := start.AddDate(0, 0, d)
		for _, airport := range sampleAirports {
			for range perDay {
				n++
				minutes := 5*60 + rand.Intn(18*12)*5
				records = append(records, &domain.FlightRecord{
					ID:            fmt.Sprintf("%s%04d", sampleAirlines[rand.Intn(len(sampleAirlines))], n),
					Airport:       airport,
					OperationType: sampleOperationTypes[rand.Intn(len(sampleOperationTypes))],
					Departure:     day.Add(time.Duration(minutes) * time.Minute),
				})
			}
		}
	}

	return records
}
