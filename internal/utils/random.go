package utils

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/mozillazg/go-pinyin"
	"github.com/rrrrrr/school-system/backend/internal/domain"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

var departments = []string{
	"资讯工程系", "电机工程系", "数学系", "物理系", "化学系", "外语系", "人事部", "总务处",
}

var staffPositions = []string{"讲师", "助理教授", "副教授", "教授"}

var hrPositions = []string{"人事专员", "人事主任"}

func GenerateRandomChineseName() string {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

func GenerateRandomRole() domain.Role {
	return domain.Roles[rand.Intn(len(domain.Roles))]
}

var digits = "0123456789"

func GenerateUsernameFromChineseName(chineseName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	username := ""

	for _, pinyin := range pinyinArray {
		length := rand.Intn(len(pinyin)) + 1
		username += pinyin[:length]
	}

	digitsLength := rand.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		username += string(digits[rand.Intn(len(digits))])
	}

	return username
}

// GenerateRandomID 生成形如 S0042 的编号
func GenerateRandomID(prefix string, digitLength int) string {
	id := prefix
	for i := 0; i < digitLength; i++ {
		id += string(digits[rand.Intn(len(digits))])
	}
	return id
}

func pick(values []string) *string {
	v := values[rand.Intn(len(values))]
	return &v
}

// GenerateRandomUser 生成一个随机用户，passwordHash 由调用方预先计算，避免每个用户都做一次 bcrypt
func GenerateRandomUser(passwordHash string, emailDomainName string, now time.Time) *domain.User {
	name := GenerateRandomChineseName()
	username := GenerateUsernameFromChineseName(name)
	role := GenerateRandomRole()

	user := &domain.User{
		Username:     username,
		Email:        fmt.Sprintf("%s@%s", username, emailDomainName),
		PasswordHash: passwordHash,
		Role:         role,
		Name:         name,
		Department:   departments[rand.Intn(len(departments))],
		Status:       domain.StatusActive,
		CreatedAt:    now.UTC(),
	}

	// 不同身份携带不同的可选字段
	switch role {
	case domain.RoleStudent:
		studentID := GenerateRandomID("S", 4)
		grade := rand.Intn(4) + 1
		user.StudentID = &studentID
		user.Grade = &grade
	case domain.RoleStaff:
		staffID := GenerateRandomID("T", 4)
		user.StaffID = &staffID
		user.Position = pick(staffPositions)
	case domain.RoleHR:
		staffID := GenerateRandomID("H", 4)
		user.StaffID = &staffID
		user.Position = pick(hrPositions)
		user.Department = "人事部"
	case domain.RoleAdmin:
		user.Department = "资讯中心"
	}

	return user
}
