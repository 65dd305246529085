package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"gorm.io/gorm"
)

// 编号前缀
const (
	orderNoPrefix = "SO"
	taskNoPrefix  = "LT"
)

// NumberGenerator 业务编号生成器
type NumberGenerator interface {
	Next(prefix string, now time.Time) (string, error)
}

// RandomNumberGenerator 时间戳 + 6 位随机数编号
type RandomNumberGenerator struct{}

// Next 生成编号，格式 <prefix>yyyyMMddHHmmss<6位随机数>
func (RandomNumberGenerator) Next(prefix string, now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s%06d", prefix, now.Format("20060102150405"), n.Int64()), nil
}

// withUniqueNumber 生成编号并执行写入，唯一键冲突时重新生成
func withUniqueNumber(gen NumberGenerator, prefix string, attempts int, now func() time.Time, fn func(no string) error) error {
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		no, err := gen.Next(prefix, now())
		if err != nil {
			return err
		}
		err = fn(no)
		if err == nil {
			return nil
		}
		if !isDuplicateKeyError(err) {
			return err
		}
	}
	return ErrOrderNoExhausted
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") || strings.Contains(message, "duplicate key")
}
