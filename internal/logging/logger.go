package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New 按级别名创建 logger；out 为 nil 时写到 stderr，避免与 stdout 上的报告输出混在一起。
func New(level string, out io.Writer) (*logrus.Logger, error) {
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("日志级别非法：%w", err)
	}
	if out == nil {
		out = os.Stderr
	}
	return &logrus.Logger{
		Out:   out,
		Level: lvl,
		Hooks: make(logrus.LevelHooks),
		Formatter: &logrus.TextFormatter{
			TimestampFormat:        "2006-01-02 15:04:05.000",
			FullTimestamp:          true,
			DisableLevelTruncation: true,
		},
	}, nil
}
