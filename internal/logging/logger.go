package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Logger = logrus.New()

// Init configures the shared logger. When file is non-empty, output is
// rotated there via lumberjack and mirrored to stdout; otherwise stdout
// only.
func Init(level, file string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Logger.SetLevel(lvl)
	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if file == "" {
		Logger.SetOutput(os.Stdout)
		return
	}

	rotated := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	Logger.SetOutput(io.MultiWriter(os.Stdout, rotated))
}

func WithComponent(name string) *logrus.Entry {
	return Logger.WithField("component", name)
}
