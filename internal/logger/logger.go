package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
		PadLevelText:    true,
	})
	return l
}

// SetLevel changes the minimum level. Unknown names are ignored.
func SetLevel(name string) {
	if lvl, err := logrus.ParseLevel(name); err == nil {
		log.SetLevel(lvl)
	}
}

func Info(tag, msg string) {
	log.WithField("tag", tag).Info(msg)
}

func Success(tag, msg string) {
	log.WithFields(logrus.Fields{"tag": tag, "ok": true}).Info(msg)
}

func Warn(tag, msg string) {
	log.WithField("tag", tag).Warn(msg)
}

func Error(tag, msg string) {
	log.WithField("tag", tag).Error(msg)
}

// Banner prints the startup banner with the build version.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	line := strings.Repeat("=", 44)
	fmt.Fprintln(os.Stdout, line)
	fmt.Fprintf(os.Stdout, "  albion-market %s\n", version)
	fmt.Fprintln(os.Stdout, "  market prices + refining calculator")
	fmt.Fprintln(os.Stdout, line)
}

func Section(title string) {
	fmt.Fprintf(os.Stdout, "--- %s ---\n", title)
}

func Stats(key string, value int) {
	fmt.Fprintf(os.Stdout, "  %-16s %d\n", key, value)
}

// Server logs the listen address.
func Server(addr string) {
	log.WithField("tag", "Server").Infof("Listening on http://%s", addr)
}
