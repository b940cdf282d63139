package engine

import (
	"fmt"
	"os"
	"path"
	"runtime"

	"github.com/sirupsen/logrus"
)

// namedLogger builds a package-scoped logger, matching the teacher pack's
// yaptide config.NamedLogger convention: caller file:line prefixed onto
// every message, colored text output to stderr.
func namedLogger(name string) *logrus.Logger {
	return &logrus.Logger{
		Out:       os.Stderr,
		Formatter: &callerTextFormatter{logrus.TextFormatter{ForceColors: true}},
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.InfoLevel,
	}
}

type callerTextFormatter struct {
	logrus.TextFormatter
}

func (f *callerTextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	_, file, no, _ := runtime.Caller(8)
	entry.Message = fmt.Sprintf("[%-15s:%03d] %s", path.Base(file), no, entry.Message)
	return f.TextFormatter.Format(entry)
}

var log = namedLogger("engine")
