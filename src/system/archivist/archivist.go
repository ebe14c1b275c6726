package archivist

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/laughingman-dev/binpipe/src/system/interfaces"
)

const (
	LEVEL_DEBUG   = 1
	LEVEL_INFO    = 2
	LEVEL_WARNING = 3
	LEVEL_ERROR   = 4
	LEVEL_FATAL   = 5
)

// Granular debug verbosity, only consulted when the log level is debug.
const (
	DEBUG_LEVEL_TRACE  = iota + 1 // execution flow (plan/execute/invalidate decisions)
	DEBUG_LEVEL_DETAIL            // per-target detail
	DEBUG_LEVEL_DUMP              // full data structure dumps
)

type Archivist struct {
	logFlags   [5]bool
	logger     interfaces.LoggerInterface
	debugLevel int
}

type Config struct {
	Logger     interfaces.LoggerInterface
	LogLevel   int
	DebugLevel int
}

func New(conf *Config) *Archivist {
	a := &Archivist{
		logFlags: [5]bool{false, true, true, true, true},
	}
	a.SetLogger(conf.Logger)
	a.SetLogLevel(conf.LogLevel)
	if conf.LogLevel == LEVEL_DEBUG {
		a.SetDebugLevel(conf.DebugLevel)
	}
	return a
}

func (a *Archivist) store(message string, stype string, formatted bool, params []interface{}) {
	// resolve the calling file+line for the log line prefix
	_, file, line, _ := runtime.Caller(2)
	pathParts := strings.Split(file, "/")
	packageFile := pathParts[len(pathParts)-1]

	logLine := time.Now().Format("2006-01-02 15:04:05") + "|" + stype + "|" + packageFile + "#" + strconv.Itoa(line) + "|"
	if len(params) == 0 {
		logLine += message
	} else if formatted {
		logLine += fmt.Sprintf(message, params...)
	} else {
		logLine += message + "|" + fmt.Sprintf("%+v", params)
	}

	a.logger.Println(logLine)
}

func (a *Archivist) Error(message string, params ...interface{}) {
	if a.logFlags[LEVEL_ERROR-1] {
		a.store(message, "error", false, params)
	}
}

func (a *Archivist) ErrorF(message string, params ...interface{}) {
	if a.logFlags[LEVEL_ERROR-1] {
		a.store(message, "error", true, params)
	}
}

func (a *Archivist) Fatal(message string, params ...interface{}) {
	if a.logFlags[LEVEL_FATAL-1] {
		a.store(message, "fatal", false, params)
	}
}

func (a *Archivist) Info(message string, params ...interface{}) {
	if a.logFlags[LEVEL_INFO-1] {
		a.store(message, "info", false, params)
	}
}

func (a *Archivist) InfoF(message string, params ...interface{}) {
	if a.logFlags[LEVEL_INFO-1] {
		a.store(message, "info", true, params)
	}
}

func (a *Archivist) Warning(message string, params ...interface{}) {
	if a.logFlags[LEVEL_WARNING-1] {
		a.store(message, "warning", false, params)
	}
}

func (a *Archivist) Debug(level int, message string, params ...interface{}) {
	if a.logFlags[LEVEL_DEBUG-1] && level <= a.debugLevel {
		a.store(message, "debug", false, params)
	}
}

func (a *Archivist) DebugF(level int, message string, params ...interface{}) {
	if a.logFlags[LEVEL_DEBUG-1] && level <= a.debugLevel {
		a.store(message, "debug", true, params)
	}
}

func (a *Archivist) SetLogLevel(logLevel int) {
	// zero means "not configured", default to warnings and up
	if logLevel == 0 {
		logLevel = LEVEL_WARNING
	}

	if logLevel >= LEVEL_DEBUG && logLevel <= LEVEL_FATAL {
		for index := range a.logFlags {
			a.logFlags[index] = logLevel-1 <= index
		}
	} else {
		a.Error("Given LOG_LEVEL is unknown, defaulting to LEVEL_WARNING, provided was: ", logLevel)
		a.SetLogLevel(LEVEL_WARNING)
	}
}

func (a *Archivist) SetDebugLevel(level int) {
	if level < 0 {
		level = 0
	}
	a.debugLevel = level
}

func (a *Archivist) SetLogger(logger interfaces.LoggerInterface) {
	if logger == nil {
		logger = log.New(os.Stdout, "", 0)
	}
	a.logger = logger
}
