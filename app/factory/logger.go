package factory

import (
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-ID"

// ConfigureLogging sets the process-wide logrus level and formatter.
func ConfigureLogging(level, format string) {
	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)
	logrus.SetOutput(os.Stdout)

	if strings.EqualFold(strings.TrimSpace(format), "text") {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})
}

func NewModuleLogger(module string) logrus.FieldLogger {
	return logrus.WithField("module", module)
}

func LoggerWithContext(logger logrus.FieldLogger, ctx echo.Context) logrus.FieldLogger {
	if ctx == nil {
		return logger
	}

	requestID := ctx.Request().Header.Get(requestIDHeader)
	if requestID == "" {
		requestID = ctx.Response().Header().Get(requestIDHeader)
	}
	if requestID == "" {
		return logger
	}

	return logger.WithField("request_id", requestID)
}
