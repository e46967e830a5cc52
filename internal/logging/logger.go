package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Setup configures the process-wide logrus logger. JSON output everywhere
// except development, where the text formatter is easier on the eyes.
func Setup(logLevel, environment string) {
	logrus.SetLevel(ParseLevel(logLevel))
	logrus.SetOutput(os.Stdout)

	if strings.ToLower(environment) == "development" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}

// ParseLevel converts a level string to a logrus level, defaulting to info.
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// WithComponent returns a logger tagged with the component name.
func WithComponent(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}

// WithRoute returns a logger tagged with a route pair.
func WithRoute(origin, destination string) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"origin":      origin,
		"destination": destination,
	})
}
