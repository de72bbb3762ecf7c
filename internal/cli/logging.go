package cli

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/image-preprocess/internal/config"
)

// newLogger builds the process logger. An empty level falls back to the
// environment and then to info.
func newLogger(w io.Writer, level string) (*logrus.Logger, error) {
	if level == "" {
		level = os.Getenv(config.EnvPrefix + "_LOG_LEVEL")
	}
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return logger, nil
}
