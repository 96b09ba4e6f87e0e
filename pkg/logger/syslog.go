//go:build !windows

package logger

import (
	"io"
	"log/syslog"

	"github.com/rs/zerolog"
)

func newSyslogWriter() (io.Writer, io.Closer, error) {
	w, err := syslog.New(syslog.LOG_USER|syslog.LOG_NOTICE, "cdt")
	if err != nil {
		return nil, nil, err
	}
	return zerolog.SyslogLevelWriter(w), w, nil
}
