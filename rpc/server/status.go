package server

import (
	"github.com/ValentinKolb/dRender/lib/engine"
	"github.com/lni/dragonboat/v4/logger"
)

var engineLogger = logger.GetLogger("engine")

// status forwards engine diagnostics to the engine logger. Errors and warnings are
// always forwarded, informational messages only in verbose mode.
func (s *Server) status(severity engine.Severity, _ engine.StatusCode, source engine.Object, sourceType engine.DataType, message string) {
	switch severity {
	case engine.SeverityFatal, engine.SeverityError:
		engineLogger.Errorf("[%s] %s (source %d, %s)", severity, message, source, sourceType)
	case engine.SeverityWarning:
		engineLogger.Warningf("[%s] %s", severity, message)
	case engine.SeverityPerformance, engine.SeverityInfo:
		if s.config.Verbose {
			engineLogger.Infof("[%s] %s", severity, message)
		}
	case engine.SeverityDebug:
		if s.config.Verbose {
			engineLogger.Debugf("[%s] %s", severity, message)
		}
	}
}
