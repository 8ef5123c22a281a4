// Package logger is the structured logging layer shared by the imgchest client and CLI.
//
// It wraps zerolog behind a small Logger interface so library packages can accept
// any implementation. Library code defaults to Nop and only logs when a caller
// injects a logger; the CLI builds one from config.LoggingConfig:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("post_id", id)
//	log.Debug("fetching post")
//
// Console output always goes to stderr. TestLogger captures entries for assertions.
package logger
