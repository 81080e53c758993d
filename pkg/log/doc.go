/*
Package log provides structured logging for the operator using zerolog.

The package wraps zerolog with a global logger, level configuration, and child
loggers carrying a component, relation, or daemon field so that every line in the
unit log can be attributed to the part of the agent that emitted it.

Call Init once from the entry point, then derive component loggers:

	log.Init(log.Config{Level: log.InfoLevel})
	logger := log.WithComponent("reconciler")
	logger.Info().Str("daemon", "compute").Msg("configuration applied")
*/
package log
