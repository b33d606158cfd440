// Package process runs one-shot helper commands on behalf of the daemon.
//
// A Runner starts the helper in its own process group, streams its stdout
// and stderr into the module logger line by line, and stops the whole
// group when the caller's context ends: SIGINT first, SIGKILL once the
// graceful timeout expires.
//
//	runner := process.NewRunner(logging.GetLogger("awss"))
//	err := runner.Run(ctx, `/usr/sbin/awss-helper --mode "soft ap"`)
package process
