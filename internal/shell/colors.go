package shell

// ANSI escape sequences for the interactive client's colored output.
// No terminal-capability detection: the Colors flag on the Shell turns
// them off wholesale for dumb terminals, pipes, and tests.
const (
	ansiRed   = "\033[91m"
	ansiBlue  = "\033[94m"
	ansiBold  = "\033[1m"
	ansiReset = "\033[0m"
)

func bold(s string) string     { return ansiBold + s + ansiReset }
func boldRed(s string) string  { return ansiBold + ansiRed + s + ansiReset }
func boldBlue(s string) string { return ansiBold + ansiBlue + s + ansiReset }
