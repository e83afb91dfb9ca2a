package loader

import "github.com/google/shlex"

// ParseArgvString splits a single command-line string into the argv
// slice CreateELFProcess consumes, the way the teacher's shell task
// tokenizes a typed command line before dispatch. It is used by
// cmd/nucleusctl's -argv flag so a demo invocation does not have to
// repeat -arg for every element.
func ParseArgvString(s string) ([]string, error) {
	return shlex.Split(s)
}
