package cli

// flagsWithValue lists the flags the client's config layer consumes; each
// takes one value argument.
var flagsWithValue = map[string]bool{
	"-a": true, "-k": true, "-r": true, "-c": true, "-config": true,
}

// Positionals strips config flags and their values from args, leaving the
// command and its arguments.
func Positionals(args []string) []string {
	var out []string
	for i := 0; i < len(args); i++ {
		if flagsWithValue[args[i]] {
			i++
			continue
		}
		out = append(out, args[i])
	}
	return out
}
