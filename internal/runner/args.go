package runner

// Interactive toggles recognized by the runner itself. Everything else in
// the argument list is opaque orchestrator vocabulary and passes through
// verbatim, in original order.
const (
	flagInteractiveLong  = "--interactive"
	flagInteractiveShort = "-i"
)

// ExtractInteractive scans an argument list for the interactive toggle
// (case-sensitive, any position, every occurrence) and returns the forwarded
// list with the toggle removed.
func ExtractInteractive(args []string) ([]string, bool) {
	forwarded := make([]string, 0, len(args))
	interactive := false
	for _, a := range args {
		if a == flagInteractiveLong || a == flagInteractiveShort {
			interactive = true
			continue
		}
		forwarded = append(forwarded, a)
	}
	return forwarded, interactive
}
