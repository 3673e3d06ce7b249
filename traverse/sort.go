package traverse

import "sort"

// sortStrings orders a directory's raw readdir names before entries are
// built, satisfying Config.Sort's "entries presented to DirExit in name
// order" contract.
func sortStrings(names []string) {
	sort.Strings(names)
}
