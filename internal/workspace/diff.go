package workspace

import "sort"

// Action classifies how a file changed between two snapshots.
type Action string

const (
	ActionCreated  Action = "created"
	ActionModified Action = "modified"
	ActionDeleted  Action = "deleted"
)

// Change describes one file that differs between two snapshots. Hashes of
// the absent side are NotFound; contents of the absent side are empty.
type Change struct {
	File          string `json:"file" yaml:"file"`
	Action        Action `json:"action" yaml:"action"`
	BeforeHash    string `json:"before_hash" yaml:"before_hash"`
	AfterHash     string `json:"after_hash" yaml:"after_hash"`
	BeforeContent string `json:"before_content" yaml:"before_content"`
	AfterContent  string `json:"after_content" yaml:"after_content"`

	// Filled by diff.Generator when patches are requested.
	Patch        string `json:"patch,omitempty" yaml:"patch,omitempty"`
	AddedLines   int    `json:"added_lines,omitempty" yaml:"added_lines,omitempty"`
	RemovedLines int    `json:"removed_lines,omitempty" yaml:"removed_lines,omitempty"`
}

// Diff lists every path whose fingerprint differs between before and after,
// ordered by path. Unchanged files are omitted.
func Diff(before, after Snapshot) []Change {
	seen := make(map[string]struct{}, before.Len()+after.Len())
	for p := range before.entries {
		seen[p] = struct{}{}
	}
	for p := range after.entries {
		seen[p] = struct{}{}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var changes []Change
	for _, p := range paths {
		b, inBefore := before.entries[p]
		a, inAfter := after.entries[p]

		switch {
		case inBefore && inAfter:
			if b.Hash == a.Hash {
				continue
			}
			changes = append(changes, Change{
				File:          p,
				Action:        ActionModified,
				BeforeHash:    b.Hash,
				AfterHash:     a.Hash,
				BeforeContent: b.Preview,
				AfterContent:  a.Preview,
			})
		case inAfter:
			changes = append(changes, Change{
				File:         p,
				Action:       ActionCreated,
				BeforeHash:   NotFound,
				AfterHash:    a.Hash,
				AfterContent: a.Preview,
			})
		default:
			changes = append(changes, Change{
				File:          p,
				Action:        ActionDeleted,
				BeforeHash:    b.Hash,
				AfterHash:     NotFound,
				BeforeContent: b.Preview,
			})
		}
	}
	return changes
}

// ChangedFiles returns the paths named by changes.
func ChangedFiles(changes []Change) []string {
	out := make([]string, 0, len(changes))
	for _, c := range changes {
		out = append(out, c.File)
	}
	return out
}
