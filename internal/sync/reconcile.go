package sync

import (
	"sort"
)

// Reconcile compares one directory level's local and remote snapshots and
// returns the ordered action list that converges them. Pure decision
// logic, no I/O.
//
// Per logical name in the union of both snapshots:
//   - present only locally: Upload
//   - present only remotely: Download
//   - present in both: compare truncated-to-second UTC instants; local
//     strictly newer wins an Upload (superseding the old remote copies),
//     remote strictly newer wins a Download, exact equality is always a
//     Skip so an unchanged tree causes zero transfers and zero churn.
//
// Output order is sorted by folded name, so the same inputs always yield
// the same action list.
func Reconcile(local, remote Snapshot) []Action {
	names := make([]string, 0, len(local)+len(remote))
	seen := make(map[string]struct{}, len(local)+len(remote))

	for name := range local {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	for name := range remote {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)

	actions := make([]Action, 0, len(names))
	for _, name := range names {
		l, localExists := local[name]
		r, remoteExists := remote[name]

		switch {
		case localExists && !remoteExists:
			actions = append(actions, Action{Op: OpUpload, Name: l.Name, Local: l})

		case remoteExists && !localExists:
			actions = append(actions, Action{Op: OpDownload, Name: r.Name, Remote: r})

		case l.ModTime.After(r.ModTime):
			actions = append(actions, Action{
				Op:         OpUpload,
				Name:       l.Name,
				Local:      l,
				Remote:     r,
				Supersedes: supersededKeys(r),
			})

		case r.ModTime.After(l.ModTime):
			actions = append(actions, Action{Op: OpDownload, Name: r.Name, Local: l, Remote: r})

		default:
			actions = append(actions, Action{Op: OpSkip, Name: l.Name, Local: l, Remote: r})
		}
	}

	return actions
}

// supersededKeys collects every physical remote copy replaced by a new
// upload: the current one plus any stale duplicates from interrupted
// runs.
func supersededKeys(r *FileRecord) []string {
	var keys []string
	if r.Key != "" {
		keys = append(keys, r.Key)
	}
	keys = append(keys, r.StaleKeys...)
	return keys
}
