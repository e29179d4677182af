package sync

type OpType string

const (
	OpUpload   OpType = "Upload"
	OpDownload OpType = "Download"
	OpSkip     OpType = "Skip"
)

// Action is one reconciliation decision for one logical file. Actions for
// distinct names commute; within one name the applier deletes superseded
// keys strictly before reporting the replacing upload complete.
type Action struct {
	Op     OpType
	Name   string
	Local  *FileRecord
	Remote *FileRecord

	// Supersedes lists stale physical remote keys that the upload
	// replaces. Deleted before the new object's completion counts.
	Supersedes []string
}

// Totals aggregates the transfer volume of an action list. A pure
// function of the actions: skips move nothing and are excluded.
type Totals struct {
	Files int
	Bytes int64
}

func ComputeTotals(actions []Action) Totals {
	var t Totals
	for _, a := range actions {
		switch a.Op {
		case OpUpload:
			t.Files++
			t.Bytes += a.Local.Size
		case OpDownload:
			t.Files++
			t.Bytes += a.Remote.Size
		}
	}
	return t
}

func (t Totals) Add(other Totals) Totals {
	return Totals{Files: t.Files + other.Files, Bytes: t.Bytes + other.Bytes}
}
