package registry

import (
	"os"
	"path/filepath"

	"github.com/computejobd/computejobd/pkg/types"
)

// FilePersister writes one JSON file per job under Dir on every
// mutation, mirroring the C original's persist_job_locked: best
// effort, no replay on restart, a write failure is swallowed rather
// than propagated since persistence is an optional side channel, not
// part of the job's correctness contract (spec.md's "readback on
// restart is not required").
type FilePersister struct {
	Dir string
}

// NewFilePersister ensures Dir exists and returns a FilePersister
// rooted there. If Dir cannot be created, persistence silently becomes
// a no-op rather than failing job submission.
func NewFilePersister(dir string) *FilePersister {
	_ = os.MkdirAll(dir, 0o755)
	return &FilePersister{Dir: dir}
}

// Persist writes job as "<id>.json" under Dir.
func (p *FilePersister) Persist(job types.Job) {
	if p.Dir == "" {
		return
	}
	data, err := marshalForPersist(job)
	if err != nil {
		return
	}
	path := filepath.Join(p.Dir, job.ID+".json")
	_ = os.WriteFile(path, data, 0o644)
}
