package importer

// Stage is one of the three fixed import phases. An import emits them
// in order (copying, then parsing, then saving), each at most once.
type Stage string

const (
	StageCopying Stage = "copying"
	StageParsing Stage = "parsing"
	StageSaving  Stage = "saving"
)

// Progress is a transient status event for an import in flight.
type Progress struct {
	Stage   Stage
	Message string
}

// ProgressFunc observes import progress. A nil func is valid and means
// no observer; calls never block the import on the observer.
type ProgressFunc func(Progress)

func (f ProgressFunc) emit(stage Stage, message string) {
	if f != nil {
		f(Progress{Stage: stage, Message: message})
	}
}
