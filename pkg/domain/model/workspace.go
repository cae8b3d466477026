package model

// Workspace is a checkout of a trigger's tagged source, owned by one run
type Workspace struct {
	RunID      string
	Dir        string
	Repository Repository
	Tag        Tag
	Commit     string
}
