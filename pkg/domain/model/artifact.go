package model

// Artifact is the stored output of one build job
type Artifact struct {
	Name     string         `json:"name" firestore:"name"`
	Platform string         `json:"platform" firestore:"platform"`
	Index    int            `json:"index" firestore:"index"`
	Files    []ArtifactFile `json:"files" firestore:"files"`
}

// ArtifactFile is one file inside an artifact
type ArtifactFile struct {
	Name   string `json:"name" firestore:"name"`
	Size   int64  `json:"size" firestore:"size"`
	SHA256 string `json:"sha256" firestore:"sha256"`

	// Path is set when the file is available on the local filesystem
	Path string `json:"-" firestore:"-"`
}

// Size returns the total size of the artifact in bytes
func (a *Artifact) Size() int64 {
	var total int64
	for _, f := range a.Files {
		total += f.Size
	}
	return total
}
