package model

import "time"

// Commit is a single entry of the git log
type Commit struct {
	Hash    string
	Subject string
	Body    string
	Author  string
	Date    time.Time
}

// ShortHash returns the first seven characters of the hash
func (c Commit) ShortHash() string {
	if len(c.Hash) > 7 {
		return c.Hash[:7]
	}
	return c.Hash
}

// Changelog is the text generated for one tag
type Changelog struct {
	Tag      Tag
	Previous Tag // empty for the first release
	Commits  []Commit
	Text     string // rendered text including the preamble
	Body     string // Text with the preamble discarded, used as release body
}
