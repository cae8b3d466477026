package model

import "time"

// ReleaseRecord is the published, tag-addressed bundle of artifacts and changelog
type ReleaseRecord struct {
	Tag         Tag        `json:"tag" firestore:"tag"`
	Repository  Repository `json:"repository" firestore:"repository"`
	ReleaseID   int64      `json:"release_id" firestore:"release_id"`
	URL         string     `json:"url" firestore:"url"`
	Body        string     `json:"body" firestore:"body"`
	Assets      []string   `json:"assets" firestore:"assets"`
	PublishedAt time.Time  `json:"published_at" firestore:"published_at"`
}

// NewRelease is what is sent to the hosting service to create a release
type NewRelease struct {
	Tag  Tag
	Name string
	Body string
}

// PublishedRelease is a release that exists on the hosting service
type PublishedRelease struct {
	ID  int64
	URL string
}
