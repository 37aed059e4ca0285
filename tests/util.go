package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/orbit/core/attendance"
	"github.com/trezcool/orbit/core/collection"
	"github.com/trezcool/orbit/core/material"
)

func CreateCollection(t *testing.T, repo collection.Repository, id, name, owner string, studentCount ...int) collection.Collection {
	coll := collection.Collection{
		ID:         id,
		Code:       id,
		Name:       name,
		OwnerEmail: owner,
		CreatedAt:  time.Now().UTC(),
	}
	if len(studentCount) > 0 {
		coll.StudentCount = null.IntFrom(studentCount[0])
	}
	coll, err := repo.CreateCollection(context.Background(), coll)
	if err != nil {
		t.Fatalf("CreateCollection() failed: %v", err)
	}
	return coll
}

// CreateMaterial stores a file material, or a linked one when fileURL starts with "link:".
func CreateMaterial(
	t *testing.T,
	repo material.Repository,
	collectionID, title, typ, fileURL string,
	createdAt ...time.Time,
) material.Record {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	rec := material.Record{
		Title:        title,
		Type:         typ,
		Size:         int64(len(title)),
		CreatedAt:    tstamp,
		CollectionID: collectionID,
		UploadedBy:   "seed@orbit.test",
	}
	if len(fileURL) > 5 && fileURL[:5] == "link:" {
		rec.ExternalLink = null.StringFrom(fileURL[5:])
		rec.Size = 0
	} else {
		rec.FileURL = null.StringFrom(fileURL)
	}
	rec, err := repo.CreateMaterial(context.Background(), rec)
	if err != nil {
		t.Fatalf("CreateMaterial() failed: %v", err)
	}
	return rec
}

func CreateSession(
	t *testing.T,
	repo attendance.Repository,
	collectionID string,
	start time.Time,
	minutes, total, present int,
) attendance.SessionRecord {
	rec := attendance.NewSessionRecord("", collectionID, start, minutes, total, present, attendance.ProvenanceRemote)
	rec, err := repo.CreateSession(context.Background(), rec)
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	return rec
}
