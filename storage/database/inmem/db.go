package inmemdb

import (
	"sync"

	"github.com/trezcool/orbit/core/attendance"
	"github.com/trezcool/orbit/core/collection"
	"github.com/trezcool/orbit/core/material"
)

type (
	DB struct {
		collection *collectionTable
		material   *materialTable
		session    *sessionTable
	}

	collectionTable struct {
		sync.RWMutex
		table map[string]*collection.Collection
	}

	materialTable struct {
		sync.RWMutex
		table map[string]*material.Record
	}

	sessionTable struct {
		sync.RWMutex
		table map[string]*attendance.SessionRecord
	}
)

func Open() *DB {
	return &DB{
		collection: &collectionTable{table: make(map[string]*collection.Collection)},
		material:   &materialTable{table: make(map[string]*material.Record)},
		session:    &sessionTable{table: make(map[string]*attendance.SessionRecord)},
	}
}
