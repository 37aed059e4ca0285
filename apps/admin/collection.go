package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/orbit/core"
	"github.com/trezcool/orbit/core/collection"
)

// addCollection creates a collection; students < 0 means the class size is unknown.
func (cli *commandLine) addCollection(code, name, owner string, students int) error {
	coll := collection.Collection{
		Code:       core.CleanString(code),
		Name:       core.CleanString(name),
		OwnerEmail: core.CleanString(owner, true /* lower */),
		CreatedAt:  time.Now().UTC(),
	}
	if students >= 0 {
		coll.StudentCount = null.IntFrom(students)
	}
	coll, err := cli.collections.CreateCollection(context.Background(), coll)
	if err != nil {
		return errors.Wrap(err, "creating collection")
	}
	_, err = fmt.Fprintf(cli.output(), "created collection %s (%s)\n", coll.ID, coll.DisplayName())
	return err
}
