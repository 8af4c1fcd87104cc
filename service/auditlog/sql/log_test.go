package sql

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/accessflow/model/audit"
	"github.com/viant/accessflow/model/fault"
	"github.com/viant/accessflow/service/auditlog"
	"github.com/viant/accessflow/service/auditlog/logtest"
	"github.com/viant/accessflow/service/dao/sqldb"
)

func newDB(t *testing.T) *sqlx.DB {
	ctx := context.Background()
	db, err := sqldb.Open(ctx, &sqldb.Config{Driver: sqldb.DriverSQLite})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqldb.Migrate(ctx, db))
	return db
}

func TestLog(t *testing.T) {
	logtest.Run(t, New(newDB(t)))
}

func TestLog_JoinsTransaction(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	log := New(db)

	boom := errors.New("boom")
	err := sqldb.InTx(ctx, db, func(ctx context.Context) error {
		if err := log.Append(ctx, &audit.Event{Action: audit.ActionDecide, EntityID: "req"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	page, err := log.List(ctx, &auditlog.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
}

func TestLog_Unavailable(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	log := New(db)
	require.NoError(t, db.Close())

	err := log.Append(ctx, &audit.Event{Action: audit.ActionDecide, EntityID: "req"})
	assert.ErrorIs(t, err, fault.ErrUnavailable)
	_, err = log.List(ctx, nil)
	assert.ErrorIs(t, err, fault.ErrUnavailable)
}
