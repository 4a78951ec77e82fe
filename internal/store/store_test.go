package store

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"astromissions/internal/config"
	"astromissions/internal/model"
	"astromissions/internal/pkg/query"
	"astromissions/internal/pkg/relation"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// dryRunDB builds statements without a server connection.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := gormConfig()
	cfg.DryRun = true
	cfg.DisableAutomaticPing = true
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "user:pass@tcp(127.0.0.1:1)/missions?parseTime=true",
		SkipInitializeWithVersion: true,
	}), cfg)
	require.NoError(t, err)
	return db
}

func TestTranslate(t *testing.T) {
	assert.Nil(t, translate(nil))
	assert.ErrorIs(t, translate(gorm.ErrRecordNotFound), ErrNotFound)
	assert.ErrorIs(t, translate(fmt.Errorf("insert: %w", &gomysql.MySQLError{Number: 1062, Message: "Duplicate entry"})), ErrDuplicate)
	assert.ErrorIs(t, translate(&pgconn.PgError{Code: "23505"}), ErrDuplicate)
	assert.ErrorIs(t, translate(gorm.ErrDuplicatedKey), ErrDuplicate)

	other := errors.New("boom")
	assert.Equal(t, other, translate(other))
	assert.NotErrorIs(t, translate(&gomysql.MySQLError{Number: 1045}), ErrDuplicate)
}

func TestDialectorFor(t *testing.T) {
	d, err := dialectorFor(config.DatabaseConfig{Driver: "mysql", DSN: "x"})
	require.NoError(t, err)
	assert.Equal(t, "mysql", d.Name())

	d, err = dialectorFor(config.DatabaseConfig{Driver: "postgres", DSN: "host=localhost"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	d, err = dialectorFor(config.DatabaseConfig{Driver: "sqlite", DSN: "file::memory:"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	_, err = dialectorFor(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestMissionQueryScopes_SQL(t *testing.T) {
	db := dryRunDB(t)
	values, err := url.ParseQuery("destination=Mars&launch.launchDate[gte]=2020-01-01&category=science&search=rover&sort=-launch.launchDate&page=2&limit=10")
	require.NoError(t, err)
	q, err := query.Parse(values, query.Options{})
	require.NoError(t, err)

	var out []model.Mission
	stmt := db.Scopes(q.Where, q.Order, q.Window).Find(&out).Statement
	sql := stmt.SQL.String()

	assert.Contains(t, sql, "FROM `missions`")
	assert.Contains(t, sql, "destination = ?")
	assert.Contains(t, sql, "launch_date >= ?")
	assert.Contains(t, sql, "category LIKE ?")
	assert.Contains(t, sql, "LOWER(mission_name) LIKE ?")
	assert.Contains(t, sql, "ORDER BY `launch_date` DESC,`id`")
	assert.Contains(t, sql, "LIMIT 10 OFFSET 10")
}

func TestMissionSchemaColumnsMatchQueryFields(t *testing.T) {
	db := dryRunDB(t)
	stmt := &gorm.Statement{DB: db}
	require.NoError(t, stmt.Parse(&model.Mission{}))

	columns := map[string]bool{}
	for _, name := range stmt.Schema.DBNames {
		columns[name] = true
	}
	for _, name := range []string{
		"missionStatus", "agency.name", "agency.country", "launch.launchDate", "launch.launchVehicle",
		"missionTimeline.startDate", "spacecraft.massKg", "crew.isCrewed", "orbitDetails.orbitType",
		"orbitDetails.apoapsisKm", "budget.amount", "outcome.success", "category", "createdAt",
	} {
		f, ok := query.LookupField(name)
		require.True(t, ok, name)
		assert.True(t, columns[f.Column], "field %s maps to missing column %s", name, f.Column)
	}
	assert.True(t, columns["objectives"])
	assert.True(t, columns["objectives_text"])
	assert.True(t, columns["mission_name"])
}

func TestRelationsToggleSQL_UsesJoinTable(t *testing.T) {
	db := dryRunDB(t)
	stmt := db.Model(&model.Follow{}).Where("follower_id = ? AND followee_id = ?", 1, 2).Count(new(int64)).Statement
	assert.True(t, strings.Contains(stmt.SQL.String(), "`user_follows`"))
}

func TestTableFor(t *testing.T) {
	for kind, want := range map[string]string{"follow": "followee_id", "track": "mission_id", "like_update": "mission_update_id", "like_comment": "comment_id"} {
		tbl, err := tableFor(relationKind(kind))
		require.NoError(t, err)
		assert.Equal(t, want, tbl.object)
	}
	_, err := tableFor(relationKind("block"))
	assert.Error(t, err)
}

func relationKind(s string) relation.Kind { return relation.Kind(s) }
