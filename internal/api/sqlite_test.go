package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"astromissions/internal/api/auth"
	"astromissions/internal/config"
	"astromissions/internal/model"
	"astromissions/internal/pkg/token"
	"astromissions/internal/store"
)

// newStoreFixture 用真实的 store 与临时 SQLite 库组装服务。
func newStoreFixture(t *testing.T) (*fixture, *store.Missions) {
	t.Helper()
	db, err := store.Open(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "api.db") + "?_pragma=busy_timeout(5000)",
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := store.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	users := store.NewUsers(db)
	missions := store.NewMissions(db)
	issuer := token.NewIssuer("test-secret", time.Hour)
	f := &fixture{issuer: issuer}
	for _, u := range []*model.User{
		{Username: "alice", Email: "alice@example.com", Password: "hash", Role: model.RoleUser, IsVerified: true},
		{Username: "root", Email: "root@example.com", Password: "hash", Role: model.RoleAdmin, IsVerified: true},
	} {
		if err := users.Create(context.Background(), u); err != nil {
			t.Fatalf("create user: %v", err)
		}
		if u.Role == model.RoleAdmin {
			f.admin = u.ID
		} else {
			f.alice = u.ID
		}
	}

	cfg := &config.Config{Query: config.QueryConfig{DefaultLimit: 25, MaxLimit: 100}}
	f.srv = New(Deps{
		Config:    cfg,
		DB:        db,
		Tokens:    issuer,
		Auth:      auth.NewHandler(users, issuer, nil, nil, nil, time.Minute, nil),
		Users:     users,
		Missions:  missions,
		Updates:   store.NewUpdates(db),
		Comments:  store.NewComments(db),
		Relations: store.NewRelations(db),
	})
	return f, missions
}

func TestListMissions_MarsSecondPageOnSQLite(t *testing.T) {
	f, missions := newStoreFixture(t)
	ctx := context.Background()
	seed := func(name, destination string, year int) {
		launch := time.Date(year, time.July, 4, 0, 0, 0, 0, time.UTC)
		m := &model.Mission{MissionName: name, MissionStatus: "planned", Destination: destination, Launch: model.Launch{LaunchDate: &launch}}
		if err := missions.Create(ctx, m); err != nil {
			t.Fatalf("create mission: %v", err)
		}
	}
	for i := 0; i < 23; i++ {
		seed(fmt.Sprintf("Mars Mission %02d", i), "Mars", 1990+i)
	}
	for i := 0; i < 4; i++ {
		seed(fmt.Sprintf("Lunar Mission %02d", i), "Moon", 2020+i)
	}

	w := f.do(t, http.MethodGet, "/api/v1/missions?destination=Mars&sort=-launchDate&page=2&limit=10", 0, nil)
	expectStatus(t, w, http.StatusOK)

	var body listBody
	decode(t, w, &body)
	if !body.Success || body.Count != 10 || body.Total != 23 {
		t.Fatalf("unexpected envelope success=%v count=%d total=%d", body.Success, body.Count, body.Total)
	}
	if got := string(body.Pagination); got != `{"next":{"page":3,"limit":10},"prev":{"page":1,"limit":10}}` {
		t.Fatalf("pagination: %s", got)
	}
	var data []model.Mission
	if err := json.Unmarshal(body.Data, &data); err != nil {
		t.Fatalf("data: %v", err)
	}
	// 第二页是第 11 到 20 新的火星任务：2002 年到 1993 年
	for i, m := range data {
		if m.Destination != "Mars" || m.Launch.LaunchDate == nil || m.Launch.LaunchDate.Year() != 2002-i {
			t.Fatalf("position %d: %+v", i, m)
		}
	}

	w = f.do(t, http.MethodGet, "/api/v1/missions?destination=Mars&page=3&limit=10", 0, nil)
	expectStatus(t, w, http.StatusOK)
	decode(t, w, &body)
	if body.Count != 3 || body.Total != 23 || string(body.Pagination) != `{"prev":{"page":2,"limit":10}}` {
		t.Fatalf("last page: count=%d total=%d pagination=%s", body.Count, body.Total, body.Pagination)
	}
}

func TestDeleteMission_CascadesOnSQLite(t *testing.T) {
	f, missions := newStoreFixture(t)
	m := &model.Mission{MissionName: "Mars Climate Orbiter", MissionStatus: "failed", Destination: "Mars"}
	if err := missions.Create(context.Background(), m); err != nil {
		t.Fatalf("create mission: %v", err)
	}

	expectStatus(t, f.do(t, http.MethodPut, "/api/v1/users/missions/"+m.Slug+"/track", f.alice, nil), http.StatusOK)
	w := f.do(t, http.MethodGet, "/api/v1/missions/"+m.Slug+"/trackedby", 0, nil)
	expectStatus(t, w, http.StatusOK)
	var trackers struct {
		Data []model.UserRef `json:"data"`
	}
	decode(t, w, &trackers)
	if len(trackers.Data) != 1 || trackers.Data[0].Username != "alice" {
		t.Fatalf("trackers: %+v", trackers.Data)
	}

	expectStatus(t, f.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/missions/%d", m.ID), f.admin, nil), http.StatusOK)

	w = f.do(t, http.MethodGet, "/api/v1/users/tracked-missions", f.alice, nil)
	expectStatus(t, w, http.StatusOK)
	var tracked struct {
		Data []model.Mission `json:"data"`
	}
	decode(t, w, &tracked)
	if len(tracked.Data) != 0 {
		t.Fatalf("deleted mission still tracked: %+v", tracked.Data)
	}
	expectStatus(t, f.do(t, http.MethodGet, "/api/v1/missions/"+m.Slug, 0, nil), http.StatusNotFound)
}
