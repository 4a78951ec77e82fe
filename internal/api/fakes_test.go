package api

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"astromissions/internal/model"
	"astromissions/internal/pkg/query"
	"astromissions/internal/pkg/relation"
	"astromissions/internal/pkg/slug"
	"astromissions/internal/store"
)

// 内存实现，仅用于 handler 测试。

type memUsers struct {
	mu     sync.Mutex
	byID   map[uint]*model.User
	nextID uint
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[uint]*model.User)}
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.byID {
		if other.Email == u.Email || other.Username == u.Username {
			return store.ErrDuplicate
		}
	}
	m.nextID++
	u.ID = m.nextID
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) Save(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, other := range m.byID {
		if id != u.ID && other.Username == u.Username {
			return store.ErrDuplicate
		}
	}
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) ByID(_ context.Context, id uint) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) find(match func(*model.User) bool) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memUsers) ByEmail(_ context.Context, email string) (*model.User, error) {
	email = model.NormalizeEmail(email)
	return m.find(func(u *model.User) bool { return u.Email == email })
}

func (m *memUsers) ByUsername(_ context.Context, username string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Username == username })
}

func (m *memUsers) UsernameTaken(ctx context.Context, username string) (bool, error) {
	_, err := m.ByUsername(ctx, username)
	return err == nil, nil
}

type memMissions struct {
	mu     sync.Mutex
	items  []model.Mission
	nextID uint
	lastQ  query.Query
}

func (m *memMissions) Find(_ context.Context, q query.Query) ([]model.Mission, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQ = q
	total := int64(len(m.items))
	start := q.Offset()
	if start > len(m.items) {
		start = len(m.items)
	}
	end := start + q.Limit
	if end > len(m.items) {
		end = len(m.items)
	}
	out := append([]model.Mission{}, m.items[start:end]...)
	return out, total, nil
}

func (m *memMissions) ByID(_ context.Context, id uint) (*model.Mission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id {
			cp := m.items[i]
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memMissions) ByRef(ctx context.Context, ref string) (*model.Mission, error) {
	m.mu.Lock()
	for i := range m.items {
		if m.items[i].Slug == ref {
			cp := m.items[i]
			m.mu.Unlock()
			return &cp, nil
		}
	}
	m.mu.Unlock()
	id, err := strconv.ParseUint(ref, 10, 64)
	if err != nil {
		return nil, store.ErrNotFound
	}
	return m.ByID(ctx, uint(id))
}

func (m *memMissions) taken(exceptID uint) slug.TakenFunc {
	return func(_ context.Context, candidate string) (bool, error) {
		for _, it := range m.items {
			if it.Slug == candidate && it.ID != exceptID {
				return true, nil
			}
		}
		return false, nil
	}
}

func (m *memMissions) Create(ctx context.Context, mission *model.Mission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sl, err := slug.Unique(ctx, mission.MissionName, m.taken(0))
	if err != nil {
		return err
	}
	m.nextID++
	mission.ID = m.nextID
	mission.Slug = sl
	if mission.MissionID == "" {
		mission.MissionID = "mission-" + strconv.Itoa(int(mission.ID))
	}
	m.items = append(m.items, *mission)
	return nil
}

func (m *memMissions) Update(ctx context.Context, mission *model.Mission, previousName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID != mission.ID {
			continue
		}
		if mission.MissionName != previousName {
			sl, err := slug.Unique(ctx, mission.MissionName, m.taken(mission.ID))
			if err != nil {
				return err
			}
			mission.Slug = sl
		}
		m.items[i] = *mission
		return nil
	}
	return store.ErrNotFound
}

func (m *memMissions) Delete(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

type memUpdates struct {
	mu     sync.Mutex
	byID   map[uint]*model.MissionUpdate
	nextID uint
}

func newMemUpdates() *memUpdates {
	return &memUpdates{byID: make(map[uint]*model.MissionUpdate)}
}

func (m *memUpdates) Create(_ context.Context, u *model.MissionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	u.ID = m.nextID
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUpdates) ByID(_ context.Context, id uint) (*model.MissionUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUpdates) list(match func(*model.MissionUpdate) bool) []model.MissionUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.MissionUpdate{}
	for _, u := range m.byID {
		if match(u) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (m *memUpdates) ListByMission(_ context.Context, missionID uint, status string) ([]model.MissionUpdate, error) {
	return m.list(func(u *model.MissionUpdate) bool {
		return u.MissionID == missionID && u.Status == status
	}), nil
}

func (m *memUpdates) ListByStatus(_ context.Context, status string) ([]model.MissionUpdate, error) {
	return m.list(func(u *model.MissionUpdate) bool {
		return status == "" || u.Status == status
	}), nil
}

func (m *memUpdates) pending(id uint) (*model.MissionUpdate, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if u.Status != model.UpdatePending {
		return nil, store.ErrNotPending
	}
	return u, nil
}

func (m *memUpdates) Edit(_ context.Context, u *model.MissionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, err := m.pending(u.ID)
	if err != nil {
		return err
	}
	cur.Title, cur.Content, cur.ReferenceLink = u.Title, u.Content, u.ReferenceLink
	return nil
}

func (m *memUpdates) SetStatus(_ context.Context, id uint, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, err := m.pending(id)
	if err != nil {
		return err
	}
	cur.Status = status
	return nil
}

func (m *memUpdates) Delete(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.pending(id); err != nil {
		return err
	}
	delete(m.byID, id)
	return nil
}

type memComments struct {
	mu     sync.Mutex
	byID   map[uint]*model.Comment
	nextID uint
}

func newMemComments() *memComments {
	return &memComments{byID: make(map[uint]*model.Comment)}
}

func (m *memComments) Create(_ context.Context, c *model.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c.ID = m.nextID
	c.Likes = []uint{}
	c.Replies = []model.Comment{}
	cp := *c
	m.byID[c.ID] = &cp
	return nil
}

func (m *memComments) ByID(_ context.Context, id uint) (*model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memComments) ListForUpdate(_ context.Context, updateID uint) ([]model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Comment{}
	for _, c := range m.byID {
		if c.MissionUpdateID != updateID || c.ParentID != nil {
			continue
		}
		top := *c
		top.Replies = []model.Comment{}
		for _, r := range m.byID {
			if r.ParentID != nil && *r.ParentID == c.ID {
				top.Replies = append(top.Replies, *r)
			}
		}
		sort.Slice(top.Replies, func(i, j int) bool { return top.Replies[i].ID < top.Replies[j].ID })
		out = append(out, top)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memComments) Delete(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return store.ErrNotFound
	}
	queue := []uint{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for cid, c := range m.byID {
			if c.ParentID != nil && *c.ParentID == cur {
				queue = append(queue, cid)
			}
		}
		delete(m.byID, cur)
	}
	return nil
}

// memRelations 用一组 (subject, object) 行模拟关联表，按需解析用户与任务。
type memRelations struct {
	mu       sync.Mutex
	links    map[relation.Kind]map[[2]uint]bool
	users    *memUsers
	missions *memMissions
}

func newMemRelations(users *memUsers, missions *memMissions) *memRelations {
	return &memRelations{links: make(map[relation.Kind]map[[2]uint]bool), users: users, missions: missions}
}

func (r *memRelations) Related(_ context.Context, kind relation.Kind, subject, object uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.links[kind][[2]uint{subject, object}], nil
}

func (r *memRelations) Link(_ context.Context, kind relation.Kind, subject, object uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.links[kind] == nil {
		r.links[kind] = make(map[[2]uint]bool)
	}
	r.links[kind][[2]uint{subject, object}] = true
	return nil
}

func (r *memRelations) Unlink(_ context.Context, kind relation.Kind, subject, object uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.links[kind], [2]uint{subject, object})
	return nil
}

func (r *memRelations) Toggle(ctx context.Context, kind relation.Kind, subject, object uint) (bool, error) {
	return relation.Toggle(ctx, r, kind, subject, object)
}

// column 返回第 match 列等于 id 的行的另一列，按 ID 排序。
func (r *memRelations) column(kind relation.Kind, match int, id uint) []uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []uint{}
	for pair := range r.links[kind] {
		if pair[match] == id {
			out = append(out, pair[1-match])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *memRelations) subjects(kind relation.Kind, object uint) []uint {
	return r.column(kind, 1, object)
}

func (r *memRelations) objects(kind relation.Kind, subject uint) []uint {
	return r.column(kind, 0, subject)
}

func (r *memRelations) Subjects(_ context.Context, kind relation.Kind, object uint) ([]uint, error) {
	return r.subjects(kind, object), nil
}

func (r *memRelations) refs(ctx context.Context, ids []uint) ([]model.UserRef, error) {
	out := []model.UserRef{}
	for _, id := range ids {
		u, err := r.users.ByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, model.UserRef{ID: u.ID, Username: u.Username, Name: u.Name})
	}
	return out, nil
}

func (r *memRelations) Followers(ctx context.Context, userID uint) ([]model.UserRef, error) {
	return r.refs(ctx, r.subjects(relation.Follow, userID))
}

func (r *memRelations) Following(ctx context.Context, userID uint) ([]model.UserRef, error) {
	return r.refs(ctx, r.objects(relation.Follow, userID))
}

func (r *memRelations) TrackedMissions(ctx context.Context, userID uint) ([]model.Mission, error) {
	out := []model.Mission{}
	for _, id := range r.objects(relation.Track, userID) {
		m, err := r.missions.ByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}

func (r *memRelations) Trackers(ctx context.Context, missionID uint) ([]model.UserRef, error) {
	return r.refs(ctx, r.subjects(relation.Track, missionID))
}
