package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalviumcommunity/FocusRoom/internal"
)

// FileStorage keeps all records in memory behind a RWMutex and
// persists JSON snapshots to disk with debounced background save
// workers. An empty dir gives a pure in-memory store (used in tests).
type FileStorage struct {
	mu               sync.RWMutex
	profiles         map[string]*internal.UserProfile
	sessions         map[string]*internal.Session
	userSessionIndex map[string][]*internal.Session // userID -> sessions, newest first
	teams            map[string]*internal.Team
	teamCodeIndex    map[string]string // joinCode -> teamID
	tasks            map[string][]*internal.Task // userID -> tasks, newest first

	taskWatchers map[string]map[int]chan []internal.Task
	teamWatchers map[string]map[int]chan []internal.UserProfile
	nextWatchID  int

	dir          string
	saveChans    map[string]chan struct{}
	shutdownChan chan struct{}
	saveDelay    time.Duration
	logger       internal.Logger
}

const (
	profilesFile = "profiles.json"
	sessionsFile = "sessions.json"
	teamsFile    = "teams.json"
	tasksFile    = "tasks.json"
)

func NewFileStorage(dir string, logger internal.Logger) (*FileStorage, error) {
	s := &FileStorage{
		profiles:         make(map[string]*internal.UserProfile),
		sessions:         make(map[string]*internal.Session),
		userSessionIndex: make(map[string][]*internal.Session),
		teams:            make(map[string]*internal.Team),
		teamCodeIndex:    make(map[string]string),
		tasks:            make(map[string][]*internal.Task),
		taskWatchers:     make(map[string]map[int]chan []internal.Task),
		teamWatchers:     make(map[string]map[int]chan []internal.UserProfile),
		dir:              dir,
		saveChans:        make(map[string]chan struct{}),
		shutdownChan:     make(chan struct{}),
		saveDelay:        500 * time.Millisecond,
		logger:           logger,
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		if err := s.loadAll(); err != nil {
			logger.Errorf("storage: failed to load snapshots: %v", err)
			return nil, err
		}
		for _, name := range []string{profilesFile, sessionsFile, teamsFile, tasksFile} {
			ch := make(chan struct{}, 1)
			s.saveChans[name] = ch
			go s.saveWorker(name, ch)
		}
	}

	return s, nil
}

func (s *FileStorage) loadAll() error {
	if err := loadJSON(filepath.Join(s.dir, profilesFile), func(list []*internal.UserProfile) {
		for _, p := range list {
			s.profiles[p.ID] = p
		}
	}); err != nil {
		return err
	}
	if err := loadJSON(filepath.Join(s.dir, sessionsFile), func(list []*internal.Session) {
		for _, sess := range list {
			s.sessions[sess.ID] = sess
			s.userSessionIndex[sess.UserID] = append(s.userSessionIndex[sess.UserID], sess)
		}
	}); err != nil {
		return err
	}
	for userID := range s.userSessionIndex {
		idx := s.userSessionIndex[userID]
		sort.Slice(idx, func(i, j int) bool { return idx[i].CreatedAt.After(idx[j].CreatedAt) })
	}
	if err := loadJSON(filepath.Join(s.dir, teamsFile), func(list []*internal.Team) {
		for _, t := range list {
			s.teams[t.ID] = t
			s.teamCodeIndex[t.JoinCode] = t.ID
		}
	}); err != nil {
		return err
	}
	if err := loadJSON(filepath.Join(s.dir, tasksFile), func(list []*internal.Task) {
		for _, t := range list {
			s.tasks[t.UserID] = append(s.tasks[t.UserID], t)
		}
	}); err != nil {
		return err
	}
	for userID := range s.tasks {
		idx := s.tasks[userID]
		sort.Slice(idx, func(i, j int) bool { return idx[i].CreatedAt.After(idx[j].CreatedAt) })
	}
	return nil
}

func loadJSON[T any](path string, apply func([]T)) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	var list []T
	if err := json.NewDecoder(file).Decode(&list); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	apply(list)
	return nil
}

func (s *FileStorage) saveWorker(name string, ch chan struct{}) {
	timer := time.NewTimer(s.saveDelay)
	defer timer.Stop()

	for {
		select {
		case <-ch:
			timer.Reset(s.saveDelay)
		case <-timer.C:
			if err := s.saveFile(name); err != nil {
				s.logger.Errorf("storage: error saving %s: %v", name, err)
			}
		case <-s.shutdownChan:
			return
		}
	}
}

func (s *FileStorage) saveFile(name string) error {
	s.mu.RLock()
	var data any
	switch name {
	case profilesFile:
		list := make([]*internal.UserProfile, 0, len(s.profiles))
		for _, p := range s.profiles {
			list = append(list, p)
		}
		data = list
	case sessionsFile:
		list := make([]*internal.Session, 0, len(s.sessions))
		for _, sess := range s.sessions {
			list = append(list, sess)
		}
		data = list
	case teamsFile:
		list := make([]*internal.Team, 0, len(s.teams))
		for _, t := range s.teams {
			list = append(list, t)
		}
		data = list
	case tasksFile:
		var list []*internal.Task
		for _, userTasks := range s.tasks {
			list = append(list, userTasks...)
		}
		data = list
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	tmp := filepath.Join(s.dir, name+".tmp")
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(s.dir, name))
}

func (s *FileStorage) markDirty(name string) {
	ch, ok := s.saveChans[name]
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (s *FileStorage) Close() error {
	close(s.shutdownChan)
	if s.dir == "" {
		return nil
	}
	for _, name := range []string{profilesFile, sessionsFile, teamsFile, tasksFile} {
		if err := s.saveFile(name); err != nil {
			return err
		}
	}
	return nil
}

// --- ProfileRepository ---

func (s *FileStorage) GetProfile(ctx context.Context, id string) (*internal.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *FileStorage) CreateProfile(ctx context.Context, p *internal.UserProfile) error {
	s.mu.Lock()
	cp := *p
	s.profiles[p.ID] = &cp
	teamID := p.TeamID
	s.mu.Unlock()

	s.markDirty(profilesFile)
	s.notifyTeam(teamID)
	return nil
}

func (s *FileStorage) PatchProfile(ctx context.Context, id string, patch ProfilePatch) error {
	s.mu.Lock()
	p, ok := s.profiles[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	oldTeam := p.TeamID
	applyProfilePatch(p, patch)
	newTeam := p.TeamID
	s.mu.Unlock()

	s.markDirty(profilesFile)
	s.notifyTeam(oldTeam)
	if newTeam != oldTeam {
		s.notifyTeam(newTeam)
	}
	return nil
}

func applyProfilePatch(p *internal.UserProfile, patch ProfilePatch) {
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.ClearSession {
		p.CurrentSessionID = ""
	} else if patch.CurrentSessionID != nil {
		p.CurrentSessionID = *patch.CurrentSessionID
	}
	if patch.ClearTeam {
		p.TeamID = ""
	} else if patch.TeamID != nil {
		p.TeamID = *patch.TeamID
	}
	p.TotalMinutesToday += patch.AddMinutes
	p.TotalSessionsToday += patch.AddSessions
}

func (s *FileStorage) WatchTeam(ctx context.Context, teamID string) (<-chan []internal.UserProfile, func(), error) {
	ch := make(chan []internal.UserProfile, 4)

	s.mu.Lock()
	id := s.nextWatchID
	s.nextWatchID++
	if s.teamWatchers[teamID] == nil {
		s.teamWatchers[teamID] = make(map[int]chan []internal.UserProfile)
	}
	s.teamWatchers[teamID][id] = ch
	initial := s.teamMembersLocked(teamID)
	s.mu.Unlock()

	ch <- initial
	cancel := func() {
		s.mu.Lock()
		delete(s.teamWatchers[teamID], id)
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

func (s *FileStorage) teamMembersLocked(teamID string) []internal.UserProfile {
	members := []internal.UserProfile{}
	t, ok := s.teams[teamID]
	if !ok {
		return members
	}
	for _, uid := range t.Members {
		if p, ok := s.profiles[uid]; ok {
			members = append(members, *p)
		}
	}
	return members
}

func (s *FileStorage) notifyTeam(teamID string) {
	if teamID == "" {
		return
	}
	s.mu.RLock()
	watchers := s.teamWatchers[teamID]
	if len(watchers) == 0 {
		s.mu.RUnlock()
		return
	}
	members := s.teamMembersLocked(teamID)
	chans := make([]chan []internal.UserProfile, 0, len(watchers))
	for _, ch := range watchers {
		chans = append(chans, ch)
	}
	s.mu.RUnlock()

	for _, ch := range chans {
		select {
		case ch <- members:
		default: // slow consumer, drop the update
		}
	}
}

// --- SessionRepository ---

func (s *FileStorage) GetSession(ctx context.Context, id string) (*internal.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *FileStorage) CreateSession(ctx context.Context, sess *internal.Session) (string, error) {
	s.mu.Lock()
	cp := *sess
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.sessions[cp.ID] = &cp
	s.userSessionIndex[cp.UserID] = append([]*internal.Session{&cp}, s.userSessionIndex[cp.UserID]...)
	s.mu.Unlock()

	s.markDirty(sessionsFile)
	return cp.ID, nil
}

func (s *FileStorage) PatchSession(ctx context.Context, id string, patch SessionPatch) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	applySessionPatch(sess, patch)
	s.mu.Unlock()

	s.markDirty(sessionsFile)
	return nil
}

func applySessionPatch(sess *internal.Session, patch SessionPatch) {
	if patch.Status != nil {
		sess.Status = *patch.Status
	}
	if patch.PausedAt != nil {
		sess.PausedAt = patch.PausedAt
	}
	if patch.ResumedAt != nil {
		sess.ResumedAt = patch.ResumedAt
	}
	if patch.CompletedAt != nil {
		sess.CompletedAt = patch.CompletedAt
	}
	if patch.ActualEndTime != nil {
		sess.ActualEndTime = patch.ActualEndTime
	}
}

func (s *FileStorage) LatestNonTerminal(ctx context.Context, userID string) (*internal.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.userSessionIndex[userID] {
		if !sess.Status.Terminal() {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *FileStorage) CompletedInRange(ctx context.Context, userID string, from, to time.Time) ([]internal.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []internal.Session{}
	for _, sess := range s.userSessionIndex[userID] {
		if sess.Status != internal.SessionCompleted || sess.CompletedAt == nil {
			continue
		}
		if sess.CompletedAt.Before(from) || !sess.CompletedAt.Before(to) {
			continue
		}
		out = append(out, *sess)
	}
	return out, nil
}

// --- TeamRepository ---

func (s *FileStorage) GetTeam(ctx context.Context, id string) (*internal.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teams[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	cp.Members = append([]string(nil), t.Members...)
	return &cp, nil
}

func (s *FileStorage) CreateTeam(ctx context.Context, t *internal.Team) (string, error) {
	s.mu.Lock()
	cp := *t
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.Members = append([]string(nil), t.Members...)
	s.teams[cp.ID] = &cp
	s.teamCodeIndex[cp.JoinCode] = cp.ID
	s.mu.Unlock()

	s.markDirty(teamsFile)
	return cp.ID, nil
}

func (s *FileStorage) SetMembers(ctx context.Context, id string, members []string) error {
	s.mu.Lock()
	t, ok := s.teams[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	t.Members = append([]string(nil), members...)
	s.mu.Unlock()

	s.markDirty(teamsFile)
	s.notifyTeam(id)
	return nil
}

func (s *FileStorage) FindByJoinCode(ctx context.Context, code string) (*internal.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.teamCodeIndex[code]
	if !ok {
		return nil, ErrNotFound
	}
	t := s.teams[id]
	cp := *t
	cp.Members = append([]string(nil), t.Members...)
	return &cp, nil
}

// --- TaskRepository ---

func (s *FileStorage) ListTasks(ctx context.Context, userID string) ([]internal.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listTasksLocked(userID), nil
}

func (s *FileStorage) listTasksLocked(userID string) []internal.Task {
	tasksPtr := s.tasks[userID]
	tasks := make([]internal.Task, len(tasksPtr))
	for i, t := range tasksPtr {
		tasks[i] = *t
	}
	return tasks
}

func (s *FileStorage) CreateTask(ctx context.Context, t *internal.Task) (string, error) {
	s.mu.Lock()
	cp := *t
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.tasks[cp.UserID] = append([]*internal.Task{&cp}, s.tasks[cp.UserID]...)
	s.mu.Unlock()

	s.markDirty(tasksFile)
	s.notifyTasks(cp.UserID)
	return cp.ID, nil
}

func (s *FileStorage) PatchTaskStatus(ctx context.Context, userID, id, status string, completedAt *time.Time) error {
	s.mu.Lock()
	var found *internal.Task
	for _, t := range s.tasks[userID] {
		if t.ID == id {
			found = t
			break
		}
	}
	if found == nil {
		s.mu.Unlock()
		return ErrNotFound
	}
	found.Status = status
	found.CompletedAt = completedAt
	s.mu.Unlock()

	s.markDirty(tasksFile)
	s.notifyTasks(userID)
	return nil
}

func (s *FileStorage) WatchTasks(ctx context.Context, userID string) (<-chan []internal.Task, func(), error) {
	ch := make(chan []internal.Task, 4)

	s.mu.Lock()
	id := s.nextWatchID
	s.nextWatchID++
	if s.taskWatchers[userID] == nil {
		s.taskWatchers[userID] = make(map[int]chan []internal.Task)
	}
	s.taskWatchers[userID][id] = ch
	initial := s.listTasksLocked(userID)
	s.mu.Unlock()

	ch <- initial
	cancel := func() {
		s.mu.Lock()
		delete(s.taskWatchers[userID], id)
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

func (s *FileStorage) notifyTasks(userID string) {
	s.mu.RLock()
	watchers := s.taskWatchers[userID]
	if len(watchers) == 0 {
		s.mu.RUnlock()
		return
	}
	tasks := s.listTasksLocked(userID)
	chans := make([]chan []internal.Task, 0, len(watchers))
	for _, ch := range watchers {
		chans = append(chans, ch)
	}
	s.mu.RUnlock()

	for _, ch := range chans {
		select {
		case ch <- tasks:
		default:
		}
	}
}

// --- Compile-time assertions ---
var _ ProfileRepository = (*FileStorage)(nil)
var _ SessionRepository = (*FileStorage)(nil)
var _ TeamRepository = (*FileStorage)(nil)
var _ TaskRepository = (*FileStorage)(nil)
