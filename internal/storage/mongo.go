package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kalviumcommunity/FocusRoom/internal"
)

// MongoStorage implements the repositories against a MongoDB database.
// Record IDs are uuid strings rather than ObjectIDs so they stay
// interchangeable with the other backends.
type MongoStorage struct {
	client        *mongo.Client
	db            *mongo.Database
	logger        internal.Logger
	watchInterval time.Duration
}

func NewMongoStorage(uri, database string, watchInterval time.Duration, logger internal.Logger) (*MongoStorage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		logger.Errorf("failed to connect to mongo: %v", err)
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		logger.Errorf("mongo is not reachable: %v", err)
		return nil, err
	}

	s := &MongoStorage{
		client:        client,
		db:            client.Database(database),
		logger:        logger,
		watchInterval: watchInterval,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		logger.Errorf("failed to ensure mongo indexes: %v", err)
		return nil, err
	}
	return s, nil
}

func (m *MongoStorage) ensureIndexes(ctx context.Context) error {
	_, err := m.sessions().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return err
	}
	_, err = m.teams().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "join_code", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}
	_, err = m.tasks().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}

func (m *MongoStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *MongoStorage) users() *mongo.Collection    { return m.db.Collection("users") }
func (m *MongoStorage) sessions() *mongo.Collection { return m.db.Collection("sessions") }
func (m *MongoStorage) teams() *mongo.Collection    { return m.db.Collection("teams") }
func (m *MongoStorage) tasks() *mongo.Collection    { return m.db.Collection("tasks") }

func translateMongoErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

// --- ProfileRepository ---

func (m *MongoStorage) GetProfile(ctx context.Context, id string) (*internal.UserProfile, error) {
	var u internal.UserProfile
	err := m.users().FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err != nil {
		return nil, translateMongoErr(err)
	}
	return &u, nil
}

func (m *MongoStorage) CreateProfile(ctx context.Context, u *internal.UserProfile) error {
	_, err := m.users().InsertOne(ctx, u)
	if err != nil {
		m.logger.Errorf("failed to insert user profile: %v", err)
		return err
	}
	return nil
}

func (m *MongoStorage) PatchProfile(ctx context.Context, id string, patch ProfilePatch) error {
	set := bson.M{}
	inc := bson.M{}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.ClearSession {
		set["current_session_id"] = ""
	} else if patch.CurrentSessionID != nil {
		set["current_session_id"] = *patch.CurrentSessionID
	}
	if patch.ClearTeam {
		set["team_id"] = ""
	} else if patch.TeamID != nil {
		set["team_id"] = *patch.TeamID
	}
	if patch.AddMinutes != 0 {
		inc["total_minutes_today"] = patch.AddMinutes
	}
	if patch.AddSessions != 0 {
		inc["total_sessions_today"] = patch.AddSessions
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(inc) > 0 {
		update["$inc"] = inc
	}
	if len(update) == 0 {
		return nil
	}
	res, err := m.users().UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		m.logger.Errorf("failed to patch user profile: %v", err)
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoStorage) WatchTeam(ctx context.Context, teamID string) (<-chan []internal.UserProfile, func(), error) {
	return pollWatch(ctx, m.watchInterval, m.logger, func(ctx context.Context) ([]internal.UserProfile, error) {
		cur, err := m.users().Find(ctx, bson.M{"team_id": teamID}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
		if err != nil {
			return nil, err
		}
		out := []internal.UserProfile{}
		if err := cur.All(ctx, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// --- SessionRepository ---

func (m *MongoStorage) GetSession(ctx context.Context, id string) (*internal.Session, error) {
	var s internal.Session
	err := m.sessions().FindOne(ctx, bson.M{"_id": id}).Decode(&s)
	if err != nil {
		return nil, translateMongoErr(err)
	}
	return &s, nil
}

func (m *MongoStorage) CreateSession(ctx context.Context, s *internal.Session) (string, error) {
	cp := *s
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	if _, err := m.sessions().InsertOne(ctx, cp); err != nil {
		m.logger.Errorf("failed to insert session: %v", err)
		return "", err
	}
	return cp.ID, nil
}

func (m *MongoStorage) PatchSession(ctx context.Context, id string, patch SessionPatch) error {
	set := bson.M{}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.PausedAt != nil {
		set["paused_at"] = *patch.PausedAt
	}
	if patch.ResumedAt != nil {
		set["resumed_at"] = *patch.ResumedAt
	}
	if patch.CompletedAt != nil {
		set["completed_at"] = *patch.CompletedAt
	}
	if patch.ActualEndTime != nil {
		set["actual_end_time"] = *patch.ActualEndTime
	}
	if len(set) == 0 {
		return nil
	}
	res, err := m.sessions().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		m.logger.Errorf("failed to patch session: %v", err)
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoStorage) LatestNonTerminal(ctx context.Context, userID string) (*internal.Session, error) {
	filter := bson.M{
		"user_id": userID,
		"status":  bson.M{"$in": []internal.SessionStatus{internal.SessionActive, internal.SessionPaused}},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var s internal.Session
	err := m.sessions().FindOne(ctx, filter, opts).Decode(&s)
	if err != nil {
		return nil, translateMongoErr(err)
	}
	return &s, nil
}

func (m *MongoStorage) CompletedInRange(ctx context.Context, userID string, from, to time.Time) ([]internal.Session, error) {
	filter := bson.M{
		"user_id":      userID,
		"status":       internal.SessionCompleted,
		"completed_at": bson.M{"$gte": from, "$lt": to},
	}
	cur, err := m.sessions().Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "completed_at", Value: -1}}))
	if err != nil {
		m.logger.Errorf("failed to query completed sessions: %v", err)
		return nil, err
	}
	out := []internal.Session{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- TeamRepository ---

func (m *MongoStorage) GetTeam(ctx context.Context, id string) (*internal.Team, error) {
	var t internal.Team
	err := m.teams().FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if err != nil {
		return nil, translateMongoErr(err)
	}
	return &t, nil
}

func (m *MongoStorage) CreateTeam(ctx context.Context, t *internal.Team) (string, error) {
	cp := *t
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if _, err := m.teams().InsertOne(ctx, cp); err != nil {
		m.logger.Errorf("failed to insert team: %v", err)
		return "", err
	}
	return cp.ID, nil
}

func (m *MongoStorage) SetMembers(ctx context.Context, id string, members []string) error {
	res, err := m.teams().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"members": members}})
	if err != nil {
		m.logger.Errorf("failed to update team members: %v", err)
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoStorage) FindByJoinCode(ctx context.Context, code string) (*internal.Team, error) {
	var t internal.Team
	err := m.teams().FindOne(ctx, bson.M{"join_code": code}).Decode(&t)
	if err != nil {
		return nil, translateMongoErr(err)
	}
	return &t, nil
}

// --- TaskRepository ---

func (m *MongoStorage) ListTasks(ctx context.Context, userID string) ([]internal.Task, error) {
	cur, err := m.tasks().Find(ctx, bson.M{"user_id": userID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		m.logger.Errorf("failed to query tasks: %v", err)
		return nil, err
	}
	out := []internal.Task{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MongoStorage) CreateTask(ctx context.Context, t *internal.Task) (string, error) {
	cp := *t
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	if _, err := m.tasks().InsertOne(ctx, cp); err != nil {
		m.logger.Errorf("failed to insert task: %v", err)
		return "", err
	}
	return cp.ID, nil
}

func (m *MongoStorage) PatchTaskStatus(ctx context.Context, userID, id, status string, completedAt *time.Time) error {
	update := bson.M{"$set": bson.M{"status": status, "completed_at": completedAt}}
	res, err := m.tasks().UpdateOne(ctx, bson.M{"_id": id, "user_id": userID}, update)
	if err != nil {
		m.logger.Errorf("failed to patch task: %v", err)
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoStorage) WatchTasks(ctx context.Context, userID string) (<-chan []internal.Task, func(), error) {
	return pollWatch(ctx, m.watchInterval, m.logger, func(ctx context.Context) ([]internal.Task, error) {
		return m.ListTasks(ctx, userID)
	})
}

// --- Compile-time assertions ---
var _ ProfileRepository = (*MongoStorage)(nil)
var _ SessionRepository = (*MongoStorage)(nil)
var _ TeamRepository = (*MongoStorage)(nil)
var _ TaskRepository = (*MongoStorage)(nil)
