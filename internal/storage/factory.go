package storage

import (
	"io"
	"time"

	"github.com/kalviumcommunity/FocusRoom/internal"
)

func repos(s interface {
	ProfileRepository
	SessionRepository
	TeamRepository
	TaskRepository
}) *Repositories {
	return &Repositories{Profiles: s, Sessions: s, Teams: s, Tasks: s}
}

func NewFileRepositories(dir string, logger internal.Logger) (*Repositories, io.Closer, error) {
	storage, err := NewFileStorage(dir, logger)
	if err != nil {
		return nil, nil, err
	}
	return repos(storage), storage, nil
}

func NewMongoRepositories(uri, database string, watchInterval time.Duration, logger internal.Logger) (*Repositories, io.Closer, error) {
	storage, err := NewMongoStorage(uri, database, watchInterval, logger)
	if err != nil {
		return nil, nil, err
	}
	return repos(storage), storage, nil
}

func NewPostgresRepositories(dsn string, watchInterval time.Duration, logger internal.Logger) (*Repositories, io.Closer, error) {
	storage, err := NewPostgresStorage(dsn, watchInterval, logger)
	if err != nil {
		return nil, nil, err
	}
	return repos(storage), storage, nil
}
